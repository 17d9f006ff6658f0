package categorize

// Entry is one file of a listing to be grouped.
type Entry struct {
	Filename   string
	FolderPath string
}

// Classified is an Entry together with its classification.
type Classified struct {
	Entry
	Category   Category
	Confidence float64
}

// Group classifies every entry and buckets the results by category. Every
// category is present in the result, possibly with no entries.
func Group(entries []Entry) map[Category][]Classified {
	out := make(map[Category][]Classified, len(categories))
	for _, c := range All() {
		out[c] = nil
	}
	for _, e := range entries {
		c, conf := Classify(e.Filename, e.FolderPath)
		out[c] = append(out[c], Classified{Entry: e, Category: c, Confidence: conf})
	}
	return out
}
