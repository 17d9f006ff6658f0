// Package categorize assigns uploaded files to the fixed set of archival
// categories, using the folder they were found in and their extension.
package categorize

// Category is one of the archival file categories.
type Category string

const (
	Master     Category = "master"
	Normalized Category = "normalized"
	ExportHigh Category = "export_high"
	ExportLow  Category = "export_low"
	Metadata   Category = "metadata"
	ICC        Category = "icc"
	Logs       Category = "logs"
	Other      Category = "other"
)

// Use is the archival role of a file group, as written to the fileGrp USE
// attribute.
type Use string

const (
	UseMaster    Use = "MASTER"
	UseReference Use = "REFERENCE"
	UseHigh      Use = "HIGH"
	UseThumbnail Use = "THUMBNAIL"
	UseMetadata  Use = "METADATA"
	UseOther     Use = "OTHER"
)

// UseOrder is the order in which file groups are emitted.
var UseOrder = []Use{UseMaster, UseReference, UseHigh, UseThumbnail, UseMetadata, UseOther}

type categoryInfo struct {
	use         Use
	folder      string
	description string
}

var categories = map[Category]categoryInfo{
	Master:     {UseMaster, "Master", "Preservation Master (RAW/DNG/Uncompressed TIFF)"},
	Normalized: {UseReference, "Normalized", "Normalized TIFF (Adobe RGB, 2400px)"},
	ExportHigh: {UseHigh, "Export300", "High-Quality JPEG (300 DPI, ~2400px)"},
	ExportLow:  {UseThumbnail, "Export150", "Low-Quality JPEG (150 DPI, ~1200px)"},
	Metadata:   {UseMetadata, "Metadata", "Metadata Files (XML, METS, etc.)"},
	ICC:        {UseMetadata, "ICC", "ICC Color Profiles"},
	Logs:       {UseMetadata, "Logs", "Log Files"},
	Other:      {UseOther, "Other", "Other/Uncategorized"},
}

// All returns every category in declaration order.
func All() []Category {
	return []Category{Master, Normalized, ExportHigh, ExportLow, Metadata, ICC, Logs, Other}
}

// Parse returns the category named s, or Other when s is empty or unknown.
func Parse(s string) Category {
	c := Category(s)
	if _, ok := categories[c]; ok {
		return c
	}
	return Other
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Use returns the archival use class of c. Unknown categories map to OTHER.
func (c Category) Use() Use {
	return categories[Parse(string(c))].use
}

// FolderName returns the display folder used for c in exported archives.
func (c Category) FolderName() string {
	return categories[Parse(string(c))].folder
}

func (c Category) Description() string {
	return categories[Parse(string(c))].description
}

func (c Category) String() string {
	return string(c)
}
