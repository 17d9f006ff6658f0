package categorize

import (
	"path"
	"strings"
)

// Confidence levels reported by Classify.
const (
	FolderConfidence    = 0.95
	ExtensionConfidence = 0.75
	FallbackConfidence  = 0.3
)

type extSet map[string]struct{}

func newExtSet(exts ...string) extSet {
	s := make(extSet, len(exts))
	for _, e := range exts {
		s[e] = struct{}{}
	}
	return s
}

func (s extSet) has(ext string) bool {
	_, ok := s[ext]
	return ok
}

var (
	rawExts      = newExtSet(".dng", ".raw", ".cr2", ".nef", ".arw", ".orf", ".rw2")
	tiffExts     = newExtSet(".tif", ".tiff")
	jpegExts     = newExtSet(".jpg", ".jpeg")
	metadataExts = newExtSet(".xml", ".mets", ".mods")
	iccExts      = newExtSet(".icc", ".icm")
	logExts      = newExtSet(".log", ".txt")
)

type folderRule struct {
	category Category
	patterns []string
	accepts  func(ext string) bool
}

// Rules are tried in order; the first pattern hit whose extension check
// passes wins.
var folderRules = []folderRule{
	{Master, []string{"tif.master", "tiff.master", "master", "raw"}, func(ext string) bool {
		return rawExts.has(ext) || tiffExts.has(ext)
	}},
	{Normalized, []string{"tif.derived", "tiff.derived", "derived", "normalized"}, tiffExts.has},
	{ExportHigh, []string{"jpg300", "jpeg300", "export300", "high"}, jpegExts.has},
	{ExportLow, []string{"jpg150", "jpeg150", "export150", "low"}, jpegExts.has},
	{Metadata, []string{"metadata", "xml", "mets"}, metadataExts.has},
	{ICC, []string{"icc", "colorprofiles", "profiles"}, iccExts.has},
	{Logs, []string{"logs", "log"}, logExts.has},
}

// Classify returns the category of filename and the confidence of the
// decision. folderPath may be empty; only its last segment is considered.
//
// A folder match (0.95) requires an extension plausible for the category,
// otherwise the extension alone decides (0.75). Anything else is Other (0.3).
func Classify(filename, folderPath string) (Category, float64) {
	ext := Ext(filename)

	if folder := lastSegment(folderPath); folder != "" {
		if c, ok := byFolder(strings.ToLower(folder), ext); ok {
			return c, FolderConfidence
		}
	}

	if c, ok := byExtension(ext, filename); ok {
		return c, ExtensionConfidence
	}

	return Other, FallbackConfidence
}

func byFolder(folder, ext string) (Category, bool) {
	for _, rule := range folderRules {
		for _, p := range rule.patterns {
			if strings.Contains(folder, p) && rule.accepts(ext) {
				return rule.category, true
			}
		}
	}
	return "", false
}

func byExtension(ext, filename string) (Category, bool) {
	lower := strings.ToLower(filename)

	switch {
	case rawExts.has(ext):
		return Master, true
	case tiffExts.has(ext):
		if containsAny(lower, "master", "raw", "original") {
			return Master, true
		}
		return Normalized, true
	case jpegExts.has(ext):
		if containsAny(lower, "300", "2400", "high") {
			return ExportHigh, true
		}
		if containsAny(lower, "150", "1200", "low") {
			return ExportLow, true
		}
		return ExportHigh, true
	case metadataExts.has(ext):
		return Metadata, true
	case iccExts.has(ext):
		return ICC, true
	case logExts.has(ext):
		return Logs, true
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Ext returns the lowercased extension of the last path element of name,
// including the dot. Dotfiles such as ".profile" and names ending in a dot
// have no extension.
func Ext(name string) string {
	base := lastSegment(name)
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i:])
}

func lastSegment(p string) string {
	p = strings.TrimRight(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
