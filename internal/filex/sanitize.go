package filex

import (
	"path"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/archivia/internal/common"
)

const maxNameLength = 200

// SanitizeFilename reduces an uploaded filename to a safe base name.
//
// Directory components are dropped, characters other than letters, digits,
// '-' and '_' in the name become '_', the extension is lowercased and keeps
// only letters, digits, '_' and '.', and the name is capped at 200 runes.
// An empty name becomes "file".
func SanitizeFilename(filename string) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}

	// Leading dots belong to the name, as in ".profile".
	name, ext := base, ""
	lead := len(base) - len(strings.TrimLeft(base, "."))
	if i := strings.LastIndex(base[lead:], "."); i > 0 {
		name, ext = base[:lead+i], base[lead+i:]
	}

	name = strings.Map(func(r rune) rune {
		if isWordRune(r) || r == '-' {
			return r
		}
		return '_'
	}, name)

	ext = strings.Map(func(r rune) rune {
		if isWordRune(r) || r == '.' {
			return r
		}
		return -1
	}, strings.ToLower(ext))

	name = strings.Trim(name, ". ")
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	if name == "" {
		name = "file"
	}

	sanitized := name + ext
	if strings.Contains(sanitized, "..") || strings.ContainsAny(sanitized, "/\\") {
		return "", common.Validationf("invalid filename %q", filename)
	}
	return sanitized, nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
