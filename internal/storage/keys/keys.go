// Package keys derives content-addressed object storage keys.
//
// A key has the shape {owner}/{category}/{hash prefix}{.ext}. It depends only
// on its inputs, so callers can compute it before writing anything and use it
// to detect content that is already stored. Unverified uploads live under
// {owner}/_uploads/ instead, outside every category folder.
package keys

import (
	"strings"

	"github.com/dmitrijs2005/archivia/internal/categorize"
)

// HashPrefixLen is the number of leading hex characters of the content hash
// kept in a key.
const HashPrefixLen = 16

// Derive returns the storage key for content with the given sha256 hex
// digest. Empty or unknown categories are stored under "other".
func Derive(ownerID, contentHash, category, filename string) string {
	prefix := contentHash
	if len(prefix) > HashPrefixLen {
		prefix = prefix[:HashPrefixLen]
	}

	var b strings.Builder
	b.WriteString(ownerID)
	b.WriteByte('/')
	b.WriteString(categorize.Parse(category).String())
	b.WriteByte('/')
	b.WriteString(strings.ToLower(prefix))
	b.WriteString(extension(filename))
	return b.String()
}

// Staging returns the private key a chunked upload is assembled under
// before its content is verified.
func Staging(ownerID, uploadID string) string {
	return ownerID + "/_uploads/" + uploadID
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 || strings.ContainsAny(filename[i:], "/\\") {
		return ""
	}
	return strings.ToLower(filename[i:])
}
