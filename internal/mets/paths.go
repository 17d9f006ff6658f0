package mets

import (
	"net/url"
	"path"
	"strings"

	"github.com/dmitrijs2005/archivia/internal/server/models"
)

const hashPrefixLen = 12

// FilePaths assigns every distinct file of the view its path inside an
// export package, keyed by file id. Files land in their category folder
// under their own name. When two different files would share a path, the
// later one in encoding order gets a prefix: its content hash, or its id if
// that is still taken. The result depends only on the view.
func FilePaths(files []models.ViewFile) map[string]string {
	paths := make(map[string]string, len(files))
	taken := map[string]bool{}

	for _, vf := range sortedFiles(files) {
		id := vf.File.ID
		if _, ok := paths[id]; ok {
			continue
		}
		folder := vf.Association.Category.FolderName()
		p := path.Join(folder, vf.File.Filename)
		if taken[p] && len(vf.File.ContentHash) >= hashPrefixLen {
			p = path.Join(folder, vf.File.ContentHash[:hashPrefixLen]+"_"+vf.File.Filename)
		}
		if taken[p] {
			p = path.Join(folder, id+"_"+vf.File.Filename)
		}
		taken[p] = true
		paths[id] = p
	}
	return paths
}

// locationHref is the FLocat reference of a package path, with every
// segment escaped.
func locationHref(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "file://./" + strings.Join(segs, "/")
}
