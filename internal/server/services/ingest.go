package services

import (
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/filex"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/techmeta"
)

const octetStream = "application/octet-stream"

// UploadedFile is one incoming file. Category is optional; when empty the
// file is classified from its name and FolderPath. A zero SequenceNumber is
// filled in by the service.
type UploadedFile struct {
	Filename       string
	FolderPath     string
	ContentType    string
	Category       string
	SequenceNumber int
	Label          string
	// Tech is declared by the client and wins over what the file reveals.
	Tech models.TechnicalMetadata
	Body io.Reader
}

type stagedInput struct {
	input      saga.FileInput
	staged     *filex.StagedFile
	confidence float64
}

func (s *stagedInput) remove() {
	if s != nil && s.staged != nil {
		_ = s.staged.Remove()
	}
}

// stage copies the upload to the staging area and derives everything the
// coordinator needs: digests, category, content type and technical metadata.
func (s *DocumentService) stage(ctx context.Context, f UploadedFile) (*stagedInput, error) {
	name, err := filex.SanitizeFilename(f.Filename)
	if err != nil {
		return nil, err
	}

	category, confidence, err := resolveCategory(f.Category, name, f.FolderPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	staged, err := filex.Stage(s.stagingDir, f.Body)
	if err != nil {
		return nil, err
	}

	contentType := f.ContentType
	if contentType == "" || contentType == octetStream {
		contentType = detectContentType(staged.Path)
	}

	tech, raw := techmeta.Promote(extractTags(staged))
	techmeta.Merge(&tech, f.Tech)

	return &stagedInput{
		staged:     staged,
		confidence: confidence,
		input: saga.FileInput{
			Filename:       name,
			ContentType:    contentType,
			Category:       category,
			SequenceNumber: f.SequenceNumber,
			Label:          f.Label,
			Size:           staged.Size,
			SHA256:         staged.SHA256,
			MD5:            staged.MD5,
			Open: func() (io.ReadCloser, error) {
				fh, err := staged.Open()
				if err != nil {
					return nil, err
				}
				return fh, nil
			},
			Tech:        tech,
			RawMetadata: raw,
		},
	}, nil
}

func resolveCategory(declared, filename, folder string) (categorize.Category, float64, error) {
	if declared == "" {
		c, conf := categorize.Classify(filename, folder)
		return c, conf, nil
	}
	c := categorize.Category(strings.ToLower(declared))
	if !c.Valid() {
		return "", 0, common.Validationf("unknown category %q", declared)
	}
	return c, 1, nil
}

func detectContentType(p string) string {
	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return octetStream
	}
	return mt.String()
}

func extractTags(staged *filex.StagedFile) map[string]any {
	fh, err := staged.Open()
	if err != nil {
		return nil
	}
	defer fh.Close()
	return techmeta.Extract(fh)
}

// sequenceFromName returns the trailing number of the file stem, as in
// "page_0007.tif" -> 7.
func sequenceFromName(name string) (int, bool) {
	stem := strings.TrimSuffix(path.Base(name), categorize.Ext(name))
	end := len(stem)
	start := end
	for start > 0 && unicode.IsDigit(rune(stem[start-1])) {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(stem[start:end])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// skipArchiveEntry reports whether a zip entry is packaging noise rather
// than content: directories, macOS resource forks and hidden files.
func skipArchiveEntry(name string, mode os.FileMode) bool {
	if mode.IsDir() || strings.HasSuffix(name, "/") {
		return true
	}
	for _, seg := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
		if seg == "." {
			continue
		}
		if seg == "__MACOSX" || strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
