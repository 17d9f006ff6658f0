package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/filex"
	"github.com/dmitrijs2005/archivia/internal/mets"
	"github.com/dmitrijs2005/archivia/internal/server/models"
)

// BatchItem is a file attached by a bulk upload.
type BatchItem struct {
	Filename       string              `json:"filename"`
	FolderPath     string              `json:"folder,omitempty"`
	Category       categorize.Category `json:"category"`
	Confidence     float64             `json:"confidence"`
	SequenceNumber int                 `json:"sequence_number"`
	FileID         string              `json:"file_id"`
	StorageKey     string              `json:"storage_key"`
	Uploaded       bool                `json:"uploaded"`
}

// BatchFailure is a file a bulk upload could not attach.
type BatchFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// CategorySummary counts the archive entries sorted into one category.
type CategorySummary struct {
	Category    categorize.Category `json:"category"`
	Description string              `json:"description"`
	Files       int                 `json:"files"`
}

// BatchReport is the per-file outcome of a bulk upload.
type BatchReport struct {
	DocumentID string            `json:"document_id"`
	Categories []CategorySummary `json:"categories"`
	Succeeded  []BatchItem       `json:"succeeded"`
	Failed     []BatchFailure    `json:"failed"`
	Skipped    []string          `json:"skipped,omitempty"`
}

// Err returns an error wrapping common.ErrPartialBatch when any file failed.
func (r *BatchReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d files failed", common.ErrPartialBatch,
		len(r.Failed), len(r.Failed)+len(r.Succeeded))
}

// UploadFolderArchive attaches every file of a zip archive to the document.
// Each file runs its own file-addition saga: a failing file is reported and
// the batch continues. The returned error wraps common.ErrPartialBatch when
// the report contains failures.
func (s *DocumentService) UploadFolderArchive(ctx context.Context, ownerID, documentID string, archive io.Reader) (*BatchReport, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	limit := s.maxArchiveSize
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	staged, err := filex.Stage(s.stagingDir, io.LimitReader(archive, limit+1))
	if err != nil {
		return nil, err
	}
	defer staged.Remove()

	if staged.Size > limit {
		return nil, common.Validationf("archive exceeds %d bytes", limit)
	}

	zr, err := zip.OpenReader(staged.Path)
	if err != nil {
		return nil, common.Validationf("not a zip archive: %v", err)
	}
	defer zr.Close()

	entries := make([]*zip.File, 0, len(zr.File))
	report := &BatchReport{DocumentID: documentID, Succeeded: []BatchItem{}, Failed: []BatchFailure{}}
	for _, f := range zr.File {
		if skipArchiveEntry(f.Name, f.Mode()) {
			if !f.Mode().IsDir() && !strings.HasSuffix(f.Name, "/") {
				report.Skipped = append(report.Skipped, f.Name)
			}
			continue
		}
		entries = append(entries, f)
	}
	if len(entries) == 0 {
		return nil, common.Validationf("archive contains no files")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	report.Categories = summarizeEntries(entries)

	next, err := nextSequence(ctx, s.platform, documentID)
	if err != nil {
		return nil, err
	}

	// the unpacked entries share the archive size limit
	budget := limit

	for _, f := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		name, folder := entryPath(f)

		seq, ok := sequenceFromName(name)
		if !ok {
			seq = next
			next++
		}

		item, err := s.addArchiveEntry(ctx, documentID, f, &budget, UploadedFile{
			Filename:       path.Base(name),
			FolderPath:     folder,
			SequenceNumber: seq,
		})
		if err != nil {
			s.log.Warn(ctx, "archive entry failed", "document_id", documentID, "entry", f.Name, "error", err)
			report.Failed = append(report.Failed, BatchFailure{Filename: f.Name, Error: err.Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, *item)
	}

	s.log.Info(ctx, "folder archive ingested", "document_id", documentID,
		"succeeded", len(report.Succeeded), "failed", len(report.Failed), "skipped", len(report.Skipped))
	return report, report.Err()
}

// entryPath returns the slash-separated name of an entry and its folder.
func entryPath(f *zip.File) (string, string) {
	name := strings.ReplaceAll(f.Name, "\\", "/")
	folder := path.Dir(name)
	if folder == "." {
		folder = ""
	}
	return name, folder
}

func summarizeEntries(entries []*zip.File) []CategorySummary {
	listing := make([]categorize.Entry, 0, len(entries))
	for _, f := range entries {
		name, folder := entryPath(f)
		listing = append(listing, categorize.Entry{Filename: path.Base(name), FolderPath: folder})
	}
	groups := categorize.Group(listing)

	out := []CategorySummary{}
	for _, c := range categorize.All() {
		if n := len(groups[c]); n > 0 {
			out = append(out, CategorySummary{Category: c, Description: c.Description(), Files: n})
		}
	}
	return out
}

func (s *DocumentService) addArchiveEntry(ctx context.Context, documentID string, f *zip.File, budget *int64, uf UploadedFile) (*BatchItem, error) {
	left := *budget
	if f.UncompressedSize64 > uint64(left) {
		*budget = 0
		return nil, common.Validationf("entry unpacks to %d bytes, %d left of the archive limit", f.UncompressedSize64, left)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, common.Validationf("open entry: %v", err)
	}
	defer rc.Close()
	uf.Body = io.LimitReader(rc, left+1)

	st, err := s.stage(ctx, uf)
	if err != nil {
		return nil, err
	}
	defer st.remove()

	if st.input.Size > left {
		*budget = 0
		return nil, common.Validationf("entry unpacks past the archive limit of %d bytes", s.maxArchiveSize)
	}
	*budget = left - st.input.Size

	res, err := s.coord.AddFile(ctx, documentID, st.input)
	if err != nil {
		return nil, err
	}
	return &BatchItem{
		Filename:       st.input.Filename,
		FolderPath:     uf.FolderPath,
		Category:       st.input.Category,
		Confidence:     st.confidence,
		SequenceNumber: st.input.SequenceNumber,
		FileID:         res.File.ID,
		StorageKey:     res.File.StorageKey,
		Uploaded:       res.Uploaded,
	}, nil
}

// ArchiveExport is a staged zip export. Read streams it; Close removes the
// staged file.
type ArchiveExport struct {
	Filename string
	Size     int64
	file     *os.File
}

func (e *ArchiveExport) Read(p []byte) (int, error) {
	return e.file.Read(p)
}

func (e *ArchiveExport) Close() error {
	err := e.file.Close()
	if rmErr := os.Remove(e.file.Name()); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// ExportArchive builds a zip with metadata.csv, mets.xml and every attached
// file at the path its mets:FLocat names. The zip is staged on disk; the caller must
// Close the export.
func (s *DocumentService) ExportArchive(ctx context.Context, ownerID, documentID string) (*ArchiveExport, error) {
	view, err := s.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	xmlDoc, err := mets.Encode(view)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", documentID, err)
	}

	tmp, err := os.CreateTemp(s.stagingDir, "export-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	if err := s.writeArchive(ctx, tmp, view, xmlDoc); err != nil {
		cleanup()
		return nil, err
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("rewind export file: %w", err)
	}

	return &ArchiveExport{
		Filename: exportName(view.Document.LogicalID),
		Size:     size,
		file:     tmp,
	}, nil
}

func (s *DocumentService) writeArchive(ctx context.Context, w io.Writer, view *models.DocumentView, xmlDoc []byte) error {
	zw := zip.NewWriter(w)
	modified := view.Document.UpdatedAt
	if modified.IsZero() {
		modified = time.Now()
	}

	put := func(name string, r io.Reader) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
		if _, err := io.Copy(fw, r); err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
		return nil
	}

	csvDoc, err := metadataCSV(view)
	if err != nil {
		return err
	}
	if err := put("metadata.csv", bytes.NewReader(csvDoc)); err != nil {
		return err
	}
	if err := put("mets.xml", bytes.NewReader(xmlDoc)); err != nil {
		return err
	}

	paths := mets.FilePaths(view.Files)
	byID := make(map[string]models.File, len(view.Files))
	for _, vf := range view.Files {
		byID[vf.File.ID] = vf.File
	}
	ids := slices.SortedFunc(maps.Keys(paths), func(a, b string) int {
		return strings.Compare(paths[a], paths[b])
	})

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := paths[id]

		rc, err := s.objects.Get(ctx, byID[id].StorageKey)
		if err != nil {
			return err
		}
		err = put(name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// metadataCSV renders the non-empty descriptive fields as field,value rows.
func metadataCSV(view *models.DocumentView) ([]byte, error) {
	rows := [][2]string{{"logical_id", view.Document.LogicalID}}
	if md := view.Metadata; md != nil {
		rows = append(rows,
			[2]string{"title", md.Title},
			[2]string{"description", md.Description},
			[2]string{"conservative_id", md.ConservativeID},
		)
		if md.Archive != nil {
			rows = append(rows, [2]string{"archive_name", md.Archive.Name})
		}
		if md.Physical != nil {
			rows = append(rows, [2]string{"document_type", md.Physical.DocumentType})
			if md.Physical.TotalPages > 0 {
				rows = append(rows, [2]string{"total_pages", strconv.Itoa(md.Physical.TotalPages)})
			}
		}
		if md.Rights != nil {
			rows = append(rows,
				[2]string{"license_url", md.Rights.LicenseURL},
				[2]string{"rights_statement", md.Rights.RightsStatement},
			)
		}
		if md.Technical != nil {
			rows = append(rows,
				[2]string{"image_producer", md.Technical.ImageProducer},
				[2]string{"scanner_manufacturer", md.Technical.ScannerManufacturer},
				[2]string{"scanner_model", md.Technical.ScannerModel},
			)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"field", "value"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		if err := w.Write(r[:]); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportName(logicalID string) string {
	name, err := filex.SanitizeFilename(logicalID)
	if err != nil || logicalID == "" {
		name = "document"
	}
	return name + "_complete.zip"
}
