package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/logging"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/services"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
)

// multipart bodies above this size spill to temporary files
const formMemory = 32 << 20

// Documents is the document API implemented by services.DocumentService.
type Documents interface {
	CreateDocument(ctx context.Context, in services.CreateDocumentInput) (*saga.CreateResult, error)
	GetDocument(ctx context.Context, ownerID, documentID string) (*models.DocumentView, error)
	ListDocuments(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error)
	UpdateDocument(ctx context.Context, ownerID, documentID string, patch models.MetadataPatch) error
	DeleteDocument(ctx context.Context, ownerID, documentID string) (*saga.DeleteReport, error)
	AddFile(ctx context.Context, ownerID, documentID string, f services.UploadedFile) (*saga.AddFileResult, error)
	UploadFolderArchive(ctx context.Context, ownerID, documentID string, archive io.Reader) (*services.BatchReport, error)
	ExportArchivalXML(ctx context.Context, ownerID, documentID string) ([]byte, error)
	ExportArchive(ctx context.Context, ownerID, documentID string) (*services.ArchiveExport, error)
	DownloadURL(ctx context.Context, ownerID, documentID, fileID string) (string, error)
}

// Uploads is the chunked upload API implemented by services.UploadService.
type Uploads interface {
	Initiate(ctx context.Context, ownerID string, req services.InitiateRequest) (*services.InitiateResult, error)
	UploadPart(ctx context.Context, ownerID, handle string, number int32, body io.Reader, size int64) (stores.Part, error)
	Complete(ctx context.Context, ownerID, handle string, parts []stores.Part) (*saga.AddFileResult, error)
	Abort(ctx context.Context, ownerID, handle string) error
}

type handler struct {
	docs    Documents
	uploads Uploads
	log     logging.Logger
}

func owner(r *http.Request) string {
	id, _ := OwnerID(r.Context())
	return id
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	list, err := h.docs.ListDocuments(r.Context(), owner(r), offset, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]summaryJSON, 0, len(list))
	for _, s := range list {
		out = append(out, summaryJSON{documentJSON: toDocumentJSON(s.Document), FileCount: s.FileCount})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out, "offset": offset})
}

// createDocument accepts multipart/form-data with a JSON "document" field
// and any number of "files" parts.
func (h *handler) createDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		h.fail(w, r, common.Validationf("expected multipart/form-data: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var manifest createManifest
	raw := r.MultipartForm.Value["document"]
	if len(raw) == 0 {
		h.fail(w, r, common.Validationf("missing document field"))
		return
	}
	if err := json.Unmarshal([]byte(raw[0]), &manifest); err != nil {
		h.fail(w, r, common.Validationf("invalid document field: %v", err))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(manifest.Files) > len(headers) {
		h.fail(w, r, common.Validationf("manifest lists %d files, request carries %d", len(manifest.Files), len(headers)))
		return
	}

	in := services.CreateDocumentInput{
		OwnerID:   owner(r),
		LogicalID: manifest.LogicalID,
		Metadata:  manifest.Metadata,
		Files:     make([]services.UploadedFile, 0, len(headers)),
	}
	for i, fh := range headers {
		body, err := fh.Open()
		if err != nil {
			h.fail(w, r, fmt.Errorf("open part %q: %w", fh.Filename, err))
			return
		}
		defer body.Close()

		uf := services.UploadedFile{
			Filename:    fh.Filename,
			ContentType: partContentType(fh),
			Body:        body,
		}
		if i < len(manifest.Files) {
			m := manifest.Files[i]
			uf.FolderPath = m.Folder
			uf.Category = m.Category
			uf.SequenceNumber = m.SequenceNumber
			uf.Label = m.Label
			uf.Tech = m.Technical
			if m.ContentType != "" {
				uf.ContentType = m.ContentType
			}
		}
		in.Files = append(in.Files, uf)
	}

	res, err := h.docs.CreateDocument(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreatedJSON(res))
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	view, err := h.docs.GetDocument(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewJSON(view))
}

func (h *handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	var patch models.MetadataPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.docs.UpdateDocument(r.Context(), owner(r), chi.URLParam(r, "id"), patch); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	report, err := h.docs.DeleteDocument(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := deletedJSON{
		DeletedObjects: report.DeletedObjects,
		SharedObjects:  report.SharedObjects,
		FailedObjects:  report.FailedObjects,
	}
	if out.DeletedObjects == nil {
		out.DeletedObjects = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

// addFile accepts a single "file" part plus optional folder, category,
// sequence_number and label fields, and a "technical" JSON object.
func (h *handler) addFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		h.fail(w, r, common.Validationf("expected multipart/form-data: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	body, fh, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, common.Validationf("missing file part"))
		return
	}
	defer body.Close()

	seq := 0
	if v := r.FormValue("sequence_number"); v != "" {
		if seq, err = strconv.Atoi(v); err != nil || seq < 0 {
			h.fail(w, r, common.Validationf("invalid sequence_number %q", v))
			return
		}
	}

	var tech models.TechnicalMetadata
	if v := r.FormValue("technical"); v != "" {
		if err := json.Unmarshal([]byte(v), &tech); err != nil {
			h.fail(w, r, common.Validationf("invalid technical field: %v", err))
			return
		}
	}

	res, err := h.docs.AddFile(r.Context(), owner(r), chi.URLParam(r, "id"), services.UploadedFile{
		Filename:       fh.Filename,
		FolderPath:     r.FormValue("folder"),
		ContentType:    partContentType(fh),
		Category:       r.FormValue("category"),
		SequenceNumber: seq,
		Label:          r.FormValue("label"),
		Tech:           tech,
		Body:           body,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAddedJSON(res))
}

// uploadArchive takes the zip as the raw request body. A report with
// failures is returned with 207.
func (h *handler) uploadArchive(w http.ResponseWriter, r *http.Request) {
	report, err := h.docs.UploadFolderArchive(r.Context(), owner(r), chi.URLParam(r, "id"), r.Body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, common.ErrPartialBatch) && report != nil:
		writeJSON(w, http.StatusMultiStatus, report)
	default:
		h.fail(w, r, err)
	}
}

func (h *handler) exportMETS(w http.ResponseWriter, r *http.Request) {
	out, err := h.docs.ExportArchivalXML(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *handler) exportArchive(w http.ResponseWriter, r *http.Request) {
	exp, err := h.docs.ExportArchive(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer exp.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(exp.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, exp); err != nil {
		h.log.Warn(r.Context(), "export stream interrupted", "document_id", chi.URLParam(r, "id"), "error", err)
	}
}

func (h *handler) downloadURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.docs.DownloadURL(r.Context(), owner(r), chi.URLParam(r, "id"), chi.URLParam(r, "fileID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.Validationf("invalid %s %q", name, v)
	}
	return n, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.Validationf("invalid request body: %v", err)
	}
	return nil
}

func partContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
