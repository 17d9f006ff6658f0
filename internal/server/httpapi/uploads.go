package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/server/services"
)

// UploadHandleHeader carries the session handle returned by upload initiation.
const UploadHandleHeader = "X-Upload-Handle"

func uploadHandle(r *http.Request) (string, error) {
	h := r.Header.Get(UploadHandleHeader)
	if h == "" {
		return "", common.Validationf("missing %s header", UploadHandleHeader)
	}
	return h, nil
}

// initiateUpload answers 201 with a session handle, or 200 with the attached
// file when the declared content is already stored.
func (h *handler) initiateUpload(w http.ResponseWriter, r *http.Request) {
	var req services.InitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.DocumentID = chi.URLParam(r, "id")

	res, err := h.uploads.Initiate(r.Context(), owner(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if res.Existing != nil {
		added := toAddedJSON(res.Existing)
		writeJSON(w, http.StatusOK, initiatedJSON{InitiateResult: *res, File: &added})
		return
	}
	writeJSON(w, http.StatusCreated, initiatedJSON{InitiateResult: *res})
}

func (h *handler) uploadPart(w http.ResponseWriter, r *http.Request) {
	handle, err := uploadHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := strconv.ParseInt(chi.URLParam(r, "n"), 10, 32)
	if err != nil {
		h.fail(w, r, common.Validationf("invalid part number %q", chi.URLParam(r, "n")))
		return
	}
	if r.ContentLength < 0 {
		writeError(w, http.StatusLengthRequired, CodeValidation, "part size must be declared with Content-Length")
		return
	}

	part, err := h.uploads.UploadPart(r.Context(), owner(r), handle, int32(n), r.Body, r.ContentLength)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

func (h *handler) completeUpload(w http.ResponseWriter, r *http.Request) {
	handle, err := uploadHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.uploads.Complete(r.Context(), owner(r), handle, req.Parts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAddedJSON(res))
}

func (h *handler) abortUpload(w http.ResponseWriter, r *http.Request) {
	handle, err := uploadHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.uploads.Abort(r.Context(), owner(r), handle); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
