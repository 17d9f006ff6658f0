package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/services"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
)

const digest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestInitiateUpload_StartsSession(t *testing.T) {
	a := newTestAPI(t)
	a.uploads.started = &services.InitiateResult{Handle: "h-1", Key: "owner-1/master/abc/p.tif", ChunkSize: 8 << 20, Parts: 2}

	body := fmt.Sprintf(`{"filename":"p.tif","folder":"Master","size":10485760,"sha256":%q}`, digest)
	rec := a.do(httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/uploads", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, testOwner, a.uploads.owner)
	assert.Equal(t, "doc-1", a.uploads.req.DocumentID)
	assert.Equal(t, "Master", a.uploads.req.FolderPath)
	assert.Equal(t, int64(10<<20), a.uploads.req.Size)
	assert.JSONEq(t, `{"handle":"h-1","storage_key":"owner-1/master/abc/p.tif","chunk_size":8388608,"parts":2}`, rec.Body.String())
}

func TestInitiateUpload_AlreadyStored(t *testing.T) {
	a := newTestAPI(t)
	a.uploads.started = &services.InitiateResult{
		Key: "owner-1/master/abc/p.tif",
		Existing: &saga.AddFileResult{
			File:        models.File{ID: "f-1", Filename: "p.tif", StorageKey: "owner-1/master/abc/p.tif"},
			Association: models.DocumentFile{ID: "df-9", FileID: "f-1", Category: categorize.Master, SequenceNumber: 4},
		},
	}

	body := fmt.Sprintf(`{"filename":"p.tif","size":5,"sha256":%q}`, digest)
	rec := a.do(httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/uploads", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out initiatedJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Handle)
	require.NotNil(t, out.File)
	assert.Equal(t, "df-9", out.File.ID)
	assert.Equal(t, 4, out.File.SequenceNumber)
	assert.False(t, out.File.Uploaded)
}

func TestInitiateUpload_UnknownField(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/uploads", strings.NewReader(`{"bucket":"x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, a.uploads.owner)
}

func TestUploadPart(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/uploads/parts/3", strings.NewReader("chunk"))
	req.Header.Set(UploadHandleHeader, "h-1")
	rec := a.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "h-1", a.uploads.handle)
	assert.Equal(t, int32(3), a.uploads.number)
	assert.Equal(t, int64(5), a.uploads.size)
	assert.Equal(t, "chunk", a.uploads.body)
	assert.JSONEq(t, `{"n":3,"etag":"etag-1"}`, rec.Body.String())
}

func TestUploadPart_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		handle string
		length int64
		status int
	}{
		{"missing handle", "/api/v1/uploads/parts/1", "", 5, http.StatusBadRequest},
		{"bad number", "/api/v1/uploads/parts/one", "h-1", 5, http.StatusBadRequest},
		{"number overflow", "/api/v1/uploads/parts/99999999999", "h-1", 5, http.StatusBadRequest},
		{"unknown length", "/api/v1/uploads/parts/1", "h-1", -1, http.StatusLengthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			req := httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader("chunk"))
			req.ContentLength = tt.length
			if tt.handle != "" {
				req.Header.Set(UploadHandleHeader, tt.handle)
			}

			rec := a.do(req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, a.uploads.handle)
		})
	}
}

func TestUploadPart_InvalidSession(t *testing.T) {
	a := newTestAPI(t)
	a.uploads.err = fmt.Errorf("upload session: %w", common.ErrInvalidToken)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/uploads/parts/1", strings.NewReader("chunk"))
	req.Header.Set(UploadHandleHeader, "forged")
	rec := a.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompleteUpload(t *testing.T) {
	a := newTestAPI(t)
	a.uploads.complete = &saga.AddFileResult{
		File:        models.File{ID: "f-1", Filename: "p.tif", StorageKey: "k"},
		Association: models.DocumentFile{ID: "df-1", FileID: "f-1", Category: categorize.Master, SequenceNumber: 1},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/complete",
		strings.NewReader(`{"parts":[{"n":2,"etag":"b"},{"n":1,"etag":"a"}]}`))
	req.Header.Set(UploadHandleHeader, "h-1")
	rec := a.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []stores.Part{{Number: 2, ETag: "b"}, {Number: 1, ETag: "a"}}, a.uploads.parts)

	var out addedJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "p.tif", out.Filename)
}

func TestCompleteUpload_DigestMismatch(t *testing.T) {
	a := newTestAPI(t)
	a.uploads.err = common.Validationf("content sha256 does not match the declared digest")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/complete", strings.NewReader(`{"parts":[{"n":1,"etag":"a"}]}`))
	req.Header.Set(UploadHandleHeader, "h-1")
	rec := a.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "sha256")
}

func TestAbortUpload(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/uploads", nil)
	req.Header.Set(UploadHandleHeader, "h-1")
	rec := a.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, a.uploads.aborted)
	assert.Equal(t, "h-1", a.uploads.handle)
}
