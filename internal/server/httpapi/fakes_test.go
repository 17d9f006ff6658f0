package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/archivia/internal/logging"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/auth"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/services"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
)

const (
	testOwner  = "owner-1"
	testSecret = "test-secret"
)

// fakeDocs records the last call; unset methods panic through the nil
// embedded interface.
type fakeDocs struct {
	Documents

	err error

	createIn     services.CreateDocumentInput
	createBodies []string
	createRes    *saga.CreateResult

	owner      string
	documentID string
	view       *models.DocumentView
	list       []*models.DocumentSummary
	offset     int
	limit      int
	patch      models.MetadataPatch
	deleted    *saga.DeleteReport
	added      services.UploadedFile
	addedBody  string
	addRes     *saga.AddFileResult
	archive    string
	report     *services.BatchReport
	xml        []byte
	url        string
	fileID     string
}

func (f *fakeDocs) CreateDocument(_ context.Context, in services.CreateDocumentInput) (*saga.CreateResult, error) {
	f.createIn = in
	for _, uf := range in.Files {
		b, _ := io.ReadAll(uf.Body)
		f.createBodies = append(f.createBodies, string(b))
	}
	return f.createRes, f.err
}

func (f *fakeDocs) GetDocument(_ context.Context, ownerID, documentID string) (*models.DocumentView, error) {
	f.owner, f.documentID = ownerID, documentID
	return f.view, f.err
}

func (f *fakeDocs) ListDocuments(_ context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error) {
	f.owner, f.offset, f.limit = ownerID, offset, limit
	return f.list, f.err
}

func (f *fakeDocs) UpdateDocument(_ context.Context, ownerID, documentID string, patch models.MetadataPatch) error {
	f.owner, f.documentID, f.patch = ownerID, documentID, patch
	return f.err
}

func (f *fakeDocs) DeleteDocument(_ context.Context, ownerID, documentID string) (*saga.DeleteReport, error) {
	f.owner, f.documentID = ownerID, documentID
	return f.deleted, f.err
}

func (f *fakeDocs) AddFile(_ context.Context, ownerID, documentID string, uf services.UploadedFile) (*saga.AddFileResult, error) {
	f.owner, f.documentID, f.added = ownerID, documentID, uf
	b, _ := io.ReadAll(uf.Body)
	f.addedBody = string(b)
	return f.addRes, f.err
}

func (f *fakeDocs) UploadFolderArchive(_ context.Context, ownerID, documentID string, archive io.Reader) (*services.BatchReport, error) {
	f.owner, f.documentID = ownerID, documentID
	b, _ := io.ReadAll(archive)
	f.archive = string(b)
	return f.report, f.err
}

func (f *fakeDocs) ExportArchivalXML(_ context.Context, ownerID, documentID string) ([]byte, error) {
	f.owner, f.documentID = ownerID, documentID
	return f.xml, f.err
}

func (f *fakeDocs) ExportArchive(_ context.Context, ownerID, documentID string) (*services.ArchiveExport, error) {
	f.owner, f.documentID = ownerID, documentID
	return nil, f.err
}

func (f *fakeDocs) DownloadURL(_ context.Context, ownerID, documentID, fileID string) (string, error) {
	f.owner, f.documentID, f.fileID = ownerID, documentID, fileID
	return f.url, f.err
}

type fakeUploads struct {
	Uploads

	err error

	owner    string
	handle   string
	req      services.InitiateRequest
	started  *services.InitiateResult
	number   int32
	size     int64
	body     string
	parts    []stores.Part
	complete *saga.AddFileResult
	aborted  bool
}

func (f *fakeUploads) Initiate(_ context.Context, ownerID string, req services.InitiateRequest) (*services.InitiateResult, error) {
	f.owner, f.req = ownerID, req
	return f.started, f.err
}

func (f *fakeUploads) UploadPart(_ context.Context, ownerID, handle string, number int32, body io.Reader, size int64) (stores.Part, error) {
	f.owner, f.handle, f.number, f.size = ownerID, handle, number, size
	b, _ := io.ReadAll(body)
	f.body = string(b)
	return stores.Part{Number: number, ETag: "etag-1"}, f.err
}

func (f *fakeUploads) Complete(_ context.Context, ownerID, handle string, parts []stores.Part) (*saga.AddFileResult, error) {
	f.owner, f.handle, f.parts = ownerID, handle, parts
	return f.complete, f.err
}

func (f *fakeUploads) Abort(_ context.Context, ownerID, handle string) error {
	f.owner, f.handle, f.aborted = ownerID, handle, true
	return f.err
}

var (
	_ Documents = (*services.DocumentService)(nil)
	_ Uploads   = (*services.UploadService)(nil)
)

type testAPI struct {
	docs    *fakeDocs
	uploads *fakeUploads
	reg     *prometheus.Registry
	metrics *Metrics
	router  http.Handler
	token   string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	a := &testAPI{docs: &fakeDocs{}, uploads: &fakeUploads{}, reg: prometheus.NewRegistry()}
	a.metrics = NewMetrics(a.reg)
	a.router = NewRouter(a.docs, a.uploads, []byte(testSecret), a.reg, a.metrics, logging.Nop())

	tok, err := auth.GenerateToken(testOwner, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	a.token = tok
	return a
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}
