// Package stores defines the three stores an archival document is spread
// across, and their PostgreSQL, MongoDB and S3 implementations.
//
// Every adapter reports failures as *common.StoreError whose kind is one of
// common.ErrNotFound, common.ErrConflict, common.ErrStoreUnavailable or
// common.ErrStoreFailure.
package stores

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/archivia/internal/server/models"
)

// PlatformStore keeps document records, file records and their associations.
type PlatformStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error)
	SetMetadataRef(ctx context.Context, id, ref string) error
	TouchDocument(ctx context.Context, id string) error
	// DeleteDocument removes the document, its associations and every file
	// record no other document references.
	DeleteDocument(ctx context.Context, id string) error

	FindFile(ctx context.Context, ownerID, storageKey string) (*models.File, error)
	GetFile(ctx context.Context, id string) (*models.File, error)
	// CreateFile records a file ahead of its content, as when a chunked
	// upload starts. A second record for the same key is a conflict.
	CreateFile(ctx context.Context, file *models.File) error
	DeleteFile(ctx context.Context, id string) error
	FileReferences(ctx context.Context, fileID string) (int, error)

	// Attach atomically creates the given file records, flags the pending
	// records in completed as uploaded and creates the associations.
	Attach(ctx context.Context, files []*models.File, completed []string, assocs []*models.DocumentFile) error
	// Detach atomically removes the given associations. Of the records in
	// fileIDs and reopened, those no association references any more are
	// deleted and set back to pending respectively.
	Detach(ctx context.Context, assocIDs, fileIDs, reopened []string) error
	ListDocumentFiles(ctx context.Context, documentID string) ([]models.ViewFile, error)

	Ping(ctx context.Context) error
}

// MetadataStore keeps the archival description of documents.
type MetadataStore interface {
	Create(ctx context.Context, m *models.Metadata) (string, error)
	Get(ctx context.Context, id string) (*models.Metadata, error)
	// Update applies patch and reports whether a record matched id.
	Update(ctx context.Context, id string, patch models.MetadataPatch) (bool, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// ObjectStore keeps file bytes under content-addressed keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Copy duplicates the object at src, of the given size, under dst.
	Copy(ctx context.Context, src, dst string, size int64) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

// Part identifies an uploaded part of a multipart upload.
type Part struct {
	Number int32  `json:"n"`
	ETag   string `json:"etag"`
}

// MultipartStore is the chunked-upload side of an object store.
type MultipartStore interface {
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, number int32, body io.Reader, size int64) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
}
