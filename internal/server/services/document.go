// Package services contains server-side business logic. DocumentService is
// the entry point for ingesting, reading, exporting and deleting archival
// documents; it stages incoming content, classifies it and hands the writes
// to the saga coordinator. UploadService drives chunked uploads.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/logging"
	"github.com/dmitrijs2005/archivia/internal/mets"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/config"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// DocumentService implements the document operations exposed by the API.
type DocumentService struct {
	coord    *saga.Coordinator
	platform stores.PlatformStore
	metadata stores.MetadataStore
	objects  stores.ObjectStore
	log      logging.Logger

	stagingDir     string
	maxArchiveSize int64
	presignTTL     time.Duration
}

// NewDocumentService constructs a DocumentService. cfg.StagingDir must exist.
func NewDocumentService(coord *saga.Coordinator, platform stores.PlatformStore, metadata stores.MetadataStore,
	objects stores.ObjectStore, cfg *config.Config, log logging.Logger) *DocumentService {
	return &DocumentService{
		coord:          coord,
		platform:       platform,
		metadata:       metadata,
		objects:        objects,
		log:            log.With("module", "documents"),
		stagingDir:     cfg.StagingDir,
		maxArchiveSize: cfg.MaxArchiveSize,
		presignTTL:     cfg.PresignValidityDuration,
	}
}

// CreateDocumentInput is a new document with its initial files.
type CreateDocumentInput struct {
	OwnerID   string
	LogicalID string
	Metadata  models.Metadata
	Files     []UploadedFile
}

// CreateDocument stages and classifies the files, then runs the creation
// saga. Files without a sequence number take the trailing number of their
// name, or their position in the request.
func (s *DocumentService) CreateDocument(ctx context.Context, in CreateDocumentInput) (*saga.CreateResult, error) {
	if err := validateMetadata(&in.Metadata); err != nil {
		return nil, err
	}

	staged := make([]*stagedInput, 0, len(in.Files))
	defer func() {
		for _, st := range staged {
			st.remove()
		}
	}()

	inputs := make([]saga.FileInput, 0, len(in.Files))
	for i, f := range in.Files {
		st, err := s.stage(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", f.Filename, err)
		}
		staged = append(staged, st)

		if st.input.SequenceNumber == 0 {
			if n, ok := sequenceFromName(st.input.Filename); ok {
				st.input.SequenceNumber = n
			} else {
				st.input.SequenceNumber = i + 1
			}
		}
		inputs = append(inputs, st.input)
	}

	return s.coord.CreateDocument(ctx, saga.CreateRequest{
		OwnerID:   in.OwnerID,
		LogicalID: in.LogicalID,
		Metadata:  in.Metadata,
		Files:     inputs,
	})
}

// GetDocument merges the platform record, its files and the metadata record.
// A missing metadata record is logged and leaves Metadata nil.
func (s *DocumentService) GetDocument(ctx context.Context, ownerID, documentID string) (*models.DocumentView, error) {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	files, err := s.platform.ListDocumentFiles(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	view := &models.DocumentView{Document: *doc, Files: files}
	if doc.MetadataRef == "" {
		s.log.Warn(ctx, "document has no metadata reference", "document_id", doc.ID)
		return view, nil
	}

	md, err := s.metadata.Get(ctx, doc.MetadataRef)
	switch {
	case err == nil:
		view.Metadata = md
	case errors.Is(err, common.ErrNotFound):
		s.log.Warn(ctx, "metadata record missing", "document_id", doc.ID, "metadata_id", doc.MetadataRef)
	default:
		return nil, err
	}
	return view, nil
}

// ListDocuments returns a page of the owner's documents. A non-positive
// limit selects the default page size.
func (s *DocumentService) ListDocuments(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error) {
	if offset < 0 {
		return nil, common.Validationf("offset must not be negative")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.platform.ListDocuments(ctx, ownerID, offset, limit)
}

// UpdateDocument applies patch to the document's metadata.
func (s *DocumentService) UpdateDocument(ctx context.Context, ownerID, documentID string, patch models.MetadataPatch) error {
	if patch.Empty() {
		return common.Validationf("nothing to update")
	}
	if patch.Header != nil && patch.Header.RecordStatus != "" && !models.ValidRecordStatus(patch.Header.RecordStatus) {
		return common.Validationf("invalid record status %q", patch.Header.RecordStatus)
	}
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return err
	}
	return s.coord.UpdateDocument(ctx, documentID, patch)
}

// DeleteDocument removes the document from all stores.
func (s *DocumentService) DeleteDocument(ctx context.Context, ownerID, documentID string) (*saga.DeleteReport, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.coord.DeleteDocument(ctx, documentID)
}

// AddFile attaches one file to an existing document. Without a sequence
// number the file goes after the last page.
func (s *DocumentService) AddFile(ctx context.Context, ownerID, documentID string, f UploadedFile) (*saga.AddFileResult, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	st, err := s.stage(ctx, f)
	if err != nil {
		return nil, err
	}
	defer st.remove()

	if st.input.SequenceNumber == 0 {
		next, err := nextSequence(ctx, s.platform, documentID)
		if err != nil {
			return nil, err
		}
		st.input.SequenceNumber = next
	}

	return s.coord.AddFile(ctx, documentID, st.input)
}

// ExportArchivalXML returns the METS document for the merged view.
func (s *DocumentService) ExportArchivalXML(ctx context.Context, ownerID, documentID string) ([]byte, error) {
	view, err := s.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	out, err := mets.Encode(view)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", documentID, err)
	}
	return out, nil
}

// DownloadURL returns a presigned URL for a file attached to the document.
// A file whose object is gone reports NotFound instead of a dead link.
func (s *DocumentService) DownloadURL(ctx context.Context, ownerID, documentID, fileID string) (string, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return "", err
	}
	files, err := s.platform.ListDocumentFiles(ctx, documentID)
	if err != nil {
		return "", err
	}
	for _, vf := range files {
		if vf.File.ID != fileID {
			continue
		}
		ok, err := s.objects.Exists(ctx, vf.File.StorageKey)
		if err != nil {
			return "", err
		}
		if !ok {
			s.log.Warn(ctx, "file object missing", "document_id", documentID, "file_id", fileID, "key", vf.File.StorageKey)
			return "", common.NewStoreError(common.StoreObject, "head", common.ErrNotFound, nil)
		}
		return s.objects.PresignGet(ctx, vf.File.StorageKey, s.presignTTL)
	}
	return "", common.NewStoreError(common.StorePlatform, "get file", common.ErrNotFound, nil)
}

// ownedDocument loads a document and hides documents of other owners
// behind NotFound.
func (s *DocumentService) ownedDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	doc, err := s.platform.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, common.NewStoreError(common.StorePlatform, "get document", common.ErrNotFound, nil)
	}
	return doc, nil
}

// nextSequence returns the sequence number after the document's last page.
func nextSequence(ctx context.Context, platform stores.PlatformStore, documentID string) (int, error) {
	files, err := platform.ListDocumentFiles(ctx, documentID)
	if err != nil {
		return 0, err
	}
	last := 0
	for _, vf := range files {
		if vf.Association.SequenceNumber > last {
			last = vf.Association.SequenceNumber
		}
	}
	return last + 1, nil
}

func validateMetadata(md *models.Metadata) error {
	if md.Header != nil && md.Header.RecordStatus != "" && !models.ValidRecordStatus(md.Header.RecordStatus) {
		return common.Validationf("invalid record status %q", md.Header.RecordStatus)
	}
	if md.Agents != nil {
		for _, a := range []*models.AgentInfo{md.Agents.Producer, md.Agents.Creator} {
			if a != nil && a.Type != "" && a.Type != "corporate" && a.Type != "personal" {
				return common.Validationf("invalid agent type %q", a.Type)
			}
		}
	}
	return nil
}
