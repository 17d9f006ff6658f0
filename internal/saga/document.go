package saga

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/server/models"
)

type CreateRequest struct {
	OwnerID   string
	LogicalID string
	Metadata  models.Metadata
	Files     []FileInput
}

// CreateResult carries every identifier committed by a creation saga.
// ObjectKeys lists the objects written by this saga; content that was
// already stored is not repeated there.
type CreateResult struct {
	Document   models.Document
	MetadataID string
	ObjectKeys []string
	Files      []*models.DocumentFile
}

// CreateDocument writes the platform record, then the metadata record, then
// the file objects and their associations. Any failure undoes what was
// written, newest first.
func (c *Coordinator) CreateDocument(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.OwnerID == "" {
		return nil, common.Validationf("owner is required")
	}
	if req.LogicalID == "" {
		return nil, common.Validationf("logical id is required")
	}

	plan, err := c.planFiles(ctx, req.OwnerID, req.Files)
	if err != nil {
		return nil, err
	}

	doc := models.Document{ID: c.newID(), LogicalID: req.LogicalID, OwnerID: req.OwnerID}
	md := req.Metadata
	md.LogicalID = req.LogicalID
	md.OwnerID = req.OwnerID
	md.PlatformRef = doc.ID
	if md.SchemaVersion == "" {
		md.SchemaVersion = models.SchemaVersion
	}
	now := c.now().UTC()
	md.CreatedAt, md.UpdatedAt = now, now

	var metadataID string

	steps := []Step{
		{
			Name: "platform.create",
			Do:   func(ctx context.Context) error { return c.platform.CreateDocument(ctx, &doc) },
			Undo: func(ctx context.Context) error { return c.platform.DeleteDocument(ctx, doc.ID) },
		},
		{
			Name: "metadata.create",
			Do: func(ctx context.Context) error {
				id, err := c.metadata.Create(ctx, &md)
				metadataID = id
				return err
			},
			Undo: func(ctx context.Context) error {
				_, err := c.metadata.Delete(ctx, metadataID)
				return err
			},
		},
		{
			Name: "platform.link",
			Do: func(ctx context.Context) error {
				if err := c.platform.SetMetadataRef(ctx, doc.ID, metadataID); err != nil {
					return err
				}
				doc.MetadataRef = metadataID
				return nil
			},
		},
	}

	fileSteps, assocs, uploaded := c.fileSteps(req.OwnerID, doc.ID, req.Files, plan)
	steps = append(steps, fileSteps...)

	if err := c.Run(ctx, SagaCreate, steps); err != nil {
		return nil, err
	}

	c.log.Info(ctx, "document created",
		"document_id", doc.ID, "metadata_id", metadataID, "files", len(assocs), "uploaded", len(uploaded))

	return &CreateResult{
		Document:   doc,
		MetadataID: metadataID,
		ObjectKeys: uploaded,
		Files:      assocs,
	}, nil
}

// UpdateDocument applies patch to the metadata record and then refreshes the
// platform timestamp. A failed timestamp refresh is logged and otherwise
// ignored, so the platform updated_at may lag behind the metadata record.
func (c *Coordinator) UpdateDocument(ctx context.Context, documentID string, patch models.MetadataPatch) error {
	doc, err := c.platform.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.MetadataRef == "" {
		return common.NewStoreError(common.StoreMetadata, "update", common.ErrNotFound, nil)
	}

	steps := []Step{
		{
			Name: "metadata.update",
			Do: func(ctx context.Context) error {
				ok, err := c.metadata.Update(ctx, doc.MetadataRef, patch)
				if err != nil {
					return err
				}
				if !ok {
					return common.NewStoreError(common.StoreMetadata, "update", common.ErrNotFound, nil)
				}
				return nil
			},
		},
		{
			Name: "platform.touch",
			Do: func(ctx context.Context) error {
				if err := c.platform.TouchDocument(ctx, documentID); err != nil {
					c.log.Warn(ctx, "platform timestamp not refreshed", "document_id", documentID, "error", err)
				}
				return nil
			},
		},
	}
	return c.Run(ctx, SagaUpdate, steps)
}

// DeleteReport lists what a deletion saga did with the document's objects.
type DeleteReport struct {
	DeletedObjects []string
	// SharedObjects are still referenced by other documents and were kept.
	SharedObjects []string
	FailedObjects []string
}

// DeleteDocument removes the objects, then the metadata record, then the
// platform record. Object deletion is best effort: failures are reported and
// the saga continues.
func (c *Coordinator) DeleteDocument(ctx context.Context, documentID string) (*DeleteReport, error) {
	doc, err := c.platform.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	attached, err := c.platform.ListDocumentFiles(ctx, documentID)
	if err != nil {
		return nil, err
	}

	own := map[string]int{}
	var files []models.File
	for _, vf := range attached {
		if own[vf.File.ID] == 0 {
			files = append(files, vf.File)
		}
		own[vf.File.ID]++
	}

	report := &DeleteReport{}
	steps := []Step{
		{
			Name: "object.delete",
			Do: func(ctx context.Context) error {
				for _, f := range files {
					if err := ctx.Err(); err != nil {
						return err
					}
					refs, err := c.platform.FileReferences(ctx, f.ID)
					if err != nil {
						c.log.Warn(ctx, "reference count failed", "file_id", f.ID, "error", err)
						report.FailedObjects = append(report.FailedObjects, f.StorageKey)
						continue
					}
					if refs > own[f.ID] {
						report.SharedObjects = append(report.SharedObjects, f.StorageKey)
						continue
					}
					if err := c.objects.Delete(ctx, f.StorageKey); err != nil {
						c.log.Error(ctx, "object delete failed", "key", f.StorageKey, "error", err)
						report.FailedObjects = append(report.FailedObjects, f.StorageKey)
						continue
					}
					report.DeletedObjects = append(report.DeletedObjects, f.StorageKey)
				}
				return nil
			},
		},
		{
			Name: "metadata.delete",
			Do: func(ctx context.Context) error {
				if doc.MetadataRef == "" {
					return nil
				}
				ok, err := c.metadata.Delete(ctx, doc.MetadataRef)
				if err != nil {
					return err
				}
				if !ok {
					c.log.Warn(ctx, "metadata record already gone", "metadata_id", doc.MetadataRef)
				}
				return nil
			},
		},
		{
			Name: "platform.delete",
			Do: func(ctx context.Context) error {
				err := c.platform.DeleteDocument(ctx, documentID)
				if errors.Is(err, common.ErrNotFound) {
					return nil
				}
				return err
			},
		},
	}

	if err := c.Run(ctx, SagaDelete, steps); err != nil {
		return report, err
	}

	c.log.Info(ctx, "document deleted", "document_id", documentID,
		"objects", len(report.DeletedObjects), "failed", len(report.FailedObjects))
	return report, nil
}

// AddFileResult describes a file attached by AddFile.
type AddFileResult struct {
	File        models.File
	Association models.DocumentFile
	// Uploaded is false when identical content was already stored.
	Uploaded bool
}

// AddFile attaches one file to an existing document. The object is written
// first and removed again if the platform records cannot be created.
func (c *Coordinator) AddFile(ctx context.Context, documentID string, in FileInput) (*AddFileResult, error) {
	doc, err := c.platform.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	inputs := []FileInput{in}
	plan, err := c.planFiles(ctx, doc.OwnerID, inputs)
	if err != nil {
		return nil, err
	}

	steps, assocs, uploaded := c.fileSteps(doc.OwnerID, doc.ID, inputs, plan)
	steps = append(steps, Step{
		Name: "platform.touch",
		Do: func(ctx context.Context) error {
			if err := c.platform.TouchDocument(ctx, doc.ID); err != nil {
				c.log.Warn(ctx, "platform timestamp not refreshed", "document_id", doc.ID, "error", err)
			}
			return nil
		},
	})

	if err := c.Run(ctx, SagaAdd, steps); err != nil {
		return nil, err
	}

	c.log.Info(ctx, "file added", "document_id", doc.ID, "file_id", plan[0].file.ID, "key", plan[0].key)
	return &AddFileResult{
		File:        *plan[0].file,
		Association: *assocs[0],
		Uploaded:    len(uploaded) > 0,
	}, nil
}
