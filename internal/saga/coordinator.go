package saga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/logging"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
	"github.com/dmitrijs2005/archivia/internal/storage/keys"
)

// Saga names, used in logs and metrics.
const (
	SagaCreate = "create_document"
	SagaUpdate = "update_document"
	SagaDelete = "delete_document"
	SagaAdd    = "add_file"
)

// Coordinator runs the document sagas against the three stores.
type Coordinator struct {
	platform stores.PlatformStore
	metadata stores.MetadataStore
	objects  stores.ObjectStore

	log         logging.Logger
	metrics     Metrics
	now         func() time.Time
	newID       func() string
	undoTimeout time.Duration
}

type Option func(*Coordinator)

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l.With("module", "saga") }
}

func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

func NewCoordinator(platform stores.PlatformStore, metadata stores.MetadataStore, objects stores.ObjectStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		platform:    platform,
		metadata:    metadata,
		objects:     objects,
		log:         logging.Nop(),
		metrics:     NoopMetrics{},
		now:         time.Now,
		newID:       uuid.NewString,
		undoTimeout: defaultUndoTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FileInput is one file to attach to a document. The content has been
// staged and hashed by the caller.
type FileInput struct {
	Filename       string
	ContentType    string
	Category       categorize.Category
	SequenceNumber int
	Label          string

	Size   int64
	SHA256 string
	MD5    string
	Open   func() (io.ReadCloser, error)

	// StagedKey names an object that already holds the content, as after a
	// completed multipart upload. The content is copied from there instead of
	// read through Open.
	StagedKey string

	Tech        models.TechnicalMetadata
	RawMetadata map[string]any
}

// Key returns the storage key the content will be placed under.
func (in *FileInput) Key(ownerID string) string {
	return keys.Derive(ownerID, in.SHA256, string(in.Category), in.Filename)
}

type plannedFile struct {
	key    string
	file   *models.File
	isNew  bool
	upload bool
	stale  bool
}

// planFiles resolves every input to a file record, reusing records of
// content already stored for the owner.
func (c *Coordinator) planFiles(ctx context.Context, ownerID string, inputs []FileInput) ([]*plannedFile, error) {
	byKey := map[string]*plannedFile{}
	plan := make([]*plannedFile, len(inputs))

	for i := range inputs {
		in := &inputs[i]
		key := in.Key(ownerID)
		if p, ok := byKey[key]; ok {
			plan[i] = p
			continue
		}

		p := &plannedFile{key: key}
		existing, err := c.platform.FindFile(ctx, ownerID, key)
		switch {
		case err == nil:
			p.file = existing
			if !existing.UploadCompleted {
				p.upload = true
				p.stale = true
			}
		case errors.Is(err, common.ErrNotFound):
			p.isNew = true
			p.upload = true
			p.file = &models.File{
				ID:              c.newID(),
				OwnerID:         ownerID,
				Filename:        in.Filename,
				ContentType:     in.ContentType,
				Size:            in.Size,
				ContentHash:     in.SHA256,
				StorageKey:      key,
				UploadCompleted: true,
			}
		default:
			return nil, err
		}
		byKey[key] = p
		plan[i] = p
	}
	return plan, nil
}

func (c *Coordinator) association(documentID string, in *FileInput, f *models.File) *models.DocumentFile {
	a := &models.DocumentFile{
		ID:             c.newID(),
		DocumentID:     documentID,
		FileID:         f.ID,
		Category:       in.Category,
		Use:            in.Category.Use(),
		SequenceNumber: in.SequenceNumber,
		Label:          in.Label,
		Tech:           in.Tech,
		RawMetadata:    in.RawMetadata,
	}
	if in.MD5 != "" {
		a.Checksum = in.MD5
		a.ChecksumType = "MD5"
	} else if in.SHA256 != "" {
		a.Checksum = in.SHA256
		a.ChecksumType = "SHA-256"
	}
	return a
}

func (c *Coordinator) uploadStep(ownerID string, in *FileInput, key string) Step {
	return Step{
		Name: "object.put " + key,
		Do: func(ctx context.Context) error {
			if in.Open == nil {
				return fmt.Errorf("%w: content for %s is no longer stored", common.ErrConflict, key)
			}
			rc, err := in.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			return c.objects.Put(ctx, key, rc, in.Size, in.ContentType)
		},
		Undo: func(ctx context.Context) error {
			return c.discardObject(ctx, ownerID, key)
		},
	}
}

func (c *Coordinator) copyStep(ownerID string, in *FileInput, key string) Step {
	src := in.StagedKey
	return Step{
		Name: "object.copy " + key,
		Do: func(ctx context.Context) error {
			return c.objects.Copy(ctx, src, key, in.Size)
		},
		Undo: func(ctx context.Context) error {
			return c.discardObject(ctx, ownerID, key)
		},
	}
}

// discardObject removes an object written by a failed saga, unless a
// completed file record has claimed its key in the meantime.
func (c *Coordinator) discardObject(ctx context.Context, ownerID, key string) error {
	f, err := c.platform.FindFile(ctx, ownerID, key)
	switch {
	case err == nil && f.UploadCompleted:
		c.log.Warn(ctx, "object kept, claimed by a completed file", "key", key, "file_id", f.ID)
		return nil
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return err
	}
	return c.objects.Delete(ctx, key)
}

// attachStep writes new file records, completes pending ones and creates all
// associations in one platform transaction.
func (c *Coordinator) attachStep(plan []*plannedFile, assocs []*models.DocumentFile) Step {
	var newFiles []*models.File
	var newIDs, staleIDs []string
	var stale []*plannedFile
	seen := map[*plannedFile]bool{}
	for _, p := range plan {
		if seen[p] {
			continue
		}
		seen[p] = true
		if p.isNew {
			newFiles = append(newFiles, p.file)
			newIDs = append(newIDs, p.file.ID)
		}
		if p.stale {
			staleIDs = append(staleIDs, p.file.ID)
			stale = append(stale, p)
		}
	}
	assocIDs := make([]string, len(assocs))
	for i, a := range assocs {
		assocIDs[i] = a.ID
	}

	return Step{
		Name: "platform.attach",
		Do: func(ctx context.Context) error {
			if err := c.platform.Attach(ctx, newFiles, staleIDs, assocs); err != nil {
				return err
			}
			for _, p := range stale {
				p.file.UploadCompleted = true
			}
			return nil
		},
		Undo: func(ctx context.Context) error {
			return c.platform.Detach(ctx, assocIDs, newIDs, staleIDs)
		},
	}
}

// fileSteps returns the object and platform steps that attach inputs to
// documentID.
func (c *Coordinator) fileSteps(ownerID, documentID string, inputs []FileInput, plan []*plannedFile) ([]Step, []*models.DocumentFile, []string) {
	var steps []Step
	var uploaded []string
	handled := map[*plannedFile]bool{}
	assocs := make([]*models.DocumentFile, len(inputs))

	for i := range inputs {
		in := &inputs[i]
		p := plan[i]
		assocs[i] = c.association(documentID, in, p.file)

		if handled[p] || !p.upload {
			continue
		}
		handled[p] = true
		if in.StagedKey != "" {
			steps = append(steps, c.copyStep(ownerID, in, p.key))
		} else {
			steps = append(steps, c.uploadStep(ownerID, in, p.key))
		}
		uploaded = append(uploaded, p.key)
	}

	if len(inputs) > 0 {
		steps = append(steps, c.attachStep(plan, assocs))
	}
	return steps, assocs, uploaded
}
