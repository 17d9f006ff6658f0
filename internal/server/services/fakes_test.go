package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
)

func notFound(store, op string) error {
	return common.NewStoreError(store, op, common.ErrNotFound, nil)
}

type memPlatform struct {
	docs   map[string]*models.Document
	files  map[string]*models.File
	assocs map[string]*models.DocumentFile

	attachErr error
}

func newMemPlatform() *memPlatform {
	return &memPlatform{
		docs:   map[string]*models.Document{},
		files:  map[string]*models.File{},
		assocs: map[string]*models.DocumentFile{},
	}
}

func (p *memPlatform) CreateDocument(ctx context.Context, doc *models.Document) error {
	for _, d := range p.docs {
		if d.OwnerID == doc.OwnerID && d.LogicalID == doc.LogicalID {
			return common.NewStoreError(common.StorePlatform, "create document", common.ErrConflict, nil)
		}
	}
	cp := *doc
	p.docs[doc.ID] = &cp
	return nil
}

func (p *memPlatform) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	d, ok := p.docs[id]
	if !ok {
		return nil, notFound(common.StorePlatform, "get document")
	}
	cp := *d
	return &cp, nil
}

func (p *memPlatform) ListDocuments(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error) {
	var out []*models.DocumentSummary
	for _, d := range p.docs {
		if d.OwnerID == ownerID {
			out = append(out, &models.DocumentSummary{Document: *d})
		}
	}
	return out, nil
}

func (p *memPlatform) SetMetadataRef(ctx context.Context, id, ref string) error {
	d, ok := p.docs[id]
	if !ok {
		return notFound(common.StorePlatform, "set metadata ref")
	}
	d.MetadataRef = ref
	return nil
}

func (p *memPlatform) TouchDocument(ctx context.Context, id string) error {
	d, ok := p.docs[id]
	if !ok {
		return notFound(common.StorePlatform, "touch document")
	}
	d.UpdatedAt = d.UpdatedAt.Add(time.Second)
	return nil
}

func (p *memPlatform) DeleteDocument(ctx context.Context, id string) error {
	if _, ok := p.docs[id]; !ok {
		return notFound(common.StorePlatform, "delete document")
	}
	var fileIDs []string
	for aid, a := range p.assocs {
		if a.DocumentID == id {
			fileIDs = append(fileIDs, a.FileID)
			delete(p.assocs, aid)
		}
	}
	for _, fid := range fileIDs {
		if p.refs(fid) == 0 {
			delete(p.files, fid)
		}
	}
	delete(p.docs, id)
	return nil
}

func (p *memPlatform) refs(fileID string) int {
	n := 0
	for _, a := range p.assocs {
		if a.FileID == fileID {
			n++
		}
	}
	return n
}

func (p *memPlatform) FindFile(ctx context.Context, ownerID, key string) (*models.File, error) {
	for _, f := range p.files {
		if f.OwnerID == ownerID && f.StorageKey == key {
			cp := *f
			return &cp, nil
		}
	}
	return nil, notFound(common.StorePlatform, "find file")
}

func (p *memPlatform) GetFile(ctx context.Context, id string) (*models.File, error) {
	f, ok := p.files[id]
	if !ok {
		return nil, notFound(common.StorePlatform, "get file")
	}
	cp := *f
	return &cp, nil
}

func (p *memPlatform) CreateFile(ctx context.Context, f *models.File) error {
	if _, err := p.FindFile(ctx, f.OwnerID, f.StorageKey); err == nil {
		return common.NewStoreError(common.StorePlatform, "create file", common.ErrConflict, nil)
	}
	cp := *f
	p.files[f.ID] = &cp
	return nil
}

func (p *memPlatform) DeleteFile(ctx context.Context, id string) error {
	delete(p.files, id)
	return nil
}

func (p *memPlatform) FileReferences(ctx context.Context, fileID string) (int, error) {
	return p.refs(fileID), nil
}

func (p *memPlatform) Attach(ctx context.Context, files []*models.File, completed []string, assocs []*models.DocumentFile) error {
	if p.attachErr != nil {
		return p.attachErr
	}
	for _, id := range completed {
		if _, ok := p.files[id]; !ok {
			return notFound(common.StorePlatform, "attach files")
		}
	}
	for _, f := range files {
		cp := *f
		p.files[f.ID] = &cp
	}
	for _, id := range completed {
		p.files[id].UploadCompleted = true
	}
	for _, a := range assocs {
		cp := *a
		p.assocs[a.ID] = &cp
	}
	return nil
}

func (p *memPlatform) Detach(ctx context.Context, assocIDs, fileIDs, reopened []string) error {
	for _, id := range assocIDs {
		delete(p.assocs, id)
	}
	for _, id := range fileIDs {
		if p.refs(id) == 0 {
			delete(p.files, id)
		}
	}
	for _, id := range reopened {
		if f, ok := p.files[id]; ok && p.refs(id) == 0 {
			f.UploadCompleted = false
		}
	}
	return nil
}

func (p *memPlatform) ListDocumentFiles(ctx context.Context, documentID string) ([]models.ViewFile, error) {
	var out []models.ViewFile
	for _, a := range p.assocs {
		if a.DocumentID == documentID {
			out = append(out, models.ViewFile{Association: *a, File: *p.files[a.FileID]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Association.SequenceNumber != out[j].Association.SequenceNumber {
			return out[i].Association.SequenceNumber < out[j].Association.SequenceNumber
		}
		return out[i].Association.ID < out[j].Association.ID
	})
	return out, nil
}

func (p *memPlatform) Ping(ctx context.Context) error { return nil }

type memMetadata struct {
	records map[string]*models.Metadata
	seq     int
}

func newMemMetadata() *memMetadata {
	return &memMetadata{records: map[string]*models.Metadata{}}
}

func (m *memMetadata) Create(ctx context.Context, md *models.Metadata) (string, error) {
	m.seq++
	id := fmt.Sprintf("%024x", m.seq)
	cp := *md
	cp.ID = id
	m.records[id] = &cp
	md.ID = id
	return id, nil
}

func (m *memMetadata) Get(ctx context.Context, id string) (*models.Metadata, error) {
	md, ok := m.records[id]
	if !ok {
		return nil, notFound(common.StoreMetadata, "get")
	}
	cp := *md
	return &cp, nil
}

func (m *memMetadata) Update(ctx context.Context, id string, patch models.MetadataPatch) (bool, error) {
	md, ok := m.records[id]
	if !ok {
		return false, nil
	}
	md.Apply(patch)
	return true, nil
}

func (m *memMetadata) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := m.records[id]
	delete(m.records, id)
	return ok, nil
}

func (m *memMetadata) Ping(ctx context.Context) error { return nil }

type memObjects struct {
	objects map[string][]byte
	puts    int
	// failPut fails the n-th Put call (1-based).
	failPut int
	uploads map[string]map[int32][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, uploads: map[string]map[int32][]byte{}}
}

func (o *memObjects) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	o.puts++
	if o.puts == o.failPut {
		return common.NewStoreError(common.StoreObject, "put", common.ErrStoreUnavailable, nil)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.objects[key] = b
	return nil
}

func (o *memObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := o.objects[key]
	if !ok {
		return nil, notFound(common.StoreObject, "get")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (o *memObjects) Delete(ctx context.Context, key string) error {
	delete(o.objects, key)
	return nil
}

func (o *memObjects) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := o.objects[key]
	return ok, nil
}

func (o *memObjects) Copy(ctx context.Context, src, dst string, size int64) error {
	b, ok := o.objects[src]
	if !ok {
		return notFound(common.StoreObject, "copy")
	}
	o.objects[dst] = append([]byte(nil), b...)
	return nil
}

func (o *memObjects) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.local/%s?ttl=%s", key, ttl), nil
}

func (o *memObjects) Ping(ctx context.Context) error { return nil }

func (o *memObjects) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	id := fmt.Sprintf("upload-%d", len(o.uploads)+1)
	o.uploads[id] = map[int32][]byte{}
	return id, nil
}

func (o *memObjects) UploadPart(ctx context.Context, key, uploadID string, number int32, body io.Reader, size int64) (string, error) {
	parts, ok := o.uploads[uploadID]
	if !ok {
		return "", notFound(common.StoreObject, "upload part")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	parts[number] = b
	return fmt.Sprintf("etag-%d", number), nil
}

func (o *memObjects) CompleteMultipart(ctx context.Context, key, uploadID string, parts []stores.Part) error {
	uploaded, ok := o.uploads[uploadID]
	if !ok {
		return notFound(common.StoreObject, "complete multipart")
	}
	sorted := append([]stores.Part(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	var buf bytes.Buffer
	for _, p := range sorted {
		buf.Write(uploaded[p.Number])
	}
	o.objects[key] = buf.Bytes()
	delete(o.uploads, uploadID)
	return nil
}

func (o *memObjects) AbortMultipart(ctx context.Context, key, uploadID string) error {
	delete(o.uploads, uploadID)
	return nil
}

var (
	_ stores.PlatformStore  = (*memPlatform)(nil)
	_ stores.MetadataStore  = (*memMetadata)(nil)
	_ stores.ObjectStore    = (*memObjects)(nil)
	_ stores.MultipartStore = (*memObjects)(nil)
)
