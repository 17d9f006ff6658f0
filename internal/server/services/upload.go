package services

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/filex"
	"github.com/dmitrijs2005/archivia/internal/logging"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/auth"
	"github.com/dmitrijs2005/archivia/internal/server/config"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
	"github.com/dmitrijs2005/archivia/internal/storage/keys"
	"github.com/dmitrijs2005/archivia/internal/techmeta"
)

// S3 limits for multipart uploads.
const (
	maxParts    = 10000
	minPartSize = 5 << 20
)

// UploadService drives chunked uploads of large files. The upload state
// lives in a signed session handle held by the client.
type UploadService struct {
	coord    *saga.Coordinator
	platform stores.PlatformStore
	objects  stores.ObjectStore
	parts    stores.MultipartStore
	log      logging.Logger

	secret    []byte
	validity  time.Duration
	chunkSize int64
	newID     func() string
}

func NewUploadService(coord *saga.Coordinator, platform stores.PlatformStore, objects stores.ObjectStore,
	parts stores.MultipartStore, cfg *config.Config, log logging.Logger) *UploadService {
	chunk := cfg.ChunkSize
	if chunk < minPartSize {
		chunk = minPartSize
	}
	return &UploadService{
		coord:     coord,
		platform:  platform,
		objects:   objects,
		parts:     parts,
		log:       log.With("module", "uploads"),
		secret:    []byte(cfg.SecretKey),
		validity:  cfg.UploadSessionValidityDuration,
		chunkSize: chunk,
		newID:     uuid.NewString,
	}
}

// InitiateRequest declares a file before its bytes are sent. SHA256 is the
// hex digest of the whole content and determines the storage key.
type InitiateRequest struct {
	DocumentID     string `json:"-"`
	Filename       string `json:"filename"`
	FolderPath     string `json:"folder,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	Category       string `json:"category,omitempty"`
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"label,omitempty"`
	Size           int64  `json:"size"`
	SHA256         string `json:"sha256"`
}

// InitiateResult either carries a session handle for the parts, or, when
// identical content is already stored, the attached file.
type InitiateResult struct {
	Handle    string              `json:"handle,omitempty"`
	Key       string              `json:"storage_key"`
	ChunkSize int64               `json:"chunk_size,omitempty"`
	Parts     int                 `json:"parts,omitempty"`
	Existing  *saga.AddFileResult `json:"-"`
}

// Initiate validates the declaration and opens a multipart upload into a
// staging object of its own. Content the owner already stored completely is
// attached right away. Otherwise the content is recorded as pending, so a
// concurrent upload of the same bytes shares the file record.
func (s *UploadService) Initiate(ctx context.Context, ownerID string, req InitiateRequest) (*InitiateResult, error) {
	hash := strings.ToLower(req.SHA256)
	if b, err := hex.DecodeString(hash); err != nil || len(b) != sha256.Size {
		return nil, common.Validationf("sha256 must be 64 hex characters")
	}
	if req.Size <= 0 {
		return nil, common.Validationf("size must be positive")
	}
	parts := int((req.Size + s.chunkSize - 1) / s.chunkSize)
	if parts > maxParts {
		return nil, common.Validationf("file needs %d parts, at most %d allowed", parts, maxParts)
	}

	doc, err := s.platform.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, common.NewStoreError(common.StorePlatform, "get document", common.ErrNotFound, nil)
	}

	name, err := filex.SanitizeFilename(req.Filename)
	if err != nil {
		return nil, err
	}
	category, _, err := resolveCategory(req.Category, name, req.FolderPath)
	if err != nil {
		return nil, err
	}
	key := keys.Derive(ownerID, hash, string(category), name)

	seq := req.SequenceNumber
	if seq == 0 {
		if seq, err = nextSequence(ctx, s.platform, doc.ID); err != nil {
			return nil, err
		}
	}

	session := auth.UploadSession{
		OwnerID:        ownerID,
		DocumentID:     doc.ID,
		Key:            key,
		Filename:       name,
		ContentType:    req.ContentType,
		Category:       string(category),
		SequenceNumber: seq,
		Label:          req.Label,
		SHA256:         hash,
		Size:           req.Size,
	}

	existing, err := s.platform.FindFile(ctx, ownerID, key)
	switch {
	case err == nil && existing.UploadCompleted:
		res, err := s.coord.AddFile(ctx, doc.ID, s.fileInput(session, nil))
		if err != nil {
			return nil, err
		}
		s.log.Info(ctx, "upload skipped, content already stored", "document_id", doc.ID, "key", key)
		return &InitiateResult{Key: key, Existing: res}, nil
	case errors.Is(err, common.ErrNotFound):
		if session.PendingFileID, err = s.reserve(ctx, session); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	session.StagingKey = keys.Staging(ownerID, s.newID())
	uploadID, err := s.parts.CreateMultipart(ctx, session.StagingKey, req.ContentType)
	if err != nil {
		s.release(context.WithoutCancel(ctx), &session)
		return nil, err
	}
	session.UploadID = uploadID

	handle, err := auth.SignSession(session, s.secret, s.validity)
	if err != nil {
		_ = s.parts.AbortMultipart(context.WithoutCancel(ctx), session.StagingKey, uploadID)
		s.release(context.WithoutCancel(ctx), &session)
		return nil, fmt.Errorf("sign upload session: %w", err)
	}

	return &InitiateResult{Handle: handle, Key: key, ChunkSize: s.chunkSize, Parts: parts}, nil
}

// UploadPart stores part number of the upload identified by handle.
func (s *UploadService) UploadPart(ctx context.Context, ownerID, handle string, number int32, body io.Reader, size int64) (stores.Part, error) {
	session, err := s.session(ownerID, handle)
	if err != nil {
		return stores.Part{}, err
	}
	if number < 1 || number > maxParts {
		return stores.Part{}, common.Validationf("part number %d out of range", number)
	}
	if size > s.chunkSize {
		return stores.Part{}, common.Validationf("part larger than %d bytes", s.chunkSize)
	}

	etag, err := s.parts.UploadPart(ctx, session.StagingKey, session.UploadID, number, body, size)
	if err != nil {
		return stores.Part{}, err
	}
	return stores.Part{Number: number, ETag: etag}, nil
}

// Complete assembles the parts in the staging object, verifies the content
// against the declared digest and attaches the file to the document, copying
// the content to its storage key. The staging object is removed either way.
func (s *UploadService) Complete(ctx context.Context, ownerID, handle string, parts []stores.Part) (*saga.AddFileResult, error) {
	session, err := s.session(ownerID, handle)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, common.Validationf("no parts to complete")
	}

	if err := s.parts.CompleteMultipart(ctx, session.StagingKey, session.UploadID, parts); err != nil {
		return nil, err
	}
	defer s.discardStaged(context.WithoutCancel(ctx), session)

	in, err := s.verify(ctx, session)
	if err != nil {
		s.release(context.WithoutCancel(ctx), session)
		return nil, err
	}

	res, err := s.coord.AddFile(ctx, session.DocumentID, *in)
	if err != nil {
		s.release(context.WithoutCancel(ctx), session)
		return nil, err
	}
	s.log.Info(ctx, "chunked upload completed", "document_id", session.DocumentID, "key", session.Key, "parts", len(parts))
	return res, nil
}

// Abort discards the parts uploaded so far and the pending file record.
func (s *UploadService) Abort(ctx context.Context, ownerID, handle string) error {
	session, err := s.session(ownerID, handle)
	if err != nil {
		return err
	}
	err = s.parts.AbortMultipart(ctx, session.StagingKey, session.UploadID)
	s.release(context.WithoutCancel(ctx), session)
	return err
}

// reserve records the declared content as pending. Another upload holding
// the record already is not an error; the record is then left to it.
func (s *UploadService) reserve(ctx context.Context, session auth.UploadSession) (string, error) {
	f := &models.File{
		ID:          s.newID(),
		OwnerID:     session.OwnerID,
		Filename:    session.Filename,
		ContentType: session.ContentType,
		Size:        session.Size,
		ContentHash: session.SHA256,
		StorageKey:  session.Key,
	}
	err := s.platform.CreateFile(ctx, f)
	if errors.Is(err, common.ErrConflict) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

// release drops the pending record of an upload that ends without content,
// unless the record got completed or attached meanwhile.
func (s *UploadService) release(ctx context.Context, session *auth.UploadSession) {
	if session.PendingFileID == "" {
		return
	}
	if err := s.dropPending(ctx, session.PendingFileID); err != nil {
		s.log.Warn(ctx, "pending file record not removed", "file_id", session.PendingFileID, "error", err)
	}
}

func (s *UploadService) dropPending(ctx context.Context, id string) error {
	f, err := s.platform.GetFile(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if f.UploadCompleted {
		return nil
	}
	refs, err := s.platform.FileReferences(ctx, id)
	if err != nil || refs > 0 {
		return err
	}
	return s.platform.DeleteFile(ctx, id)
}

func (s *UploadService) discardStaged(ctx context.Context, session *auth.UploadSession) {
	if err := s.objects.Delete(ctx, session.StagingKey); err != nil {
		s.log.Error(ctx, "staging object not removed", "key", session.StagingKey, "error", err)
	}
}

func (s *UploadService) session(ownerID, handle string) (*auth.UploadSession, error) {
	session, err := auth.ParseSession(handle, s.secret)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: session belongs to another owner", common.ErrInvalidToken)
	}
	return session, nil
}

// verify re-reads the staging object, checking size and digest and
// extracting technical metadata on the way.
func (s *UploadService) verify(ctx context.Context, session *auth.UploadSession) (*saga.FileInput, error) {
	rc, err := s.objects.Get(ctx, session.StagingKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	sh := sha256.New()
	mh := md5.New()
	counter := &countingWriter{}
	tee := io.TeeReader(rc, io.MultiWriter(sh, mh, counter))

	bag := techmeta.Extract(tee)
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, common.NewStoreError(common.StoreObject, "get", nil, err)
	}

	if got := hex.EncodeToString(sh.Sum(nil)); got != session.SHA256 {
		return nil, common.Validationf("content digest %s does not match declared %s", got, session.SHA256)
	}
	if counter.n != session.Size {
		return nil, common.Validationf("content size %d does not match declared %d", counter.n, session.Size)
	}

	in := s.fileInput(*session, bag)
	in.MD5 = hex.EncodeToString(mh.Sum(nil))
	return &in, nil
}

func (s *UploadService) fileInput(session auth.UploadSession, bag map[string]any) saga.FileInput {
	tech, raw := techmeta.Promote(bag)
	return saga.FileInput{
		Filename:       session.Filename,
		ContentType:    session.ContentType,
		Category:       categorize.Parse(session.Category),
		SequenceNumber: session.SequenceNumber,
		Label:          session.Label,
		Size:           session.Size,
		SHA256:         session.SHA256,
		MD5:            session.MD5,
		StagedKey:      session.StagingKey,
		Tech:           tech,
		RawMetadata:    raw,
	}
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
