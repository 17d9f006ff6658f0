package saga

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/server/models"
)

func fileInput(name, content string, cat categorize.Category, seq int) FileInput {
	sum := sha256.Sum256([]byte(content))
	md := md5.Sum([]byte(content))
	return FileInput{
		Filename:       name,
		ContentType:    "application/octet-stream",
		Category:       cat,
		SequenceNumber: seq,
		Size:           int64(len(content)),
		SHA256:         hex.EncodeToString(sum[:]),
		MD5:            hex.EncodeToString(md[:]),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

type fixture struct {
	platform *memPlatform
	metadata *memMetadata
	objects  *memObjects
	c        *Coordinator
}

func newFixture() *fixture {
	f := &fixture{platform: newMemPlatform(), metadata: newMemMetadata(), objects: newMemObjects()}
	f.c = NewCoordinator(f.platform, f.metadata, f.objects)
	return f
}

func (f *fixture) assertEmpty(t *testing.T) {
	t.Helper()
	assert.Empty(t, f.platform.docs, "platform records")
	assert.Empty(t, f.platform.files, "file records")
	assert.Empty(t, f.platform.assocs, "associations")
	assert.Empty(t, f.metadata.records, "metadata records")
	assert.Empty(t, f.objects.objects, "objects")
}

func threeFiles() []FileInput {
	return []FileInput{
		fileInput("c001.tif", "page one", categorize.Master, 1),
		fileInput("c002.tif", "page two", categorize.Master, 2),
		fileInput("c003.tif", "page three", categorize.Master, 3),
	}
}

func TestCreateDocument_Success(t *testing.T) {
	f := newFixture()

	res, err := f.c.CreateDocument(context.Background(), CreateRequest{
		OwnerID:   "u1",
		LogicalID: "IT-ASMI-001",
		Metadata:  models.Metadata{Title: "Carteggio"},
		Files:     threeFiles(),
	})
	require.NoError(t, err)

	assert.Equal(t, res.MetadataID, res.Document.MetadataRef)
	assert.Len(t, res.ObjectKeys, 3)
	assert.Len(t, res.Files, 3)

	doc := f.platform.docs[res.Document.ID]
	require.NotNil(t, doc)
	assert.Equal(t, res.MetadataID, doc.MetadataRef)

	md := f.metadata.records[res.MetadataID]
	require.NotNil(t, md)
	assert.Equal(t, res.Document.ID, md.PlatformRef)
	assert.Equal(t, "IT-ASMI-001", md.LogicalID)
	assert.Equal(t, "u1", md.OwnerID)
	assert.Equal(t, models.SchemaVersion, md.SchemaVersion)

	assert.Len(t, f.objects.objects, 3)
	assert.Len(t, f.platform.files, 3)
	assert.Len(t, f.platform.assocs, 3)
	for _, a := range res.Files {
		assert.Equal(t, categorize.UseMaster, a.Use)
		assert.Equal(t, "MD5", a.ChecksumType)
	}
	assert.Equal(t, "page one", string(f.objects.objects[res.ObjectKeys[0]]))
	assert.True(t, strings.HasPrefix(res.ObjectKeys[0], "u1/master/"))
}

func TestCreateDocument_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.c.CreateDocument(context.Background(), CreateRequest{LogicalID: "L"})
	assert.ErrorIs(t, err, common.ErrValidation)
	f.assertEmpty(t)
}

func TestCreateDocument_PlatformFailureLeavesNothing(t *testing.T) {
	f := newFixture()
	f.platform.createErr = common.NewStoreError(common.StorePlatform, "create document", common.ErrStoreUnavailable, nil)

	_, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L", Files: threeFiles()})
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	f.assertEmpty(t)
}

func TestCreateDocument_MetadataFailureRemovesPlatformRecord(t *testing.T) {
	f := newFixture()
	f.metadata.createErr = common.NewStoreError(common.StoreMetadata, "create", common.ErrStoreUnavailable, errors.New("no primary"))

	_, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)

	var sagaErr *Error
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "metadata.create", sagaErr.Step)
	f.assertEmpty(t)
}

func TestCreateDocument_SecondUploadFailureRemovesEverything(t *testing.T) {
	f := newFixture()
	f.objects.failPut = 2

	_, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L", Files: threeFiles()})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Equal(t, 2, f.objects.puts)
	f.assertEmpty(t)
}

func TestCreateDocument_AttachFailureRemovesObjects(t *testing.T) {
	f := newFixture()
	f.platform.attachErr = common.NewStoreError(common.StorePlatform, "attach files", common.ErrStoreFailure, nil)

	_, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L", Files: threeFiles()})
	require.ErrorIs(t, err, common.ErrStoreFailure)
	f.assertEmpty(t)
}

func TestCreateDocument_CancelDuringUploadsCompensates(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.objects.onPut = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	_, err := f.c.CreateDocument(ctx, CreateRequest{OwnerID: "u1", LogicalID: "L", Files: threeFiles()})
	require.ErrorIs(t, err, context.Canceled)
	f.assertEmpty(t)
}

func TestCreateDocument_DuplicateLogicalIDIsConflict(t *testing.T) {
	f := newFixture()
	_, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	_, err = f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Len(t, f.platform.docs, 1)
	assert.Len(t, f.metadata.records, 1)

	_, err = f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u2", LogicalID: "L"})
	require.NoError(t, err)
}

func TestCreateDocument_DeduplicatesIdenticalContent(t *testing.T) {
	f := newFixture()
	files := []FileInput{
		fileInput("a.jpg", "same bytes", categorize.ExportHigh, 1),
		fileInput("b.JPG", "same bytes", categorize.ExportHigh, 2),
	}

	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L1", Files: files})
	require.NoError(t, err)
	assert.Len(t, res.ObjectKeys, 1)
	assert.Equal(t, 1, f.objects.puts)
	assert.Len(t, f.platform.files, 1)
	require.Len(t, res.Files, 2)
	assert.Equal(t, res.Files[0].FileID, res.Files[1].FileID)

	res2, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L2",
		Files: []FileInput{fileInput("c.jpg", "same bytes", categorize.ExportHigh, 1)}})
	require.NoError(t, err)
	assert.Empty(t, res2.ObjectKeys)
	assert.Equal(t, 1, f.objects.puts)
	assert.Equal(t, res.Files[0].FileID, res2.Files[0].FileID)
}

func TestCreateDocument_ReusedContentSurvivesRollback(t *testing.T) {
	f := newFixture()
	first, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L1",
		Files: []FileInput{fileInput("a.tif", "shared", categorize.Master, 1)}})
	require.NoError(t, err)

	f.platform.attachErr = errors.New("tx aborted")
	_, err = f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L2",
		Files: []FileInput{fileInput("a.tif", "shared", categorize.Master, 1)}})
	require.Error(t, err)

	assert.Contains(t, f.objects.objects, first.ObjectKeys[0])
	assert.Len(t, f.platform.docs, 1)
	assert.Len(t, f.metadata.records, 1)
}

func TestUpdateDocument(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L", Metadata: models.Metadata{Title: "Old"}})
	require.NoError(t, err)

	title := "New"
	require.NoError(t, f.c.UpdateDocument(context.Background(), res.Document.ID, models.MetadataPatch{Title: &title}))
	assert.Equal(t, "New", f.metadata.records[res.MetadataID].Title)
	assert.Equal(t, 1, f.platform.touched)
}

func TestUpdateDocument_TouchFailureIsTolerated(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)
	f.platform.touchErr = errors.New("platform down")

	title := "New"
	require.NoError(t, f.c.UpdateDocument(context.Background(), res.Document.ID, models.MetadataPatch{Title: &title}))
	assert.Equal(t, "New", f.metadata.records[res.MetadataID].Title)
}

func TestUpdateDocument_MetadataFailureSkipsTouch(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	f.metadata.updateErr = common.NewStoreError(common.StoreMetadata, "update", common.ErrStoreUnavailable, nil)
	err = f.c.UpdateDocument(context.Background(), res.Document.ID, models.MetadataPatch{})
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Equal(t, 0, f.platform.touched)

	f.metadata.updateErr = nil
	delete(f.metadata.records, res.MetadataID)
	err = f.c.UpdateDocument(context.Background(), res.Document.ID, models.MetadataPatch{})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, f.platform.touched)
}

func TestUpdateDocument_UnknownDocument(t *testing.T) {
	f := newFixture()
	err := f.c.UpdateDocument(context.Background(), "missing", models.MetadataPatch{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteDocument_Completeness(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L", Files: threeFiles()})
	require.NoError(t, err)

	stuck := res.ObjectKeys[1]
	f.objects.failKeys[stuck] = common.NewStoreError(common.StoreObject, "delete", common.ErrStoreUnavailable, nil)

	report, err := f.c.DeleteDocument(context.Background(), res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{stuck}, report.FailedObjects)
	assert.Len(t, report.DeletedObjects, 2)

	assert.Empty(t, f.platform.docs)
	assert.Empty(t, f.platform.assocs)
	assert.Empty(t, f.platform.files)
	assert.Empty(t, f.metadata.records)
	assert.Equal(t, []string{stuck}, keysOf(f.objects.objects))
}

func TestDeleteDocument_KeepsSharedObjects(t *testing.T) {
	f := newFixture()
	shared := fileInput("a.tif", "shared", categorize.Master, 1)
	first, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L1", Files: []FileInput{shared}})
	require.NoError(t, err)
	second, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L2", Files: []FileInput{shared}})
	require.NoError(t, err)

	report, err := f.c.DeleteDocument(context.Background(), first.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ObjectKeys, report.SharedObjects)
	assert.Empty(t, report.DeletedObjects)
	assert.Contains(t, f.objects.objects, first.ObjectKeys[0])
	assert.Len(t, f.platform.files, 1)

	report, err = f.c.DeleteDocument(context.Background(), second.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ObjectKeys, report.DeletedObjects)
	f.assertEmpty(t)
}

func TestDeleteDocument_MetadataFailureKeepsPlatformRecord(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)
	f.metadata.deleteErr = common.NewStoreError(common.StoreMetadata, "delete", common.ErrStoreUnavailable, nil)

	_, err = f.c.DeleteDocument(context.Background(), res.Document.ID)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, f.platform.docs, res.Document.ID)
}

func TestDeleteDocument_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.c.DeleteDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAddFile(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	added, err := f.c.AddFile(context.Background(), res.Document.ID, fileInput("profile.icc", "icc bytes", categorize.ICC, 0))
	require.NoError(t, err)
	assert.True(t, added.Uploaded)
	assert.Equal(t, categorize.UseMetadata, added.Association.Use)
	assert.Equal(t, res.Document.ID, added.Association.DocumentID)
	assert.Contains(t, f.objects.objects, added.File.StorageKey)
	assert.True(t, strings.HasPrefix(added.File.StorageKey, "u1/icc/"))
	assert.True(t, strings.HasSuffix(added.File.StorageKey, ".icc"))
	assert.Equal(t, 1, f.platform.touched)
}

func TestAddFile_PlatformFailureRemovesObject(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)
	f.platform.attachErr = common.NewStoreError(common.StorePlatform, "attach files", common.ErrStoreUnavailable, nil)

	_, err = f.c.AddFile(context.Background(), res.Document.ID, fileInput("x.tif", "bytes", categorize.Master, 1))
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Empty(t, f.objects.objects)
	assert.Empty(t, f.platform.files)
}

func stagedInput(f *fixture, name, content, staged string) FileInput {
	in := fileInput(name, content, categorize.Master, 1)
	in.Open = nil
	in.StagedKey = staged
	f.objects.objects[staged] = []byte(content)
	return in
}

func TestAddFile_CopiesStagedContent(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	in := stagedInput(f, "big.tif", "multipart", "u1/_uploads/s1")
	added, err := f.c.AddFile(context.Background(), res.Document.ID, in)
	require.NoError(t, err)

	assert.True(t, added.Uploaded)
	assert.Equal(t, 1, f.objects.copies)
	assert.Equal(t, 0, f.objects.puts)
	assert.Equal(t, "multipart", string(f.objects.objects[in.Key("u1")]))
	assert.True(t, f.platform.files[added.File.ID].UploadCompleted)
}

func TestAddFile_StagedContentNotCopiedOverCommittedFile(t *testing.T) {
	f := newFixture()
	first, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L1",
		Files: []FileInput{fileInput("big.tif", "multipart", categorize.Master, 1)}})
	require.NoError(t, err)
	second, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L2"})
	require.NoError(t, err)

	in := stagedInput(f, "big.tif", "multipart", "u1/_uploads/s1")
	f.objects.objects["u1/_uploads/s1"] = []byte("not the committed bytes")

	added, err := f.c.AddFile(context.Background(), second.Document.ID, in)
	require.NoError(t, err)
	assert.False(t, added.Uploaded)
	assert.Equal(t, 0, f.objects.copies)
	assert.Equal(t, first.Files[0].FileID, added.File.ID)
	assert.Equal(t, "multipart", string(f.objects.objects[first.ObjectKeys[0]]))
}

func TestAddFile_CompletesPendingRecordInAttach(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	in := stagedInput(f, "big.tif", "multipart", "u1/_uploads/s1")
	pending := &models.File{ID: "pending-1", OwnerID: "u1", StorageKey: in.Key("u1"), ContentHash: in.SHA256}
	require.NoError(t, f.platform.CreateFile(context.Background(), pending))

	added, err := f.c.AddFile(context.Background(), res.Document.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "pending-1", added.File.ID)
	assert.True(t, added.File.UploadCompleted)
	assert.True(t, f.platform.files["pending-1"].UploadCompleted)
	assert.Len(t, f.platform.files, 1)
}

func TestAddFile_RollbackReopensPendingRecord(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	in := stagedInput(f, "big.tif", "multipart", "u1/_uploads/s1")
	require.NoError(t, f.platform.CreateFile(context.Background(),
		&models.File{ID: "pending-1", OwnerID: "u1", StorageKey: in.Key("u1")}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.platform.onAttach = cancel

	_, err = f.c.AddFile(ctx, res.Document.ID, in)
	require.ErrorIs(t, err, context.Canceled)

	require.Contains(t, f.platform.files, "pending-1")
	assert.False(t, f.platform.files["pending-1"].UploadCompleted)
	assert.Empty(t, f.platform.assocs)
	assert.NotContains(t, f.objects.objects, in.Key("u1"))
	assert.Contains(t, f.objects.objects, "u1/_uploads/s1", "the staged object belongs to the caller")
}

func TestAddFile_FailedCopyRemovedUnlessClaimed(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	in := stagedInput(f, "big.tif", "multipart", "u1/_uploads/s1")
	f.platform.attachErr = errors.New("tx aborted")

	_, err = f.c.AddFile(context.Background(), res.Document.ID, in)
	require.Error(t, err)
	assert.NotContains(t, f.objects.objects, in.Key("u1"))
	assert.Empty(t, f.platform.files)

	// a concurrent ingest commits the same content while this attach fails
	f.platform.onAttach = func() {
		f.platform.files["winner"] = &models.File{ID: "winner", OwnerID: "u1", StorageKey: in.Key("u1"), UploadCompleted: true}
	}
	f.platform.attachErr = common.NewStoreError(common.StorePlatform, "attach files", common.ErrConflict, nil)

	_, err = f.c.AddFile(context.Background(), res.Document.ID, in)
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "multipart", string(f.objects.objects[in.Key("u1")]))
}

func TestAddFile_NoContentSource(t *testing.T) {
	f := newFixture()
	res, err := f.c.CreateDocument(context.Background(), CreateRequest{OwnerID: "u1", LogicalID: "L"})
	require.NoError(t, err)

	in := fileInput("gone.tif", "vanished", categorize.Master, 1)
	in.Open = nil

	_, err = f.c.AddFile(context.Background(), res.Document.ID, in)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Empty(t, f.platform.files)
}

func TestAddFile_UnknownDocument(t *testing.T) {
	f := newFixture()
	_, err := f.c.AddFile(context.Background(), "missing", fileInput("x.tif", "b", categorize.Master, 1))
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, f.objects.objects)
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
