package httpapi

import (
	"time"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/services"
	"github.com/dmitrijs2005/archivia/internal/server/stores"
)

type documentJSON struct {
	ID         string    `json:"id"`
	LogicalID  string    `json:"logical_id"`
	OwnerID    string    `json:"owner_id"`
	MetadataID string    `json:"metadata_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toDocumentJSON(d models.Document) documentJSON {
	return documentJSON{
		ID:         d.ID,
		LogicalID:  d.LogicalID,
		OwnerID:    d.OwnerID,
		MetadataID: d.MetadataRef,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type summaryJSON struct {
	documentJSON
	FileCount int `json:"file_count"`
}

type associationJSON struct {
	ID             string                   `json:"id"`
	FileID         string                   `json:"file_id"`
	Category       categorize.Category      `json:"category"`
	Use            categorize.Use           `json:"use"`
	SequenceNumber int                      `json:"sequence_number"`
	Label          string                   `json:"label,omitempty"`
	Checksum       string                   `json:"checksum,omitempty"`
	ChecksumType   string                   `json:"checksum_type,omitempty"`
	Technical      models.TechnicalMetadata `json:"technical"`
	RawMetadata    map[string]any           `json:"raw_metadata,omitempty"`
}

func toAssociationJSON(a models.DocumentFile) associationJSON {
	return associationJSON{
		ID:             a.ID,
		FileID:         a.FileID,
		Category:       a.Category,
		Use:            a.Use,
		SequenceNumber: a.SequenceNumber,
		Label:          a.Label,
		Checksum:       a.Checksum,
		ChecksumType:   a.ChecksumType,
		Technical:      a.Tech,
		RawMetadata:    a.RawMetadata,
	}
}

type fileJSON struct {
	associationJSON
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	StorageKey  string `json:"storage_key"`
}

func toFileJSON(a models.DocumentFile, f models.File) fileJSON {
	return fileJSON{
		associationJSON: toAssociationJSON(a),
		Filename:        f.Filename,
		ContentType:     f.ContentType,
		Size:            f.Size,
		SHA256:          f.ContentHash,
		StorageKey:      f.StorageKey,
	}
}

type viewJSON struct {
	Document documentJSON     `json:"document"`
	Metadata *models.Metadata `json:"metadata"`
	Files    []fileJSON       `json:"files"`
}

func toViewJSON(v *models.DocumentView) viewJSON {
	out := viewJSON{
		Document: toDocumentJSON(v.Document),
		Metadata: v.Metadata,
		Files:    make([]fileJSON, 0, len(v.Files)),
	}
	for _, vf := range v.Files {
		out.Files = append(out.Files, toFileJSON(vf.Association, vf.File))
	}
	return out
}

type createdJSON struct {
	Document   documentJSON      `json:"document"`
	MetadataID string            `json:"metadata_id"`
	ObjectKeys []string          `json:"object_keys"`
	Files      []associationJSON `json:"files"`
}

func toCreatedJSON(res *saga.CreateResult) createdJSON {
	out := createdJSON{
		Document:   toDocumentJSON(res.Document),
		MetadataID: res.MetadataID,
		ObjectKeys: res.ObjectKeys,
		Files:      make([]associationJSON, 0, len(res.Files)),
	}
	if out.ObjectKeys == nil {
		out.ObjectKeys = []string{}
	}
	for _, a := range res.Files {
		out.Files = append(out.Files, toAssociationJSON(*a))
	}
	return out
}

type addedJSON struct {
	fileJSON
	Uploaded bool `json:"uploaded"`
}

func toAddedJSON(res *saga.AddFileResult) addedJSON {
	return addedJSON{fileJSON: toFileJSON(res.Association, res.File), Uploaded: res.Uploaded}
}

type deletedJSON struct {
	DeletedObjects []string `json:"deleted_objects"`
	SharedObjects  []string `json:"shared_objects,omitempty"`
	FailedObjects  []string `json:"failed_objects,omitempty"`
}

type initiatedJSON struct {
	services.InitiateResult
	File *addedJSON `json:"file,omitempty"`
}

// fileManifest describes one part of a create request. Entries are matched to
// the uploaded files by position.
type fileManifest struct {
	Folder         string                   `json:"folder"`
	Category       string                   `json:"category"`
	SequenceNumber int                      `json:"sequence_number"`
	Label          string                   `json:"label"`
	ContentType    string                   `json:"content_type"`
	Technical      models.TechnicalMetadata `json:"technical"`
}

type createManifest struct {
	LogicalID string          `json:"logical_id"`
	Metadata  models.Metadata `json:"metadata"`
	Files     []fileManifest  `json:"files"`
}

type completeRequest struct {
	Parts []stores.Part `json:"parts"`
}
