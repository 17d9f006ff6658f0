package documents

import (
	"context"

	"github.com/dmitrijs2005/archivia/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error)
	SetMetadataRef(ctx context.Context, id, ref string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
