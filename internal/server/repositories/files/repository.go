package files

import (
	"context"

	"github.com/dmitrijs2005/archivia/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetByStorageKey(ctx context.Context, ownerID, storageKey string) (*models.File, error)
	MarkUploaded(ctx context.Context, id string) error
	MarkPending(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountReferences(ctx context.Context, fileID string) (int, error)
}
