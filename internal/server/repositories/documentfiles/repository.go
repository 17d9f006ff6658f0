package documentfiles

import (
	"context"

	"github.com/dmitrijs2005/archivia/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, assoc *models.DocumentFile) error
	ListByDocument(ctx context.Context, documentID string) ([]models.ViewFile, error)
	Delete(ctx context.Context, id string) error
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}
