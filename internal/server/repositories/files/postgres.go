// Package files persists records of stored file content.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/dbx"
	"github.com/dmitrijs2005/archivia/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, owner_id, filename, content_type, size, content_hash, storage_key, upload_completed, created_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	err := row.Scan(&f.ID, &f.OwnerID, &f.Filename, &f.ContentType, &f.Size, &f.ContentHash, &f.StorageKey, &f.UploadCompleted, &f.CreatedAt)
	return f, err
}

// Create inserts file and sets CreatedAt. Two records for the same
// (owner_id, storage_key) violate a unique constraint.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, owner_id, filename, content_type, size, content_hash, storage_key, upload_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.OwnerID, file.Filename, file.ContentType, file.Size, file.ContentHash, file.StorageKey, file.UploadCompleted).
		Scan(&file.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE id = $1`
	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// GetByStorageKey finds the owner's record for a content-addressed key.
func (r *PostgresRepository) GetByStorageKey(ctx context.Context, ownerID, storageKey string) (*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE owner_id = $1 AND storage_key = $2`
	f, err := scanFile(r.db.QueryRowContext(ctx, query, ownerID, storageKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// MarkUploaded flags the content of file id as completely stored.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET upload_completed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
	}
	return expectOne(res)
}

// MarkPending flags the content of file id as not yet stored.
func (r *PostgresRepository) MarkPending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET upload_completed = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark pending: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// CountReferences returns how many document associations point at fileID.
func (r *PostgresRepository) CountReferences(ctx context.Context, fileID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_files WHERE file_id = $1`, fileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
}
