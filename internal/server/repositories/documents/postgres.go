// Package documents persists platform document records.
package documents

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

// Create inserts doc and fills its timestamps from the database. A duplicate
// (owner_id, logical_id) surfaces as a unique violation.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, logical_id, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, doc.ID, doc.LogicalID, doc.OwnerID).
		Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT id, logical_id, owner_id, COALESCE(metadata_ref, ''), created_at, updated_at
		FROM documents WHERE id = $1
	`
	doc := &models.Document{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&doc.ID, &doc.LogicalID, &doc.OwnerID, &doc.MetadataRef, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

// ListByOwner returns the owner's documents, newest first, with the number
// of attached files.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error) {
	query := `
		SELECT d.id, d.logical_id, d.owner_id, COALESCE(d.metadata_ref, ''), d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM document_files df WHERE df.document_id = d.id)
		FROM documents d
		WHERE d.owner_id = $1
		ORDER BY d.created_at DESC, d.id
		OFFSET $2 LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.DocumentSummary
	for rows.Next() {
		var s models.DocumentSummary
		if err := rows.Scan(&s.ID, &s.LogicalID, &s.OwnerID, &s.MetadataRef, &s.CreatedAt, &s.UpdatedAt, &s.FileCount); err != nil {
			return nil, err
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetMetadataRef links the document to its metadata record. An empty ref
// clears the link.
func (r *PostgresRepository) SetMetadataRef(ctx context.Context, id, ref string) error {
	query := `UPDATE documents SET metadata_ref = NULLIF($2, ''), updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, ref)
}

// Touch bumps updated_at.
func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE documents SET updated_at = now() WHERE id = $1`, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

// execOne runs a statement that must affect exactly one row; zero rows is
// reported as common.ErrNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
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
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
