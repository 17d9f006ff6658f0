// Package documentfiles persists the associations between documents and
// stored files, including per-file technical metadata.
package documentfiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/archivia/internal/categorize"
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

// Create inserts assoc. Zero technical values are stored as NULL and
// RawMetadata as a JSONB object.
func (r *PostgresRepository) Create(ctx context.Context, assoc *models.DocumentFile) error {
	var raw any
	if len(assoc.RawMetadata) > 0 {
		b, err := json.Marshal(assoc.RawMetadata)
		if err != nil {
			return fmt.Errorf("encode raw metadata: %w", err)
		}
		raw = string(b)
	}

	t := assoc.Tech
	query := `
		INSERT INTO document_files (
			id, document_id, file_id, category, file_use, sequence_number,
			label, checksum, checksum_type,
			image_width, image_height, bits_per_sample, samples_per_pixel,
			compression_scheme, color_space, x_sampling_frequency, y_sampling_frequency,
			sampling_frequency_unit, format_name, byte_order, orientation, icc_profile_name,
			scanner_manufacturer, scanner_model_name, scanning_software_name, scanning_software_version,
			date_time_created, raw_metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
			NULLIF($10, 0), NULLIF($11, 0), NULLIF($12, ''), NULLIF($13, 0),
			NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, 0), NULLIF($17, 0),
			NULLIF($18, ''), NULLIF($19, ''), NULLIF($20, ''), NULLIF($21, ''), NULLIF($22, ''),
			NULLIF($23, ''), NULLIF($24, ''), NULLIF($25, ''), NULLIF($26, ''),
			$27, $28
		)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		assoc.ID, assoc.DocumentID, assoc.FileID, string(assoc.Category), string(assoc.Use), assoc.SequenceNumber,
		assoc.Label, assoc.Checksum, assoc.ChecksumType,
		t.ImageWidth, t.ImageHeight, t.BitsPerSample, t.SamplesPerPixel,
		t.CompressionScheme, t.ColorSpace, t.XSamplingFrequency, t.YSamplingFrequency,
		t.SamplingFrequencyUnit, t.FormatName, t.ByteOrder, t.Orientation, t.ICCProfileName,
		t.ScannerManufacturer, t.ScannerModelName, t.ScanningSoftwareName, t.ScanningSoftwareVersion,
		t.DateTimeCreated, raw,
	).Scan(&assoc.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listQuery = `
	SELECT
		df.id, df.document_id, df.file_id, df.category, df.file_use, df.sequence_number,
		COALESCE(df.label, ''), COALESCE(df.checksum, ''), COALESCE(df.checksum_type, ''),
		COALESCE(df.image_width, 0), COALESCE(df.image_height, 0), COALESCE(df.bits_per_sample, ''),
		COALESCE(df.samples_per_pixel, 0), COALESCE(df.compression_scheme, ''), COALESCE(df.color_space, ''),
		COALESCE(df.x_sampling_frequency, 0), COALESCE(df.y_sampling_frequency, 0),
		COALESCE(df.sampling_frequency_unit, ''), COALESCE(df.format_name, ''), COALESCE(df.byte_order, ''),
		COALESCE(df.orientation, ''), COALESCE(df.icc_profile_name, ''),
		COALESCE(df.scanner_manufacturer, ''), COALESCE(df.scanner_model_name, ''),
		COALESCE(df.scanning_software_name, ''), COALESCE(df.scanning_software_version, ''),
		df.date_time_created, df.raw_metadata, df.created_at,
		f.id, f.owner_id, f.filename, f.content_type, f.size, f.content_hash, f.storage_key,
		f.upload_completed, f.created_at
	FROM document_files df
	JOIN files f ON f.id = df.file_id
	WHERE df.document_id = $1
	ORDER BY df.sequence_number, df.created_at, df.id
`

// ListByDocument returns the document's associations joined with their
// files, ordered by sequence number.
func (r *PostgresRepository) ListByDocument(ctx context.Context, documentID string) ([]models.ViewFile, error) {
	rows, err := r.db.QueryContext(ctx, listQuery, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select document files: %w", err)
	}
	defer rows.Close()

	var result []models.ViewFile
	for rows.Next() {
		var (
			vf       models.ViewFile
			a        = &vf.Association
			t        = &a.Tech
			f        = &vf.File
			category string
			use      string
			created  sql.NullTime
			raw      []byte
		)
		err := rows.Scan(
			&a.ID, &a.DocumentID, &a.FileID, &category, &use, &a.SequenceNumber,
			&a.Label, &a.Checksum, &a.ChecksumType,
			&t.ImageWidth, &t.ImageHeight, &t.BitsPerSample,
			&t.SamplesPerPixel, &t.CompressionScheme, &t.ColorSpace,
			&t.XSamplingFrequency, &t.YSamplingFrequency,
			&t.SamplingFrequencyUnit, &t.FormatName, &t.ByteOrder,
			&t.Orientation, &t.ICCProfileName,
			&t.ScannerManufacturer, &t.ScannerModelName,
			&t.ScanningSoftwareName, &t.ScanningSoftwareVersion,
			&created, &raw, &a.CreatedAt,
			&f.ID, &f.OwnerID, &f.Filename, &f.ContentType, &f.Size, &f.ContentHash, &f.StorageKey,
			&f.UploadCompleted, &f.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		a.Category = categorize.Parse(category)
		a.Use = categorize.Use(use)
		if created.Valid {
			ts := created.Time
			t.DateTimeCreated = &ts
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.RawMetadata); err != nil {
				return nil, fmt.Errorf("decode raw metadata of %s: %w", a.ID, err)
			}
		}
		result = append(result, vf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM document_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteByDocument removes every association of the document and returns
// how many were removed.
func (r *PostgresRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM document_files WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
