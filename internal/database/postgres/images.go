package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/textnorm"
)

// ImageRepository provides PostgreSQL-backed storage for the image index.
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository creates a new PostgreSQL image repository.
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Get retrieves an image record by UID. Returns nil when the image is unknown.
func (r *ImageRepository) Get(ctx context.Context, uid string) (*database.ImageRecord, error) {
	var record database.ImageRecord
	err := r.pool.QueryRow(ctx, `
		SELECT uid, path, title, created_at
		FROM images
		WHERE uid = $1
	`, uid).Scan(&record.UID, &record.Path, &record.Title, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query image: %w", err)
	}
	return &record, nil
}

// PathFor resolves an image UID to its filesystem path. Returns an empty
// string without error when the image is unknown.
func (r *ImageRepository) PathFor(ctx context.Context, uid string) (string, error) {
	var path string
	err := r.pool.QueryRow(ctx, "SELECT path FROM images WHERE uid = $1", uid).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query image path: %w", err)
	}
	return path, nil
}

// List returns image records ordered by creation time, newest first. A
// non-empty query filters on path and title, case and accent insensitive.
func (r *ImageRepository) List(ctx context.Context, query string) ([]database.ImageRecord, error) {
	sqlQuery := `
		SELECT uid, path, title, created_at
		FROM images
		ORDER BY created_at DESC, uid
	`
	args := []any{}

	if normalized := textnorm.Normalize(query); normalized != "" {
		sqlQuery = `
			SELECT uid, path, title, created_at
			FROM images
			WHERE LOWER(unaccent(path || ' ' || title)) LIKE '%' || $1 || '%'
			ORDER BY created_at DESC, uid
		`
		args = append(args, normalized)
	}

	rows, err := r.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var records []database.ImageRecord
	for rows.Next() {
		var record database.ImageRecord
		if err := rows.Scan(&record.UID, &record.Path, &record.Title, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return records, nil
}

// Save stores an image record, updating path and title on conflict.
func (r *ImageRepository) Save(ctx context.Context, record database.ImageRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO images (uid, path, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET
			path = EXCLUDED.path,
			title = EXCLUDED.title
	`, record.UID, record.Path, record.Title)
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

// Delete removes an image record. Deleting an unknown image is a no-op.
func (r *ImageRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM images WHERE uid = $1", uid); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ database.ImageReader = (*ImageRepository)(nil)
var _ database.ImageWriter = (*ImageRepository)(nil)
