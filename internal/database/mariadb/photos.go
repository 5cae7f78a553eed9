package mariadb

import (
	"context"
	"database/sql"
	"fmt"
)

// Photo is one PhotoPrism photo with its primary file.
type Photo struct {
	UID   string
	Title string
	Path  string
}

// ListPhotos returns all non-deleted photos with their primary file paths.
// Paths are relative to the PhotoPrism originals directory.
func (p *Pool) ListPhotos(ctx context.Context) ([]Photo, error) {
	query := `
		SELECT p.photo_uid, p.photo_title, f.file_name
		FROM photos p
		JOIN files f ON f.photo_uid = p.photo_uid AND f.file_primary = 1
		WHERE p.deleted_at IS NULL AND f.deleted_at IS NULL
		ORDER BY p.photo_uid
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var photo Photo
		var title sql.NullString
		if err := rows.Scan(&photo.UID, &title, &photo.Path); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if title.Valid {
			photo.Title = title.String
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// CountPhotos returns the number of non-deleted photos.
func (p *Pool) CountPhotos(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos WHERE deleted_at IS NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}
