package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository provides PostgreSQL-backed face storage with optional in-memory HNSW index.
type FaceRepository struct {
	pool        *Pool
	hnswIndex   *database.HNSWIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// ListAll retrieves every stored face ordered by image UID and face index.
func (r *FaceRepository) ListAll(ctx context.Context) ([]database.StoredFace, error) {
	query := `
		SELECT id, image_uid, face_index, embedding, bbox, det_score, model, dim, created_at
		FROM faces
		ORDER BY image_uid, face_index
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// GetFaces retrieves all faces for an image.
func (r *FaceRepository) GetFaces(ctx context.Context, imageUID string) ([]database.StoredFace, error) {
	query := `
		SELECT id, image_uid, face_index, embedding, bbox, det_score, model, dim, created_at
		FROM faces
		WHERE image_uid = $1
		ORDER BY face_index
	`

	rows, err := r.pool.Query(ctx, query, imageUID)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// Count returns the total number of faces stored.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// CountImages returns the number of distinct images with faces.
func (r *FaceRepository) CountImages(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT image_uid) FROM faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

// SaveFaces stores multiple faces for an image, replacing any existing faces for that image.
func (r *FaceRepository) SaveFaces(ctx context.Context, imageUID string, faces []database.StoredFace) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	hnswEnabled := r.isHNSWEnabled()

	var oldFaceIDs []int64
	if hnswEnabled {
		oldFaceIDs, err = scanFaceIDs(ctx, tx, imageUID)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE image_uid = $1", imageUID); err != nil {
		return fmt.Errorf("delete existing faces: %w", err)
	}

	insertedFaces := make([]database.StoredFace, 0, len(faces))
	for i := range faces {
		face := &faces[i]
		vec := pgvector.NewVector(face.Embedding)
		bbox := pq.Array(face.BBox)

		var model sql.NullString
		if face.Model != "" {
			model = sql.NullString{String: face.Model, Valid: true}
		}

		var newID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO faces (image_uid, face_index, embedding, bbox, det_score, model, dim)
			VALUES ($1, $2, $3::vector, $4, $5, $6, $7)
			RETURNING id
		`,
			imageUID,
			face.FaceIndex,
			vec,
			bbox,
			face.DetScore,
			model,
			face.Dim,
		).Scan(&newID)
		if err != nil {
			return fmt.Errorf("insert face %d: %w", face.FaceIndex, err)
		}

		newFace := *face
		newFace.ID = newID
		newFace.ImageUID = imageUID
		insertedFaces = append(insertedFaces, newFace)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.updateHNSWFaces(hnswEnabled, oldFaceIDs, insertedFaces)
	return nil
}

// DeleteFacesByImage removes all faces for an image.
// Returns the deleted face IDs for HNSW cleanup.
func (r *FaceRepository) DeleteFacesByImage(ctx context.Context, imageUID string) ([]int64, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	faceIDs, err := scanFaceIDs(ctx, tx, imageUID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE image_uid = $1", imageUID); err != nil {
		return nil, fmt.Errorf("delete faces: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if r.isHNSWEnabled() {
		r.hnswMu.Lock()
		r.hnswIndex.Remove(faceIDs)
		r.hnswMu.Unlock()
	}

	return faceIDs, nil
}

// FindSimilar finds faces with similar embeddings using cosine distance.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *FaceRepository) FindSimilar(
	ctx context.Context, embedding []float32, limit int,
) ([]database.StoredFace, error) {
	if r.isHNSWEnabled() {
		return r.findSimilarHNSW(embedding, limit)
	}
	return r.findSimilarPostgres(ctx, embedding, limit)
}

func (r *FaceRepository) findSimilarHNSW(embedding []float32, limit int) ([]database.StoredFace, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, errors.New("HNSW index not initialized")
	}

	ids, _, err := r.hnswIndex.Search(embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]database.StoredFace, 0, len(ids))
	for _, id := range ids {
		if face := r.hnswIndex.GetFace(id); face != nil {
			results = append(results, *face)
		}
	}
	return results, nil
}

func (r *FaceRepository) findSimilarPostgres(
	ctx context.Context, embedding []float32, limit int,
) ([]database.StoredFace, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", constants.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT id, image_uid, face_index, embedding, bbox, det_score, model, dim, created_at
		FROM faces
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`

	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// FindSimilarWithDistance finds similar faces and returns distances.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *FaceRepository) FindSimilarWithDistance(
	ctx context.Context, embedding []float32, limit int, maxDistance float64,
) ([]database.StoredFace, []float64, error) {
	if r.isHNSWEnabled() {
		return r.findSimilarWithDistanceHNSW(embedding, limit, maxDistance)
	}
	return r.findSimilarWithDistancePostgres(ctx, embedding, limit, maxDistance)
}

func (r *FaceRepository) findSimilarWithDistanceHNSW(
	embedding []float32, limit int, maxDistance float64,
) ([]database.StoredFace, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, nil, errors.New("HNSW index not initialized")
	}

	// Request more candidates so enough survive the distance filter.
	searchK := limit * constants.HNSWSearchMultiplier
	searchK = max(searchK, 100)

	ids, distances, err := r.hnswIndex.Search(embedding, searchK)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]database.StoredFace, 0, limit)
	distancesOut := make([]float64, 0, limit)
	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		face := r.hnswIndex.GetFace(id)
		if face == nil {
			continue
		}
		results = append(results, *face)
		distancesOut = append(distancesOut, distances[i])
		if len(results) >= limit {
			break
		}
	}

	return results, distancesOut, nil
}

func (r *FaceRepository) findSimilarWithDistancePostgres(
	ctx context.Context, embedding []float32, limit int, maxDistance float64,
) ([]database.StoredFace, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", constants.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT id, image_uid, face_index, embedding, bbox, det_score, model, dim, created_at,
		       embedding <=> $1::vector AS distance
		FROM faces
		WHERE embedding <=> $1::vector < $2
		ORDER BY distance
		LIMIT $3
	`

	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(embedding), maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	var faces []database.StoredFace
	var distances []float64
	for rows.Next() {
		var dist float64
		face, err := scanFaceRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		faces = append(faces, face)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate faces: %w", err)
	}

	return faces, distances, nil
}

// EnableHNSW builds an in-memory HNSW index for O(log N) similarity search.
// This should be called once at startup.
func (r *FaceRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	faces, err := r.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load faces: %w", err)
	}

	index := database.NewHNSWIndex()
	if err := index.BuildFromFaces(faces); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}
	if indexPath != "" {
		index.SetPath(indexPath)
		if err := index.SaveMetadata(); err != nil {
			fmt.Printf("Warning: failed to save HNSW index metadata: %v\n", err)
		}
	}

	r.hnswMu.Lock()
	r.hnswIndex = index
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *FaceRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *FaceRepository) IsHNSWEnabled() bool {
	return r.isHNSWEnabled()
}

// HNSWCount returns the number of faces in the HNSW index.
func (r *FaceRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

func (r *FaceRepository) isHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// updateHNSWFaces removes old face IDs and adds new faces to the HNSW index.
func (r *FaceRepository) updateHNSWFaces(hnswEnabled bool, oldIDs []int64, newFaces []database.StoredFace) {
	if !hnswEnabled {
		return
	}
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswIndex.Remove(oldIDs)
	for i := range newFaces {
		if err := r.hnswIndex.Add(&newFaces[i]); err != nil {
			fmt.Printf("Warning: failed to index face %d: %v\n", newFaces[i].ID, err)
		}
	}
}

// scanFaceRow scans a single row into a StoredFace, with optional extra scan
// destinations appended after the standard face columns (e.g., a distance column).
func scanFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.StoredFace, error) {
	var face database.StoredFace
	var vec pgvector.Vector
	var bbox pq.Float64Array
	var model sql.NullString

	dest := make([]any, 0, 9+len(extraDest))
	dest = append(dest,
		&face.ID,
		&face.ImageUID,
		&face.FaceIndex,
		&vec,
		&bbox,
		&face.DetScore,
		&model,
		&face.Dim,
		&face.CreatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return face, fmt.Errorf("scan face: %w", err)
	}

	face.Embedding = vec.Slice()
	face.BBox = []float64(bbox)
	if model.Valid {
		face.Model = model.String
	}
	return face, nil
}

func scanFaces(rows *sql.Rows) ([]database.StoredFace, error) {
	var faces []database.StoredFace
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// scanFaceIDs reads face IDs for an image inside a transaction.
func scanFaceIDs(ctx context.Context, tx *sql.Tx, imageUID string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM faces WHERE image_uid = $1", imageUID)
	if err != nil {
		return nil, fmt.Errorf("query face IDs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan face ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face IDs: %w", err)
	}
	return ids, nil
}

// Verify interface compliance.
var _ database.FaceReader = (*FaceRepository)(nil)
var _ database.FaceWriter = (*FaceRepository)(nil)
