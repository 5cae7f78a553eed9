package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/database"
)

// clusterStateRowID is the fixed row key; the table holds a single blob.
const clusterStateRowID = 1

// ClusterStateRepository persists the serialized cluster partition.
type ClusterStateRepository struct {
	pool *Pool
}

// NewClusterStateRepository creates a new PostgreSQL cluster state repository.
func NewClusterStateRepository(pool *Pool) *ClusterStateRepository {
	return &ClusterStateRepository{pool: pool}
}

// Put stores the serialized cluster state, replacing any previous snapshot.
func (r *ClusterStateRepository) Put(ctx context.Context, blob []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cluster_state (id, blob, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			blob = EXCLUDED.blob,
			updated_at = NOW()
	`, clusterStateRowID, blob)
	if err != nil {
		return fmt.Errorf("save cluster state: %w", err)
	}
	return nil
}

// Get retrieves the serialized cluster state. Returns nil when no snapshot
// has been stored yet.
func (r *ClusterStateRepository) Get(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := r.pool.QueryRow(ctx, "SELECT blob FROM cluster_state WHERE id = $1", clusterStateRowID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cluster state: %w", err)
	}
	return blob, nil
}

// Verify interface compliance.
var _ database.ClusterStateStore = (*ClusterStateRepository)(nil)
