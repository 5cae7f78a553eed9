package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
)

// Manager owns the process's single cluster engine. It is constructed once
// at startup, passed by reference to everything that needs cluster access,
// and torn down at shutdown; there is no ambient package-level instance.
//
// Startup restores the engine from persisted state when possible and falls
// back to a full build from the embedding store. Shutdown persists the
// current partition. All mutation and query of cluster state goes through
// this type so the process can never hold two divergent partitions.
type Manager struct {
	engine *Engine
	loader *Loader
	images database.ImageReader
	states database.ClusterStateStore

	mu      sync.Mutex
	skipped map[string]struct{}
	built   bool
}

// NewManager wires the engine to its collaborators.
func NewManager(engine *Engine, loader *Loader, images database.ImageReader, states database.ClusterStateStore) *Manager {
	return &Manager{
		engine:  engine,
		loader:  loader,
		images:  images,
		states:  states,
		skipped: make(map[string]struct{}),
	}
}

// Engine exposes the managed engine for read-mostly callers (CLI output).
func (m *Manager) Engine() *Engine {
	return m.engine
}

// Start initializes the engine: restore from the cluster store when a valid
// snapshot exists, otherwise build from scratch. A corrupt or unreadable
// snapshot never fails startup; the embedding store is authoritative.
func (m *Manager) Start(ctx context.Context) error {
	blob, err := m.states.Get(ctx)
	if err != nil {
		log.Printf("cluster state unavailable, rebuilding: %v", err)
		return m.Rebuild(ctx)
	}
	if blob == nil {
		return m.Rebuild(ctx)
	}

	state, err := DecodeState(blob)
	if err != nil {
		log.Printf("discarding persisted cluster state: %v", err)
		return m.Rebuild(ctx)
	}

	params := m.engine.Params()
	if state.Eps != params.Eps || state.MinSamples != params.MinSamples {
		log.Printf("cluster parameters changed (eps %v -> %v, min samples %d -> %d), rebuilding",
			state.Eps, params.Eps, state.MinSamples, params.MinSamples)
		return m.Rebuild(ctx)
	}

	points, excluded, err := m.loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	pending, pruned := m.engine.Restore(points, state)
	if pruned > 0 {
		log.Printf("pruned %d stale member reference(s) from persisted cluster state", pruned)
	}
	for _, p := range pending {
		if err := m.engine.Insert(p); err != nil {
			if errors.Is(err, ErrDegenerateEmbedding) {
				log.Printf("skipping face %s/%d: %v", p.ImageUID, p.Slot, err)
				continue
			}
			return err
		}
	}

	m.mu.Lock()
	m.skipped = toSet(excluded)
	m.built = true
	m.mu.Unlock()

	log.Printf("cluster engine restored: %d point(s), %d pending, %d image(s) excluded",
		len(points), len(pending), len(excluded))
	return nil
}

// Rebuild performs an authoritative full rebuild from the embedding store.
func (m *Manager) Rebuild(ctx context.Context) error {
	points, excluded, err := m.loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	m.engine.Reset(points)

	m.mu.Lock()
	m.skipped = toSet(excluded)
	m.built = len(points) > 0
	m.mu.Unlock()

	log.Printf("cluster engine rebuilt: %d point(s), %d image(s) excluded", len(points), len(excluded))
	return nil
}

// Shutdown persists the current partition. When the engine was never built
// (empty database, nothing to persist), this is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	built := m.built
	m.mu.Unlock()
	if !built {
		return nil
	}
	return m.Save(ctx)
}

// Save serializes the partition into the cluster store.
func (m *Manager) Save(ctx context.Context) error {
	blob, err := EncodeState(m.engine.Snapshot())
	if err != nil {
		return err
	}
	if err := m.states.Put(ctx, blob); err != nil {
		return fmt.Errorf("%w: saving cluster state: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// GetClusters returns, per cluster id, the ordered list of distinct image
// paths it spans. Members whose image can no longer be resolved are pruned
// silently, and clusters left with fewer than two distinct paths are
// dropped, matching the reporting rule.
func (m *Manager) GetClusters(ctx context.Context) (map[int][]string, error) {
	clusters := m.engine.Clusters()

	result := make(map[int][]string, len(clusters))
	for id, uids := range clusters {
		paths := make([]string, 0, len(uids))
		for _, uid := range uids {
			path, err := m.images.PathFor(ctx, uid)
			if err != nil {
				return nil, fmt.Errorf("%w: resolving image %s: %v", ErrStorageUnavailable, uid, err)
			}
			if path == "" {
				continue
			}
			paths = append(paths, path)
		}
		if len(paths) >= constants.MinClusterImages {
			result[id] = paths
		}
	}
	return result, nil
}

// OnImageAdded folds a newly processed image into the clustering. Images
// exceeding the face-count threshold are excluded and recorded; degenerate
// embeddings are skipped with a log line.
func (m *Manager) OnImageAdded(ctx context.Context, imageUID string) error {
	points, excluded, err := m.loader.LoadImages(ctx, []string{imageUID})
	if err != nil {
		return err
	}

	m.mu.Lock()
	if len(excluded) > 0 {
		m.skipped[imageUID] = struct{}{}
	} else {
		delete(m.skipped, imageUID)
	}
	if len(points) > 0 {
		m.built = true
	}
	m.mu.Unlock()

	for _, p := range points {
		if err := m.engine.Insert(p); err != nil {
			if errors.Is(err, ErrDegenerateEmbedding) {
				log.Printf("skipping face %s/%d: %v", p.ImageUID, p.Slot, err)
				continue
			}
			return err
		}
	}
	return nil
}

// OnImageRemoved removes an image's contribution from the clustering.
// Unknown images are a no-op; this never fails.
func (m *Manager) OnImageRemoved(ctx context.Context, imageUID string) {
	m.engine.RemoveImage(imageUID)

	m.mu.Lock()
	delete(m.skipped, imageUID)
	m.mu.Unlock()
}

// SkippedImages reports the images excluded from clustering for exceeding
// the face-count threshold, sorted for stable output.
func (m *Manager) SkippedImages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	uids := make([]string, 0, len(m.skipped))
	for uid := range m.skipped {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

func toSet(uids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		set[uid] = struct{}{}
	}
	return set
}
