package cluster

import (
	"sync"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
)

// Params holds the clustering policy parameters.
type Params struct {
	// Eps is the maximum cosine distance for two points to be neighbors.
	// The boundary is inclusive.
	Eps float64
	// MinSamples is the minimum neighborhood size, including the point
	// itself, required to seed a dense region.
	MinSamples int
}

// DefaultParams returns the stock clustering parameters.
func DefaultParams() Params {
	return Params{
		Eps:        constants.DefaultClusterEps,
		MinSamples: constants.DefaultMinSamples,
	}
}

// Engine maintains a partition of face embeddings into identity clusters
// plus a noise set.
//
// All points live in memory, so rebuilds are bounded by corpus size and do
// no I/O. A single RWMutex guards the partition: reads may run concurrently
// with each other but never with a write, and writes are serialized. Any
// mutation that would alter existing cluster topology (a merge, or a point
// recruiting previously-noise points) falls back to a full rebuild before
// the call returns, so the partition is consistent whenever a call exits.
type Engine struct {
	mu     sync.RWMutex
	params Params
	points []Point
	labels []int
}

// NewEngine creates an engine with the given parameters.
func NewEngine(params Params) *Engine {
	if params.Eps <= 0 {
		params.Eps = constants.DefaultClusterEps
	}
	if params.MinSamples < 1 {
		params.MinSamples = constants.DefaultMinSamples
	}
	return &Engine{params: params}
}

// Params returns the engine's clustering parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Size returns the number of points currently loaded.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.points)
}

// Reset replaces the point set and recomputes the partition from scratch.
// Zero-norm vectors are dropped silently; callers log them upstream.
func (e *Engine) Reset(points []Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := make([]Point, 0, len(points))
	for _, p := range points {
		if database.IsZeroVector(p.Vector) {
			continue
		}
		kept = append(kept, p)
	}

	e.points = kept
	e.rebuildLocked()
}

// rebuildLocked recomputes the full partition. Caller must hold the write lock.
func (e *Engine) rebuildLocked() {
	e.labels = dbscan(e.points, e.params.Eps, e.params.MinSamples)
}

// Insert classifies a new point against the existing partition.
//
// Cheap paths: absorption into exactly one neighboring cluster, or labeling
// the point noise when it has no neighbors. Anything that would change the
// existing topology (neighbors in two clusters, or a point that would newly
// become core and recruit noise points) triggers a synchronous full rebuild.
func (e *Engine) Insert(p Point) error {
	if database.IsZeroVector(p.Vector) {
		return ErrDegenerateEmbedding
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	neighbors := regionQuery(e.points, p.Vector, e.params.Eps)

	rebuild := e.insertChangesTopology(neighbors, p)

	label := constants.NoiseLabel
	if !rebuild {
		for _, j := range neighbors {
			if e.labels[j] > 0 {
				label = e.labels[j]
				break
			}
		}
	}

	e.points = append(e.points, p)
	e.labels = append(e.labels, label)

	if rebuild {
		e.rebuildLocked()
	}
	return nil
}

// insertChangesTopology reports whether adding the point would alter the
// existing cluster structure beyond simple absorption. Caller holds the
// write lock; neighbors index into the pre-insert point set.
func (e *Engine) insertChangesTopology(neighbors []int, p Point) bool {
	clusterSeen := make(map[int]struct{})
	hasNoiseNeighbor := false
	for _, j := range neighbors {
		if e.labels[j] > 0 {
			clusterSeen[e.labels[j]] = struct{}{}
		} else {
			hasNoiseNeighbor = true
		}
	}

	// Neighbors in two or more clusters: a merge event.
	if len(clusterSeen) >= 2 {
		return true
	}

	// The new point itself becomes core and would recruit noise neighbors.
	newIsCore := len(neighbors)+1 >= e.params.MinSamples
	if newIsCore && hasNoiseNeighbor {
		return true
	}

	// An existing neighbor may be promoted to core by the extra point. That
	// only matters if the promotion recruits noise points into a cluster.
	for _, j := range neighbors {
		jNeighbors := regionQuery(e.points, e.points[j].Vector, e.params.Eps)
		wasCore := len(jNeighbors) >= e.params.MinSamples
		becomesCore := len(jNeighbors)+1 >= e.params.MinSamples
		if wasCore || !becomesCore {
			continue
		}
		if e.labels[j] <= 0 {
			// A noise point promoted to core seeds a new dense region.
			return true
		}
		for _, k := range jNeighbors {
			if e.labels[k] <= 0 {
				// A border point promoted to core recruits its noise neighbors.
				return true
			}
			if e.labels[k] != e.labels[j] {
				// Promotion would density-connect two clusters.
				return true
			}
		}
	}

	return false
}

// RemoveImage drops every point owned by the image. Removing an unknown
// image is a no-op.
//
// Removals of pure noise points with no clustered neighbors are handled in
// place. A cluster that drops below the minimum distinct-image count is
// dissolved (its remaining members become noise). Any other removal touching
// cluster structure could demote a core point, so it triggers a rebuild.
func (e *Engine) RemoveImage(imageUID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := make(map[int]struct{})
	for i := range e.points {
		if e.points[i].ImageUID == imageUID {
			removed[i] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return
	}

	rebuild := false
	affected := make(map[int]struct{})
	for i := range removed {
		if e.labels[i] > 0 {
			affected[e.labels[i]] = struct{}{}
			continue
		}
		// A removed noise point shrinks the neighborhoods of everything
		// around it; a clustered neighbor could lose core status.
		neighbors := regionQuery(e.points, e.points[i].Vector, e.params.Eps)
		for _, j := range neighbors {
			if _, gone := removed[j]; gone {
				continue
			}
			if e.labels[j] > 0 {
				rebuild = true
				break
			}
		}
	}

	points := make([]Point, 0, len(e.points)-len(removed))
	labels := make([]int, 0, len(e.labels)-len(removed))
	for i := range e.points {
		if _, gone := removed[i]; gone {
			continue
		}
		points = append(points, e.points[i])
		labels = append(labels, e.labels[i])
	}
	e.points = points
	e.labels = labels

	for label := range affected {
		if e.distinctImagesLocked(label) < constants.MinClusterImages {
			e.dissolveLocked(label)
		} else {
			rebuild = true
		}
	}

	if rebuild {
		e.rebuildLocked()
	}
}

// distinctImagesLocked counts distinct images in a cluster. Caller holds a lock.
func (e *Engine) distinctImagesLocked(label int) int {
	seen := make(map[string]struct{})
	for i, l := range e.labels {
		if l == label {
			seen[e.points[i].ImageUID] = struct{}{}
		}
	}
	return len(seen)
}

// dissolveLocked turns every member of a cluster into noise. Caller must
// hold the write lock.
func (e *Engine) dissolveLocked(label int) {
	for i, l := range e.labels {
		if l == label {
			e.labels[i] = constants.NoiseLabel
		}
	}
}

// Clusters returns, per identity cluster, the distinct image UIDs it spans
// in first-seen order. An image contributing several embeddings to the same
// cluster counts once. Clusters spanning fewer than two distinct images are
// not reported.
func (e *Engine) Clusters() map[int][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	members := make(map[int][]string)
	seen := make(map[int]map[string]struct{})
	for i, label := range e.labels {
		if label <= 0 {
			continue
		}
		if seen[label] == nil {
			seen[label] = make(map[string]struct{})
		}
		uid := e.points[i].ImageUID
		if _, dup := seen[label][uid]; dup {
			continue
		}
		seen[label][uid] = struct{}{}
		members[label] = append(members[label], uid)
	}

	for label, uids := range members {
		if len(uids) < constants.MinClusterImages {
			delete(members, label)
		}
	}
	return members
}

// NoiseCount returns the number of points currently labeled noise.
func (e *Engine) NoiseCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	count := 0
	for _, l := range e.labels {
		if l == constants.NoiseLabel {
			count++
		}
	}
	return count
}
