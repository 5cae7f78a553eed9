package cluster

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/constants"
)

// currentStateVersion is bumped whenever the snapshot layout changes.
const currentStateVersion = 1

// Member references one embedding by its owning image and face slot.
type Member struct {
	ImageUID string `json:"image_uid"`
	Slot     int    `json:"slot"`
}

// StateCluster is one persisted identity cluster.
type StateCluster struct {
	ID      int      `json:"id"`
	Members []Member `json:"members"`
}

// State is the serialized form of the engine's partition. It is a cache of
// a computation under specific parameters, never a source of truth: the
// embedding store always wins on mismatch.
type State struct {
	Version    int            `json:"version"`
	SavedAt    time.Time      `json:"saved_at"`
	Eps        float64        `json:"eps"`
	MinSamples int            `json:"min_samples"`
	Clusters   []StateCluster `json:"clusters"`
	Noise      []Member       `json:"noise"`
}

// Snapshot captures the current partition for persistence.
func (e *Engine) Snapshot() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byLabel := make(map[int][]Member)
	var noise []Member
	for i, label := range e.labels {
		m := Member{ImageUID: e.points[i].ImageUID, Slot: e.points[i].Slot}
		if label > 0 {
			byLabel[label] = append(byLabel[label], m)
		} else {
			noise = append(noise, m)
		}
	}

	clusters := make([]StateCluster, 0, len(byLabel))
	for label, members := range byLabel {
		clusters = append(clusters, StateCluster{ID: label, Members: members})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	return &State{
		Version:    currentStateVersion,
		SavedAt:    time.Now().UTC(),
		Eps:        e.params.Eps,
		MinSamples: e.params.MinSamples,
		Clusters:   clusters,
		Noise:      noise,
	}
}

// EncodeState serializes a snapshot to its storage blob.
func EncodeState(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding cluster state: %w", err)
	}
	return data, nil
}

// DecodeState parses a storage blob back into a snapshot. Undecodable or
// incompatible blobs report ErrCorruptState so callers fall back to a full
// rebuild instead of failing startup.
func DecodeState(blob []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if s.Version != currentStateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, s.Version)
	}
	return &s, nil
}

// Restore seeds the engine from persisted state and the currently loaded
// eligible points.
//
// Members referencing embeddings that no longer exist are dropped silently
// (pruned is their count); clusters pruned below the minimum distinct-image
// count dissolve into noise. Points not covered by the snapshot are returned
// as pending so the caller can feed them through the incremental path.
func (e *Engine) Restore(points []Point, s *State) (pending []Point, pruned int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	available := make(map[Key]Point, len(points))
	for _, p := range points {
		available[Key{ImageUID: p.ImageUID, Slot: p.Slot}] = p
	}

	e.points = e.points[:0]
	e.labels = e.labels[:0]
	claimed := make(map[Key]struct{})

	appendMember := func(m Member, label int) {
		k := Key{ImageUID: m.ImageUID, Slot: m.Slot}
		p, ok := available[k]
		if !ok {
			pruned++
			return
		}
		if _, dup := claimed[k]; dup {
			return
		}
		claimed[k] = struct{}{}
		e.points = append(e.points, p)
		e.labels = append(e.labels, label)
	}

	for _, c := range s.Clusters {
		for _, m := range c.Members {
			appendMember(m, c.ID)
		}
	}
	for _, m := range s.Noise {
		appendMember(m, constants.NoiseLabel)
	}

	// Dissolve clusters that lost too many members to pruning.
	for _, c := range s.Clusters {
		if e.distinctImagesLocked(c.ID) < constants.MinClusterImages {
			e.dissolveLocked(c.ID)
		}
	}

	for _, p := range points {
		if _, ok := claimed[Key{ImageUID: p.ImageUID, Slot: p.Slot}]; !ok {
			pending = append(pending, p)
		}
	}
	return pending, pruned
}
