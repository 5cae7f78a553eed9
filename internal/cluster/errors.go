package cluster

import "errors"

// Sentinel errors for the clustering core. Callers classify failures with
// errors.Is; the policy throughout is graceful degradation, so only
// ErrStorageUnavailable ever propagates out of the package.
var (
	// ErrStorageUnavailable indicates the embedding, image, or cluster store
	// could not be reached. No retries happen inside the core.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDegenerateEmbedding indicates a zero-norm vector whose cosine
	// distance is undefined. The offending embedding is skipped and logged.
	ErrDegenerateEmbedding = errors.New("degenerate embedding: zero-norm vector")

	// ErrInconsistentReference indicates persisted cluster state references
	// an embedding that no longer exists. Resolved by pruning, never fatal.
	ErrInconsistentReference = errors.New("persisted state references missing embedding")

	// ErrCorruptState indicates the persisted cluster state blob could not
	// be decoded. Resolved by a full rebuild, never fatal.
	ErrCorruptState = errors.New("corrupt persisted cluster state")
)
