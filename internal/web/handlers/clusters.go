package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/photo-gallery/internal/cluster"
)

// ClustersHandler serves the face clustering endpoints.
type ClustersHandler struct {
	manager *cluster.Manager
}

// NewClustersHandler creates a new clusters handler.
func NewClustersHandler(manager *cluster.Manager) *ClustersHandler {
	return &ClustersHandler{manager: manager}
}

// clustersResponse mirrors the wire format: cluster id to image paths.
type clustersResponse struct {
	Clusters map[int][]string `json:"clusters"`
	Count    int              `json:"count"`
}

// List returns the current identity clusters as image path groups.
// GET /api/v1/clusters
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.manager.GetClusters(r.Context())
	if err != nil {
		log.Printf("listing clusters: %v", err)
		respondError(w, http.StatusServiceUnavailable, "cluster storage unavailable")
		return
	}

	respondJSON(w, http.StatusOK, clustersResponse{
		Clusters: clusters,
		Count:    len(clusters),
	})
}

// Rebuild triggers a full authoritative rebuild from the embedding store.
// POST /api/v1/clusters/rebuild
func (h *ClustersHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Rebuild(r.Context()); err != nil {
		log.Printf("rebuilding clusters: %v", err)
		respondError(w, http.StatusServiceUnavailable, "cluster rebuild failed")
		return
	}

	clusters, err := h.manager.GetClusters(r.Context())
	if err != nil {
		log.Printf("listing clusters after rebuild: %v", err)
		respondError(w, http.StatusServiceUnavailable, "cluster storage unavailable")
		return
	}

	respondJSON(w, http.StatusOK, clustersResponse{
		Clusters: clusters,
		Count:    len(clusters),
	})
}

// Skipped returns the images excluded from clustering for having too many faces.
// GET /api/v1/clusters/skipped
func (h *ClustersHandler) Skipped(w http.ResponseWriter, r *http.Request) {
	skipped := h.manager.SkippedImages()
	respondJSON(w, http.StatusOK, map[string]any{
		"images": skipped,
		"count":  len(skipped),
	})
}
