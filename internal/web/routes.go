package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-gallery/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Dependencies) {
	clustersHandler := handlers.NewClustersHandler(deps.Manager)
	imagesHandler := handlers.NewImagesHandler(deps.Images, deps.Faces, deps.Detector, deps.Manager)
	facesHandler := handlers.NewFacesHandler(deps.Faces)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Clusters
		r.Get("/clusters", clustersHandler.List)
		r.Post("/clusters/rebuild", clustersHandler.Rebuild)
		r.Get("/clusters/skipped", clustersHandler.Skipped)

		// Images
		r.Get("/images", imagesHandler.List)
		r.Post("/images", imagesHandler.Register)
		r.Get("/images/{uid}", imagesHandler.Get)
		r.Delete("/images/{uid}", imagesHandler.Delete)
		r.Get("/images/{uid}/thumb/{size}", imagesHandler.Thumbnail)

		// Faces
		r.Post("/faces/similar", facesHandler.Similar)
	})
}
