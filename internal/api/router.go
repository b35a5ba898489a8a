package api

import (
	"fleet-reposition-service/internal/api/handlers"
	"fleet-reposition-service/internal/platform/metrics"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/services"
	"net/http"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(regions ports.RegionRepository, dispatcher *services.Dispatcher) http.Handler {
	mux := http.NewServeMux()

	searchHandler := &handlers.SearchHandler{Dispatcher: dispatcher}
	regionHandler := &handlers.RegionHandler{
		Regions:    regions,
		Dispatcher: dispatcher,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/regions/{id}/search", searchHandler.Search)
	mux.HandleFunc("/regions/{id}/zones", regionHandler.Zones)
	mux.HandleFunc("/admin/regions/rebuild", regionHandler.Rebuild)

	return requestIDMiddleware(loggingMiddleware(mux))
}
