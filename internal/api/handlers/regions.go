package handlers

import (
	"errors"
	"fleet-reposition-service/internal/api/dto"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/services"
	"fleet-reposition-service/internal/zones"
	"log/slog"
	"net/http"
)

// RegionHandler exposes a region's partition and the rebuild trigger.
type RegionHandler struct {
	Regions    ports.RegionRepository
	Dispatcher *services.Dispatcher
}

// Zones returns the region's partition as a GeoJSON FeatureCollection.
func (h *RegionHandler) Zones(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	id, ok := regionID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "region id must be a positive integer")
		return
	}

	region, err := h.Regions.GetRegion(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "region not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get region failed", "region_id", id, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, r, http.StatusOK, zones.ToFeatureCollection(region.Zones))
}

// Rebuild recomputes zones and density for one region, or for all regions
// when region_id is omitted.
func (h *RegionHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	req := dto.RebuildRequest{Seconds: 360, MinIntervalMinutes: 30}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Seconds < 1 || req.Seconds > 3600 {
		writeError(w, r, http.StatusBadRequest, "seconds must be between 1 and 3600")
		return
	}
	if req.MinIntervalMinutes < 1 || req.MinIntervalMinutes > 60 || 60%req.MinIntervalMinutes != 0 {
		writeError(w, r, http.StatusBadRequest, "min_interval_minutes must divide 60")
		return
	}

	opts := services.RebuildOptions{
		HorizonSeconds:  req.Seconds,
		IntervalMinutes: req.MinIntervalMinutes,
	}

	var results []services.RebuildResult
	if req.RegionID != nil {
		n, err := h.Dispatcher.RebuildRegion(r.Context(), *req.RegionID, opts)
		if errors.Is(err, services.ErrRegionNotFound) {
			writeError(w, r, http.StatusNotFound, "region not found")
			return
		}
		results = append(results, services.RebuildResult{RegionID: *req.RegionID, Zones: n, Err: err})
	} else {
		var err error
		results, err = h.Dispatcher.RebuildAllRegions(r.Context(), opts)
		if err != nil {
			slog.ErrorContext(r.Context(), "rebuild failed", "err", err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	res := dto.RebuildResponse{Regions: make([]dto.RebuildResult, 0, len(results))}
	status := http.StatusOK
	for _, rr := range results {
		item := dto.RebuildResult{RegionID: rr.RegionID, Zones: rr.Zones}
		if rr.Err != nil {
			slog.ErrorContext(r.Context(), "region rebuild failed", "region_id", rr.RegionID, "err", rr.Err)
			item.Error = "rebuild failed"
			status = http.StatusInternalServerError
		}
		res.Regions = append(res.Regions, item)
	}

	writeJSON(w, r, status, res)
}
