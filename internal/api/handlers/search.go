package handlers

import (
	"errors"
	"fleet-reposition-service/internal/api/dto"
	"fleet-reposition-service/internal/services"
	"log/slog"
	"net/http"
	"time"
)

const (
	maxDepth      = 8
	maxDeadlineMs = 60_000
)

type SearchHandler struct {
	Dispatcher *services.Dispatcher
}

// Search runs one dispatch search for the region in the path and returns the
// recommended plan.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	id, ok := regionID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "region id must be a positive integer")
		return
	}

	var req dto.SearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Depth < 0 || req.Depth > maxDepth {
		writeError(w, r, http.StatusBadRequest, "depth must be between 0 and 8")
		return
	}
	if req.DeadlineMs < 0 || req.DeadlineMs > maxDeadlineMs {
		writeError(w, r, http.StatusBadRequest, "deadline_ms must be between 0 and 60000")
		return
	}

	svcReq := services.SearchRequest{
		RegionID: id,
		Depth:    req.Depth,
		Deadline: time.Duration(req.DeadlineMs) * time.Millisecond,
	}
	if req.At != nil {
		svcReq.At = *req.At
	}

	plan, err := h.Dispatcher.RunSearch(r.Context(), svcReq)
	if errors.Is(err, services.ErrRegionNotFound) {
		writeError(w, r, http.StatusNotFound, "region not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "region_id", id, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromPlan(plan))
}
