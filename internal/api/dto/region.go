package dto

type RebuildRequest struct {
	Seconds            int    `json:"seconds"`
	MinIntervalMinutes int    `json:"min_interval_minutes"`
	RegionID           *int64 `json:"region_id"`
}

type RebuildResult struct {
	RegionID int64  `json:"region_id"`
	Zones    int    `json:"zones"`
	Error    string `json:"error,omitempty"`
}

type RebuildResponse struct {
	Regions []RebuildResult `json:"regions"`
}
