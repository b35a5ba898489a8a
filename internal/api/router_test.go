package api

import (
	"encoding/json"
	"fleet-reposition-service/internal/adapters/repositories"
	"fleet-reposition-service/internal/adapters/routing"
	"fleet-reposition-service/internal/dispatch"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/services"
	"fleet-reposition-service/internal/traveltime"
	"fleet-reposition-service/internal/zones"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var monday8 = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := repositories.NewMemory()
	store.PutRegion(&domain.Region{ID: 1, Name: "downtown"})
	store.AddPickup(1, domain.Coordinates{Lon: 0, Lat: 0}, monday8)
	store.AddPickup(1, domain.Coordinates{Lon: 1, Lat: 0}, monday8.Add(5*time.Minute))
	store.PutDriver(domain.Driver{ID: "d1", RegionID: 1, Status: domain.DriverOnline, Position: domain.Coordinates{Lon: 0, Lat: 0}})

	d := &services.Dispatcher{
		Regions: store,
		Drivers: store,
		Pickups: store,
		Oracle:  traveltime.NewOracle(routing.NewMockRoutingProvider(1000), nil),
		Engine:  zones.NewEngine(routing.NewMockIsochroneProvider(0.3), zones.DefaultTolerance),
		Config:  dispatch.DefaultConfig(),
	}

	srv := httptest.NewServer(NewRouter(store, d))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestHealthEchoesRequestID(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if got := res.Header.Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("request id = %q, want %q", got, "abc-123")
	}
}

func TestHealthRejectsPost(t *testing.T) {
	srv := newTestServer(t)
	res := post(t, srv.URL+"/health", "")
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", res.StatusCode)
	}
	if res.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing generated request id")
	}
}

func TestRebuildThenZonesThenSearch(t *testing.T) {
	srv := newTestServer(t)

	res := post(t, srv.URL+"/admin/regions/rebuild", `{"region_id": 1}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status = %d, want 200", res.StatusCode)
	}
	var rebuilt struct {
		Regions []struct {
			RegionID int64 `json:"region_id"`
			Zones    int   `json:"zones"`
		} `json:"regions"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rebuilt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rebuilt.Regions) != 1 || rebuilt.Regions[0].Zones != 2 {
		t.Fatalf("rebuild response = %+v", rebuilt)
	}

	zres, err := http.Get(srv.URL + "/regions/1/zones")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer zres.Body.Close()
	if ct := zres.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(zres.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("zones = %s with %d features", fc.Type, len(fc.Features))
	}

	sres := post(t, srv.URL+"/regions/1/search", `{"depth": 2, "at": "2026-01-05T08:00:00Z"}`)
	if sres.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, want 200", sres.StatusCode)
	}
	var plan struct {
		RunID    string            `json:"run_id"`
		RegionID int64             `json:"region_id"`
		Batches  []json.RawMessage `json:"batches"`
	}
	if err := json.NewDecoder(sres.Body).Decode(&plan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if plan.RunID == "" || plan.RegionID != 1 || len(plan.Batches) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestSearchUnknownRegionIs404(t *testing.T) {
	srv := newTestServer(t)
	res := post(t, srv.URL+"/regions/42/search", `{}`)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestSearchValidatesInput(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		path, body string
	}{
		{"/regions/abc/search", `{}`},
		{"/regions/1/search", `{"depth": -1}`},
		{"/regions/1/search", `{"deadline_ms": 999999}`},
		{"/regions/1/search", `{"unknown": true}`},
		{"/regions/1/search", `{} {}`},
	}
	for _, tc := range cases {
		res := post(t, srv.URL+tc.path, tc.body)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s %s: status = %d, want 400", tc.path, tc.body, res.StatusCode)
		}
	}
}

func TestRebuildRejectsBadInterval(t *testing.T) {
	srv := newTestServer(t)
	res := post(t, srv.URL+"/admin/regions/rebuild", `{"min_interval_minutes": 7}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
}
