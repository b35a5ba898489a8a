package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *ORSClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewORSClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestORSRoutingProviderTravelTimes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/matrix/driving-car" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req matrixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Locations) != 4 || len(req.Destinations) != 3 || req.Sources[0] != 0 {
			t.Errorf("request = %+v", req)
		}

		w.Write([]byte(`{"durations":[[120.4, null, 5000]]}`))
	})

	p, err := NewORSRoutingProvider(client, "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.TravelTimes(context.Background(), domain.Coordinates{}, []domain.Coordinates{{Lon: 1}, {Lon: 2}, {Lon: 3}}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 120 || got[1] != -1 || got[2] != -1 {
		t.Fatalf("durations = %v, want [120 -1 -1]", got)
	}
}

func TestORSRoutingProviderNoRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"durations":[[null]]}`))
	})
	p, _ := NewORSRoutingProvider(client, "driving-car")

	_, err := p.TravelTime(context.Background(), domain.Coordinates{}, domain.Coordinates{Lon: 1}, time.Now())
	if !errors.Is(err, ports.ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
}

func TestORSClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"durations":[[60]]}`))
	})
	p, _ := NewORSRoutingProvider(client, "")

	got, err := p.TravelTime(context.Background(), domain.Coordinates{}, domain.Coordinates{Lon: 1}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 60 || calls.Load() != 2 {
		t.Fatalf("got %d after %d calls, want 60 after 2", got, calls.Load())
	}
}

func TestORSClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	})
	p, _ := NewORSRoutingProvider(client, "")

	_, err := p.TravelTime(context.Background(), domain.Coordinates{}, domain.Coordinates{Lon: 1}, time.Now())
	var he *httpStatusError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 status error", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestORSIsochroneProviderDecodesGeoJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/isochrones/cycling-regular" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req isochroneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.RangeType != "time" || len(req.Range) != 1 || req.Range[0] != 360 {
			t.Errorf("request = %+v", req)
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"value":360},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
			{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[
				[[[2,2],[3,2],[3,3],[2,3],[2,2]]],
				[[[4,4],[5,4],[5,5],[4,5],[4,4]]]
			]}}
		]}`))
	})
	p, _ := NewORSIsochroneProvider(client, "")

	shapes, err := p.Isochrone(context.Background(), domain.Coordinates{Lon: 0.5, Lat: 0.5}, 360)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shapes) != 3 {
		t.Fatalf("shapes = %d, want 3", len(shapes))
	}
	if shapes[2][0][0][0] != 4 {
		t.Fatalf("last shape = %v", shapes[2])
	}
}

func TestNewORSClientRequiresKey(t *testing.T) {
	if _, err := NewORSClient("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestMockRoutingProviderCeiling(t *testing.T) {
	p := NewMockRoutingProvider(1000)
	if s, err := p.TravelTime(context.Background(), domain.Coordinates{}, domain.Coordinates{Lon: 0.3, Lat: 0.4}, time.Now()); err != nil || s != 500 {
		t.Fatalf("TravelTime = %d, %v; want 500", s, err)
	}
	if _, err := p.TravelTime(context.Background(), domain.Coordinates{}, domain.Coordinates{Lon: 4}, time.Now()); !errors.Is(err, ports.ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
}
