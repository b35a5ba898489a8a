package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/metrics"
	"fleet-reposition-service/internal/platform/obs"
	"fmt"
	"io"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type isochroneRequest struct {
	Locations [][]float64 `json:"locations"`
	Range     []int       `json:"range"`
	RangeType string      `json:"range_type"`
}

// ORSIsochroneProvider implements ports.IsochroneProvider with the
// OpenRouteService isochrones endpoint.
type ORSIsochroneProvider struct {
	client  *ORSClient
	profile string
}

func NewORSIsochroneProvider(client *ORSClient, profile string) (*ORSIsochroneProvider, error) {
	if client == nil {
		return nil, errors.New("ORS isochrone provider: client is nil")
	}
	if profile == "" {
		profile = "cycling-regular"
	}
	return &ORSIsochroneProvider{client: client, profile: profile}, nil
}

func (o *ORSIsochroneProvider) Isochrone(
	ctx context.Context,
	origin domain.Coordinates,
	horizonSeconds int,
) (_ []orb.Polygon, err error) {
	defer obs.Time(ctx, "ors.Isochrone")(&err)

	endpoint := fmt.Sprintf("%s/v2/isochrones/%s", o.client.baseURL, o.profile)

	payload, err := json.Marshal(isochroneRequest{
		Locations: [][]float64{origin.CoordsToList()},
		Range:     []int{horizonSeconds},
		RangeType: "time",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal isochrone request: %w", err)
	}

	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("isochrone", "error").Inc()
		return nil, fmt.Errorf("isochrone request failed: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("isochrone", "ok").Inc()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read isochrone response: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode isochrone response: %w", err)
	}

	var out []orb.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			out = append(out, g)
		case orb.MultiPolygon:
			out = append(out, g...)
		}
	}
	return out, nil
}
