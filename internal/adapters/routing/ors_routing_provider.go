package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Trips longer than this are reported as unreachable.
const searchCeiling = time.Hour

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
}

type matrixResponse struct {
	Durations [][]*float64 `json:"durations"`
}

// ORSRoutingProvider implements ports.MatrixRoutingProvider with the
// OpenRouteService matrix endpoint. ORS has no departure-time routing, so
// departAt is accepted and ignored.
type ORSRoutingProvider struct {
	client  *ORSClient
	profile string
}

func NewORSRoutingProvider(client *ORSClient, profile string) (*ORSRoutingProvider, error) {
	if client == nil {
		return nil, errors.New("ORS routing provider: client is nil")
	}
	if profile == "" {
		profile = "driving-car"
	}
	return &ORSRoutingProvider{client: client, profile: profile}, nil
}

func (o *ORSRoutingProvider) TravelTime(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
	departAt time.Time,
) (int, error) {
	secs, err := o.TravelTimes(ctx, origin, []domain.Coordinates{destination}, departAt)
	if err != nil {
		return 0, err
	}
	if secs[0] < 0 {
		return 0, ports.ErrNoRoute
	}
	return secs[0], nil
}

// TravelTimes fetches one origin->many matrix row. Null durations and
// durations above the search ceiling come back as -1.
func (o *ORSRoutingProvider) TravelTimes(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []domain.Coordinates,
	departAt time.Time,
) (_ []int, err error) {
	defer obs.Time(ctx, "ors.TravelTimes")(&err)

	if len(destinations) == 0 {
		return []int{}, nil
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.client.baseURL, o.profile)

	locations := make([][]float64, 0, 1+len(destinations))
	locations = append(locations, origin.CoordsToList())
	for _, c := range destinations {
		locations = append(locations, c.CoordsToList())
	}

	destIdx := make([]int, 0, len(destinations))
	for i := 1; i < len(locations); i++ {
		destIdx = append(destIdx, i)
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Destinations: destIdx,
		Metrics:      []string{"duration"},
		Sources:      []int{0},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Durations) != 1 {
		return nil, fmt.Errorf("expected 1 source row; got durations=%d", len(mr.Durations))
	}
	row := mr.Durations[0]
	if len(row) != len(destinations) {
		return nil, fmt.Errorf(
			"row length does not match destinations: durations=%d destinations=%d",
			len(row), len(destinations),
		)
	}

	out := make([]int, len(row))
	for i, secondsPtr := range row {
		if secondsPtr == nil || *secondsPtr > searchCeiling.Seconds() {
			out[i] = -1
			continue
		}
		// ORS returns float seconds; round to whole seconds.
		out[i] = int(math.Round(*secondsPtr))
	}
	return out, nil
}
