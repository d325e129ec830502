package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"media-index/internal/database"
	"media-index/internal/metrics"
)

const (
	// DefaultEndpoint is the public Nominatim instance. Point this at a
	// self-hosted instance for bulk catalogs.
	DefaultEndpoint = "https://nominatim.openstreetmap.org/reverse"

	// Nominatim requires an identifying User-Agent.
	userAgent      = "media-index/1.0"
	requestTimeout = 10 * time.Second

	// Zoom 14 resolves to suburb level, detailed enough for a city and
	// neighbourhood without per-building noise.
	zoomLevel = "14"
)

// NominatimResolver resolves coordinates against a Nominatim HTTP endpoint.
type NominatimResolver struct {
	endpoint string
	client   *http.Client
}

// NewNominatim builds a resolver for the given endpoint. An empty endpoint
// selects the public instance.
func NewNominatim(endpoint string) *NominatimResolver {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &NominatimResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// nominatimResponse is the subset of the jsonv2 reverse payload we read.
type nominatimResponse struct {
	Address struct {
		Attraction    string `json:"attraction"`
		Tourism       string `json:"tourism"`
		Amenity       string `json:"amenity"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Hamlet        string `json:"hamlet"`
		Municipality  string `json:"municipality"`
		State         string `json:"state"`
		County        string `json:"county"`
		Country       string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}

// Resolve performs one reverse lookup. HTTP 429 maps to ErrRateLimited so
// the caller's retry loop can back off.
func (r *NominatimResolver) Resolve(ctx context.Context, lat, lng float64) (*database.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("zoom", zoomLevel)
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := r.client.Do(req)
	metrics.GeocodeRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	metrics.GeocodeRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding nominatim response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("nominatim: %s", body.Error)
	}

	a := body.Address
	return &database.Place{
		Name:    firstNonEmpty(a.Attraction, a.Tourism, a.Amenity, a.Suburb, a.Neighbourhood),
		City:    firstNonEmpty(a.City, a.Town, a.Village, a.Hamlet, a.Municipality),
		State:   firstNonEmpty(a.State, a.County),
		Country: a.Country,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
