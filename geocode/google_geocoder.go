// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nearbyhouses/nearby/spatial"
)

// DefaultGoogleMapsURL is the Google Maps Geocoding API endpoint.
const DefaultGoogleMapsURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsProvider uses Google Maps Geocoding API.
type GoogleMapsProvider struct {
	apiKey     string
	endpoint   string
	region     string
	language   string
	httpClient *http.Client
}

// GoogleMapsOptions configures a GoogleMapsProvider.
type GoogleMapsOptions struct {
	APIKey string
	// Endpoint overrides DefaultGoogleMapsURL.
	Endpoint string
	// Region biases results to a ccTLD, e.g. "us".
	Region   string
	Language string
}

// NewGoogleMapsProvider creates a new Google Maps provider.
func NewGoogleMapsProvider(opts GoogleMapsOptions, httpClient *http.Client) *GoogleMapsProvider {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultGoogleMapsURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GoogleMapsProvider{
		apiKey:     opts.APIKey,
		endpoint:   opts.Endpoint,
		region:     opts.Region,
		language:   opts.Language,
		httpClient: httpClient,
	}
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

// Name implements Provider.
func (g *GoogleMapsProvider) Name() string {
	return "google_maps"
}

// Search implements Provider.
func (g *GoogleMapsProvider) Search(ctx context.Context, query string) (*Match, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)

	if g.region != "" {
		params.Set("region", g.region)
	}

	if g.language != "" {
		params.Set("language", g.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building google maps request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeDecode, Message: "decoding google maps response", Err: err}
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, classifyGoogleStatus(gmResp.Status, gmResp.ErrorMessage)
	}

	if len(gmResp.Results) == 0 {
		return nil, nil
	}

	result := gmResp.Results[0]

	return &Match{
		Point: spatial.Point{
			Lat: result.Geometry.Location.Lat,
			Lng: result.Geometry.Location.Lng,
		},
		DisplayName: result.FormattedAddress,
	}, nil
}

// classifyGoogleStatus maps the body status of a 200 answer. Statuses that
// have an HTTP equivalent carry it so callers can surface a stable code.
func classifyGoogleStatus(status, message string) *GeocodingError {
	msg := fmt.Sprintf("google maps status: %s", status)
	if message = strings.TrimSpace(message); message != "" {
		msg += " (" + message + ")"
	}

	switch status {
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return &GeocodingError{Type: ErrorTypeQuotaExceeded, StatusCode: http.StatusTooManyRequests, Message: msg}
	case "REQUEST_DENIED":
		return &GeocodingError{Type: ErrorTypeQuotaExceeded, StatusCode: http.StatusForbidden, Message: msg}
	case "INVALID_REQUEST":
		return &GeocodingError{Type: ErrorTypeInvalidRequest, StatusCode: http.StatusBadRequest, Message: msg}
	default:
		return &GeocodingError{Type: ErrorTypeUnknown, Message: msg}
	}
}
