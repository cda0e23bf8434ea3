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
	"strconv"
	"strings"

	"github.com/nearbyhouses/nearby/spatial"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimProvider uses the OpenStreetMap Nominatim search API. The client
// must send a descriptive User-Agent (see httputils.NewClient).
type NominatimProvider struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewNominatimProvider creates a Nominatim provider. An empty baseURL selects
// the public instance; language, when set, is sent as accept-language.
func NewNominatimProvider(baseURL, language string, httpClient *http.Client) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &NominatimProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		httpClient: httpClient,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Name implements Provider.
func (p *NominatimProvider) Name() string {
	return "nominatim"
}

// Search implements Provider.
func (p *NominatimProvider) Search(ctx context.Context, query string) (*Match, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "1")

	if p.language != "" {
		params.Set("accept-language", p.language)
	}

	reqURL := p.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building nominatim request", Err: err}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		if IsTimeoutError(err) || IsCancelledError(err) {
			return nil, classifyTransportError(err)
		}

		return nil, &GeocodingError{Type: ErrorTypeDecode, Message: "decoding nominatim response", Err: err}
	}

	if len(places) == 0 {
		return nil, nil
	}

	return places[0].match()
}

func (place nominatimPlace) match() (*Match, error) {
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeDecode, Message: fmt.Sprintf("invalid latitude %q", place.Lat), Err: err}
	}

	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeDecode, Message: fmt.Sprintf("invalid longitude %q", place.Lon), Err: err}
	}

	return &Match{
		Point:       spatial.Point{Lat: lat, Lng: lon},
		DisplayName: place.DisplayName,
	}, nil
}
