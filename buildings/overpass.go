// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package buildings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nearbyhouses/nearby/spatial"
)

// DefaultOverpassURL is the main public Overpass interpreter.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// QueryError describes a failed building index query.
type QueryError struct {
	Kind       QueryErrorKind
	StatusCode int
	Err        error
}

// QueryErrorKind classifies building index failures.
type QueryErrorKind string

// Failure kinds.
const (
	QueryErrorTransport QueryErrorKind = "transport"
	QueryErrorStatus    QueryErrorKind = "status"
	QueryErrorPayload   QueryErrorKind = "payload"
	QueryErrorTimeout   QueryErrorKind = "timeout"
)

func (e *QueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("overpass %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("overpass %s error: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// OverpassClient queries an Overpass API interpreter.
type OverpassClient struct {
	endpoint   string
	httpClient *http.Client
	// serverTimeout is the [timeout:N] setting sent to the server.
	serverTimeout time.Duration
}

// NewOverpassClient creates a client for endpoint. serverTimeout is the
// query timeout requested from the server, in whole seconds.
func NewOverpassClient(endpoint string, serverTimeout time.Duration, httpClient *http.Client) *OverpassClient {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if serverTimeout < time.Second {
		serverTimeout = 25 * time.Second
	}

	return &OverpassClient{
		endpoint:      endpoint,
		httpClient:    httpClient,
		serverTimeout: serverTimeout,
	}
}

// selectors are the element filters combined in the union. Each matches
// elements within the around: radius.
var selectors = []string{
	`node["building"]`,
	`way["building"]`,
	`relation["building"]`,
	`node["amenity"]`,
	`way["amenity"]`,
	`relation["amenity"]`,
	`node["addr:housenumber"]`,
	`way["addr:housenumber"]`,
	`node["addr:street"]`,
	`way["addr:street"]`,
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// BuildQuery returns the Overpass QL union of all selectors around origin.
// The around: filter takes meters, the unit used throughout this package, so
// radius is passed through unchanged.
func BuildQuery(origin spatial.Point, radiusMeters float64, serverTimeout time.Duration) string {
	around := fmt.Sprintf("(around:%s,%s,%s)",
		formatFloat(radiusMeters), formatFloat(origin.Lat), formatFloat(origin.Lng))

	var b strings.Builder

	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", int(math.Ceil(serverTimeout.Seconds())))

	for _, sel := range selectors {
		fmt.Fprintf(&b, "  %s%s;\n", sel, around)
	}

	b.WriteString(");\nout center;\n")

	return b.String()
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
	Remark   string    `json:"remark,omitempty"`
}

// Elements implements ElementSource.
func (c *OverpassClient) Elements(ctx context.Context, origin spatial.Point, radiusMeters float64) ([]Element, error) {
	form := url.Values{}
	form.Set("data", BuildQuery(origin, radiusMeters, c.serverTimeout))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &QueryError{Kind: QueryErrorTransport, Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, &QueryError{
			Kind:       QueryErrorStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, classifyTransport(ctxErr)
		}

		return nil, &QueryError{Kind: QueryErrorPayload, Err: fmt.Errorf("decoding overpass response: %w", err)}
	}

	// Overpass reports server-side timeouts and memory exhaustion in a
	// remark next to a truncated element list.
	if strings.Contains(payload.Remark, "runtime error") {
		return nil, &QueryError{Kind: QueryErrorPayload, Err: errors.New(payload.Remark)}
	}

	return payload.Elements, nil
}

func classifyTransport(err error) *QueryError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &QueryError{Kind: QueryErrorTimeout, Err: err}
	}

	return &QueryError{Kind: QueryErrorTransport, Err: err}
}
