// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves free-text addresses to coordinates. A Geocoder
// wraps a Provider (Nominatim or Google Maps) and adds the simplified
// address fallback; it never returns an error, every failure is described by
// the Result it produces.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nearbyhouses/nearby/spatial"
	"github.com/nearbyhouses/nearby/utils/httputils"
)

// Messages carried by failed results.
const (
	ErrMsgMissingAddress = "missing address"
	ErrMsgNotFound       = "address not found"
	ErrMsgTimeout        = "geocoding timeout"
	ErrMsgCancelled      = "geocoding cancelled"
	ErrMsgGeneric        = "error processing address"

	// NoteSimplified marks a result obtained from the simplified address.
	NoteSimplified = "simplified address used"
)

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 25 * time.Second

// Result is the outcome of resolving one address.
type Result struct {
	Success     bool           `json:"success"`
	Coordinates *spatial.Point `json:"coordinates,omitempty"`
	DisplayName string         `json:"display_name"`
	Note        string         `json:"note,omitempty"`
	Error       string         `json:"error,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
}

// Match is the best candidate returned by a provider.
type Match struct {
	Point       spatial.Point
	DisplayName string
}

// Provider looks up a single best match for a query. It returns (nil, nil)
// when the provider has no candidate.
type Provider interface {
	Search(ctx context.Context, query string) (*Match, error)
	Name() string
}

// Options configures a Geocoder.
type Options struct {
	// Timeout bounds each provider call; defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Geocoder resolves addresses through a Provider.
type Geocoder struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Geocoder over provider.
func New(provider Provider, opts Options) *Geocoder {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Geocoder{
		provider: provider,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With(slog.String("provider", provider.Name())),
	}
}

// SimplifyAddress returns the text before the first comma, trimmed.
func SimplifyAddress(address string) string {
	head, _, _ := strings.Cut(address, ",")

	return strings.TrimSpace(head)
}

// Resolve geocodes address. It issues one provider call, plus one more with
// the simplified address when the first finds nothing.
func (g *Geocoder) Resolve(ctx context.Context, address string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "geocoding panicked", slog.Any("panic", r))
			result = failure(ErrMsgGeneric, http.StatusInternalServerError)
		}
	}()

	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return failure(ErrMsgMissingAddress, http.StatusBadRequest)
	}

	match, err := g.search(ctx, address)
	if err != nil {
		return g.failed(ctx, address, err)
	}

	if match != nil {
		return success(match, "")
	}

	simplified := SimplifyAddress(address)
	if simplified == "" || simplified == trimmed {
		g.logger.InfoContext(ctx, "address not found", slog.String("address", address))

		return failure(ErrMsgNotFound, http.StatusNotFound)
	}

	g.logger.InfoContext(ctx, "no match, retrying with simplified address",
		slog.String("address", address), slog.String("simplified", simplified))

	match, err = g.search(ctx, simplified)
	if err != nil {
		return g.failed(ctx, simplified, err)
	}

	if match != nil {
		return success(match, NoteSimplified)
	}

	g.logger.InfoContext(ctx, "address not found", slog.String("address", address))

	return failure(ErrMsgNotFound, http.StatusNotFound)
}

func (g *Geocoder) search(ctx context.Context, query string) (*Match, error) {
	ctx, cancel := httputils.WithTimeout(ctx, g.timeout)
	defer cancel()

	match, err := g.provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if match != nil && !match.Point.Valid() {
		return nil, &GeocodingError{
			Type:    ErrorTypeDecode,
			Message: fmt.Sprintf("provider returned invalid coordinates %s", match.Point),
		}
	}

	return match, nil
}

// failed maps a provider error to a Result. An upstream HTTP status takes
// precedence so that callers see the status the provider actually sent.
func (g *Geocoder) failed(ctx context.Context, query string, err error) Result {
	attrs := []any{slog.String("query", query), slog.Any("error", err)}

	switch {
	case IsRateLimitError(err):
		attrs = append(attrs, slog.String("reason", "rate_limit"))
	case IsQuotaExceededError(err):
		attrs = append(attrs, slog.String("reason", "quota_exceeded"))
	case IsNotFoundError(err):
		attrs = append(attrs, slog.String("reason", "endpoint_not_found"))
	}

	g.logger.WarnContext(ctx, "geocoding failed", attrs...)

	var geoErr *GeocodingError
	if errors.As(err, &geoErr) && geoErr.StatusCode != 0 {
		return failure(fmt.Sprintf("geocoding service error: %d", geoErr.StatusCode), geoErr.StatusCode)
	}

	switch {
	case IsCancelledError(err):
		return failure(ErrMsgCancelled, http.StatusInternalServerError)
	case IsTimeoutError(err):
		return failure(ErrMsgTimeout, http.StatusRequestTimeout)
	default:
		return failure(ErrMsgGeneric, http.StatusInternalServerError)
	}
}

func success(match *Match, note string) Result {
	point := match.Point

	return Result{
		Success:     true,
		Coordinates: &point,
		DisplayName: match.DisplayName,
		Note:        note,
	}
}

func failure(msg string, status int) Result {
	return Result{
		Success:    false,
		Error:      msg,
		StatusCode: status,
	}
}
