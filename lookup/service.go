// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

// Package lookup chains geocoding and the building search into the single
// response served to clients.
package lookup

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/nearbyhouses/nearby/buildings"
	"github.com/nearbyhouses/nearby/geocode"
	"github.com/nearbyhouses/nearby/spatial"
)

// Messages returned to clients.
const (
	ErrMsgMissingAddress = "please provide an address"
	ErrMsgInvalidRadius  = "radius must be a positive number of meters"
	ErrMsgInternal       = "internal error while fetching nearby houses"
)

// Kind classifies a failed lookup. It is not serialized; the HTTP layer maps
// it to a status code.
type Kind int

// Lookup outcomes.
const (
	KindNone Kind = iota
	KindValidation
	KindNotFound
	KindUpstream
	KindTimeout
	KindInternal
)

var kindNames = map[Kind]string{
	KindNone:       "none",
	KindValidation: "validation",
	KindNotFound:   "not_found",
	KindUpstream:   "upstream",
	KindTimeout:    "timeout",
	KindInternal:   "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Response is the outcome of one lookup.
type Response struct {
	AddressFound bool                 `json:"address_found"`
	Coordinates  *spatial.Point       `json:"coordinates,omitempty"`
	FoundAddress string               `json:"found_address,omitempty"`
	Note         string               `json:"note,omitempty"`
	Houses       []buildings.Building `json:"houses"`
	Error        string               `json:"error,omitempty"`
	Kind         Kind                 `json:"-"`
}

// Resolver geocodes an address. *geocode.Geocoder implements it.
type Resolver interface {
	Resolve(ctx context.Context, address string) geocode.Result
}

// Finder lists buildings around a point. *buildings.Locator implements it.
type Finder interface {
	FindNearby(ctx context.Context, origin spatial.Point, radiusMeters float64) []buildings.Building
}

// Service runs lookups.
type Service struct {
	resolver Resolver
	finder   Finder
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(resolver Resolver, finder Finder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{resolver: resolver, finder: finder, logger: logger}
}

// Lookup geocodes address and lists the buildings within radiusMeters of it.
// It never panics; every failure is described by the returned Response.
func (s *Service) Lookup(ctx context.Context, address string, radiusMeters float64) (resp Response) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "lookup panicked",
				slog.String("address", address), slog.Any("panic", r))

			resp = Failed(KindInternal, ErrMsgInternal)
		}

		s.logger.InfoContext(ctx, "lookup",
			slog.String("address", address),
			slog.Float64("radius", radiusMeters),
			slog.Bool("found", resp.AddressFound),
			slog.Int("houses", len(resp.Houses)),
			slog.String("kind", resp.Kind.String()),
			slog.Duration("elapsed", time.Since(start)))
	}()

	if strings.TrimSpace(address) == "" {
		return Failed(KindValidation, ErrMsgMissingAddress)
	}

	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return Failed(KindValidation, ErrMsgInvalidRadius)
	}

	geo := s.resolver.Resolve(ctx, address)
	if !geo.Success || geo.Coordinates == nil {
		return Failed(geocodeKind(geo), geo.Error)
	}

	houses := s.finder.FindNearby(ctx, *geo.Coordinates, radiusMeters)
	if houses == nil {
		houses = []buildings.Building{}
	}

	coords := *geo.Coordinates

	return Response{
		AddressFound: true,
		Coordinates:  &coords,
		FoundAddress: geo.DisplayName,
		Note:         geo.Note,
		Houses:       houses,
	}
}

// geocodeKind classifies a failed geocoding result. Only the geocoder's own
// verdicts map to validation or not found; any status relayed from the
// provider is an upstream failure.
func geocodeKind(geo geocode.Result) Kind {
	switch geo.Error {
	case geocode.ErrMsgMissingAddress:
		return KindValidation
	case geocode.ErrMsgNotFound:
		return KindNotFound
	case geocode.ErrMsgTimeout:
		return KindTimeout
	}

	switch geo.StatusCode {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUpstream
	}
}

// Failed builds the response for a failed lookup. An empty msg is replaced
// by the generic internal error.
func Failed(kind Kind, msg string) Response {
	if msg == "" {
		msg = ErrMsgInternal
	}

	return Response{
		AddressFound: false,
		Houses:       []buildings.Building{},
		Error:        msg,
		Kind:         kind,
	}
}
