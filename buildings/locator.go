// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildings finds houses and other buildings near a coordinate using
// the OpenStreetMap Overpass API.
package buildings

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nearbyhouses/nearby/spatial"
	"github.com/nearbyhouses/nearby/utils/httputils"
)

// DefaultTimeout bounds a single FindNearby call.
const DefaultTimeout = 30 * time.Second

// Building is a normalized nearby building.
type Building struct {
	ID             int64   `json:"id"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Address        string  `json:"address"`
	Type           string  `json:"type"`
	DistanceMeters float64 `json:"distance_meters"`
	Distance       string  `json:"distance"`
	Cell           string  `json:"cell,omitempty"`
}

// Point returns the building coordinate.
func (b Building) Point() spatial.Point {
	return spatial.Point{Lat: b.Lat, Lng: b.Lng}
}

// DistanceLabel renders a distance the way it is shown to users.
func DistanceLabel(meters float64) string {
	return fmt.Sprintf("%.1fm away", meters)
}

// ElementSource returns raw map elements around a point.
type ElementSource interface {
	Elements(ctx context.Context, origin spatial.Point, radiusMeters float64) ([]Element, error)
}

// LocatorOptions configures a Locator.
type LocatorOptions struct {
	// Distance defaults to spatial.Planar.
	Distance spatial.DistanceFunc
	Timeout  time.Duration
	// CellResolution is the H3 resolution of Building.Cell; zero selects
	// spatial.CellResolution and a negative value disables cells.
	CellResolution int
	Logger         *slog.Logger
}

// Locator lists buildings around a coordinate.
type Locator struct {
	source   ElementSource
	distance spatial.DistanceFunc
	timeout  time.Duration
	cellRes  int
	logger   *slog.Logger
}

// NewLocator creates a Locator over source.
func NewLocator(source ElementSource, opts LocatorOptions) *Locator {
	if opts.Distance == nil {
		opts.Distance = spatial.Planar
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.CellResolution == 0 {
		opts.CellResolution = spatial.CellResolution
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Locator{
		source:   source,
		distance: opts.Distance,
		timeout:  opts.Timeout,
		cellRes:  opts.CellResolution,
		logger:   opts.Logger,
	}
}

// FindNearby returns the buildings within radiusMeters of origin, nearest
// first. Failures are logged and yield an empty list; the result is never nil.
func (l *Locator) FindNearby(ctx context.Context, origin spatial.Point, radiusMeters float64) []Building {
	if !(radiusMeters > 0) {
		l.logger.DebugContext(ctx, "ignoring non-positive radius", slog.Float64("radius", radiusMeters))

		return []Building{}
	}

	ctx, cancel := httputils.WithTimeout(ctx, l.timeout)
	defer cancel()

	elements, err := l.source.Elements(ctx, origin, radiusMeters)
	if err != nil {
		l.logger.WarnContext(ctx, "building lookup failed",
			slog.String("origin", origin.String()),
			slog.Float64("radius", radiusMeters),
			slog.Any("error", err))

		return []Building{}
	}

	return l.rank(origin, radiusMeters, elements)
}

// rank normalizes elements, drops the ones outside the radius and sorts the
// rest by distance. Ties keep source order.
func (l *Locator) rank(origin spatial.Point, radiusMeters float64, elements []Element) []Building {
	found := make([]Building, 0, len(elements))
	skipped := 0

	for _, e := range elements {
		b, ok := Normalize(e)
		if !ok {
			skipped++

			continue
		}

		b.DistanceMeters = spatial.RoundMeters(l.distance(origin, b.Point()))
		if b.DistanceMeters > radiusMeters {
			continue
		}

		b.Distance = DistanceLabel(b.DistanceMeters)

		if l.cellRes >= 0 {
			cell, err := b.Point().Cell(l.cellRes)
			if err != nil {
				l.logger.Debug("no cell for building", slog.Int64("id", b.ID), slog.Any("error", err))
			} else {
				b.Cell = cell
			}
		}

		found = append(found, b)
	}

	if skipped > 0 {
		l.logger.Debug("discarded elements without coordinates", slog.Int("count", skipped))
	}

	slices.SortStableFunc(found, func(a, b Building) int {
		return cmp.Compare(a.DistanceMeters, b.DistanceMeters)
	})

	return found
}
