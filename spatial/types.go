// Copyright 2025 The Nearby Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the coordinate type shared by the geocoder and the
// building locator, together with the distance functions used to rank
// buildings around an origin.
package spatial

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/uber/h3-go/v4"
)

// MetersPerDegree is the length of one degree of latitude, used by the planar
// approximation.
const MetersPerDegree = 111320.0

// CellResolution is the H3 resolution attached to buildings. At 12 a cell is
// roughly 300 m², about the footprint of a house.
const CellResolution = 12

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point with 6 decimals.
func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// Valid reports whether the point is a finite coordinate inside the WGS84
// ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}

	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p Point) orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// PlanarDistance is the Euclidean distance in degrees scaled by
// MetersPerDegree. Longitude degrees are treated as latitude degrees, so the
// result overestimates east-west separation by 1/cos(lat). Only use it for
// radii of a few hundred meters away from the poles.
func (p Point) PlanarDistance(other Point) float64 {
	return planar.Distance(p.orb(), other.orb()) * MetersPerDegree
}

// HaversineDistance calculates the great-circle distance between two points
// in meters.
func (p Point) HaversineDistance(other Point) float64 {
	return geo.DistanceHaversine(p.orb(), other.orb())
}

// Cell returns the H3 index containing the point at the given resolution.
func (p Point) Cell(res int) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return "", fmt.Errorf("converting %s to h3 cell at res %d: %w", p, res, err)
	}

	return cell.String(), nil
}

// DistanceFunc returns the distance in meters between two points.
type DistanceFunc func(a, b Point) float64

// Planar and Haversine adapt the Point methods to DistanceFunc.
var (
	Planar    DistanceFunc = Point.PlanarDistance
	Haversine DistanceFunc = Point.HaversineDistance
)

// Distance method names accepted by ParseDistanceMethod.
const (
	MethodPlanar    = "planar"
	MethodHaversine = "haversine"
)

// ParseDistanceMethod maps a configured method name to its DistanceFunc.
// The empty string selects the planar approximation.
func ParseDistanceMethod(name string) (DistanceFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MethodPlanar:
		return Planar, nil
	case MethodHaversine:
		return Haversine, nil
	default:
		return nil, fmt.Errorf("spatial: unknown distance method %q", name)
	}
}

// RoundMeters rounds a distance to one decimal place.
func RoundMeters(m float64) float64 {
	return math.Round(m*10) / 10
}
