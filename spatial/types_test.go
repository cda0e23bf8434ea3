// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanarDistance(t *testing.T) {
	origin := Point{Lat: 38.8977, Lng: -77.0365}

	tests := []struct {
		name  string
		other Point
		want  float64
	}{
		{name: "same point", other: origin, want: 0},
		{name: "one thousandth north", other: Point{Lat: 38.8987, Lng: -77.0365}, want: 111.32},
		{name: "one thousandth east", other: Point{Lat: 38.8977, Lng: -77.0355}, want: 111.32},
		{name: "diagonal", other: Point{Lat: 38.8980, Lng: -77.0361}, want: 0.0005 * MetersPerDegree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, origin.PlanarDistance(tt.other), 1e-6)
			assert.InDelta(t, tt.want, Planar(origin, tt.other), 1e-6)
		})
	}
}

func TestHaversineDistance(t *testing.T) {
	// Montevideo, Plaza Independencia to Palacio Legislativo: about 2 km.
	a := Point{Lat: -34.9066, Lng: -56.1992}
	b := Point{Lat: -34.8913, Lng: -56.1872}

	d := a.HaversineDistance(b)
	assert.InDelta(t, 2020, d, 30)
	assert.InDelta(t, d, b.HaversineDistance(a), 1e-9)

	// At mid latitudes the planar approximation overestimates east-west
	// separation, which is the documented limit of that method.
	east := Point{Lat: 60, Lng: 10.001}
	west := Point{Lat: 60, Lng: 10}
	assert.Greater(t, east.PlanarDistance(west), 1.9*east.HaversineDistance(west))
}

func TestParseDistanceMethod(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 0.001, Lng: 0}

	for _, name := range []string{"", "planar", " PLANAR "} {
		fn, err := ParseDistanceMethod(name)
		require.NoError(t, err, name)
		assert.InDelta(t, a.PlanarDistance(b), fn(a, b), 1e-9)
	}

	fn, err := ParseDistanceMethod("haversine")
	require.NoError(t, err)
	assert.InDelta(t, a.HaversineDistance(b), fn(a, b), 1e-9)

	_, err = ParseDistanceMethod("vincenty")
	assert.Error(t, err)
}

func TestRoundMeters(t *testing.T) {
	assert.InDelta(t, 12.3, RoundMeters(12.34), 1e-9)
	assert.InDelta(t, 12.4, RoundMeters(12.35), 1e-9)
	assert.InDelta(t, 0.0, RoundMeters(0.04), 1e-9)
}

func TestValid(t *testing.T) {
	assert.True(t, Point{Lat: 38.8977, Lng: -77.0365}.Valid())
	assert.True(t, Point{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -181}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: math.Inf(1)}.Valid())
}

func TestCell(t *testing.T) {
	p := Point{Lat: 38.8977, Lng: -77.0365}

	cell, err := p.Cell(CellResolution)
	require.NoError(t, err)
	assert.Len(t, cell, 15)

	again, err := p.Cell(CellResolution)
	require.NoError(t, err)
	assert.Equal(t, cell, again)

	_, err = p.Cell(16)
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "(38.897700, -77.036500)", Point{Lat: 38.8977, Lng: -77.0365}.String())
}
