// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package buildings

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearbyhouses/nearby/spatial"
)

func ptr(f float64) *float64 { return &f }

func TestAddressTiers(t *testing.T) {
	p := spatial.Point{Lat: 38.8977, Lng: -77.0365}

	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{
			name: "street and number",
			tags: map[string]string{TagStreet: "Main St", TagHouseNumber: "12"},
			want: "Main St 12",
		},
		{
			name: "street and number win over full address and name",
			tags: map[string]string{
				TagStreet: "Main St", TagHouseNumber: "12",
				TagFullAddress: "12 Main St, Springfield", TagName: "Town Hall",
			},
			want: "Main St 12",
		},
		{
			name: "street without number falls through to full address",
			tags: map[string]string{TagStreet: "Main St", TagFullAddress: "12 Main St, Springfield"},
			want: "12 Main St, Springfield",
		},
		{
			name: "name",
			tags: map[string]string{TagHouseNumber: "12", TagName: "Town Hall"},
			want: "Town Hall",
		},
		{
			name: "whitespace values are ignored",
			tags: map[string]string{TagFullAddress: "   ", TagName: "\t"},
			want: "Building at (38.897700, -77.036500)",
		},
		{
			name: "no tags",
			tags: nil,
			want: "Building at (38.897700, -77.036500)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Address(Element{Tags: tt.tags}, p))
		})
	}
}

func TestType(t *testing.T) {
	assert.Equal(t, "house", Type(Element{Tags: map[string]string{TagBuilding: "house", TagAmenity: "cafe"}}))
	assert.Equal(t, "cafe", Type(Element{Tags: map[string]string{TagAmenity: "cafe"}}))
	assert.Equal(t, DefaultType, Type(Element{Tags: map[string]string{TagHouseNumber: "3"}}))
}

func TestElementPoint(t *testing.T) {
	tests := []struct {
		name   string
		elem   Element
		want   spatial.Point
		wantOK bool
	}{
		{
			name:   "way center",
			elem:   Element{Type: "way", Center: &LatLon{Lat: 1.5, Lon: 2.5}},
			want:   spatial.Point{Lat: 1.5, Lng: 2.5},
			wantOK: true,
		},
		{
			name:   "node coordinates",
			elem:   Element{Type: "node", Lat: ptr(-34.9), Lon: ptr(-56.16)},
			want:   spatial.Point{Lat: -34.9, Lng: -56.16},
			wantOK: true,
		},
		{
			name:   "center preferred over coordinates",
			elem:   Element{Lat: ptr(10), Lon: ptr(10), Center: &LatLon{Lat: 1, Lon: 2}},
			want:   spatial.Point{Lat: 1, Lng: 2},
			wantOK: true,
		},
		{
			name: "relation without center",
			elem: Element{Type: "relation"},
		},
		{
			name: "node with only latitude",
			elem: Element{Type: "node", Lat: ptr(1)},
		},
		{
			name: "out of range",
			elem: Element{Center: &LatLon{Lat: 95, Lon: 0}},
			want: spatial.Point{Lat: 95},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.elem.Point()
			assert.Equal(t, tt.wantOK, ok)

			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeDecodedElement(t *testing.T) {
	raw := `{
		"type": "way",
		"id": 123456,
		"center": {"lat": 38.8979, "lon": -77.0366},
		"tags": {"building": "house", "addr:street": "Main St", "addr:housenumber": "12"}
	}`

	var e Element
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	got, ok := Normalize(e)
	require.True(t, ok)

	want := Building{
		ID:      123456,
		Lat:     38.8979,
		Lng:     -77.0366,
		Address: "Main St 12",
		Type:    "house",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeDiscardsElementsWithoutPoint(t *testing.T) {
	_, ok := Normalize(Element{Type: "way", ID: 1, Tags: map[string]string{TagBuilding: "yes"}})
	assert.False(t, ok)
}
