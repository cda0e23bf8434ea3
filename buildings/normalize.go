// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package buildings

import (
	"fmt"
	"strings"

	"github.com/nearbyhouses/nearby/spatial"
)

// OSM tag keys read during normalization.
const (
	TagStreet      = "addr:street"
	TagHouseNumber = "addr:housenumber"
	TagFullAddress = "addr:full"
	TagName        = "name"
	TagBuilding    = "building"
	TagAmenity     = "amenity"
)

// DefaultType is used when an element has neither a building nor an amenity
// tag.
const DefaultType = "building"

// LatLon is the coordinate encoding used by the Overpass JSON output.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is one entry of the Overpass "elements" array. Nodes carry their
// coordinate directly; ways and relations carry a center when the query asks
// for "out center".
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *LatLon           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Point returns the representative coordinate of the element.
func (e Element) Point() (spatial.Point, bool) {
	var p spatial.Point

	switch {
	case e.Center != nil:
		p = spatial.Point{Lat: e.Center.Lat, Lng: e.Center.Lon}
	case e.Lat != nil && e.Lon != nil:
		p = spatial.Point{Lat: *e.Lat, Lng: *e.Lon}
	default:
		return p, false
	}

	return p, p.Valid()
}

func (e Element) tag(key string) string {
	return strings.TrimSpace(e.Tags[key])
}

// AddressTier derives an address from an element, or "" when the tier does
// not apply.
type AddressTier func(e Element, p spatial.Point) string

// AddressTiers is the priority list applied by Normalize. The last tier
// always produces a value.
var AddressTiers = []AddressTier{
	streetAndNumber,
	fullAddress,
	name,
	synthesized,
}

func streetAndNumber(e Element, _ spatial.Point) string {
	street, number := e.tag(TagStreet), e.tag(TagHouseNumber)
	if street == "" || number == "" {
		return ""
	}

	return street + " " + number
}

func fullAddress(e Element, _ spatial.Point) string {
	return e.tag(TagFullAddress)
}

func name(e Element, _ spatial.Point) string {
	return e.tag(TagName)
}

func synthesized(_ Element, p spatial.Point) string {
	return fmt.Sprintf("Building at (%.6f, %.6f)", p.Lat, p.Lng)
}

// Address applies AddressTiers in order and returns the first non-empty
// result.
func Address(e Element, p spatial.Point) string {
	for _, tier := range AddressTiers {
		if addr := tier(e, p); addr != "" {
			return addr
		}
	}

	return synthesized(e, p)
}

// Type returns the building tag, falling back to the amenity tag.
func Type(e Element) string {
	if t := e.tag(TagBuilding); t != "" {
		return t
	}

	if t := e.tag(TagAmenity); t != "" {
		return t
	}

	return DefaultType
}

// Normalize turns an element into a Building without distance. It reports
// false for elements without a usable coordinate.
func Normalize(e Element) (Building, bool) {
	p, ok := e.Point()
	if !ok {
		return Building{}, false
	}

	return Building{
		ID:      e.ID,
		Lat:     p.Lat,
		Lng:     p.Lng,
		Address: Address(e, p),
		Type:    Type(e),
	}, true
}
