// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/text/language"

	"github.com/nearbyhouses/nearby/buildings"
	"github.com/nearbyhouses/nearby/config"
	"github.com/nearbyhouses/nearby/geocode"
	"github.com/nearbyhouses/nearby/lookup"
	"github.com/nearbyhouses/nearby/spatial"
	"github.com/nearbyhouses/nearby/utils/httputils"
)

// keyLookup resolves Google Maps keys through ADC; nil uses the API Keys
// service.
var keyLookup geocode.KeyLookup

func userAgent(c *config.Config) string {
	if c.Geocoder.UserAgent != "" {
		return c.Geocoder.UserAgent
	}

	return fmt.Sprintf("nearby/%s (+https://github.com/nearbyhouses/nearby)", Version)
}

// acceptLanguage canonicalizes the configured tag, e.g. "EN-us" to "en-US".
func acceptLanguage(c *config.Config) string {
	if c.Geocoder.Language == "" {
		return ""
	}

	tag, err := language.Parse(c.Geocoder.Language)
	if err != nil {
		return c.Geocoder.Language
	}

	return tag.String()
}

// newLookupService wires geocoder, building locator and orchestrator from c.
func newLookupService(ctx context.Context, c *config.Config, logger *slog.Logger) (*lookup.Service, error) {
	lang := acceptLanguage(c)

	client := httputils.NewClient(httputils.ClientOptions{
		UserAgent:           userAgent(c),
		AcceptLanguage:      lang,
		Logger:              logger,
		EnableHTTPTrace:     c.HTTP.Trace,
		EnableHTTPBodyTrace: c.HTTP.TraceBody,
	})

	provider, err := newProvider(ctx, c, lang, client, logger)
	if err != nil {
		return nil, err
	}

	distance, err := spatial.ParseDistanceMethod(c.Lookup.Distance)
	if err != nil {
		return nil, err
	}

	geocoder := geocode.New(provider, geocode.Options{
		Timeout: c.Geocoder.Timeout,
		Logger:  logger,
	})

	locator := buildings.NewLocator(
		buildings.NewOverpassClient(c.Overpass.URL, c.Overpass.QueryTimeout, client),
		buildings.LocatorOptions{
			Distance:       distance,
			Timeout:        c.Overpass.Timeout,
			CellResolution: c.Lookup.CellResolution,
			Logger:         logger,
		},
	)

	logger.Debug("lookup pipeline ready",
		slog.String("provider", provider.Name()),
		slog.String("distance", c.Lookup.Distance),
		slog.String("overpass", c.Overpass.URL))

	return lookup.NewService(geocoder, locator, logger), nil
}

func newProvider(
	ctx context.Context,
	c *config.Config,
	lang string,
	client *http.Client,
	logger *slog.Logger,
) (geocode.Provider, error) {
	switch c.Geocoder.Provider {
	case config.ProviderGoogle:
		g := c.Geocoder.Google

		key, err := geocode.ResolveGoogleAPIKey(ctx, g.APIKey, g.ProjectID, g.KeyDisplayName, keyLookup, logger)
		if err != nil {
			return nil, err
		}

		return geocode.NewGoogleMapsProvider(geocode.GoogleMapsOptions{
			APIKey:   key,
			Endpoint: g.Endpoint,
			Region:   g.Region,
			Language: lang,
		}, client), nil
	case config.ProviderNominatim, "":
		return geocode.NewNominatimProvider(c.Geocoder.Nominatim.URL, lang, client), nil
	default:
		return nil, fmt.Errorf("unknown geocoding provider %q", c.Geocoder.Provider)
	}
}
