// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// DefaultKeyDisplayName is the display name of the Maps key looked up through
// Application Default Credentials.
const DefaultKeyDisplayName = "Nearby Geocoding Key"

// ErrNoAPIKey is returned when no Google Maps key could be obtained.
var ErrNoAPIKey = errors.New("google maps api key not configured")

// KeyLookup resolves the key secret from ADC. Replaced in tests.
type KeyLookup func(ctx context.Context, projectID, displayName string) (string, error)

// ResolveGoogleAPIKey returns configured when set. Otherwise it asks the API
// Keys service, authenticated with Application Default Credentials, for the
// key named displayName.
func ResolveGoogleAPIKey(
	ctx context.Context,
	configured, projectID, displayName string,
	lookup KeyLookup,
	logger *slog.Logger,
) (string, error) {
	if configured != "" {
		return configured, nil
	}

	if lookup == nil {
		lookup = apiKeyFromADC
	}

	if displayName == "" {
		displayName = DefaultKeyDisplayName
	}

	logger.InfoContext(ctx, "google maps api key not set, attempting to retrieve it via ADC",
		slog.String("display_name", displayName))

	key, err := lookup(ctx, projectID, displayName)
	if err != nil {
		return "", errors.Join(ErrNoAPIKey, err)
	}

	logger.InfoContext(ctx, "retrieved google maps api key via ADC")

	return key, nil
}

func apiKeyFromADC(ctx context.Context, projectID, displayName string) (string, error) {
	if projectID == "" {
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", fmt.Errorf("finding default credentials: %w", err)
		}

		projectID = creds.ProjectID
	}

	if projectID == "" {
		return "", errors.New("no project id in default credentials, set geocoder.google.projectId")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.GetDisplayName() != displayName {
			continue
		}

		// ListKeys redacts the secret; it has to be fetched separately.
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.GetName()})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.GetKeyString() == "" {
			return "", fmt.Errorf("key %q found but its key string is empty", displayName)
		}

		return resp.GetKeyString(), nil
	}

	return "", fmt.Errorf("key with display name %q not found in project %s", displayName, projectID)
}
