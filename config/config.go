// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the nearby configuration from built-in defaults, an
// optional YAML file and NEARBY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/text/language"
)

// EnvPrefix marks the environment variables read as configuration.
const EnvPrefix = "NEARBY_"

// Geocoding providers.
const (
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
)

// Config is the full application configuration.
type Config struct {
	Log struct {
		Level  string `koanf:"level" validate:"oneof=debug info warn error"`
		Format string `koanf:"format" validate:"oneof=text json"`
	} `koanf:"log"`

	HTTP struct {
		ListenAddr        string        `koanf:"listenAddr" validate:"required"`
		ReadHeaderTimeout time.Duration `koanf:"readHeaderTimeout" validate:"gte=0"`
		ShutdownTimeout   time.Duration `koanf:"shutdownTimeout" validate:"gt=0"`
		CORSOrigins       []string      `koanf:"corsOrigins" validate:"dive,required"`
		StaticDir         string        `koanf:"staticDir"`
		// Trace dumps outbound requests and responses at debug level.
		Trace     bool `koanf:"trace"`
		TraceBody bool `koanf:"traceBody"`
	} `koanf:"http"`

	Lookup struct {
		DefaultRadius float64 `koanf:"defaultRadius" validate:"gt=0,ltefield=MaxRadius"`
		MaxRadius     float64 `koanf:"maxRadius" validate:"gt=0"`
		Distance      string  `koanf:"distance" validate:"oneof=planar haversine"`
		// CellResolution is the H3 resolution attached to houses. Zero selects
		// the default and -1 disables cells.
		CellResolution int `koanf:"cellResolution" validate:"min=-1,max=15"`
	} `koanf:"lookup"`

	Geocoder struct {
		Provider string        `koanf:"provider" validate:"oneof=nominatim google"`
		Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
		Language string        `koanf:"language" validate:"omitempty,langtag"`
		// UserAgent defaults to nearby/<version> with the project URL.
		UserAgent string `koanf:"userAgent"`

		Nominatim struct {
			URL string `koanf:"url" validate:"omitempty,url"`
		} `koanf:"nominatim"`

		Google struct {
			APIKey         string `koanf:"apiKey"`
			Endpoint       string `koanf:"endpoint" validate:"omitempty,url"`
			Region         string `koanf:"region"`
			ProjectID      string `koanf:"projectId"`
			KeyDisplayName string `koanf:"keyDisplayName"`
		} `koanf:"google"`
	} `koanf:"geocoder"`

	Overpass struct {
		URL     string        `koanf:"url" validate:"omitempty,url"`
		Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
		// QueryTimeout is the [timeout:N] sent to the server.
		QueryTimeout time.Duration `koanf:"queryTimeout" validate:"gte=1s"`
	} `koanf:"overpass"`
}

// defaults mirrors Config. Every key must be present so that environment
// variables can be aligned with the camelCase names.
func defaults() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"http": map[string]any{
			"listenAddr":        ":8080",
			"readHeaderTimeout": "10s",
			"shutdownTimeout":   "15s",
			"corsOrigins":       []string{},
			"staticDir":         "",
			"trace":             false,
			"traceBody":         false,
		},
		"lookup": map[string]any{
			"defaultRadius":  100.0,
			"maxRadius":      1000.0,
			"distance":       "planar",
			"cellResolution": 12,
		},
		"geocoder": map[string]any{
			"provider":  ProviderNominatim,
			"timeout":   "25s",
			"userAgent": "",
			"language":  "en",
			"nominatim": map[string]any{
				"url": "https://nominatim.openstreetmap.org",
			},
			"google": map[string]any{
				"apiKey":         "",
				"endpoint":       "",
				"region":         "",
				"projectId":      "",
				"keyDisplayName": "",
			},
		},
		"overpass": map[string]any{
			"url":          "https://overpass-api.de/api/interpreter",
			"timeout":      "30s",
			"queryTimeout": "25s",
		},
	}
}

// Options controls Load.
type Options struct {
	// File is an optional YAML file. A missing file is an error when set.
	File string
	// DotEnv lists .env files to load into the process environment first.
	// Missing files are ignored.
	DotEnv []string
	// Environ replaces os.Environ, for tests.
	Environ func() []string
}

// Load builds the configuration and validates it.
func Load(opts Options) (*Config, error) {
	for _, f := range opts.DotEnv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", opts.File, err)
		}
	}

	known := k.Raw()

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: opts.Environ,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), known), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: strings.EqualFold,
		},
	}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("langtag", func(fl validator.FieldLevel) bool {
		_, err := language.Parse(fl.Field().String())

		return err == nil
	}); err != nil {
		panic(err)
	}

	return v
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// canonicalizeEnvKey maps an environment key such as HTTP_LISTEN_ADDR to the
// koanf path http.listenAddr. Underscore separated segments are joined
// greedily when their concatenation names a known key; unknown segments are
// kept lowercased.
func canonicalizeEnvKey(rawKey string, known map[string]any) string {
	segments := strings.FieldsFunc(strings.ToLower(rawKey), func(r rune) bool { return r == '_' })
	canonical := make([]string, 0, len(segments))
	current := known

	for i := 0; i < len(segments); {
		matched, next, width := longestKnownRun(current, segments[i:])
		if width == 0 {
			canonical = append(canonical, segments[i])
			current = nil
			i++

			continue
		}

		canonical = append(canonical, matched)
		current = next
		i += width
	}

	return strings.Join(canonical, ".")
}

// longestKnownRun finds the longest prefix of segments whose concatenation
// matches a key of current, ignoring case and punctuation.
func longestKnownRun(current map[string]any, segments []string) (matched string, next map[string]any, width int) {
	if len(current) == 0 {
		return "", nil, 0
	}

	for n := len(segments); n > 0; n-- {
		needle := strings.Join(segments[:n], "")

		for key, value := range current {
			if normalizeToken(key) != needle {
				continue
			}

			child, _ := value.(map[string]any)

			return key, child, n
		}
	}

	return "", nil, 0
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
