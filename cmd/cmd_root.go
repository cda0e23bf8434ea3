// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nearbyhouses/nearby/config"
)

var rootOptions = struct {
	ConfigFile    string
	LogLevel      string
	LogFormat     string
	HTTPTrace     bool
	HTTPBodyTrace bool
}{}

// Loaded by the root PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nearby",
	Short: "find the houses around an address",
	Long: `
nearby geocodes a free-text address and lists the buildings around it, using
OpenStreetMap data (Nominatim or Google Maps for geocoding, Overpass for the
buildings).

Configuration is read from the --config YAML file and NEARBY_* environment
variables, e.g. NEARBY_GEOCODER_PROVIDER=google.
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(config.Options{
		File:   rootOptions.ConfigFile,
		DotEnv: []string{".env"},
	})
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = strings.ToLower(rootOptions.LogLevel)
	}

	if flags.Changed("log-format") {
		c.Log.Format = rootOptions.LogFormat
	}

	if flags.Changed("http-trace") {
		c.HTTP.Trace = rootOptions.HTTPTrace
	}

	if flags.Changed("http-trace-body") {
		c.HTTP.TraceBody = rootOptions.HTTPBodyTrace
	}

	if err := c.Validate(); err != nil {
		return err
	}

	l, err := newLogger(cmd.ErrOrStderr(), c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}

	cfg, logger = c, l
	slog.SetDefault(l)

	return nil
}

// newLogger writes records with the short timestamp used across the CLI.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
			}

			return a
		},
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOptions.ConfigFile, "config", "", "YAML configuration file")
	flags.StringVar(&rootOptions.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVar(&rootOptions.LogFormat, "log-format", "text", "Log format: text or json")
	flags.BoolVar(&rootOptions.HTTPTrace, "http-trace", false, "Display outbound HTTP requests-responses")
	flags.BoolVar(&rootOptions.HTTPBodyTrace, "http-trace-body", false, "Display outbound HTTP requests-responses bodies")
}
