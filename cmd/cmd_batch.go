// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nearbyhouses/nearby/lookup"
	"github.com/nearbyhouses/nearby/server"
)

var batchOptions = struct {
	Radius      float64
	Concurrency int
	Output      string
}{}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run lookups for every address in a file",
	Long: `Reads one address per line ("-" for stdin) and writes one JSON object per
address, in input order. Blank lines and lines starting with # are skipped.

$ nearby batch addresses.txt --radius 75 --concurrency 2 > houses.jsonl
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addresses, err := readAddresses(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		svc, err := newLookupService(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		radius := cfg.Lookup.DefaultRadius
		if cmd.Flags().Changed("radius") {
			radius = batchOptions.Radius
		}

		out := cmd.OutOrStdout()

		if batchOptions.Output != "" && batchOptions.Output != "-" {
			f, err := os.Create(batchOptions.Output)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer f.Close()

			out = f
		}

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(len(addresses),
				progressbar.OptionSetDescription("Looking up"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		found, err := runBatch(cmd.Context(), svc, addresses, radius, batchOptions.Concurrency, out, bar)
		if err != nil {
			return err
		}

		logger.Info("batch finished",
			slog.Int("addresses", len(addresses)),
			slog.Int("found", found),
			slog.Int("failed", len(addresses)-found))

		return nil
	},
}

type batchResult struct {
	Address string `json:"address"`
	lookup.Response
}

// readAddresses returns the non-empty, non-comment lines of path.
func readAddresses(stdin io.Reader, path string) ([]string, error) {
	r := stdin

	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening addresses: %w", err)
		}
		defer f.Close()

		r = f
	}

	var addresses []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		addresses = append(addresses, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading addresses: %w", err)
	}

	return addresses, nil
}

// runBatch looks up every address with at most concurrency calls in flight
// and writes the results in input order. It returns how many addresses were
// found.
func runBatch(
	ctx context.Context,
	svc server.Lookuper,
	addresses []string,
	radius float64,
	concurrency int,
	out io.Writer,
	bar *progressbar.ProgressBar,
) (int, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]batchResult, len(addresses))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, address := range addresses {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			results[i] = batchResult{Address: address, Response: svc.Lookup(ctx, address, radius)}

			if bar != nil {
				_ = bar.Add(1)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("batch interrupted: %w", err)
	}

	if bar != nil {
		_ = bar.Finish()
	}

	found := 0
	enc := json.NewEncoder(out)

	for _, r := range results {
		if r.AddressFound {
			found++
		}

		if err := enc.Encode(r); err != nil {
			return found, fmt.Errorf("writing result for %q: %w", r.Address, err)
		}
	}

	return found, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().Float64Var(&batchOptions.Radius, "radius", 0, "Search radius in meters (default from lookup.defaultRadius)")
	batchCmd.Flags().IntVar(&batchOptions.Concurrency, "concurrency", 1, "Number of lookups in flight")
	batchCmd.Flags().StringVarP(&batchOptions.Output, "output", "o", "", "Write results to a file instead of stdout")
}
