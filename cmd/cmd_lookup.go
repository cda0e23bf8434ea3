// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nearbyhouses/nearby/lookup"
)

var lookupOptions = struct {
	Radius float64
	JSON   bool
}{}

var lookupCmd = &cobra.Command{
	Use:   "lookup <address>",
	Short: "List the houses around an address",
	Long: `Geocodes the address and prints the buildings within --radius meters,
nearest first.

$ nearby lookup "1600 Pennsylvania Ave NW, Washington, DC" --radius 50
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newLookupService(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		radius := cfg.Lookup.DefaultRadius
		if cmd.Flags().Changed("radius") {
			radius = lookupOptions.Radius
		}

		resp := svc.Lookup(cmd.Context(), strings.Join(args, " "), radius)

		out := cmd.OutOrStdout()
		if lookupOptions.JSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")

			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("encoding response: %w", err)
			}
		} else {
			printResponse(out, resp)
		}

		if !resp.AddressFound {
			return errors.New(resp.Error)
		}

		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

func printResponse(w io.Writer, resp lookup.Response) {
	if !resp.AddressFound {
		fmt.Fprintf(w, "No results: %s\n", resp.Error)

		return
	}

	fmt.Fprintf(w, "%s %s\n", resp.FoundAddress, resp.Coordinates)

	if resp.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", resp.Note)
	}

	if len(resp.Houses) == 0 {
		fmt.Fprintln(w, "No buildings found within the radius.")

		return
	}

	a, b, c := strings.Repeat("─", 10), strings.Repeat("─", 14), strings.Repeat("─", 50)
	fmt.Fprintf(w, "╭─%s─┬─%s─┬─%s─╮\n", a, b, c)
	fmt.Fprintf(w, "│ %10s │ %-14s │ %-50s │\n", "Distance", "Type", "Address")
	fmt.Fprintf(w, "├─%s─┼─%s─┼─%s─┤\n", a, b, c)

	for _, h := range resp.Houses {
		fmt.Fprintf(w, "│ %9.1fm │ %-14s │ %-50s │\n", h.DistanceMeters, truncate(h.Type, 14), truncate(h.Address, 50))
	}

	fmt.Fprintf(w, "╰─%s─┴─%s─┴─%s─╯\n", a, b, c)
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().Float64Var(&lookupOptions.Radius, "radius", 0, "Search radius in meters (default from lookup.defaultRadius)")
	lookupCmd.Flags().BoolVar(&lookupOptions.JSON, "json", false, "Print the response as JSON")
}
