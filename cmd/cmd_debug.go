// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nearbyhouses/nearby/buildings"
	"github.com/nearbyhouses/nearby/geocode"
	"github.com/nearbyhouses/nearby/spatial"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugSimplifyCmd = &cobra.Command{
	Use:   "simplify",
	Short: "Print the simplified form used when an address is not found",
	Long: `Reads one address per line, and prints in stdout the address followed by the
simplified address retried by the geocoder.

$ echo "Main St 12, Springfield, IL" | nearby debug simplify
Main St 12, Springfield, IL	Main St 12
`,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		return debugLines(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter addresses, one per line…", func(line string) string {
			return line + "\t" + geocode.SimplifyAddress(line)
		})
	},
}

var debugQueryCmd = &cobra.Command{
	Use:   "query <lat> <lng> <radius>",
	Short: "Print the Overpass query sent for a point",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nums [3]float64

		for i, arg := range args {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q: %w", arg, err)
			}

			nums[i] = f
		}

		origin := spatial.Point{Lat: nums[0], Lng: nums[1]}
		if !origin.Valid() {
			return fmt.Errorf("invalid coordinate %s", origin)
		}

		timeout := 25 * time.Second
		if cfg != nil {
			timeout = cfg.Overpass.QueryTimeout
		}

		fmt.Fprint(cmd.OutOrStdout(), buildings.BuildQuery(origin, nums[2], timeout))

		return nil
	},
}

var debugNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize Overpass elements read from stdin",
	Long: `Reads one Overpass element (JSON) per line, and prints in stdout the
normalized building, or the reason it was discarded.

$ echo '{"type":"node","id":1,"lat":1,"lon":2,"tags":{"name":"Kiosk"}}' | nearby debug normalize
`,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		return debugLines(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter Overpass elements, one per line…", func(line string) string {
			var e buildings.Element
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return fmt.Sprintf("%q", err)
			}

			b, ok := buildings.Normalize(e)
			if !ok {
				return fmt.Sprintf("%s/%d\tdiscarded: no usable coordinate", e.Type, e.ID)
			}

			s, err := json.Marshal(b)
			if err != nil {
				return fmt.Sprintf("%q", err)
			}

			return fmt.Sprintf("%s/%d\t\t%s", e.Type, e.ID, s)
		})
	},
}

// debugLines applies fn to every input line.
func debugLines(in io.Reader, out io.Writer, prompt string, fn func(string) string) error {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintln(os.Stderr, prompt)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fmt.Fprintln(out, fn(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugSimplifyCmd)
	debugCmd.AddCommand(debugQueryCmd)
	debugCmd.AddCommand(debugNormalizeCmd)
}
