package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"cart-analytics/internal/reports"
)

func newReportCmd(c *cli) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:       "report <name>",
		Short:     "Print one named report as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: reports.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !slices.Contains(reports.Names(), name) {
				return fmt.Errorf("%w %q (see cartctl reports)", reports.ErrUnknownReport, name)
			}

			analytics, _, _, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := analytics.Report(name)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(rows)
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "Print JSON on a single line")
	return cmd
}

func newReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List report names",
		Args:  cobra.NoArgs,
		// Listing needs no configuration.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range reports.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
