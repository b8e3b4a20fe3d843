package main

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cart-analytics/internal/app"
	"cart-analytics/internal/pipeline"
	"cart-analytics/internal/source"
)

type buildFlags struct {
	out     string
	noSinks bool
}

func newBuildCmd(c *cli) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble the fact table and write it as CSV",
		Long: `Assemble one fact per order from the raw tables and write the result as CSV.

When WAREHOUSE_ENABLED or NOTIFY_ENABLED is set, the facts are also exported
to ClickHouse and a completion event is published to RabbitMQ. A summary of
rejected records and unmatched keys is printed at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, c, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "order_facts.csv", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&flags.noSinks, "no-sinks", false, "Skip the warehouse export and notification")
	return cmd
}

func runBuild(cmd *cobra.Command, c *cli, flags buildFlags) error {
	ctx := cmd.Context()

	analytics, fs, src, err := c.load(ctx)
	if err != nil {
		return err
	}

	if err := writeFacts(cmd.OutOrStdout(), flags.out, fs); err != nil {
		return err
	}

	if !flags.noSinks {
		sinks, err := app.OpenSinks(ctx, c.cfg, c.logger)
		if err != nil {
			return err
		}
		defer sinks.Close()

		if _, err := sinks.DeliverRun(ctx, src.Name(), analytics); err != nil {
			return err
		}
	}

	ps, err := analytics.PipelineSummary()
	if err != nil {
		return err
	}
	// Status output shares stderr with the logs when facts go to stdout.
	status := cmd.OutOrStdout()
	if flags.out == "-" {
		status = cmd.ErrOrStderr()
	}
	printRunSummary(status, flags.out, fs, ps.RejectedByEntity)
	return nil
}

func writeFacts(stdout io.Writer, path string, fs *pipeline.FactSet) error {
	if path == "-" {
		return source.WriteFactsCSV(stdout, fs.Facts)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := source.WriteFactsCSV(w, fs.Facts); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printRunSummary(w io.Writer, out string, fs *pipeline.FactSet, rejected map[string]int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", fs.RunID)
	fmt.Fprintf(tw, "facts\t%d\t-> %s\n", len(fs.Facts), out)
	fmt.Fprintf(tw, "duration\t%s\n", fs.Stats.Duration)

	for _, entity := range slices.Sorted(maps.Keys(rejected)) {
		fmt.Fprintf(tw, "rejected %s\t%d\n", entity, rejected[entity])
	}

	g := fs.Gaps
	for _, gap := range []struct {
		name string
		n    int
	}{
		{"missing customers", g.MissingCustomers},
		{"orphan items", g.OrphanItems},
		{"orphan payments", g.OrphanPayments},
		{"missing products", g.MissingProducts},
		{"untranslated orders", g.UntranslatedOrders},
		{"orders without items", g.OrdersWithoutItems},
		{"orders without payment", g.OrdersWithoutPayment},
	} {
		if gap.n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", gap.name, gap.n)
		}
	}
	tw.Flush()
}
