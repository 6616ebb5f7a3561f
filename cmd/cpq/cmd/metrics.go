package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics [endpoint]",
	Short: "Show per-endpoint API call metrics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().Bool("reset", false, "clear all recorded metrics")
	metricsCmd.Flags().Bool("table", false, "print a table instead of --output")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := a.perf.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Metrics cleared")
		return nil
	}

	if len(args) == 1 {
		m, err := a.perf.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), m)
	}

	all, err := a.perf.List(ctx)
	if err != nil {
		return err
	}
	if table, _ := cmd.Flags().GetBool("table"); !table {
		return writeOutput(cmd.OutOrStdout(), all)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tCALLS\tAVG MS\tTOTAL MS\tSLOW")
	for _, m := range all {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%d\n", m.Endpoint, m.Calls, m.AvgTimeMs, m.TotalTimeMs, m.SlowCalls)
	}
	return w.Flush()
}
