package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/exposure/internal/modules/simulator"
	"github.com/aristath/exposure/internal/utils"
)

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var (
		changes string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Reprice the portfolio across uniform price changes",
		Long: `simulate applies each change to every underlying at once, reprices the
options and reports the portfolio value and net exposure at each point.
Changes are fractions: -0.1 is a 10% drop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sweep, err := utils.ParseFloatList(changes)
			if err != nil {
				return fmt.Errorf("invalid --changes: %w", err)
			}

			svc, result, err := opts.loadPortfolio(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			sim := simulator.NewSimulator(svc, simulator.NewWorkerPool(workers), nil, opts.log)
			res, err := sim.Simulate(cmd.Context(), result.Groups, result.CashLike, result.PendingActivityValue, sweep)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSimulation(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&changes, "changes", "", "Comma-separated price changes (default -30% to +30% in 5% steps)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Scenario workers (default 4)")
	return cmd
}

func printSimulation(out io.Writer, res *simulator.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Change\tPortfolio value\tP/L\tNet exposure\t")
	for i, change := range res.Changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			percent(change*100),
			money(res.PortfolioValues[i]),
			money(res.PortfolioValues[i]-res.Baseline.PortfolioValue),
			money(res.NetExposures[i]),
		)
	}
	_ = tw.Flush()
}
