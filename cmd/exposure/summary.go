package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aristath/exposure/internal/modules/portfolio"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var showGroups bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the portfolio exposure summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, result, err := opts.loadPortfolio(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printSummary(cmd.OutOrStdout(), result, showGroups)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showGroups, "groups", false, "Also list every position group")
	return cmd
}

func printSummary(out io.Writer, result *portfolio.Result, showGroups bool) {
	s := result.Summary
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "\tValue\tBeta-adjusted\t")
	fmt.Fprintf(tw, "Long\t%s\t%s\t\n", money(s.LongExposure.TotalExposure), money(s.LongExposure.TotalBetaAdjusted))
	fmt.Fprintf(tw, "Short\t%s\t%s\t\n", money(s.ShortExposure.TotalExposure), money(s.ShortExposure.TotalBetaAdjusted))
	fmt.Fprintf(tw, "Options\t%s\t%s\t\n", money(s.OptionsExposure.TotalExposure), money(s.OptionsExposure.TotalBetaAdjusted))
	fmt.Fprintf(tw, "Net market exposure\t%s\t\t\n", money(s.NetMarketExposure))
	fmt.Fprintf(tw, "Portfolio beta\t%s\t\t\n", decimal.NewFromFloat(s.PortfolioBeta).StringFixed(2))
	fmt.Fprintf(tw, "Short %%\t%s\t\t\n", percent(s.ShortPercentage))
	fmt.Fprintf(tw, "Cash-like (%d)\t%s\t\t\n", s.CashLikeCount, money(s.CashLikeValue))
	fmt.Fprintf(tw, "Cash %%\t%s\t\t\n", percent(s.CashPercentage))
	fmt.Fprintf(tw, "Pending activity\t%s\t\t\n", money(s.PendingActivityValue))
	fmt.Fprintf(tw, "Portfolio estimate\t%s\t\t\n", money(s.PortfolioEstimateValue))
	_ = tw.Flush()

	if showGroups && len(result.Groups) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Ticker\tBeta\tNet exposure\tBeta-adjusted\tOptions\t")
		for _, g := range result.Groups {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n",
				g.Ticker,
				decimal.NewFromFloat(g.Beta).StringFixed(2),
				money(g.NetExposure),
				money(g.BetaAdjustedExposure),
				len(g.OptionPositions),
			)
		}
		_ = tw.Flush()
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\n%d row(s) skipped\n", len(result.Skipped))
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
