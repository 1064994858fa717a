package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/exposure/internal/clients/yahoo"
	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/marketdata"
	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/modules/validation"
	"github.com/aristath/exposure/pkg/logger"
)

// rootOptions holds the flags shared by every subcommand
type rootOptions struct {
	file         string
	jsonOutput   bool
	prices       []string
	betas        []string
	method       string
	riskFreeRate float64
	volatility   float64
	volSource    string
	asOf         string
	live         bool
	logLevel     string

	log zerolog.Logger // set by loadPortfolio
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "exposure",
		Short: "Portfolio exposure and price-shock analysis",
		Long: `exposure reads a broker CSV export and reports the portfolio's market
exposure, counting stocks at their value and options at their delta-adjusted
notional.

Examples:
  exposure summary --file positions.csv
  exposure summary --file positions.csv --price AAPL=152.30 --beta TSLA=2.1
  exposure simulate --file positions.csv --changes -0.2,-0.1,0,0.1,0.2 --json`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "", "Broker CSV export (- for stdin)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print JSON instead of a table")
	flags.StringArrayVar(&opts.prices, "price", nil, "Override a price, TICKER=PRICE (repeatable)")
	flags.StringArrayVar(&opts.betas, "beta", nil, "Override a beta, TICKER=BETA (repeatable)")
	flags.StringVar(&opts.method, "method", string(options.MethodBinomial), "Delta method (binomial|black_scholes|simple)")
	flags.Float64Var(&opts.riskFreeRate, "rate", options.DefaultRiskFreeRate, "Annual risk-free rate")
	flags.Float64Var(&opts.volatility, "volatility", options.DefaultVolatility, "Flat annual volatility")
	flags.StringVar(&opts.volSource, "vol-source", string(portfolio.VolatilityFlat), "Volatility source (flat|implied|historical)")
	flags.StringVar(&opts.asOf, "as-of", "", "Valuation date, YYYY-MM-DD (default today)")
	flags.BoolVar(&opts.live, "live", false, "Fetch missing betas and prices from the chart API")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
	_ = root.MarkPersistentFlagRequired("file")

	root.AddCommand(newSummaryCmd(opts), newSimulateCmd(opts))
	return root
}

// loadPortfolio reads the CSV and runs it through the assembly pipeline.
func (o *rootOptions) loadPortfolio(ctx context.Context, cmd *cobra.Command) (*portfolio.Service, *portfolio.Result, error) {
	log := logger.New(logger.Config{Level: o.logLevel, Pretty: true, Output: cmd.ErrOrStderr()})
	o.log = log

	svc, err := o.newService(log)
	if err != nil {
		return nil, nil, err
	}

	rows, err := o.readRows(cmd.InOrStdin())
	if err != nil {
		return nil, nil, err
	}

	result, err := svc.ProcessPortfolio(ctx, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to process portfolio: %w", err)
	}
	for _, s := range result.Skipped {
		log.Warn().Int("row", s.Index).Str("symbol", s.Symbol).Str("reason", s.Reason).Msg("Skipped row")
	}
	return svc, result, nil
}

func (o *rootOptions) readRows(stdin io.Reader) ([]validation.Row, error) {
	var r io.Reader = stdin
	if o.file != "-" {
		f, err := os.Open(o.file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", o.file, err)
		}
		defer f.Close()
		r = f
	}

	rows, err := validation.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", o.file, err)
	}
	return rows, nil
}

func (o *rootOptions) newService(log zerolog.Logger) (*portfolio.Service, error) {
	method, err := options.ParseMethod(o.method)
	if err != nil {
		return nil, err
	}
	volSource, err := portfolio.ParseVolatilitySource(o.volSource)
	if err != nil {
		return nil, err
	}
	now, err := o.clock()
	if err != nil {
		return nil, err
	}
	prices, err := parseOverrides(o.prices)
	if err != nil {
		return nil, fmt.Errorf("invalid --price: %w", err)
	}
	betas, err := parseOverrides(o.betas)
	if err != nil {
		return nil, fmt.Errorf("invalid --beta: %w", err)
	}

	calc, err := options.NewCalculator(options.Config{
		Method:       method,
		RiskFreeRate: o.riskFreeRate,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}

	var (
		betaFallback domain.BetaProvider
		priceNext    domain.PriceFetcher
		vols         domain.VolatilityProvider
	)
	if o.live {
		client := yahoo.NewClient(nil, "", 0, log)
		betaFallback = marketdata.NewBetaService(client, nil, "", 0, log)
		priceNext = client
		vols = marketdata.NewVolatilityService(client, 0, log)
	}
	provider := marketdata.NewStaticProvider(prices, betas, betaFallback, priceNext)

	return portfolio.NewService(calc, provider, provider, vols, nil, portfolio.Config{
		RiskFreeRate:      o.riskFreeRate,
		DefaultVolatility: o.volatility,
		VolatilitySource:  volSource,
		Now:               now,
	}, log), nil
}

// clock returns the valuation clock. --as-of pins it to 16:00 UTC on the
// given day.
func (o *rootOptions) clock() (func() time.Time, error) {
	if o.asOf == "" {
		return time.Now, nil
	}
	day, err := time.Parse("2006-01-02", o.asOf)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of %q: %w", o.asOf, err)
	}
	at := day.Add(16 * time.Hour)
	return func() time.Time { return at }, nil
}

// parseOverrides parses TICKER=VALUE pairs.
func parseOverrides(pairs []string) (map[string]float64, error) {
	values := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		ticker, raw, ok := strings.Cut(pair, "=")
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if !ok || ticker == "" {
			return nil, fmt.Errorf("expected TICKER=VALUE, got %q", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value for %s: %w", ticker, err)
		}
		values[ticker] = v
	}
	return values, nil
}
