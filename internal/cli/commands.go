// Package cli wires the pipeline stages into the stockpipe command tree.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marketml/stockpipe/config"
	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/collect"
	"github.com/marketml/stockpipe/internal/dataset"
	"github.com/marketml/stockpipe/internal/features"
	"github.com/marketml/stockpipe/internal/store"
	"github.com/marketml/stockpipe/internal/validate"
)

const version = "0.3.0"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "stockpipe",
		Short: "stockpipe - market data pipeline for direction-prediction datasets",
		Long: `stockpipe collects daily stock prices and company news, validates them,
and produces leakage-safe labeled datasets for next-day direction models.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newCollectCmd(cfg))
	rootCmd.AddCommand(newValidateCmd(cfg))
	rootCmd.AddCommand(newLabelsCmd(cfg))
	rootCmd.AddCommand(newSplitCmd(cfg))
	rootCmd.AddCommand(newNewsCmd(cfg))
	rootCmd.AddCommand(newFeaturesCmd(cfg))
	rootCmd.AddCommand(newSequencesCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	return rootCmd
}

// pipeline bundles the handles every subcommand needs.
type pipeline struct {
	cfg   *config.Config
	store *store.Store
	cal   *calendar.TradingCalendar
	std   *calendar.Standardizer
}

func openPipeline(cfg *config.Config) (*pipeline, error) {
	cal, err := calendar.New(cfg.MarketTimezone, cfg.Holidays)
	if err != nil {
		return nil, fmt.Errorf("build trading calendar: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &pipeline{
		cfg:   cfg,
		store: st,
		cal:   cal,
		std:   calendar.NewStandardizer(cal, cfg.CutoffHour),
	}, nil
}

func (p *pipeline) close() {
	_ = p.store.Close()
}

func (p *pipeline) retryPolicy() collect.RetryPolicy {
	return collect.RetryPolicy{
		MaxAttempts: p.cfg.MaxRetries,
		BaseDelay:   p.cfg.RetryBaseDelay,
		Multiplier:  2.0,
	}
}

// resolveTickers applies the --tickers override, falling back to the
// configured watchlist.
func resolveTickers(cfg *config.Config, override []string) []string {
	if len(override) == 0 {
		return cfg.Tickers
	}
	out := make([]string, 0, len(override))
	for _, t := range override {
		out = append(out, strings.ToUpper(strings.TrimSpace(t)))
	}
	return out
}

// newCollectCmd creates the collect command
func newCollectCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch daily prices and company news into the local store",
		Long: `Fetch daily OHLCV bars from Yahoo Finance and company news from Finnhub
for the configured watchlist. Collections are idempotent: re-running over
an overlapping window adds only the rows not yet stored.
Example: stockpipe collect --days=30 --tickers=AAPL,TSLA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			override, _ := cmd.Flags().GetStringSlice("tickers")
			noNews, _ := cmd.Flags().GetBool("no-news")

			return runCollect(cfg, resolveTickers(cfg, override), days, !noNews)
		},
	}

	cmd.Flags().Int("days", cfg.LookbackDays, "Lookback window in calendar days")
	cmd.Flags().StringSlice("tickers", nil, "Comma-separated ticker override")
	cmd.Flags().Bool("no-news", false, "Skip the news collection pass")

	return cmd
}

func runCollect(cfg *config.Config, tickers []string, days int, withNews bool) error {
	log := NewLogger(cfg.LogLevel)

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	ctx := contextWithShutdown()

	printTitle("stockpipe collect")
	fmt.Println(dimStyle.Render(fmt.Sprintf("tickers=%d days=%d", len(tickers), days)))

	printSection("Prices")
	prices := collect.NewPriceCollector(collect.NewYahooSource(), p.store, p.retryPolicy(), log)
	priceRes, err := prices.Collect(ctx, tickers, days)
	if err != nil {
		return fmt.Errorf("price collection: %w", err)
	}
	printResult(priceRes)

	if withNews {
		printSection("News")
		news := collect.NewNewsCollector(
			collect.NewFinnhubSource(cfg.NewsAPIKey),
			p.store, p.std,
			collect.NewsCollectorConfig{
				CallsPerMinute: cfg.NewsCallsPerMin,
				MinRetention:   cfg.MinRetentionRatio,
				Companies:      cfg.TickerCompanies,
				Retry:          p.retryPolicy(),
			}, log)
		newsRes, err := news.Collect(ctx, tickers, days)
		if err != nil {
			return fmt.Errorf("news collection: %w", err)
		}
		printResult(newsRes)
	}

	return nil
}

func printResult(res *collect.Result) {
	fmt.Printf("  status:     %s\n", statusLine(res.Status()))
	fmt.Printf("  succeeded:  %d/%d\n", len(res.Succeeded), len(res.Succeeded)+len(res.Failed))
	fmt.Printf("  rows added: %d (duplicates skipped: %d)\n", res.RowsAdded, res.DuplicatesSkipped)
	for ticker, msg := range res.Errors {
		fmt.Printf("  %s %s\n", errorStyle.Render(ticker+":"), msg)
	}
}

// newValidateCmd creates the validate command
func newValidateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Audit stored prices and news for quality issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			override, _ := cmd.Flags().GetStringSlice("tickers")
			return runValidate(cfg, resolveTickers(cfg, override))
		},
	}
	cmd.Flags().StringSlice("tickers", nil, "Comma-separated ticker override")
	return cmd
}

func runValidate(cfg *config.Config, tickers []string) error {
	log := NewLogger(cfg.LogLevel)

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	ctx := contextWithShutdown()

	printTitle("stockpipe validate")

	printSection("Prices")
	priceReport, err := validate.NewPriceValidator(p.store, p.cal, log).Validate(ctx, tickers)
	if err != nil {
		return fmt.Errorf("price validation: %w", err)
	}
	printPriceReport(priceReport)

	printSection("News")
	newsReport, err := validate.NewNewsValidator(p.store, log).Validate(ctx, tickers)
	if err != nil {
		return fmt.Errorf("news validation: %w", err)
	}
	printNewsReport(newsReport)

	return nil
}

func printPriceReport(r *validate.PriceReport) {
	if len(r.MissingFields) == 0 && len(r.Anomalies) == 0 && len(r.ZeroVolume) == 0 {
		fmt.Println(successStyle.Render("  no issues found"))
	}
	for _, g := range r.MissingFields {
		fmt.Printf("  %s %s has %d rows with NULL fields\n", warnStyle.Render("!"), g.Ticker, g.NullCount)
	}
	for _, a := range r.Anomalies {
		fmt.Printf("  %s %s %s moved %.1f%% (%.2f -> %.2f)\n",
			warnStyle.Render("!"), a.Ticker, a.Date, a.PctChange, a.PrevClose, a.Close)
	}
	for _, z := range r.ZeroVolume {
		fmt.Printf("  %s %s %s traded zero volume\n", warnStyle.Render("!"), z.Ticker, z.Date)
	}
	for _, c := range r.Coverage {
		line := fmt.Sprintf("  %s: %d days (%s to %s), %d gaps", c.Ticker, c.Days, c.FirstDate, c.LastDate, c.Gaps)
		if c.Gaps > 0 {
			fmt.Println(warnStyle.Render(line))
		} else {
			fmt.Println(dimStyle.Render(line))
		}
	}
}

func printNewsReport(r *validate.NewsReport) {
	if len(r.MissingFields) == 0 && len(r.FutureArticles) == 0 && len(r.DuplicateURLs) == 0 {
		fmt.Println(successStyle.Render("  no issues found"))
	}
	for _, g := range r.MissingFields {
		fmt.Printf("  %s %s has %d articles with missing fields\n", warnStyle.Render("!"), g.Ticker, g.NullCount)
	}
	for _, f := range r.FutureArticles {
		fmt.Printf("  %s %s article dated in the future: %s\n", warnStyle.Render("!"), f.Ticker, f.PublishedAt)
	}
	for _, d := range r.DuplicateURLs {
		fmt.Printf("  %s url stored %d times: %s\n", errorStyle.Render("!"), d.Count, d.URL)
	}
	for _, t := range r.Distribution {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %s: %d articles (%s to %s)", t.Ticker, t.Count, t.Earliest, t.Latest)))
	}
}

// newLabelsCmd creates the labels command
func newLabelsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Generate next-trading-day labels from stored prices",
		Long: `Generate binary direction labels and fractional returns for every stored
bar that has a following bar. Existing labels are never rewritten, so the
command is safe to run after every collection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			override, _ := cmd.Flags().GetStringSlice("tickers")
			return runLabels(cfg, resolveTickers(cfg, override))
		},
	}
	cmd.Flags().StringSlice("tickers", nil, "Comma-separated ticker override")
	return cmd
}

func runLabels(cfg *config.Config, tickers []string) error {
	log := NewLogger(cfg.LogLevel)

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	printTitle("stockpipe labels")

	added, err := dataset.NewLabelGenerator(p.store, log).Generate(contextWithShutdown(), tickers)
	if err != nil {
		return fmt.Errorf("label generation: %w", err)
	}
	fmt.Printf("  %s %d new labels\n", successStyle.Render("✓"), added)
	return nil
}

// newSplitCmd creates the split command
func newSplitCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Assign collected dates to train/val/test partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cfg)
		},
	}
}

func runSplit(cfg *config.Config) error {
	log := NewLogger(cfg.LogLevel)

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	printTitle("stockpipe split")

	sp := dataset.NewSplitter(p.store, cfg.ProcessedDir, cfg.TrainRatio, cfg.ValRatio, log)
	a, err := sp.Split(contextWithShutdown())
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}

	total := len(a.TrainDates) + len(a.ValDates) + len(a.TestDates)
	fmt.Printf("  train: %d  val: %d  test: %d  (total %d dates)\n",
		len(a.TrainDates), len(a.ValDates), len(a.TestDates), total)
	fmt.Println(dimStyle.Render(fmt.Sprintf("  range %s to %s",
		a.TrainDates[0], a.TestDates[len(a.TestDates)-1])))
	return nil
}

// newNewsCmd creates the news command
func newNewsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "news SYMBOL",
		Short: "Show which trading day each stored headline informs",
		Long: `Map a ticker's stored headlines onto trading days using the market-close
cutoff: a headline published before 16:00 ET on a trading day informs the next
session, anything later informs the session after that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNews(cfg, strings.ToUpper(args[0]))
		},
	}
}

func runNews(cfg *config.Config, ticker string) error {
	log := NewLogger(cfg.LogLevel)

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	printTitle("stockpipe news")

	aligned, err := dataset.NewNewsAligner(p.store, p.std, log).Align(contextWithShutdown(), ticker)
	if err != nil {
		return fmt.Errorf("align news: %w", err)
	}
	if len(aligned) == 0 {
		fmt.Println(dimStyle.Render("  no stored headlines for " + ticker))
		return nil
	}

	for _, day := range aligned {
		fmt.Printf("  %s: %d headlines\n", day.Date, len(day.Articles))
		for _, art := range day.Articles {
			fmt.Println(dimStyle.Render("    " + art.Title))
		}
	}
	return nil
}

// newFeaturesCmd creates the features command
func newFeaturesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "features SYMBOL",
		Short: "Compute technical indicator rows for one ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeatures(cfg, strings.ToUpper(args[0]))
		},
	}
}

func runFeatures(cfg *config.Config, ticker string) error {
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	printTitle("stockpipe features")

	bars, err := p.store.PriceBars(contextWithShutdown(), ticker)
	if err != nil {
		return err
	}

	eng := features.NewIndicatorEngine()
	rows := eng.Compute(ticker, bars)
	if len(rows) == 0 {
		return fmt.Errorf("%s has %d bars, need at least %d for a warmed row",
			ticker, len(bars), eng.WarmupBars())
	}

	fmt.Printf("  %d feature rows from %d bars (%s to %s)\n",
		len(rows), len(bars), rows[0].Date, rows[len(rows)-1].Date)

	last := rows[len(rows)-1]
	fmt.Println(dimStyle.Render(fmt.Sprintf(
		"  latest %s: close=%.2f rsi=%.1f macd=%.3f bb_pos=%.2f vol_ratio=%.2f",
		last.Date, last.Close, last.RSI, last.MACDHist, last.BBPosition, last.VolumeRatio)))
	return nil
}

// newSequencesCmd creates the sequences command
func newSequencesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sequences SYMBOL",
		Short: "Build labeled training windows for one ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequences(cfg, strings.ToUpper(args[0]))
		},
		Args: cobra.ExactArgs(1),
	}
}

func runSequences(cfg *config.Config, ticker string) error {
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	printTitle("stockpipe sequences")
	ctx := contextWithShutdown()

	bars, err := p.store.PriceBars(ctx, ticker)
	if err != nil {
		return err
	}
	labels, err := p.store.Labels(ctx, ticker)
	if err != nil {
		return err
	}

	rows := features.NewIndicatorEngine().Compute(ticker, bars)
	gen := features.NewSequenceGenerator(cfg.SequenceLength, p.cal)

	samples, err := gen.Generate(rows)
	if err != nil {
		return fmt.Errorf("sequences: %w", err)
	}
	labeled, err := gen.GenerateLabeled(rows, labels)
	if err != nil {
		return fmt.Errorf("labeled sequences: %w", err)
	}

	fmt.Printf("  %d windows of %d days, %d with labels\n", len(samples), cfg.SequenceLength, len(labeled))
	if len(labeled) > 0 {
		up := 0
		for _, l := range labeled {
			up += l.Label
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("  label balance: %d up / %d down", up, len(labeled)-up)))
	}
	return nil
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stockpipe v%s\n", version)
		},
	}
}
