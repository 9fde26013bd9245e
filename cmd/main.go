package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"momentum/api"
	"momentum/internal/backtest"
	"momentum/internal/config"
	"momentum/internal/logger"
	"momentum/internal/repository"
	"momentum/internal/service"
	"momentum/internal/util"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	configPath string
	apiPort    int
	dryRun     bool
	asOfStr    string
	outDir     string
)

var rootCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Band-based momentum strategy engine",
	Long: `Ranks an equity universe on composite momentum, reconciles the
current portfolio against the ranking with a hold band, and either
backtests the strategy or trades it live.`,
	SilenceUsage: true,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the current composite ranking",
	RunE:  runRank,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy over the configured window",
	RunE:  runBacktest,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search the weight simplex for the best backtest",
	RunE:  runOptimize,
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Rebalance the live broker account on schedule",
	RunE:  runLive,
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the engine over HTTP",
	RunE:  runApi,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "strategy.yaml", "strategy config file")
	rankCmd.Flags().StringVar(&asOfStr, "as-of", "", "rank as of date (YYYY-MM-DD, default today)")
	backtestCmd.Flags().StringVar(&outDir, "out", "", "directory for CSV exports")
	liveCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and print orders without placing them")
	apiCmd.Flags().IntVar(&apiPort, "port", 8080, "listen port")

	rootCmd.AddCommand(rankCmd, backtestCmd, optimizeCmd, liveCmd, apiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type engine struct {
	config          *config.Config
	backtestService service.BacktestService
	tradingService  service.TradingService
	exportService   service.ExportService
}

func buildEngine(needBroker bool) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}

	var priceRepository repository.PriceRepository = repository.NewYahooPriceRepository()
	if cfg.PriceCacheDir != "" {
		priceRepository, err = repository.NewCachedPriceRepository(priceRepository, cfg.PriceCacheDir)
		if err != nil {
			return nil, err
		}
	}

	var restrictionRepository repository.RestrictionRepository
	if cfg.RestrictionURL != "" {
		restrictionRepository, err = repository.NewSurveillanceRestrictionRepository(repository.SurveillanceConfig{
			BaseURL:  cfg.RestrictionURL,
			CacheDir: cfg.RestrictionCacheDir,
		})
		if err != nil {
			return nil, err
		}
	}

	var runRepository repository.BacktestRunRepository
	if creds.DatabaseURL != "" {
		db, err := sql.Open("postgres", creds.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		runRepository = repository.NewBacktestRunRepository(db)
	}

	// ranking works without a broker; order placement does not
	var alpacaRepository repository.AlpacaRepository
	if needBroker {
		if creds.AlpacaAPIKey == "" || creds.AlpacaAPISecret == "" {
			return nil, fmt.Errorf("ALPACA_API_KEY and ALPACA_API_SECRET are required")
		}
		alpacaRepository = repository.NewAlpacaRepository(creds.AlpacaAPIKey, creds.AlpacaAPISecret, creds.AlpacaEndpoint)
	}

	return &engine{
		config:          cfg,
		backtestService: service.NewBacktestService(priceRepository, restrictionRepository, runRepository),
		tradingService:  service.NewTradingService(priceRepository, restrictionRepository, alpacaRepository, cfg.TradingConfig()),
		exportService:   service.NewExportService(),
	}, nil
}

func runRank(_ *cobra.Command, _ []string) error {
	e, err := buildEngine(false)
	if err != nil {
		return err
	}
	ctx := logger.AddToContext(context.Background(), logger.New())

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if asOfStr != "" {
		asOf, err = time.Parse(time.DateOnly, asOfStr)
		if err != nil {
			return fmt.Errorf("bad as-of date %q: %w", asOfStr, err)
		}
	}

	ranked, err := e.tradingService.Rank(ctx, asOf)
	if err != nil {
		return err
	}

	fmt.Printf("ranking as of %s (weights %s)\n", asOf.Format(time.DateOnly), e.config.Weights.String())
	for _, r := range ranked {
		fmt.Printf("%3d  %-8s composite=%.4f ret=%.3f rsi=%.3f prox=%.3f\n",
			r.Rank, r.Symbol, r.Composite, r.ReturnRank, r.RSIRank, r.ProximityRank)
	}
	return nil
}

func runBacktest(_ *cobra.Command, _ []string) error {
	e, err := buildEngine(false)
	if err != nil {
		return err
	}
	ctx := logger.AddToContext(context.Background(), logger.New())

	cfg, err := e.config.BacktestRunConfig()
	if err != nil {
		return err
	}
	result, err := e.backtestService.Run(ctx, cfg, e.config.Universe)
	if err != nil {
		return err
	}

	util.Pprint(result.Summary)
	for _, warning := range result.Warnings {
		fmt.Println("warning:", warning)
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		if err := exportCSV(e, result, outDir); err != nil {
			return err
		}
		fmt.Println("exported CSVs to", outDir)
	}
	return nil
}

func runOptimize(_ *cobra.Command, _ []string) error {
	e, err := buildEngine(false)
	if err != nil {
		return err
	}
	ctx := logger.AddToContext(context.Background(), logger.New())

	cfg, err := e.config.BacktestRunConfig()
	if err != nil {
		return err
	}
	report, err := e.backtestService.OptimizeWeights(ctx, cfg, e.config.Universe, e.config.OptimizerConfig())
	if err != nil {
		return err
	}

	if report.Best == nil {
		fmt.Println("no feasible candidate found")
	} else {
		fmt.Printf("best: %s cagr=%.2f%% maxDD=%.2f%%\n",
			report.Best.Weights.String(), report.Best.CAGRPct, report.Best.MaxDrawdownPct)
	}
	for _, candidate := range report.Candidates {
		marker := " "
		if !candidate.Feasible {
			marker = "x"
		}
		if candidate.FailureReason != "" {
			fmt.Printf("%s %s failed: %s\n", marker, candidate.Weights.String(), candidate.FailureReason)
			continue
		}
		fmt.Printf("%s %s cagr=%.2f%% maxDD=%.2f%%\n",
			marker, candidate.Weights.String(), candidate.CAGRPct, candidate.MaxDrawdownPct)
	}
	return nil
}

func runLive(_ *cobra.Command, _ []string) error {
	e, err := buildEngine(true)
	if err != nil {
		return err
	}
	log := logger.New()
	ctx := logger.AddToContext(context.Background(), log)

	if dryRun {
		output, err := e.tradingService.Rebalance(ctx, true)
		if err != nil {
			return err
		}
		printRebalance(output)
		return nil
	}

	weekday, err := util.ParseWeekday(e.config.RebalanceWeekday)
	if err != nil {
		return err
	}
	// run shortly after the open on the configured weekday
	schedule := fmt.Sprintf("45 9 * * %d", int(weekday))

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		runCtx := logger.AddToContext(context.Background(), logger.New())
		output, err := e.tradingService.Rebalance(runCtx, false)
		if err != nil {
			log.Errorf("scheduled rebalance failed: %v", err)
			return
		}
		printRebalance(output)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rebalance: %w", err)
	}

	log.Infow("live rebalance scheduled", "cron", schedule)
	c.Run()
	return nil
}

func exportCSV(e *engine, result *backtest.Result, dir string) error {
	dailyFile, err := os.Create(filepath.Join(dir, "daily_values.csv"))
	if err != nil {
		return err
	}
	defer dailyFile.Close()
	if err := e.exportService.ExportDailyValues(result, dailyFile); err != nil {
		return err
	}

	tradesFile, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	defer tradesFile.Close()
	return e.exportService.ExportTrades(result, tradesFile)
}

func printRebalance(output *service.RebalanceOutput) {
	if output.Decision.Empty() {
		fmt.Println("portfolio already aligned, nothing to do")
		return
	}
	if output.DryRun {
		fmt.Println("proposed orders (dry run):")
		for _, trade := range output.Proposed {
			fmt.Printf("  %-4s %-8s x%-6d @ %.2f\n", trade.Side, trade.Symbol, trade.Quantity, trade.ExpectedPrice)
		}
		return
	}
	for _, order := range output.Placed {
		status := "pending"
		if order.Filled {
			status = "filled"
		}
		fmt.Printf("placed %-4s %-8s x%-6d (order %s, %s)\n", order.Side, order.Symbol, order.Quantity, order.BrokerOrderID, status)
	}
	for _, symbol := range output.Failed {
		fmt.Println("order failed for", symbol)
	}
}

func runApi(_ *cobra.Command, _ []string) error {
	// the HTTP surface only ranks and backtests, no broker needed
	e, err := buildEngine(false)
	if err != nil {
		return err
	}
	handler := api.ApiHandler{
		Config:          e.config,
		BacktestService: e.backtestService,
		TradingService:  e.tradingService,
		ExportService:   e.exportService,
	}
	return handler.StartApi(apiPort)
}
