// Package config loads the strategy definition from YAML and broker
// credentials from the environment (.env in development).
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"momentum/internal/backtest"
	"momentum/internal/domain"
	"momentum/internal/optimizer"
	"momentum/internal/ranker"
	"momentum/internal/rebalance"
	"momentum/internal/service"
	"momentum/internal/util"

	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Universe []string `yaml:"universe"`

	// UniverseFile points at a CSV with a "symbol" column; when set it
	// replaces the inline universe list, which keeps big universes out
	// of the strategy file.
	UniverseFile string `yaml:"universeFile"`

	Weights domain.WeightTriple `yaml:"weights"`

	TopN          int     `yaml:"topN"`
	Band          int     `yaml:"band"`
	CashSymbol    string  `yaml:"cashSymbol"`
	Benchmark     string  `yaml:"benchmark"`
	JumpThreshold float64 `yaml:"jumpThreshold"`
	RegimeGate    bool    `yaml:"regimeGate"`

	Frequency        string `yaml:"frequency"`
	RebalanceWeekday string `yaml:"rebalanceWeekday"`

	Backtest  BacktestConfig  `yaml:"backtest"`
	Optimize  OptimizeConfig  `yaml:"optimize"`
	Liquidity LiquidityConfig `yaml:"liquidity"`

	PriceCacheDir       string `yaml:"priceCacheDir"`
	RestrictionURL      string `yaml:"restrictionUrl"`
	RestrictionCacheDir string `yaml:"restrictionCacheDir"`
}

type BacktestConfig struct {
	Start               string  `yaml:"start"`
	End                 string  `yaml:"end"`
	InitialCapital      float64 `yaml:"initialCapital"`
	TransactionCostRate float64 `yaml:"transactionCostRate"`
	WarmupDays          int     `yaml:"warmupDays"`
}

type OptimizeConfig struct {
	GridStep         float64 `yaml:"gridStep"`
	MaxDrawdownFloor float64 `yaml:"maxDrawdownFloor"`
	Workers          int     `yaml:"workers"`
	Refine           bool    `yaml:"refine"`
}

type LiquidityConfig struct {
	MinHistoryBars       int     `yaml:"minHistoryBars"`
	MinClose             float64 `yaml:"minClose"`
	MaxClose             float64 `yaml:"maxClose"`
	MinMedianTradedValue float64 `yaml:"minMedianTradedValue"`
	MinAvgVolume         float64 `yaml:"minAvgVolume"`
}

// Credentials come from the environment, never from the YAML file.
type Credentials struct {
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaEndpoint  string
	DatabaseURL     string
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.UniverseFile != "" {
		symbols, err := loadUniverseFile(cfg.UniverseFile)
		if err != nil {
			return nil, err
		}
		cfg.Universe = symbols
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadCredentials reads broker and database secrets, sourcing .env
// first when present so local runs behave like deployed ones.
func LoadCredentials() (*Credentials, error) {
	_ = godotenv.Load()

	creds := &Credentials{
		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret: os.Getenv("ALPACA_API_SECRET"),
		AlpacaEndpoint:  os.Getenv("ALPACA_ENDPOINT"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
	}
	if creds.AlpacaEndpoint == "" {
		creds.AlpacaEndpoint = "https://paper-api.alpaca.markets"
	}
	return creds, nil
}

type universeRow struct {
	Symbol string `csv:"symbol"`
}

func loadUniverseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe file %s: %w", path, err)
	}
	defer f.Close()

	rows := []universeRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", path, err)
	}

	seen := map[string]bool{}
	symbols := []string{}
	for _, row := range rows {
		if row.Symbol == "" || seen[row.Symbol] {
			continue
		}
		seen[row.Symbol] = true
		symbols = append(symbols, row.Symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (c *Config) applyDefaults() {
	if c.TopN == 0 {
		c.TopN = 5
	}
	if c.Frequency == "" {
		c.Frequency = string(backtest.Frequency_Weekly)
	}
	if c.RebalanceWeekday == "" {
		c.RebalanceWeekday = "Wednesday"
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 1_000_000
	}
	if c.Backtest.WarmupDays == 0 {
		c.Backtest.WarmupDays = backtest.DefaultWarmupDays
	}
	if c.Optimize.GridStep == 0 {
		c.Optimize.GridStep = 0.1
	}
	if c.Optimize.MaxDrawdownFloor == 0 {
		c.Optimize.MaxDrawdownFloor = -30
	}
	if c.Optimize.Workers == 0 {
		c.Optimize.Workers = 4
	}
}

func (c *Config) validate() error {
	if len(c.Universe) == 0 {
		return fmt.Errorf("universe is empty")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if _, err := util.ParseWeekday(c.RebalanceWeekday); err != nil {
		return err
	}
	return nil
}

func (c *Config) RankerConfig() ranker.Config {
	rc := ranker.DefaultConfig(c.Weights)
	if c.Liquidity.MinHistoryBars > 0 {
		rc.MinHistoryBars = c.Liquidity.MinHistoryBars
	}
	if c.Liquidity.MinClose > 0 {
		rc.MinClose = c.Liquidity.MinClose
	}
	if c.Liquidity.MaxClose > 0 {
		rc.MaxClose = c.Liquidity.MaxClose
	}
	if c.Liquidity.MinMedianTradedValue > 0 {
		rc.MinMedianTradedValue = c.Liquidity.MinMedianTradedValue
	}
	if c.Liquidity.MinAvgVolume > 0 {
		rc.MinAvgVolume = c.Liquidity.MinAvgVolume
	}
	return rc
}

func (c *Config) ReconcilerConfig() rebalance.Config {
	regime := rebalance.DefaultRegimeConfig(c.Benchmark)
	regime.Enabled = c.RegimeGate && c.Benchmark != ""
	return rebalance.Config{
		TopN:          c.TopN,
		Band:          c.Band,
		CashSymbol:    c.CashSymbol,
		JumpThreshold: c.JumpThreshold,
		Regime:        regime,
	}
}

func (c *Config) BacktestRunConfig() (backtest.Config, error) {
	start, err := time.Parse(time.DateOnly, c.Backtest.Start)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("bad backtest start date %q: %w", c.Backtest.Start, err)
	}
	end, err := time.Parse(time.DateOnly, c.Backtest.End)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("bad backtest end date %q: %w", c.Backtest.End, err)
	}
	weekday, err := util.ParseWeekday(c.RebalanceWeekday)
	if err != nil {
		return backtest.Config{}, err
	}

	return backtest.Config{
		InitialCapital:      c.Backtest.InitialCapital,
		Start:               start,
		End:                 end,
		Frequency:           backtest.Frequency(c.Frequency),
		RebalanceWeekday:    weekday,
		TransactionCostRate: c.Backtest.TransactionCostRate,
		WarmupDays:          c.Backtest.WarmupDays,
		Ranker:              c.RankerConfig(),
		Reconciler:          c.ReconcilerConfig(),
	}, nil
}

func (c *Config) OptimizerConfig() optimizer.Config {
	cfg := optimizer.DefaultConfig()
	cfg.GridStep = c.Optimize.GridStep
	cfg.MaxDrawdownFloor = c.Optimize.MaxDrawdownFloor
	cfg.Workers = c.Optimize.Workers
	cfg.Refine = c.Optimize.Refine
	return cfg
}

func (c *Config) TradingConfig() service.TradingConfig {
	return service.TradingConfig{
		Universe:            c.Universe,
		Ranker:              c.RankerConfig(),
		Reconciler:          c.ReconcilerConfig(),
		TransactionCostRate: c.Backtest.TransactionCostRate,
		WarmupDays:          c.Backtest.WarmupDays,
	}
}
