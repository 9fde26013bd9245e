package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testStrategyYaml = `
universe: [AAA, BBB]
weights:
  return: 0.8
  rsi: 0.1
  proximity: 0.1
backtest:
  start: "2023-01-01"
  end: "2024-01-01"
`

func Test_buildEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testStrategyYaml), 0o644))

	prev := configPath
	configPath = path
	defer func() { configPath = prev }()

	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_API_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	t.Run("analysis commands build without broker credentials", func(t *testing.T) {
		e, err := buildEngine(false)
		require.NoError(t, err)
		require.NotNil(t, e.backtestService)
		require.NotNil(t, e.tradingService)
	})

	t.Run("live trading demands broker credentials", func(t *testing.T) {
		_, err := buildEngine(true)
		require.Error(t, err)
		require.Contains(t, err.Error(), "ALPACA_API_KEY")
	})
}
