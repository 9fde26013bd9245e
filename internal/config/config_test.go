package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYaml = `
universe: [BBB, AAA, CCC]
weights:
  return: 0.8
  rsi: 0.1
  proximity: 0.1
backtest:
  start: "2023-01-01"
  end: "2024-01-01"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func Test_Load(t *testing.T) {
	t.Run("minimal config gets defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalYaml))
		require.NoError(t, err)

		require.Equal(t, []string{"BBB", "AAA", "CCC"}, cfg.Universe)
		require.Equal(t, 5, cfg.TopN)
		require.Equal(t, "W", cfg.Frequency)
		require.Equal(t, "Wednesday", cfg.RebalanceWeekday)
		require.Equal(t, 1_000_000.0, cfg.Backtest.InitialCapital)
		require.Equal(t, 0.1, cfg.Optimize.GridStep)
		require.Equal(t, -30.0, cfg.Optimize.MaxDrawdownFloor)
	})

	t.Run("universe file replaces the inline list", func(t *testing.T) {
		dir := t.TempDir()
		universePath := filepath.Join(dir, "universe.csv")
		require.NoError(t, os.WriteFile(universePath, []byte("symbol\nZZZ\nAAA\nZZZ\nMMM\n"), 0o644))

		cfg, err := Load(writeConfig(t, minimalYaml+"universeFile: "+universePath+"\n"))
		require.NoError(t, err)
		require.Equal(t, []string{"AAA", "MMM", "ZZZ"}, cfg.Universe)
	})

	t.Run("empty universe rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
universe: []
weights: {return: 1, rsi: 0, proximity: 0}
`))
		require.Error(t, err)
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
universe: [AAA]
weights: {return: 0.5, rsi: 0.1, proximity: 0.1}
`))
		require.Error(t, err)
	})

	t.Run("weekend rebalance day rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, minimalYaml+"rebalanceWeekday: Sunday\n"))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func Test_BacktestRunConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYaml))
	require.NoError(t, err)

	runCfg, err := cfg.BacktestRunConfig()
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), runCfg.Start)
	require.Equal(t, time.Wednesday, runCfg.RebalanceWeekday)
	require.Equal(t, 0.8, runCfg.Ranker.Weights.Return)
	require.NoError(t, runCfg.Validate())

	t.Run("bad start date", func(t *testing.T) {
		bad := *cfg
		bad.Backtest.Start = "01/01/2023"
		_, err := bad.BacktestRunConfig()
		require.Error(t, err)
	})
}
