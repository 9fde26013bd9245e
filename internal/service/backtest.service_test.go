package service

import (
	"context"
	"testing"
	"time"

	"momentum/internal/backtest"
	"momentum/internal/domain"
	"momentum/internal/ranker"
	"momentum/internal/rebalance"
	mock_repository "momentum/internal/repository/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var svcBase = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func svcTable(symbols []string) domain.PriceTable {
	table := domain.PriceTable{}
	for i, symbol := range symbols {
		slope := 0.5 - 0.1*float64(i)
		bars := make([]domain.Bar, 400)
		for j := range bars {
			bars[j] = domain.Bar{
				Date:   svcBase.AddDate(0, 0, j),
				Close:  100 + slope*float64(j),
				Volume: 1000,
			}
		}
		table[symbol] = bars
	}
	return table
}

func svcConfig() backtest.Config {
	return backtest.Config{
		InitialCapital:   500_000,
		Start:            svcBase.AddDate(0, 0, 300),
		End:              svcBase.AddDate(0, 0, 380),
		Frequency:        backtest.Frequency_Weekly,
		RebalanceWeekday: time.Wednesday,
		WarmupDays:       320,
		Ranker: ranker.Config{
			Weights:         domain.WeightTriple{Return: 0.6, RSI: 0.2, Proximity: 0.2},
			MinHistoryBars:  252,
			LiquidityWindow: 1,
		},
		Reconciler: rebalance.Config{TopN: 2, Band: 1},
	}
}

func Test_BacktestService_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	universe := []string{"AAA", "BBB", "CCC"}
	cfg := svcConfig()

	priceRepository := mock_repository.NewMockPriceRepository(ctrl)
	priceRepository.EXPECT().
		GetPrices(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, symbols []string, start, end time.Time) (domain.PriceTable, error) {
			// warm-up window extends the fetch before the run start
			require.Equal(t, cfg.Start.AddDate(0, 0, -cfg.WarmupDays), start)
			require.Equal(t, cfg.End, end)
			require.ElementsMatch(t, universe, symbols)
			return svcTable(universe), nil
		})

	restrictionRepository := mock_repository.NewMockRestrictionRepository(ctrl)
	restrictionRepository.EXPECT().
		GetRestrictions(gomock.Any(), gomock.Any()).
		Return(nil, nil).
		AnyTimes()

	svc := NewBacktestService(priceRepository, restrictionRepository, nil)
	result, err := svc.Run(context.Background(), cfg, universe)
	require.NoError(t, err)

	require.NotNil(t, result.Summary)
	require.NotEmpty(t, result.Daily)
	require.NotEmpty(t, result.Decisions)
}

func Test_BacktestService_Run_emptyUniverse(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewBacktestService(mock_repository.NewMockPriceRepository(ctrl), nil, nil)

	_, err := svc.Run(context.Background(), svcConfig(), nil)
	require.Error(t, err)
}
