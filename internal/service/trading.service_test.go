package service

import (
	"context"
	"testing"
	"time"

	"momentum/internal/domain"
	"momentum/internal/ranker"
	"momentum/internal/rebalance"
	"momentum/internal/repository"
	mock_repository "momentum/internal/repository/mocks"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func tradingTable(symbols []string) domain.PriceTable {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	table := domain.PriceTable{}
	for i, symbol := range symbols {
		slope := 0.5 - 0.1*float64(i)
		bars := make([]domain.Bar, 320)
		for j := range bars {
			bars[j] = domain.Bar{
				Date:   asOf.AddDate(0, 0, j-319),
				Close:  100 + slope*float64(j),
				Volume: 1000,
			}
		}
		table[symbol] = bars
	}
	return table
}

func tradingConfig(universe []string) TradingConfig {
	return TradingConfig{
		Universe: universe,
		Ranker: ranker.Config{
			Weights:         domain.WeightTriple{Return: 0.8, RSI: 0.1, Proximity: 0.1},
			MinHistoryBars:  252,
			LiquidityWindow: 1,
		},
		Reconciler:       rebalance.Config{TopN: 2},
		WarmupDays:       319,
		FillPollInterval: time.Millisecond,
		FillPollAttempts: 3,
	}
}

func Test_TradingService_Rebalance(t *testing.T) {
	ctx := context.Background()
	universe := []string{"AAA", "BBB"}
	quotes := map[string]decimal.Decimal{
		"AAA": decimal.NewFromInt(200),
		"BBB": decimal.NewFromInt(100),
	}

	t.Run("clears open orders, places buys, and confirms fills", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPrices(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(tradingTable(universe), nil)

		broker := mock_repository.NewMockAlpacaRepository(ctrl)
		broker.EXPECT().IsMarketOpen().Return(true, nil)
		broker.EXPECT().GetAccount().Return(&alpaca.Account{Cash: decimal.NewFromInt(100_000)}, nil)
		broker.EXPECT().GetPositions().Return(nil, nil)
		broker.EXPECT().GetLatestPrices(gomock.Any(), gomock.Any()).Return(quotes, nil)
		broker.EXPECT().CancelOpenOrders(gomock.Any()).Return(nil).Times(1)
		broker.EXPECT().
			PlaceOrder(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
				return &alpaca.Order{ID: "ord-" + req.Symbol, Status: "new"}, nil
			}).
			Times(2)
		broker.EXPECT().
			GetOrder(gomock.Any()).
			DoAndReturn(func(orderID string) (*alpaca.Order, error) {
				return &alpaca.Order{ID: orderID, Status: "filled"}, nil
			}).
			Times(2)

		svc := NewTradingService(priceRepository, nil, broker, tradingConfig(universe))
		output, err := svc.Rebalance(ctx, false)
		require.NoError(t, err)

		require.False(t, output.DryRun)
		require.Len(t, output.Proposed, 2)
		require.Len(t, output.Placed, 2)
		require.Empty(t, output.Failed)
		for _, order := range output.Placed {
			require.True(t, order.Filled)
			require.Equal(t, "ord-"+order.Symbol, order.BrokerOrderID)
		}
	})

	t.Run("unfilled orders stay marked pending after polling gives up", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPrices(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(tradingTable(universe), nil)

		broker := mock_repository.NewMockAlpacaRepository(ctrl)
		broker.EXPECT().IsMarketOpen().Return(true, nil)
		broker.EXPECT().GetAccount().Return(&alpaca.Account{Cash: decimal.NewFromInt(100_000)}, nil)
		broker.EXPECT().GetPositions().Return(nil, nil)
		broker.EXPECT().GetLatestPrices(gomock.Any(), gomock.Any()).Return(quotes, nil)
		broker.EXPECT().CancelOpenOrders(gomock.Any()).Return(nil)
		broker.EXPECT().
			PlaceOrder(gomock.Any(), gomock.Any()).
			Return(&alpaca.Order{ID: "stuck", Status: "new"}, nil).
			Times(2)
		// three attempts per order, none ever fills
		broker.EXPECT().
			GetOrder("stuck").
			Return(&alpaca.Order{ID: "stuck", Status: "new"}, nil).
			Times(6)

		svc := NewTradingService(priceRepository, nil, broker, tradingConfig(universe))
		output, err := svc.Rebalance(ctx, false)
		require.NoError(t, err)

		require.Len(t, output.Placed, 2)
		for _, order := range output.Placed {
			require.False(t, order.Filled)
		}
	})

	t.Run("dry run never touches order endpoints", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPrices(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(tradingTable(universe), nil)

		// no IsMarketOpen, CancelOpenOrders, PlaceOrder, or GetOrder
		// expectations: any such call fails the test
		broker := mock_repository.NewMockAlpacaRepository(ctrl)
		broker.EXPECT().GetAccount().Return(&alpaca.Account{Cash: decimal.NewFromInt(100_000)}, nil)
		broker.EXPECT().GetPositions().Return(nil, nil)
		broker.EXPECT().GetLatestPrices(gomock.Any(), gomock.Any()).Return(quotes, nil)

		svc := NewTradingService(priceRepository, nil, broker, tradingConfig(universe))
		output, err := svc.Rebalance(ctx, true)
		require.NoError(t, err)

		require.True(t, output.DryRun)
		require.Len(t, output.Proposed, 2)
		require.Empty(t, output.Placed)
	})
}
