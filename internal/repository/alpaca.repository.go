package repository

import (
	"context"
	"fmt"
	"time"

	"momentum/internal/logger"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlpacaRepository is the live broker surface the trading service runs
// against. Order placement is fire-and-forget; fills are confirmed by
// polling GetOrder.
type AlpacaRepository interface {
	PlaceOrder(ctx context.Context, req AlpacaPlaceOrderRequest) (*alpaca.Order, error)
	GetOrder(orderID string) (*alpaca.Order, error)
	CancelOpenOrders(ctx context.Context) error
	GetPositions() ([]alpaca.Position, error)
	GetAccount() (*alpaca.Account, error)
	IsMarketOpen() (bool, error)
	GetLatestPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

func NewAlpacaRepository(apiKey, apiSecret, endpoint string) AlpacaRepository {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    endpoint,
		RetryLimit: 3,
	})
	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &alpacaRepositoryHandler{
		Client:   client,
		MdClient: mdClient,
	}
}

type alpacaRepositoryHandler struct {
	Client   *alpaca.Client
	MdClient *marketdata.Client
}

type AlpacaPlaceOrderRequest struct {
	ClientOrderID uuid.UUID
	Symbol        string
	Quantity      decimal.Decimal
	Side          alpaca.Side

	// LimitPrice nil sends a market order.
	LimitPrice *decimal.Decimal
}

func (r AlpacaPlaceOrderRequest) isValid() error {
	if r.Symbol == "" {
		return fmt.Errorf("order has empty symbol")
	}
	if r.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("order quantity is <= 0: %s %s %s", r.Side, r.Quantity.String(), r.Symbol)
	}
	return nil
}

func (h alpacaRepositoryHandler) PlaceOrder(ctx context.Context, req AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
	log := logger.FromContext(ctx)

	if err := req.isValid(); err != nil {
		return nil, fmt.Errorf("invalid order %s: %w", req.ClientOrderID, err)
	}

	orderType := alpaca.Market
	if req.LimitPrice != nil {
		orderType = alpaca.Limit
	}
	order, err := h.Client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &req.Quantity,
		Side:          req.Side,
		Type:          orderType,
		LimitPrice:    req.LimitPrice,
		TimeInForce:   alpaca.Day,
		ClientOrderID: req.ClientOrderID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to place order %s %s %s: %w",
			req.Side, req.Quantity.String(), req.Symbol, err)
	}

	log.Infow("order placed",
		"clientOrderId", req.ClientOrderID,
		"symbol", req.Symbol,
		"side", req.Side,
		"quantity", req.Quantity.String(),
	)
	return order, nil
}

func (h alpacaRepositoryHandler) GetOrder(orderID string) (*alpaca.Order, error) {
	return h.Client.GetOrder(orderID)
}

func (h alpacaRepositoryHandler) CancelOpenOrders(ctx context.Context) error {
	log := logger.FromContext(ctx)

	orders, err := h.Client.GetOrders(alpaca.GetOrdersRequest{
		Status: "open",
		Until:  time.Now(),
		Limit:  100,
	})
	if err != nil {
		return fmt.Errorf("failed to list open orders: %w", err)
	}
	for _, order := range orders {
		if err := h.Client.CancelOrder(order.ID); err != nil {
			return fmt.Errorf("failed to cancel order %s: %w", order.ID, err)
		}
	}

	log.Infof("%d order(s) cancelled", len(orders))
	return nil
}

func (h alpacaRepositoryHandler) GetPositions() ([]alpaca.Position, error) {
	positions, err := h.Client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	return positions, nil
}

func (h alpacaRepositoryHandler) GetAccount() (*alpaca.Account, error) {
	account, err := h.Client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (h alpacaRepositoryHandler) IsMarketOpen() (bool, error) {
	clock, err := h.Client.GetClock()
	if err != nil {
		return false, err
	}
	return clock.IsOpen, nil
}

func (h alpacaRepositoryHandler) GetLatestPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	results, err := h.MdClient.GetLatestQuotes(symbols, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest quotes: %w", err)
	}

	out := map[string]decimal.Decimal{}
	for symbol, quote := range results {
		price := decimal.NewFromFloat(quote.BidPrice)
		if price.IsZero() {
			return nil, fmt.Errorf("failed to get price for %s: got 0 price", symbol)
		}
		out[symbol] = price
	}
	for _, symbol := range symbols {
		if _, ok := out[symbol]; !ok {
			return nil, fmt.Errorf("no quote returned for %s", symbol)
		}
	}
	return out, nil
}
