package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"momentum/internal/backtest"
	"momentum/internal/domain"
	"momentum/internal/logger"
	"momentum/internal/ranker"
	"momentum/internal/rebalance"
	"momentum/internal/repository"
	"momentum/internal/universe"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradingService runs the decision pipeline against the live broker
// account. Orders are placed once, sells before buys; a failed order
// is logged and skipped, never retried within the run.
type TradingService interface {
	Rank(ctx context.Context, asOf time.Time) ([]domain.RankedSymbol, error)
	Rebalance(ctx context.Context, dryRun bool) (*RebalanceOutput, error)
}

type TradingConfig struct {
	Universe   []string
	Ranker     ranker.Config
	Reconciler rebalance.Config

	// TransactionCostRate only shapes sizing; the broker charges what
	// it charges.
	TransactionCostRate float64
	WarmupDays          int

	// FillPollInterval and FillPollAttempts bound the post-placement
	// fill confirmation loop.
	FillPollInterval time.Duration
	FillPollAttempts int
}

func NewTradingService(
	priceRepository repository.PriceRepository,
	restrictionRepository repository.RestrictionRepository,
	alpacaRepository repository.AlpacaRepository,
	cfg TradingConfig,
) TradingService {
	return tradingServiceHandler{
		PriceRepository:       priceRepository,
		RestrictionRepository: restrictionRepository,
		AlpacaRepository:      alpacaRepository,
		Config:                cfg,
	}
}

type tradingServiceHandler struct {
	PriceRepository       repository.PriceRepository
	RestrictionRepository repository.RestrictionRepository
	AlpacaRepository      repository.AlpacaRepository
	Config                TradingConfig
}

type PlacedOrder struct {
	ClientOrderID uuid.UUID
	BrokerOrderID string
	Symbol        string
	Side          domain.TradeSide
	Quantity      int64

	// Filled is set once the broker confirms the fill; an order still
	// open when polling gives up stays false.
	Filled bool
}

type RebalanceOutput struct {
	Decision *domain.RebalanceDecision
	Proposed []domain.ProposedTrade
	Placed   []PlacedOrder
	Failed   []string
	DryRun   bool
}

func (h tradingServiceHandler) Rank(ctx context.Context, asOf time.Time) ([]domain.RankedSymbol, error) {
	table, eligible, err := h.loadInputs(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return ranker.Rank(table, eligible, asOf, h.Config.Ranker)
}

func (h tradingServiceHandler) Rebalance(ctx context.Context, dryRun bool) (*RebalanceOutput, error) {
	log := logger.FromContext(ctx)
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	if !dryRun {
		open, err := h.AlpacaRepository.IsMarketOpen()
		if err != nil {
			return nil, fmt.Errorf("failed to check market clock: %w", err)
		}
		if !open {
			return nil, fmt.Errorf("market is closed, refusing to place orders")
		}
	}

	table, eligible, err := h.loadInputs(ctx, asOf)
	if err != nil {
		return nil, err
	}

	strong := true
	if h.Config.Reconciler.Regime.Enabled {
		strong, err = rebalance.MarketStrong(table, eligible, asOf, h.Config.Reconciler.Regime)
		if err != nil {
			return nil, fmt.Errorf("regime check failed: %w", err)
		}
	}

	ranked := []domain.RankedSymbol{}
	if strong {
		ranked, err = ranker.Rank(table, eligible, asOf, h.Config.Ranker)
		if err != nil {
			return nil, err
		}
	}

	portfolio, err := h.loadPortfolio()
	if err != nil {
		return nil, err
	}

	decision, err := rebalance.Reconcile(rebalance.ReconcileInput{
		Portfolio:  *portfolio,
		Ranked:     ranked,
		Prices:     table,
		Date:       asOf,
		WeakMarket: !strong,
		Config:     h.Config.Reconciler,
	})
	if err != nil {
		return nil, err
	}
	for _, warning := range decision.Warnings {
		log.Warn(warning)
	}

	output := &RebalanceOutput{Decision: decision, DryRun: dryRun}
	if decision.Empty() {
		log.Info("portfolio already aligned, nothing to do")
		return output, nil
	}

	plan, err := h.buildPlan(ctx, *portfolio, *decision)
	if err != nil {
		return nil, err
	}
	output.Proposed = plan.Trades
	if dryRun {
		return output, nil
	}

	// stale orders from an earlier run would double-commit capital
	if err := h.AlpacaRepository.CancelOpenOrders(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear open orders: %w", err)
	}

	// sells first so buy capital is actually there
	for _, trade := range plan.Trades {
		placed, err := h.placeOrder(ctx, trade)
		if err != nil {
			log.Errorf("order failed, continuing: %v", err)
			output.Failed = append(output.Failed, trade.Symbol)
			continue
		}
		output.Placed = append(output.Placed, *placed)
	}
	h.confirmFills(ctx, output.Placed)
	return output, nil
}

// confirmFills polls the broker until each placed order reports filled
// or the attempt budget runs out. Unconfirmed orders are logged, never
// retried or cancelled here; the next run's open-order sweep handles
// them.
func (h tradingServiceHandler) confirmFills(ctx context.Context, placed []PlacedOrder) {
	log := logger.FromContext(ctx)

	interval := h.Config.FillPollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := h.Config.FillPollAttempts
	if attempts <= 0 {
		attempts = 10
	}

	for i := range placed {
		for attempt := 0; attempt < attempts && !placed[i].Filled; attempt++ {
			if attempt > 0 {
				time.Sleep(interval)
			}
			order, err := h.AlpacaRepository.GetOrder(placed[i].BrokerOrderID)
			if err != nil {
				log.Warnf("fill check for %s failed: %v", placed[i].Symbol, err)
				break
			}
			if order.Status == "filled" {
				placed[i].Filled = true
			}
		}
		if !placed[i].Filled {
			log.Warnf("order %s for %s not confirmed filled", placed[i].BrokerOrderID, placed[i].Symbol)
		}
	}
}

func (h tradingServiceHandler) loadInputs(ctx context.Context, asOf time.Time) (domain.PriceTable, []string, error) {
	warmup := h.Config.WarmupDays
	if warmup <= 0 {
		warmup = backtest.DefaultWarmupDays
	}

	symbols := append([]string{}, h.Config.Universe...)
	if s := h.Config.Reconciler.CashSymbol; s != "" {
		symbols = append(symbols, s)
	}
	if s := h.Config.Reconciler.Regime.BenchmarkSymbol; s != "" {
		symbols = append(symbols, s)
	}

	table, err := h.PriceRepository.GetPrices(ctx, symbols, asOf.AddDate(0, 0, -warmup), asOf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load price history: %w", err)
	}

	restrictions := []domain.Restriction{}
	if h.RestrictionRepository != nil {
		restrictions, err = h.RestrictionRepository.GetRestrictions(ctx, asOf)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load restrictions: %w", err)
		}
	}
	eligible, _ := universe.Filter(h.Config.Universe, restrictions)
	return table, eligible, nil
}

func (h tradingServiceHandler) loadPortfolio() (*domain.Portfolio, error) {
	account, err := h.AlpacaRepository.GetAccount()
	if err != nil {
		return nil, err
	}
	positions, err := h.AlpacaRepository.GetPositions()
	if err != nil {
		return nil, err
	}

	portfolio := domain.NewPortfolio(account.Cash)
	for _, p := range positions {
		quantity := p.Qty.IntPart()
		if quantity <= 0 {
			continue
		}
		portfolio.Positions[p.Symbol] = &domain.Position{
			Symbol:   p.Symbol,
			Quantity: quantity,
			AvgCost:  p.AvgEntryPrice,
		}
	}
	return portfolio, nil
}

func (h tradingServiceHandler) buildPlan(ctx context.Context, portfolio domain.Portfolio, decision domain.RebalanceDecision) (*rebalance.Plan, error) {
	cashSymbol := h.Config.Reconciler.CashSymbol

	quoteSymbols := map[string]bool{}
	for _, s := range decision.Sells {
		quoteSymbols[s] = true
	}
	for _, s := range decision.Holds {
		quoteSymbols[s] = true
	}
	for _, b := range decision.Buys {
		quoteSymbols[b.Symbol] = true
	}
	if cashSymbol != "" {
		quoteSymbols[cashSymbol] = true
	}
	symbols := make([]string, 0, len(quoteSymbols))
	for s := range quoteSymbols {
		symbols = append(symbols, s)
	}

	quotes, err := h.AlpacaRepository.GetLatestPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution prices: %w", err)
	}

	planInput := rebalance.PlanInput{
		Cash:                portfolio.Cash,
		TransactionCostRate: h.Config.TransactionCostRate,
	}
	for _, symbol := range decision.Sells {
		position, held := portfolio.Positions[symbol]
		if !held {
			continue
		}
		planInput.Removed = append(planInput.Removed, rebalance.Entry{
			Symbol:   symbol,
			Price:    quotes[symbol].InexactFloat64(),
			Quantity: position.Quantity,
		})
	}
	for _, symbol := range decision.Holds {
		if symbol == cashSymbol {
			continue
		}
		position, held := portfolio.Positions[symbol]
		if !held {
			continue
		}
		planInput.Held = append(planInput.Held, rebalance.Entry{
			Symbol:   symbol,
			Price:    quotes[symbol].InexactFloat64(),
			Quantity: position.Quantity,
		})
	}
	for _, buy := range decision.Buys {
		if buy.Symbol == cashSymbol {
			planInput.CashSweep = &rebalance.Entry{Symbol: cashSymbol, Price: quotes[cashSymbol].InexactFloat64()}
			continue
		}
		planInput.New = append(planInput.New, rebalance.Entry{
			Symbol: buy.Symbol,
			Price:  quotes[buy.Symbol].InexactFloat64(),
			Rank:   buy.Rank,
		})
	}
	if planInput.CashSweep == nil && cashSymbol != "" {
		if price, ok := quotes[cashSymbol]; ok {
			planInput.CashSweep = &rebalance.Entry{Symbol: cashSymbol, Price: price.InexactFloat64()}
		}
	}

	return rebalance.PlanAllocation(planInput)
}

func (h tradingServiceHandler) placeOrder(ctx context.Context, trade domain.ProposedTrade) (*PlacedOrder, error) {
	side := alpaca.Buy
	if trade.Side == domain.TradeSide_Sell {
		side = alpaca.Sell
	}
	clientOrderID := uuid.New()
	order, err := h.AlpacaRepository.PlaceOrder(ctx, repository.AlpacaPlaceOrderRequest{
		ClientOrderID: clientOrderID,
		Symbol:        trade.Symbol,
		Quantity:      decimal.NewFromInt(trade.Quantity),
		Side:          side,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to place %s %s x%s: %w",
			trade.Side, trade.Symbol, strconv.FormatInt(trade.Quantity, 10), err)
	}
	return &PlacedOrder{
		ClientOrderID: clientOrderID,
		BrokerOrderID: order.ID,
		Symbol:        trade.Symbol,
		Side:          trade.Side,
		Quantity:      trade.Quantity,
	}, nil
}
