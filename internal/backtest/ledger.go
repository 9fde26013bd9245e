package backtest

import (
	"fmt"
	"time"

	"momentum/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the simulated broker account: cash plus whole-share
// positions, mutated only by applying trades. Cash can never go
// negative; a buy that cannot be funded is rejected, not clipped.
type Ledger struct {
	initialCapital decimal.Decimal
	portfolio      *domain.Portfolio
	trades         []domain.FilledTrade
}

func NewLedger(initialCapital decimal.Decimal) *Ledger {
	return &Ledger{
		initialCapital: initialCapital,
		portfolio:      domain.NewPortfolio(initialCapital),
		trades:         []domain.FilledTrade{},
	}
}

func (l *Ledger) Portfolio() domain.Portfolio {
	return *l.portfolio.DeepCopy()
}

func (l *Ledger) Cash() decimal.Decimal {
	return l.portfolio.Cash
}

func (l *Ledger) Trades() []domain.FilledTrade {
	out := make([]domain.FilledTrade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) MarketValue(priceMap map[string]float64) float64 {
	return l.portfolio.MarketValue(priceMap)
}

// Apply executes one trade at its expected price on the given date.
func (l *Ledger) Apply(trade domain.ProposedTrade, date time.Time) error {
	if trade.Quantity <= 0 {
		return fmt.Errorf("trade quantity must be positive, got %d for %s", trade.Quantity, trade.Symbol)
	}
	value := decimal.NewFromFloat(trade.ExpectedPrice).Mul(decimal.NewFromInt(trade.Quantity))

	switch trade.Side {
	case domain.TradeSide_Buy:
		if value.GreaterThan(l.portfolio.Cash) {
			return fmt.Errorf("insufficient funds for %s: need %s, have %s",
				trade.Symbol, value.StringFixed(2), l.portfolio.Cash.StringFixed(2))
		}
		l.portfolio.Cash = l.portfolio.Cash.Sub(value)
		position, ok := l.portfolio.Positions[trade.Symbol]
		if !ok {
			l.portfolio.Positions[trade.Symbol] = &domain.Position{
				Symbol:   trade.Symbol,
				Quantity: trade.Quantity,
				AvgCost:  decimal.NewFromFloat(trade.ExpectedPrice),
			}
		} else {
			totalQuantity := position.Quantity + trade.Quantity
			totalCost := position.CostBasis().Add(value)
			position.AvgCost = totalCost.Div(decimal.NewFromInt(totalQuantity))
			position.Quantity = totalQuantity
		}

	case domain.TradeSide_Sell:
		position, ok := l.portfolio.Positions[trade.Symbol]
		if !ok || position.Quantity < trade.Quantity {
			have := int64(0)
			if ok {
				have = position.Quantity
			}
			return fmt.Errorf("insufficient shares to sell %s: need %d, have %d", trade.Symbol, trade.Quantity, have)
		}
		position.Quantity -= trade.Quantity
		if position.Quantity == 0 {
			delete(l.portfolio.Positions, trade.Symbol)
		}
		l.portfolio.Cash = l.portfolio.Cash.Add(value)

	default:
		return fmt.Errorf("unknown trade side %q", trade.Side)
	}

	l.trades = append(l.trades, domain.FilledTrade{
		OrderID:   uuid.New(),
		Symbol:    trade.Symbol,
		Side:      trade.Side,
		Quantity:  trade.Quantity,
		FillPrice: trade.ExpectedPrice,
		FilledAt:  date,
		CashAfter: l.portfolio.Cash,
	})
	return nil
}
