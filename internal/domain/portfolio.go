package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	Positions map[string]*Position
	Cash      decimal.Decimal
}

func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Positions: map[string]*Position{},
		Cash:      cash,
	}
}

// HeldSymbols returns held symbols in ascending order so every consumer
// iterates deterministically.
func (p Portfolio) HeldSymbols() []string {
	symbols := make([]string, 0, len(p.Positions))
	for symbol := range p.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (p Portfolio) DeepCopy() *Portfolio {
	newPortfolio := &Portfolio{
		Cash:      p.Cash,
		Positions: map[string]*Position{},
	}
	for symbol, position := range p.Positions {
		newPortfolio.Positions[symbol] = position.DeepCopy()
	}
	return newPortfolio
}

// MarketValue is cash plus holdings at the given closes. A symbol
// missing from priceMap is valued at its average cost, matching how the
// ledger treats a day with no print for a thinly traded name.
func (p Portfolio) MarketValue(priceMap map[string]float64) float64 {
	total := p.Cash.InexactFloat64()
	for symbol, position := range p.Positions {
		price, ok := priceMap[symbol]
		if !ok {
			price = position.AvgCost.InexactFloat64()
		}
		total += float64(position.Quantity) * price
	}
	return total
}

// Position is a whole-share holding. AvgCost is the volume-weighted
// average purchase price.
type Position struct {
	Symbol   string
	Quantity int64
	AvgCost  decimal.Decimal
}

func (p Position) DeepCopy() *Position {
	return &Position{
		Symbol:   p.Symbol,
		Quantity: p.Quantity,
		AvgCost:  p.AvgCost,
	}
}

func (p Position) CostBasis() decimal.Decimal {
	return p.AvgCost.Mul(decimal.NewFromInt(p.Quantity))
}

type TradeSide string

const (
	TradeSide_Buy  TradeSide = "BUY"
	TradeSide_Sell TradeSide = "SELL"
)

// ProposedTrade is one leg of a rebalance plan, sized in whole shares.
// Rank is nil for the cash-equivalent placeholder.
type ProposedTrade struct {
	Symbol        string
	Side          TradeSide
	Quantity      int64
	Rank          *int
	ExpectedPrice float64
}

func (p ProposedTrade) ExpectedAmount() decimal.Decimal {
	return decimal.NewFromInt(p.Quantity).Mul(decimal.NewFromFloat(p.ExpectedPrice)).Abs()
}

type FilledTrade struct {
	OrderID   uuid.UUID
	Symbol    string
	Side      TradeSide
	Quantity  int64
	FillPrice float64
	FilledAt  time.Time
	CashAfter decimal.Decimal
}
