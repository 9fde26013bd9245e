package domain

import (
	"fmt"
	"math"
	"time"
)

// SymbolSnapshot holds the raw factor inputs for one symbol on one
// date. It is derived purely from price history up to AsOf and never
// mutated after construction.
type SymbolSnapshot struct {
	Symbol string
	AsOf   time.Time
	Close  float64

	Return22 float64
	Return44 float64
	Return66 float64

	RSI22 float64
	RSI44 float64
	RSI66 float64

	// PctOf52WeekHigh is close / trailing-252d-high * 100, so 100 means
	// the symbol printed its 52-week high today.
	PctOf52WeekHigh float64
}

func (s SymbolSnapshot) ReturnScore() float64 {
	return (s.Return22 + s.Return44 + s.Return66) / 3
}

func (s SymbolSnapshot) RSIScore() float64 {
	return (s.RSI22 + s.RSI44 + s.RSI66) / 3
}

func (s SymbolSnapshot) ProximityScore() float64 {
	return s.PctOf52WeekHigh
}

// RankedSymbol is one row of a ranking. Sub-ranks are normalized to
// [0, 1] with 1 the best symbol on that factor; Composite is the
// weighted sum of the three. Rank is the 1-based position after sorting
// by Composite descending, ties broken by ascending symbol.
type RankedSymbol struct {
	Symbol        string
	ReturnRank    float64
	RSIRank       float64
	ProximityRank float64
	Composite     float64
	Rank          int
}

const weightSumTolerance = 1e-9

// WeightTriple configures the composite score. The sum-to-one invariant
// is a construction-time contract, not something callers tolerate at
// point of use.
type WeightTriple struct {
	Return    float64 `json:"return" yaml:"return"`
	RSI       float64 `json:"rsi" yaml:"rsi"`
	Proximity float64 `json:"proximity" yaml:"proximity"`
}

func NewWeightTriple(returnWeight, rsiWeight, proximityWeight float64) (WeightTriple, error) {
	w := WeightTriple{Return: returnWeight, RSI: rsiWeight, Proximity: proximityWeight}
	if err := w.Validate(); err != nil {
		return WeightTriple{}, err
	}
	return w, nil
}

func (w WeightTriple) Validate() error {
	for _, v := range []float64{w.Return, w.RSI, w.Proximity} {
		if v < 0 {
			return fmt.Errorf("weights must be non-negative, got (%f, %f, %f)", w.Return, w.RSI, w.Proximity)
		}
	}
	if sum := w.Return + w.RSI + w.Proximity; math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %f from (%f, %f, %f)", sum, w.Return, w.RSI, w.Proximity)
	}
	return nil
}

func (w WeightTriple) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", w.Return, w.RSI, w.Proximity)
}
