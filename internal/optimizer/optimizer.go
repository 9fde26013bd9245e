// Package optimizer searches the factor-weight simplex for the triple
// with the best risk-adjusted backtest outcome: a coarse grid pass over
// every lattice point, then an optional Nelder-Mead refinement seeded
// from the grid winner. Candidates whose drawdown breaches the floor
// are reported but never selected.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"momentum/internal/domain"
	"momentum/internal/logger"
)

// Evaluate runs a full backtest for one weight triple and returns its
// CAGR and max drawdown, both in percent (drawdown non-positive).
type Evaluate func(ctx context.Context, weights domain.WeightTriple) (cagrPct float64, maxDrawdownPct float64, err error)

type Candidate struct {
	Weights        domain.WeightTriple `json:"weights"`
	CAGRPct        float64             `json:"cagrPct"`
	MaxDrawdownPct float64             `json:"maxDrawdownPct"`
	Feasible       bool                `json:"feasible"`

	// FailureReason is set when the backtest itself failed; such a
	// candidate is recorded and skipped, it never aborts the search.
	FailureReason string `json:"failureReason,omitempty"`
}

type Config struct {
	GridStep float64

	// MaxDrawdownFloor is the worst acceptable drawdown in percent
	// (e.g. -30). A candidate below it is infeasible.
	MaxDrawdownFloor float64

	Workers int

	// Refine runs a Nelder-Mead pass seeded from the grid winner.
	Refine          bool
	RefineMaxEvals  int
	RefineTolerance float64
}

func DefaultConfig() Config {
	return Config{
		GridStep:         0.1,
		MaxDrawdownFloor: -30,
		Workers:          4,
		Refine:           true,
		RefineMaxEvals:   120,
		RefineTolerance:  1e-4,
	}
}

func (c Config) Validate() error {
	if c.GridStep <= 0 || c.GridStep > 1 {
		return fmt.Errorf("grid step must be in (0, 1], got %f", c.GridStep)
	}
	if c.MaxDrawdownFloor > 0 {
		return fmt.Errorf("max drawdown floor must be non-positive, got %f", c.MaxDrawdownFloor)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Refine && c.RefineMaxEvals <= 0 {
		return fmt.Errorf("refine max evals must be positive, got %d", c.RefineMaxEvals)
	}
	return nil
}

type Report struct {
	// Candidates holds every evaluated triple, best first. Failed
	// candidates sort to the bottom.
	Candidates []Candidate `json:"candidates"`

	// Best is the top feasible candidate, nil when every candidate
	// failed or breached the drawdown floor.
	Best *Candidate `json:"best,omitempty"`

	Evaluations int `json:"evaluations"`
}

// Optimize runs the weight search. Individual backtest failures are
// recorded on their candidate; only an invalid config is an error.
func Optimize(ctx context.Context, eval Evaluate, cfg Config) (*Report, error) {
	log := logger.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimizer config: %w", err)
	}

	triples, err := EnumerateSimplex(cfg.GridStep)
	if err != nil {
		return nil, err
	}
	log.Infow("starting weight grid search", "gridStep", cfg.GridStep, "candidates", len(triples), "workers", cfg.Workers)

	candidates := evaluateAll(ctx, eval, triples, cfg)
	evaluations := len(candidates)

	sortCandidates(candidates, cfg.MaxDrawdownFloor)

	report := &Report{Candidates: candidates}
	if len(candidates) > 0 && candidates[0].Feasible {
		best := candidates[0]
		report.Best = &best
	}

	if cfg.Refine && report.Best != nil {
		refined, evals := refine(ctx, eval, report.Best.Weights, cfg)
		evaluations += evals
		if refined != nil {
			report.Candidates = append(report.Candidates, *refined)
			sortCandidates(report.Candidates, cfg.MaxDrawdownFloor)
			if report.Candidates[0].Feasible {
				best := report.Candidates[0]
				report.Best = &best
			}
		}
	}

	report.Evaluations = evaluations
	if report.Best == nil {
		log.Warnw("no feasible weight candidate found", "drawdownFloor", cfg.MaxDrawdownFloor)
	} else {
		log.Infow("weight search finished",
			"best", report.Best.Weights.String(),
			"cagrPct", report.Best.CAGRPct,
			"maxDrawdownPct", report.Best.MaxDrawdownPct,
			"evaluations", evaluations,
		)
	}
	return report, nil
}

func evaluateAll(ctx context.Context, eval Evaluate, triples []domain.WeightTriple, cfg Config) []Candidate {
	candidates := make([]Candidate, len(triples))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				candidates[i] = evaluateOne(ctx, eval, triples[i], cfg.MaxDrawdownFloor)
			}
		}()
	}
	for i := range triples {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return candidates
}

func evaluateOne(ctx context.Context, eval Evaluate, weights domain.WeightTriple, floor float64) Candidate {
	candidate := Candidate{Weights: weights}
	cagr, drawdown, err := eval(ctx, weights)
	if err != nil {
		candidate.FailureReason = err.Error()
		return candidate
	}
	candidate.CAGRPct = cagr
	candidate.MaxDrawdownPct = drawdown
	candidate.Feasible = drawdown >= floor
	return candidate
}

// sortCandidates orders by CAGR descending, breaking ties with the
// smaller absolute drawdown. Failed candidates go last.
func sortCandidates(candidates []Candidate, _ float64) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if (a.FailureReason == "") != (b.FailureReason == "") {
			return a.FailureReason == ""
		}
		if a.CAGRPct != b.CAGRPct {
			return a.CAGRPct > b.CAGRPct
		}
		return math.Abs(a.MaxDrawdownPct) < math.Abs(b.MaxDrawdownPct)
	})
}
