package optimizer

import (
	"context"
	"math"
	"sort"

	"momentum/internal/domain"
)

// The simplex has two free coordinates (return weight, RSI weight);
// the proximity weight is whatever remains. Points that wander off the
// simplex or breach the drawdown floor pay a penalty instead of being
// rejected, which keeps the search inside the feasible region without
// hard constraints.

const (
	offSimplexPenalty = 1e9
	drawdownPenalty   = 1e3
)

type evaluation struct {
	cagr     float64
	drawdown float64
	failed   bool
}

// refine polishes the grid winner with a Nelder-Mead descent on the
// negated CAGR. Returns the refined candidate (nil when nothing beat
// the seed) and the number of backtests spent.
func refine(ctx context.Context, eval Evaluate, seed domain.WeightTriple, cfg Config) (*Candidate, int) {
	evals := 0
	cache := map[[2]float64]evaluation{}

	objective := func(x, y float64) float64 {
		z := 1 - x - y
		if x < -1e-9 || y < -1e-9 || z < -1e-9 {
			return offSimplexPenalty * (1 + math.Max(math.Max(-x, -y), -z))
		}
		key := [2]float64{math.Round(x*1e6) / 1e6, math.Round(y*1e6) / 1e6}
		result, ok := cache[key]
		if !ok {
			weights := clampTriple(x, y)
			cagr, drawdown, err := eval(ctx, weights)
			evals++
			result = evaluation{cagr: cagr, drawdown: drawdown, failed: err != nil}
			cache[key] = result
		}
		if result.failed {
			return offSimplexPenalty
		}
		value := -result.cagr
		if result.drawdown < cfg.MaxDrawdownFloor {
			value += drawdownPenalty * (cfg.MaxDrawdownFloor - result.drawdown)
		}
		return value
	}

	best := nelderMead(objective, [2]float64{seed.Return, seed.RSI}, cfg.RefineMaxEvals, cfg.RefineTolerance, &evals)

	key := [2]float64{math.Round(best[0]*1e6) / 1e6, math.Round(best[1]*1e6) / 1e6}
	result, ok := cache[key]
	if !ok || result.failed {
		return nil, evals
	}
	weights := clampTriple(best[0], best[1])
	if err := weights.Validate(); err != nil {
		return nil, evals
	}
	return &Candidate{
		Weights:        weights,
		CAGRPct:        result.cagr,
		MaxDrawdownPct: result.drawdown,
		Feasible:       result.drawdown >= cfg.MaxDrawdownFloor,
	}, evals
}

// clampTriple snaps a free-coordinate pair back onto the simplex,
// absorbing float noise so Validate never trips on -1e-12.
func clampTriple(x, y float64) domain.WeightTriple {
	x = math.Max(0, math.Min(1, x))
	y = math.Max(0, math.Min(1-x, y))
	return domain.WeightTriple{Return: x, RSI: y, Proximity: 1 - x - y}
}

// nelderMead is a plain downhill simplex in two dimensions with the
// textbook reflection, expansion, contraction, and shrink moves. The
// budget bounds objective calls, not iterations.
func nelderMead(objective func(x, y float64) float64, start [2]float64, maxEvals int, tolerance float64, evals *int) [2]float64 {
	const (
		alpha = 1.0 // reflection
		gamma = 2.0 // expansion
		rho   = 0.5 // contraction
		sigma = 0.5 // shrink
		step  = 0.05
	)

	type vertex struct {
		point [2]float64
		value float64
	}

	simplex := []vertex{
		{point: start},
		{point: [2]float64{start[0] + step, start[1]}},
		{point: [2]float64{start[0], start[1] + step}},
	}
	for i := range simplex {
		simplex[i].value = objective(simplex[i].point[0], simplex[i].point[1])
	}

	for *evals < maxEvals {
		sort.Slice(simplex, func(i, j int) bool { return simplex[i].value < simplex[j].value })
		if math.Abs(simplex[2].value-simplex[0].value) < tolerance {
			break
		}

		centroid := [2]float64{
			(simplex[0].point[0] + simplex[1].point[0]) / 2,
			(simplex[0].point[1] + simplex[1].point[1]) / 2,
		}
		worst := simplex[2]

		reflected := [2]float64{
			centroid[0] + alpha*(centroid[0]-worst.point[0]),
			centroid[1] + alpha*(centroid[1]-worst.point[1]),
		}
		reflectedValue := objective(reflected[0], reflected[1])

		switch {
		case reflectedValue < simplex[0].value:
			expanded := [2]float64{
				centroid[0] + gamma*(reflected[0]-centroid[0]),
				centroid[1] + gamma*(reflected[1]-centroid[1]),
			}
			expandedValue := objective(expanded[0], expanded[1])
			if expandedValue < reflectedValue {
				simplex[2] = vertex{point: expanded, value: expandedValue}
			} else {
				simplex[2] = vertex{point: reflected, value: reflectedValue}
			}

		case reflectedValue < simplex[1].value:
			simplex[2] = vertex{point: reflected, value: reflectedValue}

		default:
			contracted := [2]float64{
				centroid[0] + rho*(worst.point[0]-centroid[0]),
				centroid[1] + rho*(worst.point[1]-centroid[1]),
			}
			contractedValue := objective(contracted[0], contracted[1])
			if contractedValue < worst.value {
				simplex[2] = vertex{point: contracted, value: contractedValue}
			} else {
				for i := 1; i < 3; i++ {
					simplex[i].point[0] = simplex[0].point[0] + sigma*(simplex[i].point[0]-simplex[0].point[0])
					simplex[i].point[1] = simplex[0].point[1] + sigma*(simplex[i].point[1]-simplex[0].point[1])
					simplex[i].value = objective(simplex[i].point[0], simplex[i].point[1])
				}
			}
		}
	}

	sort.Slice(simplex, func(i, j int) bool { return simplex[i].value < simplex[j].value })
	return simplex[0].point
}
