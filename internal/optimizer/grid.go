package optimizer

import (
	"fmt"
	"math"

	"momentum/internal/domain"
)

// EnumerateSimplex lists every weight triple on the 2-simplex lattice
// with the given step. Step must divide 1 evenly (0.5, 0.25, 0.1, ...).
func EnumerateSimplex(step float64) ([]domain.WeightTriple, error) {
	if step <= 0 || step > 1 {
		return nil, fmt.Errorf("grid step must be in (0, 1], got %f", step)
	}
	steps := int(math.Round(1 / step))
	if math.Abs(float64(steps)*step-1) > 1e-9 {
		return nil, fmt.Errorf("grid step %f does not divide 1 evenly", step)
	}

	triples := []domain.WeightTriple{}
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps-i; j++ {
			k := steps - i - j
			triple, err := domain.NewWeightTriple(
				float64(i)/float64(steps),
				float64(j)/float64(steps),
				float64(k)/float64(steps),
			)
			if err != nil {
				return nil, fmt.Errorf("grid produced invalid triple: %w", err)
			}
			triples = append(triples, triple)
		}
	}
	return triples, nil
}
