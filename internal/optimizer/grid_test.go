package optimizer

import (
	"testing"

	"momentum/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_EnumerateSimplex(t *testing.T) {
	t.Run("step 0.5 yields exactly the six lattice points", func(t *testing.T) {
		triples, err := EnumerateSimplex(0.5)
		require.NoError(t, err)

		expected := []domain.WeightTriple{
			{Return: 0, RSI: 0, Proximity: 1},
			{Return: 0, RSI: 0.5, Proximity: 0.5},
			{Return: 0, RSI: 1, Proximity: 0},
			{Return: 0.5, RSI: 0, Proximity: 0.5},
			{Return: 0.5, RSI: 0.5, Proximity: 0},
			{Return: 1, RSI: 0, Proximity: 0},
		}
		require.Equal(t, "", cmp.Diff(expected, triples))
	})

	t.Run("every point sums to one", func(t *testing.T) {
		triples, err := EnumerateSimplex(0.1)
		require.NoError(t, err)
		require.Len(t, triples, 66)
		for _, triple := range triples {
			require.NoError(t, triple.Validate())
		}
	})

	t.Run("step must divide one evenly", func(t *testing.T) {
		_, err := EnumerateSimplex(0.3)
		require.Error(t, err)
	})

	t.Run("step must be positive", func(t *testing.T) {
		_, err := EnumerateSimplex(0)
		require.Error(t, err)
	})
}
