package universe

import (
	"testing"

	"momentum/internal/domain"

	"github.com/stretchr/testify/require"
)

func Test_Filter(t *testing.T) {
	symbols := []string{"DDD", "AAA", "CCC", "BBB"}

	t.Run("no restrictions", func(t *testing.T) {
		eligible, excluded := Filter(symbols, nil)
		require.Equal(t, []string{"AAA", "BBB", "CCC", "DDD"}, eligible)
		require.Empty(t, excluded)
	})

	t.Run("long term and stage 2 excluded, stage 1 kept", func(t *testing.T) {
		eligible, excluded := Filter(symbols, []domain.Restriction{
			{Symbol: "AAA", LongTerm: true},
			{Symbol: "BBB", Stage: 2},
			{Symbol: "CCC", Stage: 1},
		})
		require.Equal(t, []string{"CCC", "DDD"}, eligible)
		require.Equal(t, []string{"AAA", "BBB"}, excluded)
	})

	t.Run("restriction for symbol outside universe is ignored", func(t *testing.T) {
		eligible, excluded := Filter([]string{"AAA"}, []domain.Restriction{
			{Symbol: "ZZZ", LongTerm: true},
		})
		require.Equal(t, []string{"AAA"}, eligible)
		require.Empty(t, excluded)
	})
}
