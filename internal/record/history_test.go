package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHistoryBound checks that after N prepends the length is min(N, cap)
// and the newest point is always first.
func TestHistoryBound(t *testing.T) {
	for n := 0; n <= 10; n++ {
		var h History
		for i := 1; i <= n; i++ {
			h = h.Prepend(Point{Lat: float64(i), Lon: float64(-i), T: int64(i)})
		}

		want := n
		if want > HistoryCap {
			want = HistoryCap
		}
		require.Len(t, h, want, "n=%d", n)

		if n == 0 {
			_, ok := h.Latest()
			assert.False(t, ok)
			continue
		}
		latest, ok := h.Latest()
		require.True(t, ok)
		assert.Equal(t, int64(n), latest.T)

		// Remaining entries keep their relative order, newest first.
		for i := 1; i < len(h); i++ {
			assert.Equal(t, h[i-1].T-1, h[i].T)
		}
	}
}

func TestHistoryPrependDoesNotAlias(t *testing.T) {
	h := History{{T: 3}, {T: 2}, {T: 1}}
	next := h.Prepend(Point{T: 4})

	assert.Equal(t, History{{T: 3}, {T: 2}, {T: 1}}, h)
	assert.Equal(t, History{{T: 4}, {T: 3}, {T: 2}, {T: 1}}, next)

	full := next.Prepend(Point{T: 5})
	assert.Equal(t, History{{T: 5}, {T: 4}, {T: 3}, {T: 2}}, full)
}
