package deck

import (
	"testing"
	"time"

	"github.com/lox/triadsync/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(hand []rules.HandCard) []int {
	out := make([]int, len(hand))
	for i, c := range hand {
		out[i] = c.ID
	}
	return out
}

func TestDealKnownSeed(t *testing.T) {
	host, guest := Deal(12345)

	assert.Equal(t, []int{12, 10, 16, 6, 2}, ids(host))
	assert.Equal(t, []int{14, 11, 9, 15, 8}, ids(guest))
	for _, c := range host {
		assert.Equal(t, rules.Host, c.Owner)
	}
	for _, c := range guest {
		assert.Equal(t, rules.Guest, c.Owner)
	}
}

func TestDealDeterministic(t *testing.T) {
	for _, seed := range []int64{0, 1, 12345, 233279, 233280, -7, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()} {
		h1, g1 := Deal(seed)
		h2, g2 := Deal(seed)
		assert.Equal(t, h1, h2, "seed %d", seed)
		assert.Equal(t, g1, g2, "seed %d", seed)
	}
}

func TestDealPartition(t *testing.T) {
	for seed := int64(0); seed < 500; seed++ {
		host, guest := Deal(seed)
		require.Len(t, host, HandSize)
		require.Len(t, guest, HandSize)

		seen := map[int]bool{}
		for _, c := range append(ids(host), ids(guest)...) {
			require.False(t, seen[c], "seed %d dealt card %d twice", seed, c)
			_, ok := ByID(c)
			require.True(t, ok)
			seen[c] = true
		}
	}
}

func TestDealSeedsDiffer(t *testing.T) {
	distinct := map[[10]int]bool{}
	for seed := int64(1); seed <= 50; seed++ {
		host, guest := Deal(seed)
		var key [10]int
		copy(key[:], append(ids(host), ids(guest)...))
		distinct[key] = true
	}
	assert.Greater(t, len(distinct), 45)
}

func TestLCGReducesSeed(t *testing.T) {
	a := NewLCG(12345)
	b := NewLCG(12345 + 3*lcgModulus)
	c := NewLCG(12345 - lcgModulus)
	for i := 0; i < 20; i++ {
		v := a.Next()
		assert.Equal(t, v, b.Next())
		assert.Equal(t, v, c.Next())
		assert.GreaterOrEqual(t, v, int64(0))
		assert.Less(t, v, int64(lcgModulus))
	}
}

func TestDeckDealN(t *testing.T) {
	d := NewDeck(1)
	assert.Equal(t, len(catalog), d.CardsRemaining())
	d.Shuffle()
	assert.Len(t, d.DealN(5), 5)
	assert.Equal(t, len(catalog)-5, d.CardsRemaining())
	assert.Len(t, d.DealN(100), len(catalog)-5)
	assert.Zero(t, d.CardsRemaining())
}

func TestCatalogIsCopy(t *testing.T) {
	c := Catalog()
	c[0].Top = 99
	assert.Equal(t, 6, catalog[0].Top)
}
