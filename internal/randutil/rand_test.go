package randutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsReproducible(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}

func TestNewDiffersBySeed(t *testing.T) {
	a, b := New(1), New(2)
	same := true
	for i := 0; i < 10; i++ {
		if a.Uint64() != b.Uint64() {
			same = false
		}
	}
	assert.False(t, same)
}

func TestSeed(t *testing.T) {
	now := time.Unix(0, 1234)
	seed := int64(7)
	assert.Equal(t, int64(7), Seed(&seed, now))
	assert.Equal(t, int64(1234), Seed(nil, now))
}
