package collision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/sqpforge/internal/collision"
)

func TestHashIsDeterministicAndPositionSensitive(t *testing.T) {
	a := collision.Hash(7, []float64{0.1, 0.2})
	b := collision.Hash(7, []float64{0.1, 0.2})
	c := collision.Hash(7, []float64{0.1, 0.3})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHashPairDiffersFromHash(t *testing.T) {
	single := collision.Hash(1, []float64{0.5})
	pair := collision.HashPair(1, []float64{0.5}, []float64{0.5})
	assert.NotEqual(t, single, pair)
}

func TestCantorHashIsDeterministicAndOrderSensitive(t *testing.T) {
	assert.Equal(t, collision.CantorHash(2, 3), collision.CantorHash(2, 3))
	assert.NotEqual(t, collision.CantorHash(2, 3), collision.CantorHash(3, 2))
}

func TestRemoveInvalidContactResultsDropsBeyondBufferAndFixedEndpoints(t *testing.T) {
	results := []collision.GradientResult{
		{ErrorWithBuffer: -1.0},               // beyond margin+buffer, dropped
		{ErrorWithBuffer: 0.001, IsTimestep1: false}, // kept
		{ErrorWithBuffer: 0.001, IsTimestep1: true},  // dropped: var1 fixed
	}
	out := collision.RemoveInvalidContactResults(results, 0, 0.01, false, true)
	assert.Len(t, out, 1)
	assert.False(t, out[0].IsTimestep1)
}
