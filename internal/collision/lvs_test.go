package collision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/sqpforge/internal/collision"
)

// Mirrors the longest-valid-segment worked example: a 0.45-unit step
// against L=0.1 subdivides into n=ceil(0.45/0.1)+1=6 sub-states, each
// dt=1/(n-1)=1/5 apart.
func TestNumSubStatesMatchesLongestValidSegmentWorkedExample(t *testing.T) {
	n := collision.NumSubStates([]float64{0}, []float64{0.45}, 0.1)
	assert.Equal(t, 6, n)
	dt := 1.0 / float64(n-1)
	assert.InDelta(t, 0.2, dt, 1e-9)
}

func TestNumSubStatesFallsBackToTwoWhenWithinOneSegment(t *testing.T) {
	n := collision.NumSubStates([]float64{0}, []float64{0.05}, 0.1)
	assert.Equal(t, 2, n)
}
