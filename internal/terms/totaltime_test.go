package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/terms"
)

func TestTotalTimeCostSumsStepDurations(t *testing.T) {
	traj := newTestTrajectory(t, true)
	raw := json.RawMessage(`{"name":"duration"}`)
	term, err := terms.Global().Build("total_time", raw, traj)
	require.NoError(t, err)
	require.Len(t, term.VarIndices(), traj.Steps)

	invDt := make([]float64, traj.Steps)
	for i := range invDt {
		invDt[i] = 1.0 / 0.1
	}
	vals := term.Values(invDt)
	require.Len(t, vals, 1)
	assert.InDelta(t, float64(traj.Steps)*0.1, vals[0], 1e-9)
}

func TestTotalTimeCostRejectsTrajectoryWithoutUseTime(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"duration"}`)
	_, err := terms.Global().Build("total_time", raw, traj)
	assert.Error(t, err)
}
