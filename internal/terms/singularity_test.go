package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/terms"
)

func TestSingularityCostRequiresPositiveLambda(t *testing.T) {
	traj := newTwoLinkEnvTrajectory(t)
	raw := json.RawMessage(`{"name":"sing","link":"link_1","step":0,"lambda":0}`)
	_, err := terms.Global().Build("singularity_avoidance", raw, traj)
	assert.Error(t, err)
}

func TestSingularityCostRequiresEnvironment(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"sing","link":"link_1","step":0,"lambda":0.1}`)
	_, err := terms.Global().Build("singularity_avoidance", raw, traj)
	assert.Error(t, err)
}

func TestSingularityCostGrowsNearFullyExtendedArm(t *testing.T) {
	traj := newTwoLinkEnvTrajectory(t)
	raw := json.RawMessage(`{"name":"sing","link":"link_1","step":0,"lambda":0.01}`)
	term, err := terms.Global().Build("singularity_avoidance", raw, traj)
	require.NoError(t, err)
	require.Equal(t, qp.Absolute, term.Penalty())

	straight := term.Values([]float64{0, 0})[0]
	bent := term.Values([]float64{0, 1.2})[0]
	assert.Greater(t, straight, bent)
}
