package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/terms"
	"github.com/copyleftdev/sqpforge/internal/toyenv"
)

func newTwoLinkEnvTrajectory(t *testing.T) *terms.Trajectory {
	arm := toyenv.NewArm([]float64{1, 1})
	env := toyenv.NewEnv(arm, nil)
	vars := &qp.VariableSet{}
	traj, err := terms.NewTrajectory(vars, env, 3, 2, []float64{-10, -10}, []float64{10, 10}, false, 0.1, 0.01, 1.0)
	require.NoError(t, err)
	return traj
}

func TestCartesianPoseCostZeroAtTargetConfiguration(t *testing.T) {
	traj := newTwoLinkEnvTrajectory(t)
	target := planning.Pose{
		Translation: [3]float64{2, 0, 0},
		Rotation:    [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	}
	raw, err := json.Marshal(map[string]interface{}{
		"name": "reach", "link": "link_1", "step": 0, "target": target,
	})
	require.NoError(t, err)

	term, err := terms.Global().Build("cartesian_pose", raw, traj)
	require.NoError(t, err)
	require.Equal(t, 6, term.Size())

	vals := term.Values([]float64{0, 0})
	for i, v := range vals {
		assert.InDelta(t, 0, v, 1e-9, "component %d", i)
	}
}

func TestCartesianPoseCostRequiresEnvironment(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"reach","link":"link_1","step":0,"target":{}}`)
	_, err := terms.Global().Build("cartesian_pose", raw, traj)
	assert.Error(t, err)
}

func TestCartesianVelocityConstraintRequiresEnvironment(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"speed","link":"link_1","step":0,"limit":1}`)
	_, err := terms.Global().Build("cartesian_velocity", raw, traj)
	assert.Error(t, err)
}

func TestCartesianVelocityConstraintPenalizesExceedingLimit(t *testing.T) {
	traj := newTwoLinkEnvTrajectory(t)
	raw := json.RawMessage(`{"name":"speed","link":"link_1","step":0,"limit":0.01}`)
	term, err := terms.Global().Build("cartesian_velocity", raw, traj)
	require.NoError(t, err)
	require.Equal(t, qp.Hinge, term.Penalty())

	x := make([]float64, traj.DOF*2)
	x[1] = 1.0 // first step bends joint 1; the second step stays straight
	vals := term.Values(x)
	assert.Greater(t, vals[0], 0.0)
}
