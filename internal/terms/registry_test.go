package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/terms"
)

func newTestTrajectory(t *testing.T, useTime bool) *terms.Trajectory {
	vars := &qp.VariableSet{}
	traj, err := terms.NewTrajectory(vars, nil, 3, 2, []float64{-10, -10}, []float64{10, 10}, useTime, 0.1, 0.01, 1.0)
	require.NoError(t, err)
	return traj
}

func TestGlobalRegistryHasEveryBuiltinFamily(t *testing.T) {
	r := terms.Global()
	for _, name := range []string{
		"joint_position", "joint_velocity", "joint_acceleration", "joint_jerk",
		"cartesian_pose", "cartesian_velocity", "inverse_kinematics",
		"total_time", "singularity_avoidance",
	} {
		assert.True(t, r.Registered(name), "expected %q to be registered", name)
	}
}

func TestRegistryBuildRejectsUnknownType(t *testing.T) {
	r := terms.Global()
	traj := newTestTrajectory(t, false)
	_, err := r.Build("not_a_real_term", json.RawMessage(`{}`), traj)
	assert.Error(t, err)
}

func TestNewRegistryIsIndependentOfGlobal(t *testing.T) {
	r := terms.NewRegistry()
	assert.False(t, r.Registered("joint_position"))

	r.Register("joint_position", func(raw json.RawMessage, traj *terms.Trajectory) (qp.Term, error) {
		return nil, nil
	})
	assert.True(t, r.Registered("joint_position"))
}
