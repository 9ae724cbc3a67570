package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/terms"
)

func TestJointPositionCostValuesAndJacobian(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"pos","step":1,"target":[1,2]}`)
	term, err := terms.Global().Build("joint_position", raw, traj)
	require.NoError(t, err)
	require.Equal(t, 2, term.Size())
	require.Equal(t, qp.NotAConstraint, term.Comparison())

	x := []float64{3, 5}
	vals := term.Values(x)
	assert.Equal(t, []float64{2, 3}, vals)

	jac := term.Jacobian(x)
	require.Len(t, jac, 2)
	assert.Equal(t, []float64{1, 0}, jac[0])
	assert.Equal(t, []float64{0, 1}, jac[1])
}

func TestJointVelocityConstraintHasHingePenaltyAndDoubleWidth(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"vel","step":0,"tolerance":[1,1],"as_constraint":true}`)
	term, err := terms.Global().Build("joint_velocity", raw, traj)
	require.NoError(t, err)
	assert.Equal(t, 4, term.Size())
	assert.Equal(t, qp.INEQ, term.Comparison())
	assert.Equal(t, qp.Hinge, term.Penalty())
}

func TestJointPositionCostRejectsStepBeyondTrajectory(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"pos","step":5,"target":[1,2]}`)
	_, err := terms.Global().Build("joint_position", raw, traj)
	assert.Error(t, err)
}

func TestJointAccelerationCostSpansThreeSteps(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"acc","step":0,"target":[0,0]}`)
	term, err := terms.Global().Build("joint_acceleration", raw, traj)
	require.NoError(t, err)
	assert.Len(t, term.VarIndices(), 3*traj.DOF)
}
