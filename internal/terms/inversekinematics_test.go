package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/terms"
)

func TestInverseKinematicsCostPenalizesDriftFromSeed(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"ik","step":1,"seed":[0.5,-0.5]}`)
	term, err := terms.Global().Build("inverse_kinematics", raw, traj)
	require.NoError(t, err)
	require.Equal(t, qp.NotAConstraint, term.Comparison())

	vals := term.Values([]float64{1, -1})
	assert.InDelta(t, 0.5, vals[0], 1e-9)
	assert.InDelta(t, -0.5, vals[1], 1e-9)
}

func TestInverseKinematicsConstraintRejectsMismatchedSeedLength(t *testing.T) {
	traj := newTestTrajectory(t, false)
	raw := json.RawMessage(`{"name":"ik","step":1,"seed":[0.5],"as_constraint":true}`)
	_, err := terms.Global().Build("inverse_kinematics", raw, traj)
	assert.Error(t, err)
}
