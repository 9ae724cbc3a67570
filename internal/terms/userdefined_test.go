package terms_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/terms"
)

func TestUserDefinedRejectsNilValuesFunc(t *testing.T) {
	_, err := terms.NewUserDefined("nope", []int{0, 1}, 1, nil, nil, qp.Squared, qp.NotAConstraint, 0)
	assert.Error(t, err)
}

func TestUserDefinedFallsBackToCentralDifference(t *testing.T) {
	values := func(x []float64) []float64 {
		return []float64{x[0]*x[0] + x[1]}
	}
	term, err := terms.NewUserDefined("quad", []int{0, 1}, 1, values, nil, qp.Squared, qp.NotAConstraint, 0)
	require.NoError(t, err)

	x := []float64{3, 2}
	jac := term.Jacobian(x)
	require.Len(t, jac, 1)
	assert.InDelta(t, 6.0, jac[0][0], 1e-3)
	assert.InDelta(t, 1.0, jac[0][1], 1e-3)
}

func TestUserDefinedUsesSuppliedJacobianWhenPresent(t *testing.T) {
	values := func(x []float64) []float64 { return []float64{x[0]} }
	jacFn := func(x []float64) [][]float64 { return [][]float64{{42}} }
	term, err := terms.NewUserDefined("linear", []int{0}, 1, values, jacFn, qp.Squared, qp.NotAConstraint, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{42}}, term.Jacobian([]float64{1}))
}

func TestRegisterUserFunctionResolvesIndicesFromStep(t *testing.T) {
	traj := newTestTrajectory(t, false)
	r := terms.NewRegistry()
	terms.RegisterUserFunction(r, "custom_gap", func(raw json.RawMessage, idx []int) (*terms.UserDefined, error) {
		return terms.NewUserDefined("gap", idx, 1, func(x []float64) []float64 {
			return []float64{x[0] - x[1]}
		}, nil, qp.Squared, qp.NotAConstraint, 0)
	})

	term, err := r.Build("custom_gap", json.RawMessage(`{"step":1}`), traj)
	require.NoError(t, err)
	assert.Equal(t, traj.JointIndices(1), term.VarIndices())
}
