package qpsolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/sqpforge/internal/qpsolver"
)

// A zero Hessian with a zero constraint matrix makes the majorizing
// matrix M singular at every rho, so Solve must fall through Cholesky
// and LU and still make progress via the line-search fallback.
func TestActiveSetSolverFallsBackToLineSearchOnSingularSystem(t *testing.T) {
	s := qpsolver.NewActiveSetSolver()
	require.NoError(t, s.Init(2, 2))
	require.NoError(t, s.UpdateHessianMatrix(mat.NewDense(2, 2, []float64{0, 0, 0, 0})))
	require.NoError(t, s.UpdateGradient([]float64{-4, -6}))
	require.NoError(t, s.UpdateLinearConstraintsMatrix(mat.NewDense(2, 2, []float64{0, 0, 0, 0})))
	require.NoError(t, s.UpdateBounds([]float64{-10, -10}, []float64{10, 10}))

	s.Solve()
	sol := s.GetSolution()
	require.False(t, sol[0] == 0 && sol[1] == 0)
}
