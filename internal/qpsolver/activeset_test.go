package qpsolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/sqpforge/internal/qpsolver"
)

func TestActiveSetSolverMinimizesUnconstrainedQuadratic(t *testing.T) {
	s := qpsolver.NewActiveSetSolver()
	require.NoError(t, s.Init(2, 2))
	require.NoError(t, s.UpdateHessianMatrix(mat.NewDense(2, 2, []float64{2, 0, 0, 2})))
	require.NoError(t, s.UpdateGradient([]float64{-4, -6}))
	require.NoError(t, s.UpdateLinearConstraintsMatrix(mat.NewDense(2, 2, []float64{1, 0, 0, 1})))
	require.NoError(t, s.UpdateBounds([]float64{-10, -10}, []float64{10, 10}))

	require.True(t, s.Solve())
	sol := s.GetSolution()
	require.InDelta(t, 2.0, sol[0], 1e-3)
	require.InDelta(t, 3.0, sol[1], 1e-3)
}

func TestActiveSetSolverRespectsBoxBounds(t *testing.T) {
	s := qpsolver.NewActiveSetSolver()
	require.NoError(t, s.Init(1, 1))
	require.NoError(t, s.UpdateHessianMatrix(mat.NewDense(1, 1, []float64{2})))
	require.NoError(t, s.UpdateGradient([]float64{-100}))
	require.NoError(t, s.UpdateLinearConstraintsMatrix(mat.NewDense(1, 1, []float64{1})))
	require.NoError(t, s.UpdateBounds([]float64{-1}, []float64{1}))

	require.True(t, s.Solve())
	sol := s.GetSolution()
	require.InDelta(t, 1.0, sol[0], 1e-2)
}

func TestActiveSetSolverFailsWithoutInit(t *testing.T) {
	s := qpsolver.NewActiveSetSolver()
	require.False(t, s.Solve())
}

func TestActiveSetSolverClearResetsState(t *testing.T) {
	s := qpsolver.NewActiveSetSolver()
	require.NoError(t, s.Init(1, 1))
	require.NoError(t, s.UpdateHessianMatrix(mat.NewDense(1, 1, []float64{2})))
	require.NoError(t, s.UpdateGradient([]float64{-2}))
	require.NoError(t, s.UpdateLinearConstraintsMatrix(mat.NewDense(1, 1, []float64{1})))
	require.NoError(t, s.UpdateBounds([]float64{-10}, []float64{10}))
	require.True(t, s.Solve())

	s.Clear()
	require.False(t, s.Solve())
}
