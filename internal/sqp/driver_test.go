package sqp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/sqp"
)

// linearTerm is a trivial affine term, mirroring internal/qp's test
// double, used to drive the end-to-end solve loop without any real
// robotics kinematics.
type linearTerm struct {
	name string
	idx  []int
	a    [][]float64
	b    []float64
	pen  qp.PenaltyKind
	cmp  qp.ComparisonKind
}

func (t *linearTerm) Name() string            { return t.name }
func (t *linearTerm) Size() int                { return len(t.b) }
func (t *linearTerm) VarIndices() []int        { return t.idx }
func (t *linearTerm) Penalty() qp.PenaltyKind       { return t.pen }
func (t *linearTerm) Comparison() qp.ComparisonKind { return t.cmp }

func (t *linearTerm) Values(x []float64) []float64 {
	out := make([]float64, len(t.b))
	for r := range out {
		v := -t.b[r]
		for c := range x {
			v += t.a[r][c] * x[c]
		}
		out[r] = v
	}
	return out
}

func (t *linearTerm) Jacobian(x []float64) [][]float64 { return t.a }

func newProblem(t *testing.T, start []float64) *qp.Problem {
	vs := &qp.VariableSet{}
	_, err := vs.Add("x", 2, []float64{-10, -10}, []float64{10, 10})
	require.NoError(t, err)
	p := qp.NewProblem(vs)
	p.SetVariables(start)
	return p
}

func TestSolveUnconstrainedQuadraticConvergesToOrigin(t *testing.T) {
	p := newProblem(t, []float64{3, -2})
	require.NoError(t, p.AddCost(&linearTerm{
		name: "dist",
		idx:  []int{0, 1},
		a:    [][]float64{{1, 0}, {0, 1}},
		b:    []float64{0, 0},
		pen:  qp.Squared,
		cmp:  qp.NotAConstraint,
	}))

	solver, err := sqp.NewSolver(sqp.DefaultParams(), nil, nil)
	require.NoError(t, err)

	results, err := solver.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, sqp.NLPConverged, results.Status)
	require.InDelta(t, 0, results.BestVarVals[0], 1e-2)
	require.InDelta(t, 0, results.BestVarVals[1], 1e-2)
}

func TestSolveRespectsInequalityConstraint(t *testing.T) {
	p := newProblem(t, []float64{0, 0})
	require.NoError(t, p.AddCost(&linearTerm{
		name: "dist",
		idx:  []int{0, 1},
		a:    [][]float64{{1, 0}, {0, 1}},
		b:    []float64{2, 2},
		pen:  qp.Squared,
		cmp:  qp.NotAConstraint,
	}))
	require.NoError(t, p.AddConstraint(&linearTerm{
		name: "cap",
		idx:  []int{0},
		a:    [][]float64{{1}},
		b:    []float64{1}, // x0 - 1 <= 0
		pen:  qp.Squared,
		cmp:  qp.INEQ,
	}))

	solver, err := sqp.NewSolver(sqp.DefaultParams(), nil, nil)
	require.NoError(t, err)

	results, err := solver.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Contains(t, []sqp.Status{sqp.NLPConverged, sqp.PenaltyIterationLimit}, results.Status)
	require.LessOrEqual(t, results.BestVarVals[0], 1.0+1e-2)
}

func TestSolveStopsOnCallback(t *testing.T) {
	p := newProblem(t, []float64{5, 5})
	require.NoError(t, p.AddCost(&linearTerm{
		name: "dist",
		idx:  []int{0, 1},
		a:    [][]float64{{1, 0}, {0, 1}},
		b:    []float64{0, 0},
		pen:  qp.Squared,
		cmp:  qp.NotAConstraint,
	}))

	solver, err := sqp.NewSolver(sqp.DefaultParams(), nil, nil)
	require.NoError(t, err)
	solver.AddCallback(func(_ *qp.Problem, _ *sqp.Results) bool { return false })

	results, err := solver.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, sqp.CallbackStopped, results.Status)
}

func TestSolveAbortsImmediatelyWhenTimeBudgetIsZero(t *testing.T) {
	// A problem with at least one constraint, so the zero time budget
	// cuts short a solve that has penalty work to do.
	p := newProblem(t, []float64{5, 5})
	require.NoError(t, p.AddCost(&linearTerm{
		name: "dist",
		idx:  []int{0, 1},
		a:    [][]float64{{1, 0}, {0, 1}},
		b:    []float64{0, 0},
		pen:  qp.Squared,
		cmp:  qp.NotAConstraint,
	}))
	require.NoError(t, p.AddConstraint(&linearTerm{
		name: "cap",
		idx:  []int{0},
		a:    [][]float64{{1}},
		b:    []float64{1},
		pen:  qp.Squared,
		cmp:  qp.INEQ,
	}))

	params := sqp.DefaultParams()
	params.MaxTimeSeconds = 0
	solver, err := sqp.NewSolver(params, nil, nil)
	require.NoError(t, err)

	results, err := solver.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, sqp.OptTimeLimit, results.Status)
	require.LessOrEqual(t, results.OverallIteration, 1)
}

func TestSolveWithNoConstraintsConvergesImmediatelyAfterSetup(t *testing.T) {
	p := newProblem(t, []float64{0, 0})
	require.NoError(t, p.AddCost(&linearTerm{
		name: "dist",
		idx:  []int{0, 1},
		a:    [][]float64{{1, 0}, {0, 1}},
		b:    []float64{0, 0},
		pen:  qp.Squared,
		cmp:  qp.NotAConstraint,
	}))

	solver, err := sqp.NewSolver(sqp.DefaultParams(), nil, nil)
	require.NoError(t, err)

	results, err := solver.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, sqp.NLPConverged, results.Status)
	require.Equal(t, 0, results.OverallIteration)
}
