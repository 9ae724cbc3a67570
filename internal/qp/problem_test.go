package qp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/qp"
)

// linearTerm is a trivial affine term used to exercise Problem's
// assembly logic without pulling in any real robotics kinematics.
type linearTerm struct {
	name string
	idx  []int
	a    [][]float64 // row-major coefficients, values(x) = a*x - b
	b    []float64
	pen  qp.PenaltyKind
	cmp  qp.ComparisonKind
}

func (t *linearTerm) Name() string        { return t.name }
func (t *linearTerm) Size() int            { return len(t.b) }
func (t *linearTerm) VarIndices() []int    { return t.idx }
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

func (t *linearTerm) Jacobian(x []float64) [][]float64 {
	return t.a
}

func newVars(t *testing.T) *qp.VariableSet {
	vs := &qp.VariableSet{}
	_, err := vs.Add("x", 2, []float64{-10, -10}, []float64{10, 10})
	require.NoError(t, err)
	return vs
}

func TestProblemSquaredCostConvexifiesToQuadratic(t *testing.T) {
	vs := newVars(t)
	p := qp.NewProblem(vs)
	p.SetVariables([]float64{1, 1})
	p.SetBoxSize([]float64{5, 5})

	cost := &linearTerm{
		name: "sq",
		idx:  []int{0, 1},
		a:    [][]float64{{1, 0}, {0, 1}},
		b:    []float64{0, 0},
		pen:  qp.Squared,
		cmp:  qp.NotAConstraint,
	}
	require.NoError(t, p.AddCost(cost))
	p.Convexify()

	require.Equal(t, 2, p.NumQPVars())
	H := p.GetHessian()
	require.InDelta(t, 2.0, H.At(0, 0), 1e-9)
	require.InDelta(t, 2.0, H.At(1, 1), 1e-9)

	exact := p.EvaluateExactCosts([]float64{1, 1})
	require.InDelta(t, 2.0, exact[0], 1e-9)
}

func TestProblemInequalityConstraintAddsOneSlackRow(t *testing.T) {
	vs := newVars(t)
	p := qp.NewProblem(vs)
	p.SetVariables([]float64{0, 0})
	p.SetBoxSize([]float64{1, 1})

	con := &linearTerm{
		name: "ineq",
		idx:  []int{0},
		a:    [][]float64{{1}},
		b:    []float64{0.5}, // values(x) = x - 0.5, violated when x > 0.5
		pen:  qp.Squared,
		cmp:  qp.INEQ,
	}
	require.NoError(t, p.AddConstraint(con))
	require.NoError(t, p.SetConstraintMeritCoeff([]float64{10}))
	p.Convexify()

	require.Equal(t, 3, p.NumQPVars()) // 2 NLP vars + 1 slack
	viol := p.EvaluateExactConstraintViolations([]float64{1, 0})
	require.InDelta(t, 0.5, viol[0], 1e-9)

	viol2 := p.EvaluateExactConstraintViolations([]float64{0, 0})
	require.InDelta(t, 0.0, viol2[0], 1e-9)
}

func TestProblemConvexifyWithMultipleWorkersMatchesSequential(t *testing.T) {
	build := func(workers int) *qp.Problem {
		vs := newVars(t)
		p := qp.NewProblem(vs)
		p.SetVariables([]float64{2, 3})
		p.SetBoxSize([]float64{5, 5})
		p.SetWorkerCount(workers)

		require.NoError(t, p.AddCost(&linearTerm{
			name: "a", idx: []int{0}, a: [][]float64{{1}}, b: []float64{0},
			pen: qp.Squared, cmp: qp.NotAConstraint,
		}))
		require.NoError(t, p.AddCost(&linearTerm{
			name: "b", idx: []int{1}, a: [][]float64{{1}}, b: []float64{0},
			pen: qp.Squared, cmp: qp.NotAConstraint,
		}))
		require.NoError(t, p.AddConstraint(&linearTerm{
			name: "c", idx: []int{0, 1}, a: [][]float64{{1, 1}}, b: []float64{4},
			pen: qp.Squared, cmp: qp.INEQ,
		}))
		p.Convexify()
		return p
	}

	sequential := build(1)
	parallel := build(8)

	require.Equal(t, sequential.GetHessian().RawMatrix().Data, parallel.GetHessian().RawMatrix().Data)
	require.Equal(t, sequential.GetGradient(), parallel.GetGradient())
	require.Equal(t, sequential.GetConstraintMatrix().RawMatrix().Data, parallel.GetConstraintMatrix().RawMatrix().Data)
}

func TestVariableSetRejectsMismatchedBounds(t *testing.T) {
	vs := &qp.VariableSet{}
	_, err := vs.Add("bad", 2, []float64{0}, []float64{1, 1})
	require.Error(t, err)
}
