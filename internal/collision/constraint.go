package collision

import "github.com/copyleftdev/sqpforge/internal/qp"

// Constraint is the fixed-arity collision constraint block of
// SPEC_FULL §4.4: size Config.MaxNumContacts, values <= 0, one row per
// ranked contact (or a trivially-feasible filler row when fewer
// contacts than capacity are found).
type Constraint struct {
	name       string
	Evaluator  *LVSEvaluator
	Idx0, Idx1 []int // global variable indices for the first/second timestep
	Var0Fixed  bool
	Var1Fixed  bool

	jacobianStep float64
}

// NewConstraint builds a collision constraint over one trajectory
// segment. For a discrete (single-timestep) constraint pass the same
// indices for Idx0 and Idx1; CalcCollisionData treats x0==x1 as a
// single-configuration query whenever Evaluator.Continuous is false.
func NewConstraint(name string, eval *LVSEvaluator, idx0, idx1 []int, var0Fixed, var1Fixed bool) *Constraint {
	return &Constraint{
		name:         name,
		Evaluator:    eval,
		Idx0:         idx0,
		Idx1:         idx1,
		Var0Fixed:    var0Fixed,
		Var1Fixed:    var1Fixed,
		jacobianStep: 1e-6,
	}
}

func (c *Constraint) Name() string { return c.name }
func (c *Constraint) varIndices() []int {
	seen := map[int]bool{}
	var out []int
	for _, i := range append(append([]int{}, c.Idx0...), c.Idx1...) {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

// qp.Term implementation.

func (c *Constraint) Size() int             { return c.Evaluator.Config.MaxNumContacts }
func (c *Constraint) VarIndices() []int     { return c.varIndices() }
func (c *Constraint) Penalty() qp.PenaltyKind       { return qp.Hinge }
func (c *Constraint) Comparison() qp.ComparisonKind { return qp.INEQ }

func splitLocal(x []float64, idxAll, idx0, idx1 []int) ([]float64, []float64) {
	pos := map[int]int{}
	for i, g := range idxAll {
		pos[g] = i
	}
	x0 := make([]float64, len(idx0))
	for i, g := range idx0 {
		x0[i] = x[pos[g]]
	}
	x1 := make([]float64, len(idx1))
	for i, g := range idx1 {
		x1[i] = x[pos[g]]
	}
	return x0, x1
}

// Values returns signed clearance errors for up to MaxNumContacts
// ranked contacts; unfilled rows default to -(margin+buffer), which is
// trivially feasible (SPEC_FULL §4.4).
func (c *Constraint) Values(x []float64) []float64 {
	idxAll := c.varIndices()
	x0, x1 := splitLocal(x, idxAll, c.Idx0, c.Idx1)
	if !c.Evaluator.Continuous {
		x1 = x0
	}
	sets := c.Evaluator.CalcCollisionData(x0, x1, c.Var0Fixed, c.Var1Fixed)

	n := c.Size()
	out := make([]float64, n)
	marginBuffer := c.Evaluator.Config.CollisionMargin + c.Evaluator.Config.CollisionMarginBuffer
	for i := range out {
		out[i] = -marginBuffer
	}
	for i := 0; i < len(sets) && i < n; i++ {
		var err float64
		switch {
		case c.Var0Fixed:
			err = sets[i].MaxErrorExcludingT0()
		case c.Var1Fixed:
			err = sets[i].MaxErrorExcludingT1()
		default:
			err = sets[i].MaxError()
		}
		out[i] = sets[i].Coeff * err
	}
	return out
}

// Jacobian is computed by central difference over Values, per
// SPEC_FULL §4.4's numerical fallback path (the default here, since
// wiring true per-link analytical Jacobians requires the contact
// manager to report distance-Jacobian pairs that internal/planning's
// minimal contract does not carry).
func (c *Constraint) Jacobian(x []float64) [][]float64 {
	n := c.Size()
	m := len(x)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, m)
	}
	step := c.jacobianStep
	for j := 0; j < m; j++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] += step
		xm[j] -= step
		up := c.Values(xp)
		dn := c.Values(xm)
		for i := 0; i < n; i++ {
			jac[i][j] = (up[i] - dn[i]) / (2 * step)
		}
	}
	return jac
}
