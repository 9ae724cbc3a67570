// Package qp implements the QP problem abstraction of SPEC_FULL §4.2: a
// sparse-in-spirit (dense-in-storage) quadratic objective over the NLP
// variables plus one slack variable per residual component of every
// non-squared cost and of every constraint,
// linear constraints coupling slacks to linearized term values, and a
// box-bounded trust region around the current iterate.
package qp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/sqpforge/internal/errors"
)

const posInf = 1e30

type linearization struct {
	x0     []float64 // linearization point restricted to the term's columns
	values []float64 // r(x0), length term.Size()
	jac    [][]float64
}

type termEntry struct {
	term       Term
	slackStart int // -1 if the term has no slacks (squared cost)
	meritCoeff []float64
	lin        linearization
}

// Problem is the mutable QP state the trust-region driver convexifies and
// re-solves each iteration (SPEC_FULL §3 "QP Problem State").
type Problem struct {
	vars *VariableSet

	costs       []*termEntry
	constraints []*termEntry

	x       []float64
	boxSize []float64

	numSlacks int

	H *mat.Dense
	g []float64

	A      *mat.Dense
	lo, hi []float64

	parallel *ParallelEvaluator
}

// NewProblem creates an empty QP problem over the given variable set. The
// variable set must be fully populated (all AddVariable calls complete)
// before the first term is added.
func NewProblem(vars *VariableSet) *Problem {
	x := make([]float64, vars.Len())
	for _, v := range vars.All() {
		for i := 0; i < v.N; i++ {
			x[v.Start+i] = clamp(0, v.Lower[i], v.Upper[i])
		}
	}
	return &Problem{vars: vars, x: x, parallel: NewParallelEvaluator(1)}
}

// SetWorkerCount configures how many goroutines Convexify fans term
// linearization (Values + Jacobian) work across. Worthwhile once a
// problem carries several cartesian/collision terms, whose Jacobians
// are numerically differentiated and comparatively expensive. Defaults
// to 1 (sequential) until a caller opts in.
func (p *Problem) SetWorkerCount(n int) {
	p.parallel = NewParallelEvaluator(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddCost registers a cost term. Squared-penalty terms need no slacks;
// Absolute/Hinge terms get one slack per residual component.
func (p *Problem) AddCost(t Term) error {
	if t.Comparison() != NotAConstraint {
		return errors.New("cost term must have Comparison() == NotAConstraint").WithComponent("qp").WithOperation("AddCost")
	}
	e := &termEntry{term: t, slackStart: -1}
	if t.Penalty() != Squared {
		e.slackStart = p.vars.Len() + p.numSlacks
		p.numSlacks += t.Size()
	}
	p.costs = append(p.costs, e)
	return nil
}

// AddConstraint registers a constraint term (EQ or INEQ). Every
// constraint is slack-represented, one slack per residual component,
// weighted by a per-component merit coefficient (defaulting to 1 until
// SetConstraintMeritCoeff is called).
func (p *Problem) AddConstraint(t Term) error {
	if t.Comparison() == NotAConstraint {
		return errors.New("constraint term must have Comparison() EQ or INEQ").WithComponent("qp").WithOperation("AddConstraint")
	}
	coeffs := make([]float64, t.Size())
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	e := &termEntry{term: t, slackStart: p.vars.Len() + p.numSlacks, meritCoeff: coeffs}
	p.numSlacks += t.Size()
	p.constraints = append(p.constraints, e)
	return nil
}

// GetNumNLPVars returns the number of NLP decision variables (excludes
// QP-internal slacks).
func (p *Problem) GetNumNLPVars() int { return p.vars.Len() }

// GetNumNLPConstraints returns the total width of all constraint blocks.
func (p *Problem) GetNumNLPConstraints() int {
	n := 0
	for _, c := range p.constraints {
		n += c.term.Size()
	}
	return n
}

// GetNumNLPCosts returns the number of cost blocks, which is the length
// of the vector EvaluateExactCosts returns.
func (p *Problem) GetNumNLPCosts() int {
	return len(p.costs)
}

func (p *Problem) qpVars() int { return p.vars.Len() + p.numSlacks }

// NumQPVars returns the total QP variable count (NLP vars + slacks).
func (p *Problem) NumQPVars() int { return p.qpVars() }

// GetVariableValues returns the current NLP iterate.
func (p *Problem) GetVariableValues() []float64 {
	return append([]float64(nil), p.x...)
}

// SetVariables overwrites the current NLP iterate.
func (p *Problem) SetVariables(x []float64) {
	copy(p.x, x)
}

func gather(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

// GetExactCosts evaluates every cost term's exact penalty at the current
// iterate.
func (p *Problem) GetExactCosts() []float64 { return p.EvaluateExactCosts(p.x) }

// EvaluateExactCosts evaluates every cost term's exact penalty at x.
func (p *Problem) EvaluateExactCosts(x []float64) []float64 {
	out := make([]float64, len(p.costs))
	for i, c := range p.costs {
		vals := c.term.Values(gather(x, c.term.VarIndices()))
		out[i] = PenalizedCost(c.term.Penalty(), vals)
	}
	return out
}

// GetExactConstraintViolations evaluates every constraint's exact
// violation at the current iterate.
func (p *Problem) GetExactConstraintViolations() []float64 {
	return p.EvaluateExactConstraintViolations(p.x)
}

// EvaluateExactConstraintViolations evaluates every constraint's exact
// violation at x, flattened in registration order.
func (p *Problem) EvaluateExactConstraintViolations(x []float64) []float64 {
	out := make([]float64, 0, p.GetNumNLPConstraints())
	for _, c := range p.constraints {
		vals := c.term.Values(gather(x, c.term.VarIndices()))
		out = append(out, Violation(c.term.Comparison(), vals)...)
	}
	return out
}

// EvaluateConvexCosts evaluates every cost term's affine linearization
// (from the last Convexify) at x, folded through its penalty.
func (p *Problem) EvaluateConvexCosts(x []float64) []float64 {
	out := make([]float64, len(p.costs))
	for i, c := range p.costs {
		vals := linearValues(c, gather(x, c.term.VarIndices()))
		out[i] = PenalizedCost(c.term.Penalty(), vals)
	}
	return out
}

// EvaluateConvexConstraintViolations evaluates every constraint's affine
// linearization (from the last Convexify) at x, folded through its
// comparison rule.
func (p *Problem) EvaluateConvexConstraintViolations(x []float64) []float64 {
	out := make([]float64, 0, p.GetNumNLPConstraints())
	for _, c := range p.constraints {
		vals := linearValues(c, gather(x, c.term.VarIndices()))
		out = append(out, Violation(c.term.Comparison(), vals)...)
	}
	return out
}

func linearValues(e *termEntry, xsub []float64) []float64 {
	out := make([]float64, len(e.lin.values))
	for i := range out {
		v := e.lin.values[i]
		for j := range xsub {
			v += e.lin.jac[i][j] * (xsub[j] - e.lin.x0[j])
		}
		out[i] = v
	}
	return out
}

// residualConstant returns c_r such that residual_r(x) = c_r + J_r * x,
// derived from the stored linearization residual_r(x0) = r0 + J_r*(x-x0).
func residualConstant(e *termEntry, row int) float64 {
	cr := e.lin.values[row]
	for a := range e.lin.x0 {
		cr -= e.lin.jac[row][a] * e.lin.x0[a]
	}
	return cr
}

// SetConstraintMeritCoeff sets the per-component merit coefficient
// vector used to weight constraint-slack costs in the QP objective
// (SPEC_FULL §4.2 "SetConstraintMeritCoeff"). Takes effect immediately
// on the existing linearization, without requiring a full Convexify.
func (p *Problem) SetConstraintMeritCoeff(coeffs []float64) error {
	if len(coeffs) != p.GetNumNLPConstraints() {
		return errors.Errorf("merit coeff length %d != num constraints %d", len(coeffs), p.GetNumNLPConstraints()).WithComponent("qp").WithOperation("SetConstraintMeritCoeff")
	}
	off := 0
	for _, c := range p.constraints {
		n := c.term.Size()
		c.meritCoeff = append([]float64(nil), coeffs[off:off+n]...)
		off += n
	}
	if p.g != nil {
		p.rebuildGradient()
	}
	return nil
}

// Convexify rebuilds the Hessian, gradient, constraint matrix, and
// bounds by linearizing every term around the current iterate
// (SPEC_FULL §4.2 "convexify").
// Convexify re-linearizes every cost and constraint term at the current
// iterate. Term evaluation is independent across terms, so values and
// Jacobians are fanned out across p.parallel's worker pool (SPEC_FULL
// §EXPANSION 5) before the linear algebra that assembles H/g/A runs
// sequentially against the results.
func (p *Problem) Convexify() {
	entries := make([]*termEntry, 0, len(p.costs)+len(p.constraints))
	entries = append(entries, p.costs...)
	entries = append(entries, p.constraints...)

	terms := make([]Term, len(entries))
	xsubs := make([][]float64, len(entries))
	for i, e := range entries {
		terms[i] = e.term
		xsubs[i] = gather(p.x, e.term.VarIndices())
	}

	values := p.parallel.EvaluateValues(terms, xsubs)
	jacobians := p.parallel.EvaluateJacobians(terms, xsubs)
	for i, e := range entries {
		e.lin = linearization{x0: xsubs[i], values: values[i], jac: jacobians[i]}
	}

	p.rebuildHessian()
	p.rebuildGradient()
	p.rebuildConstraintMatrix()
	p.refreshBounds()
}

func (p *Problem) rebuildHessian() {
	n := p.qpVars()
	H := mat.NewDense(n, n, nil)
	for _, c := range p.costs {
		if c.term.Penalty() != Squared {
			continue
		}
		idx := c.term.VarIndices()
		for r := 0; r < len(c.lin.jac); r++ {
			for a := range idx {
				jra := c.lin.jac[r][a]
				if jra == 0 {
					continue
				}
				for b := range idx {
					ia, ib := idx[a], idx[b]
					H.Set(ia, ib, H.At(ia, ib)+2*jra*c.lin.jac[r][b])
				}
			}
		}
	}
	p.H = H
}

func (p *Problem) rebuildGradient() {
	g := make([]float64, p.qpVars())
	for _, c := range p.costs {
		idx := c.term.VarIndices()
		if c.term.Penalty() == Squared {
			for r := 0; r < len(c.lin.jac); r++ {
				cr := residualConstant(c, r)
				for a := range idx {
					g[idx[a]] += 2 * c.lin.jac[r][a] * cr
				}
			}
			continue
		}
		for r := 0; r < c.term.Size(); r++ {
			g[c.slackStart+r] += 1.0
		}
	}
	for _, c := range p.constraints {
		for r := 0; r < c.term.Size(); r++ {
			g[c.slackStart+r] += c.meritCoeff[r]
		}
	}
	p.g = g
}

// isAbsoluteLike reports whether a term's violation is |v| (EQ
// constraints, and Absolute-penalty costs) rather than max(0, v)
// (INEQ constraints, and Hinge-penalty costs); the former needs two
// slack-coupling rows, the latter needs one.
func isAbsoluteLike(cmp ComparisonKind, kind PenaltyKind) bool {
	if cmp == EQ {
		return true
	}
	return cmp == NotAConstraint && kind == Absolute
}

func couplingRows(cmp ComparisonKind, kind PenaltyKind) int {
	if isAbsoluteLike(cmp, kind) {
		return 2
	}
	return 1
}

// rebuildConstraintMatrix builds the OSQP-style stacked matrix: the
// leading qpVars() rows are the identity (box/slack bounds), followed
// by slack-coupling rows for every non-squared cost and every
// constraint term.
func (p *Problem) rebuildConstraintMatrix() {
	n := p.qpVars()
	rows := n
	for _, c := range p.costs {
		if c.term.Penalty() != Squared {
			rows += couplingRows(NotAConstraint, c.term.Penalty()) * c.term.Size()
		}
	}
	for _, c := range p.constraints {
		rows += couplingRows(c.term.Comparison(), Squared) * c.term.Size()
	}
	A := mat.NewDense(rows, n, nil)
	for i := 0; i < n; i++ {
		A.Set(i, i, 1)
	}
	row := n
	for _, c := range p.costs {
		if c.term.Penalty() == Squared {
			continue
		}
		row = emitCoupling(A, row, c, isAbsoluteLike(NotAConstraint, c.term.Penalty()))
	}
	for _, c := range p.constraints {
		row = emitCoupling(A, row, c, isAbsoluteLike(c.term.Comparison(), Squared))
	}
	p.A = A
}

// emitCoupling writes the slack-coupling rows for one term starting at
// row, returning the next free row index. Row layout per component r:
//
//	always:        s_r - J x  >=  c_r   (c_r = r0_r - J.x0)
//	absolute-like: s_r + J x  >= -c_r   (second row, only when needed)
func emitCoupling(A *mat.Dense, row int, e *termEntry, absolute bool) int {
	idx := e.term.VarIndices()
	for r := 0; r < e.term.Size(); r++ {
		for a := range idx {
			A.Set(row, idx[a], -e.lin.jac[r][a])
		}
		A.Set(row, e.slackStart+r, 1)
		row++
		if absolute {
			for a := range idx {
				A.Set(row, idx[a], e.lin.jac[r][a])
			}
			A.Set(row, e.slackStart+r, 1)
			row++
		}
	}
	return row
}

// refreshBounds recomputes the lo/hi bound vectors. The leading
// qpVars() rows (box/slack bounds) depend on BoxSize and must be
// refreshed on every SetBoxSize/ScaleBoxSize call; the coupling rows
// depend only on the current linearization and are otherwise fixed
// between Convexify calls.
func (p *Problem) refreshBounds() {
	n := p.qpVars()
	total := p.A.RawMatrix().Rows
	lo := make([]float64, total)
	hi := make([]float64, total)
	for _, v := range p.vars.All() {
		for j := 0; j < v.N; j++ {
			idx := v.Start + j
			box := p.boxSize[idx]
			lo[idx] = clamp(p.x[idx]-box, v.Lower[j], v.Upper[j])
			hi[idx] = clamp(p.x[idx]+box, v.Lower[j], v.Upper[j])
		}
	}
	for i := p.vars.Len(); i < n; i++ {
		lo[i] = 0
		hi[i] = posInf
	}
	row := n
	for _, c := range p.costs {
		if c.term.Penalty() == Squared {
			continue
		}
		row = boundCoupling(lo, hi, row, c, isAbsoluteLike(NotAConstraint, c.term.Penalty()))
	}
	for _, c := range p.constraints {
		row = boundCoupling(lo, hi, row, c, isAbsoluteLike(c.term.Comparison(), Squared))
	}
	p.lo, p.hi = lo, hi
}

func boundCoupling(lo, hi []float64, row int, e *termEntry, absolute bool) int {
	for r := 0; r < e.term.Size(); r++ {
		cr := residualConstant(e, r)
		lo[row], hi[row] = cr, posInf
		row++
		if absolute {
			lo[row], hi[row] = -cr, posInf
			row++
		}
	}
	return row
}

// SetBoxSize sets the per-NLP-variable trust-region half-width, centered
// on the current iterate, and refreshes QP bounds accordingly.
func (p *Problem) SetBoxSize(box []float64) {
	p.boxSize = append([]float64(nil), box...)
	if p.A != nil {
		p.refreshBounds()
	}
}

// ScaleBoxSize multiplies every element of the current box size by s.
func (p *Problem) ScaleBoxSize(s float64) {
	for i := range p.boxSize {
		p.boxSize[i] *= s
	}
	if p.A != nil {
		p.refreshBounds()
	}
}

// GetBoxSize returns the current trust-region half-widths.
func (p *Problem) GetBoxSize() []float64 { return append([]float64(nil), p.boxSize...) }

// GetHessian returns the QP's quadratic objective matrix (qpVars x qpVars).
func (p *Problem) GetHessian() *mat.Dense { return p.H }

// GetGradient returns the QP's linear objective vector.
func (p *Problem) GetGradient() []float64 { return p.g }

// GetConstraintMatrix returns the QP's stacked constraint matrix.
func (p *Problem) GetConstraintMatrix() *mat.Dense { return p.A }

// GetBoundsLower returns the QP's lower bound vector, aligned with
// GetConstraintMatrix's rows.
func (p *Problem) GetBoundsLower() []float64 { return p.lo }

// GetBoundsUpper returns the QP's upper bound vector, aligned with
// GetConstraintMatrix's rows.
func (p *Problem) GetBoundsUpper() []float64 { return p.hi }
