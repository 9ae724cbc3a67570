// Package qpsolver defines the QP back-end contract SPEC_FULL §6 requires
// (init/update*/solve/getSolution/clear) and provides a default in-module
// active-set implementation, since no example repo ships a sparse boxed
// QP solver to import.
package qpsolver

import "gonum.org/v1/gonum/mat"

// Solver is the black-box QP back-end contract the trust-region driver
// drives each trust-region iteration.
type Solver interface {
	// Init allocates internal state for a problem with the given variable
	// and constraint-row counts.
	Init(numVars, numConstraints int) error
	// UpdateHessianMatrix sets the (upper-triangular, PSD) quadratic term.
	UpdateHessianMatrix(h *mat.Dense) error
	// UpdateGradient sets the linear term.
	UpdateGradient(g []float64) error
	// UpdateLinearConstraintsMatrix sets the stacked constraint matrix
	// (box bounds + linear constraints).
	UpdateLinearConstraintsMatrix(a *mat.Dense) error
	// UpdateBounds sets the lower/upper bound vectors, aligned with the
	// constraint matrix's rows.
	UpdateBounds(lo, hi []float64) error
	// Solve runs the QP solve and reports whether it succeeded.
	Solve() bool
	// GetSolution returns the solution vector from the most recent
	// successful Solve.
	GetSolution() []float64
	// Clear releases internal state so Init can be called again.
	Clear()
}
