package sqp

import "github.com/copyleftdev/sqpforge/internal/qp"

// Callback observes driver state after every QP step and may abort the
// solve by returning false (SPEC_FULL §4.1 "Callbacks").
type Callback func(problem *qp.Problem, results *Results) bool

func runCallbacks(callbacks []Callback, problem *qp.Problem, results *Results) bool {
	for _, cb := range callbacks {
		if !cb(problem, results) {
			return false
		}
	}
	return true
}
