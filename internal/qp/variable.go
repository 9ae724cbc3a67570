package qp

import "github.com/copyleftdev/sqpforge/internal/errors"

// Variable is a named block of decision values occupying a contiguous
// range [Start, Start+N) of the global variable vector.
type Variable struct {
	Name  string
	Start int
	N     int
	Lower []float64
	Upper []float64
}

// End returns the exclusive end index of the variable's range.
func (v Variable) End() int { return v.Start + v.N }

// VariableSet is the ordered registry of all variables in a Problem.
// Indices are assigned once, at AddVariable time, and never change.
type VariableSet struct {
	vars  []Variable
	total int
}

// Add registers a new variable block and returns its assigned Variable
// (with Start set), or an error if bounds are malformed.
func (s *VariableSet) Add(name string, n int, lower, upper []float64) (Variable, error) {
	if n <= 0 {
		return Variable{}, errors.Errorf("variable %q: n must be positive, got %d", name, n).WithComponent("qp").WithOperation("AddVariable")
	}
	if len(lower) != n || len(upper) != n {
		return Variable{}, errors.Errorf("variable %q: bounds length mismatch, want %d", name, n).WithComponent("qp").WithOperation("AddVariable")
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return Variable{}, errors.Errorf("variable %q: lower bound exceeds upper bound at index %d", name, i).WithComponent("qp").WithOperation("AddVariable")
		}
	}
	v := Variable{
		Name:  name,
		Start: s.total,
		N:     n,
		Lower: append([]float64(nil), lower...),
		Upper: append([]float64(nil), upper...),
	}
	s.vars = append(s.vars, v)
	s.total += n
	return v, nil
}

// Len returns the total number of decision variables registered.
func (s *VariableSet) Len() int { return s.total }

// All returns the registered variables in registration order.
func (s *VariableSet) All() []Variable { return s.vars }

// LowerBounds returns the concatenated lower bound vector.
func (s *VariableSet) LowerBounds() []float64 {
	out := make([]float64, 0, s.total)
	for _, v := range s.vars {
		out = append(out, v.Lower...)
	}
	return out
}

// UpperBounds returns the concatenated upper bound vector.
func (s *VariableSet) UpperBounds() []float64 {
	out := make([]float64, 0, s.total)
	for _, v := range s.vars {
		out = append(out, v.Upper...)
	}
	return out
}
