package terms

import (
	"encoding/json"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// finiteDifference is the shared implementation behind the joint
// position/velocity/acceleration/jerk families (SPEC_FULL §4.5): all
// four are finite differences of joint position, hence linear in x, so
// a single struct with a difference order (0..3) and a set of
// coefficients covers every one of them.
type finiteDifference struct {
	name   string
	steps  []int // consecutive step indices the difference spans
	idx    []int // flattened global column indices, grouped by step
	dof    int
	coeffs []float64 // finite-difference stencil, length len(steps)
	dt     float64
	target []float64 // cost: target value per dof; constraint: tolerance per dof
	asCost bool
	pen    qp.PenaltyKind
}

func (t *finiteDifference) Name() string         { return t.name }
func (t *finiteDifference) VarIndices() []int    { return t.idx }
func (t *finiteDifference) Penalty() qp.PenaltyKind { return t.pen }

func (t *finiteDifference) Size() int {
	if t.asCost {
		return t.dof
	}
	return 2 * t.dof
}

func (t *finiteDifference) Comparison() qp.ComparisonKind {
	if t.asCost {
		return qp.NotAConstraint
	}
	return qp.INEQ
}

// deriv computes the order-th finite difference per dof from x, which
// must be laid out as len(steps) consecutive blocks of width dof.
func (t *finiteDifference) deriv(x []float64) []float64 {
	out := make([]float64, t.dof)
	for d := 0; d < t.dof; d++ {
		v := 0.0
		for s := range t.steps {
			v += t.coeffs[s] * x[s*t.dof+d]
		}
		out[d] = v
	}
	return out
}

func (t *finiteDifference) Values(x []float64) []float64 {
	d := t.deriv(x)
	if t.asCost {
		out := make([]float64, t.dof)
		for i := range out {
			out[i] = d[i] - t.target[i]
		}
		return out
	}
	out := make([]float64, 2*t.dof)
	for i := range d {
		out[2*i] = d[i] - t.target[i]   // upper tolerance: deriv - tol <= 0
		out[2*i+1] = -d[i] - t.target[i] // lower tolerance: -deriv - tol <= 0
	}
	return out
}

func (t *finiteDifference) Jacobian(x []float64) [][]float64 {
	n := len(t.idx)
	rows := t.dof
	if !t.asCost {
		rows = 2 * t.dof
	}
	jac := make([][]float64, rows)
	for r := range jac {
		jac[r] = make([]float64, n)
	}
	for d := 0; d < t.dof; d++ {
		for s := range t.steps {
			col := s*t.dof + d
			if t.asCost {
				jac[d][col] = t.coeffs[s]
			} else {
				jac[2*d][col] = t.coeffs[s]
				jac[2*d+1][col] = -t.coeffs[s]
			}
		}
	}
	return jac
}

func stencil(order int, dt float64) []float64 {
	switch order {
	case 0:
		return []float64{1}
	case 1:
		return []float64{-1 / dt, 1 / dt}
	case 2:
		return []float64{1 / (dt * dt), -2 / (dt * dt), 1 / (dt * dt)}
	default: // jerk
		return []float64{-1 / (dt * dt * dt), 3 / (dt * dt * dt), -3 / (dt * dt * dt), 1 / (dt * dt * dt)}
	}
}

func newFiniteDifference(name string, traj *Trajectory, startStep, order int, target []float64, asCost bool, pen qp.PenaltyKind) (*finiteDifference, error) {
	span := order + 1
	if startStep+span > traj.Steps {
		return nil, errors.Errorf("%s: step %d spans beyond trajectory length %d", name, startStep, traj.Steps).WithComponent("terms")
	}
	if len(target) != traj.DOF {
		return nil, errors.Errorf("%s: target/tolerance length must equal dof %d", name, traj.DOF).WithComponent("terms")
	}
	var idx []int
	steps := make([]int, span)
	for i := 0; i < span; i++ {
		steps[i] = startStep + i
		idx = append(idx, traj.JointIndices(startStep+i)...)
	}
	return &finiteDifference{
		name:   name,
		steps:  steps,
		idx:    idx,
		dof:    traj.DOF,
		coeffs: stencil(order, traj.Dt),
		dt:     traj.Dt,
		target: target,
		asCost: asCost,
		pen:    pen,
	}, nil
}

// descriptor is the common JSON shape for every finite-difference term.
type descriptor struct {
	Name    string    `json:"name"`
	Step    int       `json:"step"`
	Target  []float64 `json:"target,omitempty"`
	Tolerance []float64 `json:"tolerance,omitempty"`
	AsConstraint bool  `json:"as_constraint,omitempty"`
	Coeff   float64   `json:"coeff,omitempty"`
}

func parseDescriptor(raw json.RawMessage) (descriptor, error) {
	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, errors.Wrap(err, "invalid term descriptor").WithComponent("terms")
	}
	return d, nil
}

func buildKinematicTerm(order int, raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	d, err := parseDescriptor(raw)
	if err != nil {
		return nil, err
	}
	if d.AsConstraint {
		return newFiniteDifference(d.Name, traj, d.Step, order, d.Tolerance, false, qp.Hinge)
	}
	return newFiniteDifference(d.Name, traj, d.Step, order, d.Target, true, qp.Squared)
}

func buildJointPositionCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	return buildKinematicTerm(0, raw, traj)
}

func buildJointVelocityCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	return buildKinematicTerm(1, raw, traj)
}

func buildJointAccelerationCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	return buildKinematicTerm(2, raw, traj)
}

func buildJointJerkCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	return buildKinematicTerm(3, raw, traj)
}
