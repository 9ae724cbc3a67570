package terms

import (
	"encoding/json"
	"math"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// poseError computes the 6-vector [position error (3); small-angle
// orientation error (3)] of actual relative to target, using the
// standard vee-of-skew-symmetric-part approximation valid for small
// rotation errors (the same approximation used by classical numerical
// IK Jacobian methods).
func poseError(actual, target planning.Pose) [6]float64 {
	var e [6]float64
	for i := 0; i < 3; i++ {
		e[i] = actual.Translation[i] - target.Translation[i]
	}
	// relative rotation R_err = target^T * actual
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += target.Rotation[k][i] * actual.Rotation[k][j]
			}
			r[i][j] = s
		}
	}
	e[3] = (r[2][1] - r[1][2]) / 2
	e[4] = (r[0][2] - r[2][0]) / 2
	e[5] = (r[1][0] - r[0][1]) / 2
	return e
}

// cartesianTerm evaluates a link's pose error against a fixed target
// pose at a single trajectory step (SPEC_FULL §4.5 "Cartesian-pose
// cost/constraint").
type cartesianTerm struct {
	name       string
	link       string
	solver     planning.StateSolver
	idx        []int
	target     planning.Pose
	tolerance  [6]float64 // cost: unused (0); constraint: per-axis band
	asCost     bool
	pen        qp.PenaltyKind
}

func (t *cartesianTerm) Name() string         { return t.name }
func (t *cartesianTerm) VarIndices() []int    { return t.idx }
func (t *cartesianTerm) Penalty() qp.PenaltyKind { return t.pen }

func (t *cartesianTerm) Size() int {
	if t.asCost {
		return 6
	}
	return 12
}

func (t *cartesianTerm) Comparison() qp.ComparisonKind {
	if t.asCost {
		return qp.NotAConstraint
	}
	return qp.INEQ
}

func (t *cartesianTerm) errorAt(x []float64) [6]float64 {
	poses := t.solver.CalcFwdKin(x)
	return poseError(poses[t.link], t.target)
}

func (t *cartesianTerm) Values(x []float64) []float64 {
	e := t.errorAt(x)
	if t.asCost {
		return e[:]
	}
	out := make([]float64, 12)
	for i := 0; i < 6; i++ {
		out[2*i] = e[i] - t.tolerance[i]
		out[2*i+1] = -e[i] - t.tolerance[i]
	}
	return out
}

func (t *cartesianTerm) Jacobian(x []float64) [][]float64 {
	rows := t.Size()
	n := len(x)
	jac := make([][]float64, rows)
	for r := range jac {
		jac[r] = make([]float64, n)
	}
	base := t.Values(x)
	const step = 1e-6
	for j := 0; j < n; j++ {
		xp := append([]float64(nil), x...)
		xp[j] += step
		up := t.Values(xp)
		for r := 0; r < rows; r++ {
			jac[r][j] = (up[r] - base[r]) / step
		}
	}
	return jac
}

type cartesianDescriptor struct {
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	Step      int       `json:"step"`
	Target    planning.Pose `json:"target"`
	Tolerance [6]float64 `json:"tolerance,omitempty"`
	AsConstraint bool   `json:"as_constraint,omitempty"`
}

func buildCartesianPoseCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	var d cartesianDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "invalid cartesian_pose descriptor").WithComponent("terms")
	}
	if d.Step < 0 || d.Step >= traj.Steps {
		return nil, errors.Errorf("cartesian_pose: step %d out of range", d.Step).WithComponent("terms")
	}
	solver, err := traj.requireEnv("cartesian_pose")
	if err != nil {
		return nil, err
	}
	return &cartesianTerm{
		name:      d.Name,
		link:      d.Link,
		solver:    solver,
		idx:       traj.JointIndices(d.Step),
		target:    d.Target,
		tolerance: d.Tolerance,
		asCost:    !d.AsConstraint,
		pen:       qp.Squared,
	}, nil
}

// cartesianVelocityTerm constrains the finite-difference Cartesian
// velocity of a link between two consecutive steps (SPEC_FULL §4.5
// "Cartesian velocity constraint").
type cartesianVelocityTerm struct {
	name   string
	link   string
	solver planning.StateSolver
	idx    []int
	dof    int
	dt     float64
	limit  float64
}

func (t *cartesianVelocityTerm) Name() string                  { return t.name }
func (t *cartesianVelocityTerm) VarIndices() []int              { return t.idx }
func (t *cartesianVelocityTerm) Penalty() qp.PenaltyKind        { return qp.Hinge }
func (t *cartesianVelocityTerm) Comparison() qp.ComparisonKind  { return qp.INEQ }
func (t *cartesianVelocityTerm) Size() int                      { return 2 }

func (t *cartesianVelocityTerm) speed(x []float64) float64 {
	x0 := x[:t.dof]
	x1 := x[t.dof:]
	p0 := t.solver.CalcFwdKin(x0)[t.link]
	p1 := t.solver.CalcFwdKin(x1)[t.link]
	sum := 0.0
	for i := 0; i < 3; i++ {
		d := (p1.Translation[i] - p0.Translation[i]) / t.dt
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (t *cartesianVelocityTerm) Values(x []float64) []float64 {
	s := t.speed(x)
	return []float64{s - t.limit, -t.limit} // second row unused, kept 0-slack always satisfied
}

func (t *cartesianVelocityTerm) Jacobian(x []float64) [][]float64 {
	n := len(x)
	jac := make([][]float64, 2)
	jac[0] = make([]float64, n)
	jac[1] = make([]float64, n)
	base := t.speed(x)
	const step = 1e-6
	for j := 0; j < n; j++ {
		xp := append([]float64(nil), x...)
		xp[j] += step
		up := t.speed(xp)
		jac[0][j] = (up - base) / step
	}
	return jac
}

func buildCartesianVelocityConstraint(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	var d struct {
		Name  string  `json:"name"`
		Link  string  `json:"link"`
		Step  int     `json:"step"`
		Limit float64 `json:"limit"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "invalid cartesian_velocity descriptor").WithComponent("terms")
	}
	if d.Step < 0 || d.Step+1 >= traj.Steps {
		return nil, errors.Errorf("cartesian_velocity: step %d out of range", d.Step).WithComponent("terms")
	}
	solver, err := traj.requireEnv("cartesian_velocity")
	if err != nil {
		return nil, err
	}
	idx := append(append([]int{}, traj.JointIndices(d.Step)...), traj.JointIndices(d.Step+1)...)
	return &cartesianVelocityTerm{
		name:   d.Name,
		link:   d.Link,
		solver: solver,
		idx:    idx,
		dof:    traj.DOF,
		dt:     traj.Dt,
		limit:  d.Limit,
	}, nil
}
