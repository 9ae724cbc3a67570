package terms

import (
	"strconv"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// Trajectory lays out one qp.Variable per timestep (SPEC_FULL §4.5
// "joint-position variables"), each of width DOF, optionally followed
// by one extra "1/dt" column per step when UseTime is set (§6
// "use_time flag"). It is the shared addressing scheme every built-in
// term family uses to find its columns in the global variable vector.
type Trajectory struct {
	Vars    *qp.VariableSet
	Env     planning.Environment
	Steps   int
	DOF     int
	UseTime bool
	Dt      float64 // fixed dt when !UseTime

	stepVars []qp.Variable
}

// NewTrajectory registers Steps variable blocks of width DOF (+1 if
// useTime) with the given per-joint bounds, applied identically at
// every step, and per-step dt bounds when useTime is set.
func NewTrajectory(vars *qp.VariableSet, env planning.Environment, steps, dof int, lower, upper []float64, useTime bool, dt, dtLower, dtUpper float64) (*Trajectory, error) {
	if steps < 2 {
		return nil, errors.New("trajectory requires at least 2 steps").WithComponent("terms").WithOperation("NewTrajectory")
	}
	if len(lower) != dof || len(upper) != dof {
		return nil, errors.Errorf("joint bounds length must equal dof %d", dof).WithComponent("terms").WithOperation("NewTrajectory")
	}
	t := &Trajectory{Vars: vars, Env: env, Steps: steps, DOF: dof, UseTime: useTime, Dt: dt}
	width := dof
	if useTime {
		width++
	}
	for s := 0; s < steps; s++ {
		lo := append([]float64(nil), lower...)
		hi := append([]float64(nil), upper...)
		if useTime {
			lo = append(lo, 1.0/dtUpper)
			hi = append(hi, 1.0/dtLower)
		}
		v, err := vars.Add(stepName(s), width, lo, hi)
		if err != nil {
			return nil, err
		}
		t.stepVars = append(t.stepVars, v)
	}
	return t, nil
}

func stepName(s int) string {
	return "step_" + strconv.Itoa(s)
}

// JointIndices returns the global column indices of the DOF joint
// values at step s (excluding the dt column, if any).
func (t *Trajectory) JointIndices(s int) []int {
	base := t.stepVars[s].Start
	out := make([]int, t.DOF)
	for i := range out {
		out[i] = base + i
	}
	return out
}

// requireEnv returns t.Env.StateSolver(), or a descriptive error if no
// environment was supplied — cartesian/singularity term descriptors
// need kinematics access that a nil Env cannot provide.
func (t *Trajectory) requireEnv(termType string) (planning.StateSolver, error) {
	if t.Env == nil {
		return nil, errors.Errorf("%s: requires a non-nil environment", termType).WithComponent("terms")
	}
	return t.Env.StateSolver(), nil
}

// DtIndex returns the global column index of step s's "1/dt" column.
// Only valid when UseTime is set.
func (t *Trajectory) DtIndex(s int) int {
	return t.stepVars[s].Start + t.DOF
}

// FixStep clamps step s's joint columns to a single value by collapsing
// its bounds to a zero-width box, per SPEC_FULL §GLOSSARY "Fixed
// timestep".
func (t *Trajectory) FixStep(s int, values []float64) {
	v := t.stepVars[s]
	for i := 0; i < t.DOF; i++ {
		v.Lower[i] = values[i]
		v.Upper[i] = values[i]
	}
}
