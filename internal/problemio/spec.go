// Package problemio loads a trajectory-optimization problem description
// from JSON (SPEC_FULL §6 "Problem description") and assembles it into a
// qp.Problem over a terms.Trajectory. It is deliberately shallow: no
// schema validation library, no streaming decoder, just encoding/json —
// the out-of-scope "Problem description I/O" collaborator SPEC_FULL
// §EXPANSION 0 names.
package problemio

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/copyleftdev/sqpforge/internal/collision"
	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/sqp"
	"github.com/copyleftdev/sqpforge/internal/terms"
)

// TermSpec tags a JSON term descriptor with the registered type name
// that resolves it (terms.Registry.Build).
type TermSpec struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// ProblemSpec is the on-disk/on-wire shape of a trajectory-optimization
// problem: trajectory layout plus cost/constraint term descriptors.
type ProblemSpec struct {
	DOF         int         `json:"dof"`
	Steps       int         `json:"steps"`
	JointLower  []float64   `json:"joint_lower"`
	JointUpper  []float64   `json:"joint_upper"`
	UseTime     bool        `json:"use_time"`
	Dt          float64     `json:"dt"`
	DtLower     float64     `json:"dt_lower"`
	DtUpper     float64     `json:"dt_upper"`
	Costs       []TermSpec      `json:"costs"`
	Constraints []TermSpec      `json:"constraints"`
	Collision   *CollisionSpec  `json:"collision,omitempty"`
	Params      *sqp.Params     `json:"params,omitempty"`
}

// PairCoeffSpec sets the constraint coefficient for one link pair
// (collision.PairCoeffs entry).
type PairCoeffSpec struct {
	LinkA string  `json:"link_a"`
	LinkB string  `json:"link_b"`
	Coeff float64 `json:"coeff"`
}

// CollisionSpec adds one collision.Constraint per adjacent trajectory
// step pair when present (SPEC_FULL §4.4). It requires a non-nil
// planning.Environment at Build time.
type CollisionSpec struct {
	Config       collision.Config `json:"config"`
	Continuous   bool             `json:"continuous"`
	PairCoeffs   []PairCoeffSpec  `json:"pair_coeffs,omitempty"`
	CacheSize    int              `json:"cache_size,omitempty"`
}

// Load reads and decodes a ProblemSpec from path.
func Load(path string) (*ProblemSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading problem spec").WithComponent("problemio").WithOperation("Load")
	}
	var spec ProblemSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, "decoding problem spec").WithComponent("problemio").WithOperation("Load")
	}
	return &spec, nil
}

// Build assembles spec into a qp.Problem and the terms.Trajectory it was
// built over, resolving every term descriptor against registry. env may
// be nil when no term in the spec needs kinematics or collision access;
// building a cartesian/singularity/collision term against a nil env
// fails with a descriptive error instead of panicking.
func Build(spec *ProblemSpec, env planning.Environment, registry *terms.Registry) (*qp.Problem, *terms.Trajectory, error) {
	vars := &qp.VariableSet{}
	traj, err := terms.NewTrajectory(vars, env, spec.Steps, spec.DOF, spec.JointLower, spec.JointUpper, spec.UseTime, spec.Dt, spec.DtLower, spec.DtUpper)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building trajectory").WithComponent("problemio").WithOperation("Build")
	}

	problem := qp.NewProblem(vars)
	for _, ts := range spec.Costs {
		term, err := registry.Build(ts.Type, ts.Params, traj)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "building cost term %q", ts.Type).WithComponent("problemio").WithOperation("Build")
		}
		if err := problem.AddCost(term); err != nil {
			return nil, nil, errors.Wrapf(err, "adding cost term %q", ts.Type).WithComponent("problemio").WithOperation("Build")
		}
	}
	for _, ts := range spec.Constraints {
		term, err := registry.Build(ts.Type, ts.Params, traj)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "building constraint term %q", ts.Type).WithComponent("problemio").WithOperation("Build")
		}
		if err := problem.AddConstraint(term); err != nil {
			return nil, nil, errors.Wrapf(err, "adding constraint term %q", ts.Type).WithComponent("problemio").WithOperation("Build")
		}
	}

	if spec.Collision != nil {
		if err := addCollisionConstraints(problem, traj, env, spec.Collision); err != nil {
			return nil, nil, err
		}
	}
	return problem, traj, nil
}

// addCollisionConstraints registers one collision.Constraint per
// adjacent trajectory step pair, sharing a single LVSEvaluator and
// Cache across the whole trajectory (SPEC_FULL §9 "Shared ownership of
// the collision cache").
func addCollisionConstraints(problem *qp.Problem, traj *terms.Trajectory, env planning.Environment, spec *CollisionSpec) error {
	if env == nil {
		return errors.New("collision spec requires a non-nil environment").WithComponent("problemio").WithOperation("Build")
	}
	coeffs := collision.PairCoeffs{}
	for _, pc := range spec.PairCoeffs {
		coeffs[[2]string{pc.LinkA, pc.LinkB}] = pc.Coeff
	}
	var cache *collision.Cache
	if spec.CacheSize > 0 {
		cache = collision.NewCache(spec.CacheSize, nil)
	}
	eval := &collision.LVSEvaluator{
		Env:        env,
		Config:     spec.Config,
		Coeffs:     coeffs,
		Continuous: spec.Continuous,
		Cache:      cache,
	}
	for s := 0; s < traj.Steps-1; s++ {
		idx0 := traj.JointIndices(s)
		idx1 := traj.JointIndices(s + 1)
		name := "collision_" + strconv.Itoa(s) + "_" + strconv.Itoa(s+1)
		c := collision.NewConstraint(name, eval, idx0, idx1, s == 0, s+1 == traj.Steps-1)
		if err := problem.AddConstraint(c); err != nil {
			return errors.Wrapf(err, "adding collision constraint %q", name).WithComponent("problemio").WithOperation("Build")
		}
	}
	return nil
}
