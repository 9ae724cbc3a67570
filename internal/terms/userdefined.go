package terms

import (
	"encoding/json"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// ValuesFunc is a caller-supplied black-box residual function.
type ValuesFunc func(x []float64) []float64

// JacobianFunc is a caller-supplied analytic Jacobian. If nil,
// UserDefined falls back to central difference over ValuesFunc.
type JacobianFunc func(x []float64) [][]float64

// UserDefined wraps an arbitrary residual function as a qp.Term
// (SPEC_FULL §4.5 "user-defined black-box error terms").
type UserDefined struct {
	name    string
	idx     []int
	size    int
	values  ValuesFunc
	jac     JacobianFunc
	penalty qp.PenaltyKind
	cmp     qp.ComparisonKind
	step    float64
}

// NewUserDefined builds a black-box term over the given global column
// indices. jac may be nil, in which case the Jacobian is computed by
// central difference with the given step (a zero step defaults to 1e-6).
func NewUserDefined(name string, idx []int, size int, values ValuesFunc, jac JacobianFunc, penalty qp.PenaltyKind, cmp qp.ComparisonKind, step float64) (*UserDefined, error) {
	if values == nil {
		return nil, errors.New("user-defined term requires a non-nil values function").WithComponent("terms").WithOperation("NewUserDefined")
	}
	if step == 0 {
		step = 1e-6
	}
	return &UserDefined{name: name, idx: idx, size: size, values: values, jac: jac, penalty: penalty, cmp: cmp, step: step}, nil
}

func (t *UserDefined) Name() string               { return t.name }
func (t *UserDefined) VarIndices() []int           { return t.idx }
func (t *UserDefined) Size() int                   { return t.size }
func (t *UserDefined) Penalty() qp.PenaltyKind     { return t.penalty }
func (t *UserDefined) Comparison() qp.ComparisonKind { return t.cmp }
func (t *UserDefined) Values(x []float64) []float64 { return t.values(x) }

func (t *UserDefined) Jacobian(x []float64) [][]float64 {
	if t.jac != nil {
		return t.jac(x)
	}
	n := len(x)
	jac := make([][]float64, t.size)
	for r := range jac {
		jac[r] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] += t.step
		xm[j] -= t.step
		up := t.values(xp)
		dn := t.values(xm)
		for r := 0; r < t.size; r++ {
			jac[r][j] = (up[r] - dn[r]) / (2 * t.step)
		}
	}
	return jac
}

// UserFactory builds a *UserDefined from a descriptor and an
// already-resolved set of global column indices; callers register one
// of these under a project-specific type name via RegisterUserFunction,
// matching the term-name registry of SPEC_FULL §9.
type UserFactory func(raw json.RawMessage, idx []int) (*UserDefined, error)

// RegisterUserFunction registers termType against a factory that
// resolves its variable indices from a "step"/"dof_indices" style
// descriptor field before delegating to build.
func RegisterUserFunction(r *Registry, termType string, build UserFactory) {
	r.Register(termType, func(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
		var d struct {
			Step int `json:"step"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, errors.Wrap(err, "invalid user-defined descriptor").WithComponent("terms")
		}
		idx := traj.JointIndices(d.Step)
		return build(raw, idx)
	})
}
