package terms

import (
	"encoding/json"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// singularityTerm penalizes proximity to a kinematic singularity via
// 1/(sigma_min + lambda), where sigma_min is the smallest singular
// value of the link's numerically-differentiated position Jacobian
// (SPEC_FULL §4.5 "singularity-avoidance cost").
type singularityTerm struct {
	name   string
	link   string
	solver planning.StateSolver
	idx    []int
	lambda float64
}

func (t *singularityTerm) Name() string               { return t.name }
func (t *singularityTerm) VarIndices() []int           { return t.idx }
func (t *singularityTerm) Size() int                   { return 1 }
func (t *singularityTerm) Penalty() qp.PenaltyKind     { return qp.Absolute }
func (t *singularityTerm) Comparison() qp.ComparisonKind { return qp.NotAConstraint }

func (t *singularityTerm) positionJacobian(x []float64) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(3, n, nil)
	base := t.solver.CalcFwdKin(x)[t.link].Translation
	const step = 1e-6
	for j := 0; j < n; j++ {
		xp := append([]float64(nil), x...)
		xp[j] += step
		p := t.solver.CalcFwdKin(xp)[t.link].Translation
		for r := 0; r < 3; r++ {
			jac.Set(r, j, (p[r]-base[r])/step)
		}
	}
	return jac
}

func (t *singularityTerm) sigmaMin(x []float64) float64 {
	jac := t.positionJacobian(x)
	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDThin) {
		return 0
	}
	vals := svd.Values(nil)
	min := vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
	}
	return min
}

func (t *singularityTerm) Values(x []float64) []float64 {
	return []float64{1.0 / (t.sigmaMin(x) + t.lambda)}
}

func (t *singularityTerm) Jacobian(x []float64) [][]float64 {
	n := len(x)
	jac := make([]float64, n)
	base := t.Values(x)[0]
	const step = 1e-6
	for j := 0; j < n; j++ {
		xp := append([]float64(nil), x...)
		xp[j] += step
		jac[j] = (t.Values(xp)[0] - base) / step
	}
	return [][]float64{jac}
}

func buildSingularityCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	var d struct {
		Name   string  `json:"name"`
		Link   string  `json:"link"`
		Step   int     `json:"step"`
		Lambda float64 `json:"lambda"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "invalid singularity_avoidance descriptor").WithComponent("terms")
	}
	if d.Lambda <= 0 {
		return nil, errors.New("singularity_avoidance: lambda must be positive").WithComponent("terms")
	}
	solver, err := traj.requireEnv("singularity_avoidance")
	if err != nil {
		return nil, err
	}
	return &singularityTerm{
		name:   d.Name,
		link:   d.Link,
		solver: solver,
		idx:    traj.JointIndices(d.Step),
		lambda: d.Lambda,
	}, nil
}
