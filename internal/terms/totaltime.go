package terms

import (
	"encoding/json"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// totalTimeTerm penalizes total trajectory duration when the last
// column of each step is "1/dt" (SPEC_FULL §4.5 "total-time cost",
// §6 "use_time flag").
type totalTimeTerm struct {
	name string
	idx  []int
}

func (t *totalTimeTerm) Name() string               { return t.name }
func (t *totalTimeTerm) VarIndices() []int           { return t.idx }
func (t *totalTimeTerm) Size() int                   { return 1 }
func (t *totalTimeTerm) Penalty() qp.PenaltyKind     { return qp.Squared }
func (t *totalTimeTerm) Comparison() qp.ComparisonKind { return qp.NotAConstraint }

func (t *totalTimeTerm) Values(x []float64) []float64 {
	total := 0.0
	for _, inv := range x {
		total += 1.0 / inv
	}
	return []float64{total}
}

func (t *totalTimeTerm) Jacobian(x []float64) [][]float64 {
	jac := make([]float64, len(x))
	for i, inv := range x {
		jac[i] = -1.0 / (inv * inv)
	}
	return [][]float64{jac}
}

func buildTotalTimeCost(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	if !traj.UseTime {
		return nil, errors.New("total_time term requires a trajectory built with UseTime").WithComponent("terms")
	}
	var d struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "invalid total_time descriptor").WithComponent("terms")
	}
	var idx []int
	for s := 0; s < traj.Steps; s++ {
		idx = append(idx, traj.DtIndex(s))
	}
	return &totalTimeTerm{name: d.Name, idx: idx}, nil
}
