package terms

import (
	"encoding/json"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// inverseKinematicsDescriptor mirrors
// trajopt_ifopt::InverseKinematicsInfo: a named seed solution the
// optimizer is penalized for drifting away from at a given step
// (SPEC_FULL §4.5 "inverse-kinematics proximity").
type inverseKinematicsDescriptor struct {
	Name         string    `json:"name"`
	Step         int       `json:"step"`
	Seed         []float64 `json:"seed"`
	Tolerance    []float64 `json:"tolerance,omitempty"`
	AsConstraint bool      `json:"as_constraint,omitempty"`
}

func buildInverseKinematicsConstraint(raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	var d inverseKinematicsDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "invalid inverse_kinematics descriptor").WithComponent("terms")
	}
	if len(d.Seed) != traj.DOF {
		return nil, errors.Errorf("inverse_kinematics: seed length must equal dof %d", traj.DOF).WithComponent("terms")
	}
	if d.AsConstraint {
		return newFiniteDifference(d.Name, traj, d.Step, 0, d.Tolerance, false, qp.Hinge)
	}
	return newFiniteDifference(d.Name, traj, d.Step, 0, d.Seed, true, qp.Squared)
}
