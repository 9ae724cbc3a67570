// Package terms implements the built-in cost/constraint families of
// SPEC_FULL §4.5 and the process-wide term-name registry of §9's
// "Global state" design note.
package terms

import (
	"encoding/json"
	"sync"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/qp"
)

// Factory builds a qp.Term from its JSON descriptor and the trajectory
// it attaches to (SPEC_FULL §6 "Problem description": "arrays of
// cost/constraint term descriptors each tagged by a registered string
// type name").
type Factory func(raw json.RawMessage, traj *Trajectory) (qp.Term, error)

// Registry is a string-keyed factory table. The zero value is usable;
// Global() returns the process-wide instance seeded with every
// built-in family exactly once.
type Registry struct {
	mu       sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Re-registering an existing name
// overwrites it, matching the teacher's permissive "last registration
// wins" style elsewhere in the codebase; callers that want strictness
// should check Registered first.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Registered reports whether name has a factory.
func (r *Registry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Build constructs a term by name, or returns an error if name is
// unregistered.
func (r *Registry) Build(name string, raw json.RawMessage, traj *Trajectory) (qp.Term, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unregistered term type %q", name).WithComponent("terms").WithOperation("Build")
	}
	return f(raw, traj)
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry, initialized exactly once
// with every built-in term family registered under its canonical name.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
		registerBuiltins(global)
	})
	return global
}

func registerBuiltins(r *Registry) {
	r.Register("joint_position", buildJointPositionCost)
	r.Register("joint_velocity", buildJointVelocityCost)
	r.Register("joint_acceleration", buildJointAccelerationCost)
	r.Register("joint_jerk", buildJointJerkCost)
	r.Register("cartesian_pose", buildCartesianPoseCost)
	r.Register("cartesian_velocity", buildCartesianVelocityConstraint)
	r.Register("inverse_kinematics", buildInverseKinematicsConstraint)
	r.Register("total_time", buildTotalTimeCost)
	r.Register("singularity_avoidance", buildSingularityCost)
}
