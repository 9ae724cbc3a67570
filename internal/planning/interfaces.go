// Package planning names the external collaborator interfaces of
// SPEC_FULL §6: kinematics/environment access and contact queries. None
// of sqpforge's core packages (qp, collision, terms, sqp) implement
// these — internal/toyenv provides the only concrete implementation,
// used exclusively by tests and example scenarios.
package planning

// Pose is a rigid transform, stored as a 3-vector translation and a
// 3x3 rotation matrix in row-major order.
type Pose struct {
	Translation [3]float64
	Rotation    [3][3]float64
}

// JointGroup exposes the kinematic chain the optimizer moves.
type JointGroup interface {
	JointNames() []string
	ActiveLinkNames() []string
	DOF() int
}

// StateSolver resolves forward kinematics for the active joint group,
// plus the poses of any environment links outside the chain at a given
// configuration (for movable, non-chain obstacles).
type StateSolver interface {
	JointGroup() JointGroup
	// CalcFwdKin returns every active link's pose at joint vector x.
	CalcFwdKin(x []float64) map[string]Pose
	// EnvLinkPoses returns the poses of movable, non-chain links at x.
	// Returns an empty map when the environment is static.
	EnvLinkPoses(x []float64) map[string]Pose
}

// ContactRequest bounds a contact query to the active link set and a
// search margin.
type ContactRequest struct {
	ActiveLinks  []string
	MarginBuffer float64
}

// Contact is a single narrow-phase contact between two links.
type Contact struct {
	LinkA, LinkB         string
	SubshapeA, SubshapeB int
	Distance             float64
	NormalOnA            [3]float64
	PointOnA, PointOnB   [3]float64
}

// DiscreteContactManager tests a single static configuration.
type DiscreteContactManager interface {
	SetActiveCollisionObjects(links []string)
	SetCollisionMarginData(margin, buffer float64)
	SetCollisionObjectsTransform(poses map[string]Pose)
	ContactTest(req ContactRequest) []Contact
}

// ContinuousContactManager tests a swept motion between two
// configurations.
type ContinuousContactManager interface {
	SetActiveCollisionObjects(links []string)
	SetCollisionMarginData(margin, buffer float64)
	SetCollisionObjectsTransform(poses0, poses1 map[string]Pose)
	ContactTest(req ContactRequest) []Contact
}

// Environment is the full external collaborator: kinematics plus both
// contact manager flavors.
type Environment interface {
	StateSolver() StateSolver
	DiscreteContactManager() DiscreteContactManager
	ContinuousContactManager() ContinuousContactManager
	// ConfigFingerprint is a stable hash of environment state (geometry,
	// margins) used as part of the collision cache key.
	ConfigFingerprint() uint64
}
