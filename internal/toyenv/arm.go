// Package toyenv is the only concrete planning.Environment in this
// module: a planar serial-link arm with fixed circular obstacles,
// used exclusively by example scenarios and tests (SPEC_FULL §6,
// §EXPANSION "toy environment"). Grounded on
// other_examples/viamrobotics-rdk__Frame.go's forward-kinematics shape,
// scaled down to 2D.
package toyenv

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/sqpforge/internal/planning"
)

// Arm is a planar revolute-joint serial chain. Joint i rotates link i
// about the end of link i-1; LinkLengths[0] starts at the origin.
type Arm struct {
	LinkLengths []float64
	linkNames   []string
	jointNames  []string
}

// NewArm builds an n-link planar arm with the given link lengths.
func NewArm(linkLengths []float64) *Arm {
	a := &Arm{LinkLengths: linkLengths}
	for i := range linkLengths {
		a.linkNames = append(a.linkNames, linkName(i))
		a.jointNames = append(a.jointNames, jointName(i))
	}
	return a
}

func linkName(i int) string  { return "link_" + strconv.Itoa(i) }
func jointName(i int) string { return "joint_" + strconv.Itoa(i) }

// JointNames implements planning.JointGroup.
func (a *Arm) JointNames() []string { return a.jointNames }

// ActiveLinkNames implements planning.JointGroup.
func (a *Arm) ActiveLinkNames() []string { return a.linkNames }

// DOF implements planning.JointGroup.
func (a *Arm) DOF() int { return len(a.LinkLengths) }

// Endpoints returns the 2D position of every joint (origin, then each
// link's far end) at configuration x, in the order the chain is built.
func (a *Arm) Endpoints(x []float64) [][2]float64 {
	pts := make([][2]float64, len(a.LinkLengths)+1)
	pts[0] = [2]float64{0, 0}
	theta := 0.0
	cur := pts[0]
	for i, l := range a.LinkLengths {
		theta += x[i]
		rot := rotation2D(theta)
		step := mat.NewVecDense(2, []float64{l, 0})
		out := mat.NewVecDense(2, nil)
		out.MulVec(rot, step)
		cur = [2]float64{cur[0] + out.AtVec(0), cur[1] + out.AtVec(1)}
		pts[i+1] = cur
	}
	return pts
}

func rotation2D(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(2, 2, []float64{c, -s, s, c})
}

// Solver adapts Arm to planning.StateSolver. It has no movable
// environment links, so EnvLinkPoses always returns an empty map.
type Solver struct {
	Arm *Arm
}

// JointGroup implements planning.StateSolver.
func (s *Solver) JointGroup() planning.JointGroup { return s.Arm }

// CalcFwdKin implements planning.StateSolver: every link's pose is its
// far-endpoint position with a z-axis rotation equal to the cumulative
// joint angle up to and including that link.
func (s *Solver) CalcFwdKin(x []float64) map[string]planning.Pose {
	pts := s.Arm.Endpoints(x)
	out := make(map[string]planning.Pose, len(s.Arm.linkNames))
	theta := 0.0
	for i, name := range s.Arm.linkNames {
		theta += x[i]
		out[name] = planning.Pose{
			Translation: [3]float64{pts[i+1][0], pts[i+1][1], 0},
			Rotation:    rotationZ(theta),
		}
	}
	return out
}

// EnvLinkPoses implements planning.StateSolver.
func (s *Solver) EnvLinkPoses([]float64) map[string]planning.Pose { return nil }

func rotationZ(theta float64) [3][3]float64 {
	c, s := math.Cos(theta), math.Sin(theta)
	return [3][3]float64{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}
