package toyenv

import (
	"hash/fnv"
	"math"

	"github.com/copyleftdev/sqpforge/internal/planning"
)

// Env is the toy planning.Environment: one planar arm plus a fixed set
// of circular obstacles.
type Env struct {
	Arm       *Arm
	Obstacles []Circle

	solver     *Solver
	discrete   *DiscreteManager
	continuous *ContinuousManager
}

// NewEnv builds a toy environment around the given arm and obstacles.
func NewEnv(arm *Arm, obstacles []Circle) *Env {
	return &Env{
		Arm:        arm,
		Obstacles:  obstacles,
		solver:     &Solver{Arm: arm},
		discrete:   NewDiscreteManager(arm, obstacles),
		continuous: NewContinuousManager(arm, obstacles),
	}
}

// StateSolver implements planning.Environment.
func (e *Env) StateSolver() planning.StateSolver { return e.solver }

// DiscreteContactManager implements planning.Environment.
func (e *Env) DiscreteContactManager() planning.DiscreteContactManager { return e.discrete }

// ContinuousContactManager implements planning.Environment.
func (e *Env) ContinuousContactManager() planning.ContinuousContactManager { return e.continuous }

// ConfigFingerprint implements planning.Environment: a stable hash of
// link lengths and obstacle geometry, so the collision cache keys
// change whenever the environment itself changes shape.
func (e *Env) ConfigFingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeFloats := func(vs ...float64) {
		for _, v := range vs {
			putFloat64(buf[:], v)
			h.Write(buf[:])
		}
	}
	for _, l := range e.Arm.LinkLengths {
		writeFloats(l)
	}
	for _, o := range e.Obstacles {
		writeFloats(o.Center[0], o.Center[1], o.Radius)
	}
	return h.Sum64()
}

func putFloat64(b []byte, f float64) {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
}
