package toyenv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/collision"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/toyenv"
)

func twoLinkEnv() *toyenv.Env {
	arm := toyenv.NewArm([]float64{1.0, 1.0})
	return toyenv.NewEnv(arm, []toyenv.Circle{
		{Name: "post", Center: [2]float64{1.5, 0}, Radius: 0.2},
	})
}

func TestArmForwardKinematicsStraightOut(t *testing.T) {
	env := twoLinkEnv()
	poses := env.StateSolver().CalcFwdKin([]float64{0, 0})
	link1 := poses["link_1"]
	require.InDelta(t, 2.0, link1.Translation[0], 1e-9)
	require.InDelta(t, 0.0, link1.Translation[1], 1e-9)
}

func TestDiscreteContactManagerDetectsObstacle(t *testing.T) {
	env := twoLinkEnv()
	solver := env.StateSolver()
	mgr := env.DiscreteContactManager()
	links := solver.JointGroup().ActiveLinkNames()
	mgr.SetActiveCollisionObjects(links)
	mgr.SetCollisionMarginData(0.05, 0.05)
	mgr.SetCollisionObjectsTransform(solver.CalcFwdKin([]float64{0, 0}))

	contacts := mgr.ContactTest(planning.ContactRequest{ActiveLinks: links, MarginBuffer: 0.05})
	require.NotEmpty(t, contacts)
}

func TestLVSEvaluatorFindsCollisionBetweenConfigs(t *testing.T) {
	env := twoLinkEnv()
	eval := &collision.LVSEvaluator{
		Env:    env,
		Config: collision.DefaultConfig(),
	}
	sets := eval.CalcCollisionData([]float64{-0.5, 0}, []float64{0.5, 0}, false, false)
	require.NotEmpty(t, sets)
}
