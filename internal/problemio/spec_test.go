package problemio_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/collision"
	"github.com/copyleftdev/sqpforge/internal/problemio"
	"github.com/copyleftdev/sqpforge/internal/terms"
	"github.com/copyleftdev/sqpforge/internal/toyenv"
)

func sampleSpec() *problemio.ProblemSpec {
	return &problemio.ProblemSpec{
		DOF:        2,
		Steps:      3,
		JointLower: []float64{-3, -3},
		JointUpper: []float64{3, 3},
		Costs: []problemio.TermSpec{
			{Type: "joint_position", Params: json.RawMessage(`{"name":"reach","step":2,"target":[1,1]}`)},
		},
	}
}

func TestBuildAssemblesProblemWithoutEnvironment(t *testing.T) {
	problem, traj, err := problemio.Build(sampleSpec(), nil, terms.Global())
	require.NoError(t, err)
	assert.Equal(t, 3, traj.Steps)
	assert.Equal(t, traj.Steps*traj.DOF, problem.GetNumNLPVars())
	assert.Equal(t, 1, problem.GetNumNLPCosts())
}

func TestBuildFailsOnUnknownCostType(t *testing.T) {
	spec := sampleSpec()
	spec.Costs[0].Type = "not_a_real_term"
	_, _, err := problemio.Build(spec, nil, terms.Global())
	assert.Error(t, err)
}

func TestBuildRejectsCollisionSpecWithoutEnvironment(t *testing.T) {
	spec := sampleSpec()
	spec.Collision = &problemio.CollisionSpec{}
	_, _, err := problemio.Build(spec, nil, terms.Global())
	assert.Error(t, err)
}

func TestBuildAddsOneCollisionConstraintPerAdjacentStepPair(t *testing.T) {
	spec := sampleSpec()
	spec.Collision = &problemio.CollisionSpec{Config: collision.DefaultConfig()}
	arm := toyenv.NewArm([]float64{1, 1})
	env := toyenv.NewEnv(arm, nil)

	problem, traj, err := problemio.Build(spec, env, terms.Global())
	require.NoError(t, err)
	assert.Equal(t, traj.Steps-1, problem.GetNumNLPConstraints()/spec.Collision.Config.MaxNumContacts)
}

func TestLoadReadsAndDecodesProblemSpecFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.json")
	data, err := json.Marshal(sampleSpec())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	spec, err := problemio.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, spec.DOF)
	assert.Equal(t, 3, spec.Steps)
	assert.Len(t, spec.Costs, 1)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := problemio.Load("/nonexistent/path/problem.json")
	assert.Error(t, err)
}
