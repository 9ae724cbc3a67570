// Package sqp implements the trust-region SQP driver of SPEC_FULL §4.1,
// grounded line-by-line on
// original_source/trajopt_optimizers/trajopt_sqp/src/trust_region_sqp_solver.cpp.
package sqp

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/copyleftdev/sqpforge/internal/errors"
	"github.com/copyleftdev/sqpforge/internal/logging"
	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/qpsolver"
)

// Solver is the trust-region SQP driver (SPEC_FULL §4.1).
type Solver struct {
	Params    Params
	Backend   qpsolver.Solver
	Logger    *logging.Logger
	Callbacks []Callback
}

// NewSolver constructs a driver with validated parameters. backend may
// be nil, in which case a qpsolver.ActiveSetSolver is used.
func NewSolver(params Params, backend qpsolver.Solver, logger *logging.Logger) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid SQP parameters").WithComponent("sqp").WithOperation("NewSolver")
	}
	if backend == nil {
		backend = qpsolver.NewActiveSetSolver()
	}
	if logger == nil {
		logger = logging.New(logging.WarnLevel, os.Stderr)
	}
	return &Solver{Params: params, Backend: backend, Logger: logger}, nil
}

// AddCallback registers an observer invoked after every QP step.
func (s *Solver) AddCallback(cb Callback) {
	s.Callbacks = append(s.Callbacks, cb)
}

// Solve drives problem to local optimality or a resource/callback
// boundary (SPEC_FULL §4.1 "Contract"). On return, problem's variables
// are set to the best iterate found.
func (s *Solver) Solve(ctx context.Context, problem *qp.Problem) (*Results, error) {
	results := s.init(problem)
	start := time.Now()

	for results.PenaltyIteration = 0; results.PenaltyIteration < s.Params.MaxMeritCoeffIncreases; results.PenaltyIteration++ {
		for convex := 0; convex < maxConvexifyIterations; convex++ {
			if ctx.Err() != nil {
				problem.SetVariables(results.BestVarVals)
				results.Status = OptTimeLimit
				return results, nil
			}
			if time.Since(start).Seconds() > s.Params.MaxTimeSeconds {
				problem.SetVariables(results.BestVarVals)
				results.Status = OptTimeLimit
				return results, nil
			}
			if results.OverallIteration >= s.Params.MaxIterations {
				problem.SetVariables(results.BestVarVals)
				results.Status = IterationLimit
				return results, nil
			}

			done, status := s.stepSQPSolver(ctx, problem, results, start)
			if status == CallbackStopped || status == QPSolverError {
				problem.SetVariables(results.BestVarVals)
				results.Status = status
				return results, nil
			}
			if done {
				break
			}
		}

		if s.verifyConvergence(results) {
			problem.SetVariables(results.BestVarVals)
			results.Status = NLPConverged
			return results, nil
		}
		s.adjustPenalty(problem, results)
	}

	problem.SetVariables(results.BestVarVals)
	results.Status = PenaltyIterationLimit
	return results, nil
}

func (s *Solver) init(problem *qp.Problem) *Results {
	nConstraints := problem.GetNumNLPConstraints()
	nVars := problem.GetNumNLPVars()

	coeffs := make([]float64, nConstraints)
	for i := range coeffs {
		coeffs[i] = s.Params.InitialMeritErrorCoeff
	}
	box := make([]float64, nVars)
	for i := range box {
		box[i] = s.Params.InitialTrustBoxSize
	}

	r := &Results{
		BestVarVals:      problem.GetVariableValues(),
		MeritErrorCoeffs: coeffs,
		BoxSize:          box,
	}
	r.BestCosts = problem.GetExactCosts()
	r.BestConstraintViolations = problem.GetExactConstraintViolations()
	r.BestExactMerit = merit(r.BestCosts, r.BestConstraintViolations, r.MeritErrorCoeffs)

	if nConstraints > 0 {
		_ = problem.SetConstraintMeritCoeff(coeffs)
	}
	problem.SetBoxSize(box)
	return r
}

func (s *Solver) verifyConvergence(r *Results) bool {
	if len(r.BestConstraintViolations) == 0 {
		return true
	}
	return maxOf(r.BestConstraintViolations) < s.Params.CntTolerance
}

// adjustPenalty inflates merit coefficients (uniformly, or individually
// for violated constraints) and re-opens the trust region, per
// SPEC_FULL §4.1 "Penalty adjustment".
func (s *Solver) adjustPenalty(problem *qp.Problem, r *Results) {
	if s.Params.InflateConstraintsIndividually {
		for i, v := range r.BestConstraintViolations {
			if v > s.Params.CntTolerance {
				r.MeritErrorCoeffs[i] *= s.Params.MeritCoeffIncreaseRatio
			}
		}
	} else {
		for i := range r.MeritErrorCoeffs {
			r.MeritErrorCoeffs[i] *= s.Params.MeritCoeffIncreaseRatio
		}
	}
	_ = problem.SetConstraintMeritCoeff(r.MeritErrorCoeffs)
	r.BestExactMerit = merit(r.BestCosts, r.BestConstraintViolations, r.MeritErrorCoeffs)

	reopened := s.Params.MinTrustBoxSize / s.Params.TrustShrinkRatio * 1.5
	if len(r.BoxSize) > 0 && r.BoxSize[0] > reopened {
		reopened = r.BoxSize[0]
	}
	box := make([]float64, len(r.BoxSize))
	for i := range box {
		box[i] = reopened
	}
	r.BoxSize = box
	problem.SetBoxSize(box)

	s.Logger.Warn("penalty inflated", map[string]interface{}{
		"penalty_iteration": r.PenaltyIteration,
		"coeffs":            r.MeritErrorCoeffs,
	})
}

// stepSQPSolver convexifies at the current iterate, uploads the QP to
// the backend, and runs the trust-region loop. It returns done=true
// when the convexification loop should stop (either because the trust
// region loop resolved the step, or because the box shrank below
// MinTrustBoxSize — SPEC_FULL §4.1's "tiny trust region" convergence
// rule).
func (s *Solver) stepSQPSolver(ctx context.Context, problem *qp.Problem, r *Results, start time.Time) (done bool, status Status) {
	r.ConvexifyIteration++
	problem.Convexify()

	s.Backend.Clear()
	if err := s.Backend.Init(problem.NumQPVars(), rowsOf(problem)); err != nil {
		return true, QPSolverError
	}
	_ = s.Backend.UpdateHessianMatrix(problem.GetHessian())
	_ = s.Backend.UpdateGradient(problem.GetGradient())
	_ = s.Backend.UpdateLinearConstraintsMatrix(problem.GetConstraintMatrix())
	_ = s.Backend.UpdateBounds(problem.GetBoundsLower(), problem.GetBoundsUpper())

	outcome := s.runTrustRegionLoop(ctx, problem, r, start)
	switch outcome {
	case trustConverged:
		return true, NLPConverged
	case trustQPError:
		return true, QPSolverError
	case trustCallbackStopped:
		return true, CallbackStopped
	case trustAccepted:
		if maxOf(problem.GetBoxSize()) < s.Params.MinTrustBoxSize {
			return true, NLPConverged
		}
		return false, NotStarted
	default: // trustContinue: box shrank below minimum without an accept
		return true, NLPConverged
	}
}

type trustOutcome int

const (
	trustContinue trustOutcome = iota
	trustAccepted
	trustConverged
	trustQPError
	trustCallbackStopped
)

// runTrustRegionLoop implements SPEC_FULL §4.1's "Trust-region loop"
// and "QP-solver failure handling", including the deliberately
// preserved open-question boundary at qp_solver_failures ==
// max_qp_solver_failures (one extra retry at MinTrustBoxSize).
func (s *Solver) runTrustRegionLoop(ctx context.Context, problem *qp.Problem, r *Results, start time.Time) trustOutcome {
	qpFailures := 0
	for maxOf(problem.GetBoxSize()) >= s.Params.MinTrustBoxSize {
		if ctx.Err() != nil || time.Since(start).Seconds() > s.Params.MaxTimeSeconds {
			return trustContinue
		}
		if !s.Backend.Solve() {
			qpFailures++
			s.Logger.Warn("qp solver failed to find a solution", map[string]interface{}{"failures": qpFailures})
			switch {
			case qpFailures < s.Params.MaxQPSolverFailures:
				problem.ScaleBoxSize(s.Params.TrustShrinkRatio)
				_ = s.Backend.UpdateBounds(problem.GetBoundsLower(), problem.GetBoundsUpper())
				continue
			case qpFailures == s.Params.MaxQPSolverFailures:
				box := make([]float64, len(r.BoxSize))
				for i := range box {
					box[i] = s.Params.MinTrustBoxSize
				}
				problem.SetBoxSize(box)
				_ = s.Backend.UpdateBounds(problem.GetBoundsLower(), problem.GetBoundsUpper())
				continue
			default:
				return trustQPError
			}
		}
		qpFailures = 0

		sol := s.Backend.GetSolution()
		xNew := sol[:problem.GetNumNLPVars()]

		newApproxCosts := problem.EvaluateConvexCosts(xNew)
		newApproxViol := problem.EvaluateConvexConstraintViolations(xNew)
		newApproxMerit := merit(newApproxCosts, newApproxViol, r.MeritErrorCoeffs)

		newCosts := problem.EvaluateExactCosts(xNew)
		newViol := problem.EvaluateExactConstraintViolations(xNew)
		newExactMerit := merit(newCosts, newViol, r.MeritErrorCoeffs)

		approxImprove := r.BestExactMerit - newApproxMerit
		exactImprove := r.BestExactMerit - newExactMerit
		ratio := improveRatio(exactImprove, approxImprove)

		r.NewVarVals, r.NewCosts, r.NewApproxCosts = xNew, newCosts, newApproxCosts
		r.NewConstraintViolations, r.NewApproxConstraintViolations = newViol, newApproxViol
		r.NewExactMerit, r.NewApproxMerit = newExactMerit, newApproxMerit
		r.ApproxMeritImprove, r.ExactMeritImprove, r.MeritImproveRatio = approxImprove, exactImprove, ratio
		r.TrustRegionIteration++

		switch {
		case approxImprove < s.Params.MinApproxImprove:
			if !runCallbacks(s.Callbacks, problem, r) {
				return trustCallbackStopped
			}
			return trustConverged
		case r.BestExactMerit != 0 && approxImprove/r.BestExactMerit < s.Params.MinApproxImproveFrac:
			if !runCallbacks(s.Callbacks, problem, r) {
				return trustCallbackStopped
			}
			return trustConverged
		case exactImprove < 0 || ratio < s.Params.ImproveRatioThreshold:
			problem.ScaleBoxSize(s.Params.TrustShrinkRatio)
			_ = s.Backend.UpdateBounds(problem.GetBoundsLower(), problem.GetBoundsUpper())
			if !runCallbacks(s.Callbacks, problem, r) {
				return trustCallbackStopped
			}
		default:
			r.BestVarVals = append([]float64(nil), xNew...)
			r.BestCosts, r.BestConstraintViolations = newCosts, newViol
			r.BestExactMerit = newExactMerit
			r.OverallIteration++
			problem.SetVariables(xNew)
			problem.ScaleBoxSize(s.Params.TrustExpandRatio)
			r.BoxSize = problem.GetBoxSize()
			_ = s.Backend.UpdateBounds(problem.GetBoundsLower(), problem.GetBoundsUpper())

			if !runCallbacks(s.Callbacks, problem, r) {
				return trustCallbackStopped
			}
			return trustAccepted
		}
	}
	return trustContinue
}

func improveRatio(exactImprove, approxImprove float64) float64 {
	if approxImprove == 0 {
		if exactImprove > 0 {
			return math.Inf(1)
		}
		if exactImprove < 0 {
			return math.Inf(-1)
		}
		return 0
	}
	return exactImprove / approxImprove
}

func maxOf(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func rowsOf(problem *qp.Problem) int {
	if a := problem.GetConstraintMatrix(); a != nil {
		rows, _ := a.Dims()
		return rows
	}
	return problem.NumQPVars()
}
