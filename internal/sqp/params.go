package sqp

import "github.com/copyleftdev/sqpforge/internal/errors"

// maxConvexifyIterations caps the inner convexification loop
// regardless of Params.MaxIterations (SPEC_FULL §9 open question:
// preserved as an internal safety net, not tied to the outer budget).
const maxConvexifyIterations = 100

// Params holds the trust-region driver's tunables (SPEC_FULL §4.1
// "Parameters"), grounded on
// trust_region_sqp_solver.cpp's TrustRegionSQPParams.
type Params struct {
	InitialMeritErrorCoeff       float64
	MeritCoeffIncreaseRatio      float64
	MaxMeritCoeffIncreases       int
	InflateConstraintsIndividually bool

	InitialTrustBoxSize float64
	MinTrustBoxSize     float64
	TrustShrinkRatio    float64
	TrustExpandRatio    float64

	ImproveRatioThreshold float64
	MinApproxImprove      float64
	MinApproxImproveFrac  float64

	CntTolerance       float64
	MaxIterations      int
	MaxQPSolverFailures int
	MaxTimeSeconds     float64
}

// DefaultParams returns the defaults used by trust_region_sqp_solver.cpp
// when a caller leaves a field unset.
func DefaultParams() Params {
	return Params{
		InitialMeritErrorCoeff:         10,
		MeritCoeffIncreaseRatio:        10,
		MaxMeritCoeffIncreases:         5,
		InflateConstraintsIndividually: false,
		InitialTrustBoxSize:            0.1,
		MinTrustBoxSize:                1e-4,
		TrustShrinkRatio:               0.1,
		TrustExpandRatio:               1.5,
		ImproveRatioThreshold:          0.25,
		MinApproxImprove:               1e-4,
		MinApproxImproveFrac:           -1e10,
		CntTolerance:                   1e-4,
		MaxIterations:                  50,
		MaxQPSolverFailures:            3,
		MaxTimeSeconds:                 30,
	}
}

// Validate rejects parameter combinations the driver cannot run with.
func (p Params) Validate() error {
	switch {
	case p.TrustShrinkRatio <= 0 || p.TrustShrinkRatio >= 1:
		return errors.New("TrustShrinkRatio must be in (0,1)").WithComponent("sqp").WithOperation("Validate")
	case p.TrustExpandRatio <= 1:
		return errors.New("TrustExpandRatio must be > 1").WithComponent("sqp").WithOperation("Validate")
	case p.MinTrustBoxSize <= 0:
		return errors.New("MinTrustBoxSize must be positive").WithComponent("sqp").WithOperation("Validate")
	case p.InitialTrustBoxSize < p.MinTrustBoxSize:
		return errors.New("InitialTrustBoxSize must be >= MinTrustBoxSize").WithComponent("sqp").WithOperation("Validate")
	case p.CntTolerance <= 0:
		return errors.New("CntTolerance must be positive").WithComponent("sqp").WithOperation("Validate")
	case p.MaxQPSolverFailures < 1:
		return errors.New("MaxQPSolverFailures must be >= 1").WithComponent("sqp").WithOperation("Validate")
	case p.MaxMeritCoeffIncreases < 1:
		return errors.New("MaxMeritCoeffIncreases must be >= 1").WithComponent("sqp").WithOperation("Validate")
	}
	return nil
}
