// Package collision implements the collision data model, the
// Longest-Valid-Segment (LVS) evaluator, and the collision constraint of
// SPEC_FULL §3, §4.3, §4.4, grounded on
// original_source/trajopt_common/include/trajopt_common/collision_types.h
// and collision_utils.h.
package collision

// Config mirrors trajopt_common::TrajOptCollisionConfig.
type Config struct {
	LongestValidSegmentLength float64
	CollisionMargin           float64
	CollisionMarginBuffer     float64
	MaxNumContacts            int
}

// DefaultConfig returns the defaults named in collision_types.h.
func DefaultConfig() Config {
	return Config{
		LongestValidSegmentLength: 0.005,
		CollisionMargin:           0.0,
		CollisionMarginBuffer:     0.01,
		MaxNumContacts:            3,
	}
}

// LinkGradient is the per-link half of a contact gradient: the
// translation direction from the nearest point toward the other link,
// and the Jacobian of that link's position w.r.t. the active DOFs.
type LinkGradient struct {
	LinkName      string
	Direction     [3]float64
	Jacobian      [][]float64 // 3 x len(DOF)
	HasGradient   bool
}

// GradientResult is one contact between two links, optionally split
// across both timesteps of a continuous (swept) pair
// (trajopt_common::GradientResults).
type GradientResult struct {
	LinkPair           [2]string
	SubshapePair       [2]int
	Distance           float64
	Error              float64 // margin - distance
	ErrorWithBuffer    float64 // margin + buffer - distance
	Gradients          [2]LinkGradient // t=0 side, per link
	CCGradients        [2]LinkGradient // t=1 side (continuous only)
	IsTimestep1        bool
	DT                 float64 // interpolation weight, 1 for non-LVS pairs
}

// GradientResultsSet groups every GradientResult for one
// (link-pair, subshape-pair) key, with unweighted max-error summaries
// used for ranking and truncation (trajopt_common::GradientResultsSet).
// Coeff is applied once downstream, by Constraint.Values.
type GradientResultsSet struct {
	LinkPair     [2]string
	SubshapePair [2]int
	Coeff        float64
	IsContinuous bool
	Results      []GradientResult

	maxError        float64
	maxErrorT0Only  float64 // excluding contacts flagged IsTimestep1
	maxErrorT1Only  float64 // excluding contacts NOT flagged IsTimestep1
}

// AddResult appends a contact and updates the cached max-error summaries.
// The cached values are the raw (unweighted) per-contact error; Coeff is
// applied exactly once, by Constraint.Values.
func (s *GradientResultsSet) AddResult(r GradientResult) {
	s.Results = append(s.Results, r)
	err := r.ErrorWithBuffer
	if err > s.maxError {
		s.maxError = err
	}
	if r.IsTimestep1 {
		if err > s.maxErrorT1Only {
			s.maxErrorT1Only = err
		}
	} else {
		if err > s.maxErrorT0Only {
			s.maxErrorT0Only = err
		}
	}
}

// MaxError returns the overall unweighted max error. Callers apply Coeff
// themselves (see Constraint.Values).
func (s *GradientResultsSet) MaxError() float64 { return s.maxError }

// MaxErrorExcludingT1 returns the max error considering only contacts
// not flagged IsTimestep1 (used when vars1 is the fixed endpoint).
func (s *GradientResultsSet) MaxErrorExcludingT1() float64 { return s.maxErrorT0Only }

// MaxErrorExcludingT0 returns the max error considering only contacts
// flagged IsTimestep1 (used when vars0 is the fixed endpoint).
func (s *GradientResultsSet) MaxErrorExcludingT0() float64 { return s.maxErrorT1Only }

// CacheEntry is one bounded-cache snapshot for a (config, x0, x1) key
// (trajopt_common::CollisionCacheData).
type CacheEntry struct {
	Sets []*GradientResultsSet
}
