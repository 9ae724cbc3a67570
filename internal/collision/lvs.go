package collision

import (
	"math"

	"github.com/copyleftdev/sqpforge/internal/planning"
)

// PairCoeffs maps a (linkA, linkB) key to the constraint coefficient for
// that pair; a zero or absent coefficient removes the pair entirely
// (SPEC_FULL §4.3 "Filtering").
type PairCoeffs map[[2]string]float64

// LVSEvaluator implements the Longest-Valid-Segment rule of SPEC_FULL
// §4.3, grounded on
// original_source/trajopt_ifopt/src/constraints/collision/
// continuous_collision_evaluators.cpp and discrete_collision_evaluators.cpp.
type LVSEvaluator struct {
	Env          planning.Environment
	Config       Config
	Coeffs       PairCoeffs
	Continuous   bool
	Cache        *Cache
}

// NumSubStates applies the LVS subdivision rule: n = ceil(dist/L)+1 when
// dist exceeds L, else n = 2.
func NumSubStates(x0, x1 []float64, longestValidSegment float64) int {
	dist := l2Distance(x0, x1)
	if dist > longestValidSegment {
		return int(math.Ceil(dist/longestValidSegment)) + 1
	}
	return 2
}

func l2Distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func interpolate(x0, x1 []float64, t float64) []float64 {
	out := make([]float64, len(x0))
	for i := range out {
		out[i] = x0[i] + t*(x1[i]-x0[i])
	}
	return out
}

// CalcCollisionData evaluates the pair (x0, x1), returning one
// GradientResultsSet per (link pair, subshape pair) in the order each
// group was first seen, capped at Config.MaxNumContacts.
// var0Fixed/var1Fixed indicate which endpoint (if any) is a fixed
// trajectory boundary, which determines the unweighted max-error variant
// used to rank the sets when more than Config.MaxNumContacts are found.
func (e *LVSEvaluator) CalcCollisionData(x0, x1 []float64, var0Fixed, var1Fixed bool) []*GradientResultsSet {
	key := HashPair(e.Env.ConfigFingerprint(), x0, x1)
	if !e.Continuous {
		key = Hash(e.Env.ConfigFingerprint(), x0) ^ (HashPair(e.Env.ConfigFingerprint(), x0, x1) >> 1)
	}
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(key); ok {
			return cached.Sets
		}
	}

	var raw []GradientResult
	if e.Continuous {
		raw = e.calcContinuous(x0, x1)
	} else {
		raw = e.calcDiscrete(x0, x1)
	}
	raw = RemoveInvalidContactResults(raw, e.Config.CollisionMargin, e.Config.CollisionMarginBuffer, var0Fixed, var1Fixed)
	raw = e.filterZeroCoeff(raw)

	sets := e.group(raw)
	sets = e.truncate(sets, var0Fixed, var1Fixed)

	if e.Cache != nil {
		e.Cache.Put(key, &CacheEntry{Sets: sets})
	}
	return sets
}

// calcContinuous subdivides [x0,x1] into adjacent swept sub-intervals
// and tests each with the continuous contact manager, merging results
// weighted by dt = 1/(n-1) (continuous_collision_evaluators.cpp
// LVSContinuousCollisionEvaluator::CalcCollisionsHelper).
func (e *LVSEvaluator) calcContinuous(x0, x1 []float64) []GradientResult {
	n := NumSubStates(x0, x1, e.Config.LongestValidSegmentLength)
	dt := 1.0 / float64(n-1)

	solver := e.Env.StateSolver()
	mgr := e.Env.ContinuousContactManager()
	links := solver.JointGroup().ActiveLinkNames()
	mgr.SetActiveCollisionObjects(links)
	mgr.SetCollisionMarginData(e.Config.CollisionMargin, e.Config.CollisionMarginBuffer)

	var out []GradientResult
	var prev []float64
	for i := 0; i <= n-1; i++ {
		t := float64(i) * dt
		cur := interpolate(x0, x1, t)
		if i > 0 {
			poseA := solver.CalcFwdKin(prev)
			poseB := solver.CalcFwdKin(cur)
			mgr.SetCollisionObjectsTransform(poseA, poseB)
			contacts := mgr.ContactTest(planning.ContactRequest{ActiveLinks: links, MarginBuffer: e.Config.CollisionMarginBuffer})
			localDT := dt
			for _, c := range contacts {
				out = append(out, e.toGradientResult(c, prev, cur, false, localDT))
				out = append(out, e.toGradientResult(c, prev, cur, true, localDT))
			}
		}
		prev = cur
	}
	return out
}

// calcDiscrete samples every sub-state as a point sample
// (discrete_collision_evaluators.cpp SingleTimestepCollisionEvaluator,
// generalized to LVSDiscreteCollisionEvaluator's multi-sample variant).
func (e *LVSEvaluator) calcDiscrete(x0, x1 []float64) []GradientResult {
	n := NumSubStates(x0, x1, e.Config.LongestValidSegmentLength)
	dt := 1.0 / float64(n-1)

	solver := e.Env.StateSolver()
	mgr := e.Env.DiscreteContactManager()
	links := solver.JointGroup().ActiveLinkNames()
	mgr.SetActiveCollisionObjects(links)
	mgr.SetCollisionMarginData(e.Config.CollisionMargin, e.Config.CollisionMarginBuffer)

	var out []GradientResult
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		cur := interpolate(x0, x1, t)
		pose := solver.CalcFwdKin(cur)
		mgr.SetCollisionObjectsTransform(pose)
		contacts := mgr.ContactTest(planning.ContactRequest{ActiveLinks: links, MarginBuffer: e.Config.CollisionMarginBuffer})
		isT1 := i > n/2
		for _, c := range contacts {
			out = append(out, e.toGradientResult(c, cur, cur, isT1, dt))
		}
	}
	return out
}

func (e *LVSEvaluator) toGradientResult(c planning.Contact, x0, x1 []float64, isT1 bool, dt float64) GradientResult {
	err := e.Config.CollisionMargin - c.Distance
	errBuf := e.Config.CollisionMargin + e.Config.CollisionMarginBuffer - c.Distance
	return GradientResult{
		LinkPair:        [2]string{c.LinkA, c.LinkB},
		SubshapePair:    [2]int{c.SubshapeA, c.SubshapeB},
		Distance:        c.Distance,
		Error:           err,
		ErrorWithBuffer: errBuf,
		IsTimestep1:     isT1,
		DT:              dt,
	}
}

func (e *LVSEvaluator) filterZeroCoeff(results []GradientResult) []GradientResult {
	if e.Coeffs == nil {
		return results
	}
	out := make([]GradientResult, 0, len(results))
	for _, r := range results {
		if e.coeffFor(r.LinkPair) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *LVSEvaluator) coeffFor(pair [2]string) float64 {
	if c, ok := e.Coeffs[pair]; ok {
		return c
	}
	if c, ok := e.Coeffs[[2]string{pair[1], pair[0]}]; ok {
		return c
	}
	return 1.0
}

func (e *LVSEvaluator) group(results []GradientResult) []*GradientResultsSet {
	index := map[int]*GradientResultsSet{}
	var order []int
	for _, r := range results {
		key := CantorHash(r.SubshapePair[0], r.SubshapePair[1]) ^ int(hashPairKey(r.LinkPair))
		set, ok := index[key]
		if !ok {
			set = &GradientResultsSet{
				LinkPair:     r.LinkPair,
				SubshapePair: r.SubshapePair,
				Coeff:        e.coeffFor(r.LinkPair),
				IsContinuous: e.Continuous,
			}
			index[key] = set
			order = append(order, key)
		}
		set.AddResult(r)
	}
	out := make([]*GradientResultsSet, 0, len(order))
	for _, k := range order {
		out = append(out, index[k])
	}
	return out
}

func hashPairKey(pair [2]string) uint32 {
	var h uint32 = 2166136261
	for _, s := range []string{pair[0], pair[1]} {
		for i := 0; i < len(s); i++ {
			h ^= uint32(s[i])
			h *= 16777619
		}
	}
	return h
}

// truncate sorts by the max-error variant appropriate to which endpoint
// is fixed and keeps the top Config.MaxNumContacts (SPEC_FULL §4.3
// "Bounds enforcement").
func (e *LVSEvaluator) truncate(sets []*GradientResultsSet, var0Fixed, var1Fixed bool) []*GradientResultsSet {
	if len(sets) <= e.Config.MaxNumContacts {
		return sets
	}
	score := func(s *GradientResultsSet) float64 {
		switch {
		case var0Fixed:
			return s.MaxErrorExcludingT0()
		case var1Fixed:
			return s.MaxErrorExcludingT1()
		default:
			return s.MaxError()
		}
	}
	sorted := append([]*GradientResultsSet(nil), sets...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && score(sorted[j]) > score(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted[:e.Config.MaxNumContacts]
}
