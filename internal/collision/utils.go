package collision

import (
	"hash/fnv"
	"math"
)

// Hash computes a deterministic fingerprint of a single joint vector,
// used as the cache key for discrete (single-timestep) evaluation.
// Grounded on trajopt_common::getHash(parent, dof_vals).
func Hash(configFingerprint uint64, dofVals []float64) uint64 {
	h := fnv.New64a()
	writeUint64(h, configFingerprint)
	for _, v := range dofVals {
		writeFloat64(h, v)
	}
	return h.Sum64()
}

// HashPair computes a deterministic fingerprint of a joint-vector pair,
// used as the cache key for continuous (swept) evaluation. Grounded on
// trajopt_common::getHash(parent, dof_vals0, dof_vals1).
func HashPair(configFingerprint uint64, dofVals0, dofVals1 []float64) uint64 {
	h := fnv.New64a()
	writeUint64(h, configFingerprint)
	for _, v := range dofVals0 {
		writeFloat64(h, v)
	}
	for _, v := range dofVals1 {
		writeFloat64(h, v)
	}
	return h.Sum64()
}

// CantorHash pairs a shape id and a subshape id into a single integer
// key, for grouping gradient results by (link_pair, subshape_pair).
// Grounded on trajopt_common::cantorHash.
func CantorHash(shapeID, subshapeID int) int {
	a, b := shapeID, subshapeID
	return (a+b)*(a+b+1)/2 + b
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	_, _ = h.Write(buf[:])
}

func writeFloat64(h interface{ Write([]byte) (int, error) }, v float64) {
	writeUint64(h, math.Float64bits(v))
}

// RemoveInvalidContactResults filters out results that lie beyond the
// margin+buffer distance (negative ErrorWithBuffer), or that occur at a
// fixed endpoint. margin and marginBuffer are not consulted, since
// ErrorWithBuffer already includes both. Grounded on
// trajopt_common::removeInvalidContactResults.
func RemoveInvalidContactResults(results []GradientResult, margin, marginBuffer float64, var0Fixed, var1Fixed bool) []GradientResult {
	out := make([]GradientResult, 0, len(results))
	for _, r := range results {
		if r.ErrorWithBuffer < 0 {
			continue
		}
		if r.IsTimestep1 && var1Fixed {
			continue
		}
		if !r.IsTimestep1 && var0Fixed {
			continue
		}
		out = append(out, r)
	}
	return out
}
