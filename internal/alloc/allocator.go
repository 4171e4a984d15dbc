// Package alloc implements variant allocation strategies. Both strategies
// are pure: stickiness is the assignment store's job, not theirs.
package alloc

// Strategy selects how users are bucketed into variants.
type Strategy string

const (
	StrategyRandom    Strategy = "random"
	StrategyHashBased Strategy = "hash_based"
)

// Variant is the minimal shape allocation needs: an id and a weight
// expressed as a percentage (0-100).
type Variant struct {
	ID     string
	Weight float64
}

// Choose picks a variant for the given user. rng returns a uniform draw in
// [0, 1) and is only consulted by the random strategy. Unknown strategies
// fall back to random, matching how an unconfigured test behaves.
func Choose(variants []Variant, strategy Strategy, seed, userID string, rng func() float64) string {
	switch strategy {
	case StrategyHashBased:
		return HashBased(variants, userID, seed)
	default:
		return Random(variants, rng())
	}
}

// Random walks the variants in order accumulating weight and returns the
// first whose cumulative weight reaches the draw. draw is uniform in [0, 1).
func Random(variants []Variant, draw float64) string {
	r := draw * 100
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if r <= cumulative {
			return v.ID
		}
	}
	// Rounding in the weight table can leave the walk short of the draw.
	// Allocation must not fail for a weight-valid test.
	return variants[len(variants)-1].ID
}

// HashBased deterministically buckets a user: a stable 32-bit hash of
// "<userID>_<seed>" reduced mod 100, then the same cumulative walk with a
// strict comparison. Same (userID, seed, weights) always yields the same
// variant, across calls and restarts.
func HashBased(variants []Variant, userID, seed string) string {
	if seed == "" {
		seed = "default"
	}
	h := int64(Hash32(userID + "_" + seed))
	if h < 0 {
		h = -h
	}
	bucket := float64(h % 100)

	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if bucket < cumulative {
			return v.ID
		}
	}
	return variants[len(variants)-1].ID
}

// Hash32 is a polynomial rolling hash (h*31 + c) over the string's code
// points, wrapping at 32 bits. The constant and wrap behavior are kept
// stable deliberately: persisted assignments from older processes must
// keep hashing to the same buckets.
func Hash32(s string) int32 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	return h
}
