package nutrition

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fdg312/meal-recommender/internal/foods"
)

// MaxCandidates is how many foods are handed to plan generation.
const MaxCandidates = 3

// NewRand returns a PCG source. Seed 0 seeds from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		now := uint64(time.Now().UnixNano())
		return rand.New(rand.NewPCG(now, now>>1|1))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sample picks min(n, len(items)) distinct items uniformly at random.
// The result is never nil.
func Sample(rng *rand.Rand, items []foods.FoodItem, n int) []foods.FoodItem {
	if n <= 0 || len(items) == 0 {
		return []foods.FoodItem{}
	}
	if n > len(items) {
		n = len(items)
	}

	// Partial Fisher-Yates over an index slice so items stays untouched.
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	out := make([]foods.FoodItem, n)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = items[idx[i]]
	}
	return out
}

// SelectCandidates filters items for p and samples at most MaxCandidates.
func SelectCandidates(rng *rand.Rand, p Profile, items []foods.FoodItem, policy GoalPolicy) ([]foods.FoodItem, error) {
	filtered, err := Filter(p, items, policy)
	if err != nil {
		return nil, err
	}
	return Sample(rng, filtered, MaxCandidates), nil
}

// Filterer produces the deterministic filtered set for a profile.
type Filterer interface {
	Filter(p Profile) ([]foods.FoodItem, error)
}

// StaticFilter runs Filter over a fixed item slice.
type StaticFilter struct {
	Items  []foods.FoodItem
	Policy GoalPolicy
}

func (s StaticFilter) Filter(p Profile) ([]foods.FoodItem, error) {
	return Filter(p, s.Items, s.Policy)
}

// Selector samples candidates from a Filterer. It is safe for concurrent use.
type Selector struct {
	filterer   Filterer
	sampleSize int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a Selector. sampleSize is clamped to 1..MaxCandidates;
// values <= 0 mean MaxCandidates.
func NewSelector(filterer Filterer, rng *rand.Rand, sampleSize int) *Selector {
	if sampleSize <= 0 || sampleSize > MaxCandidates {
		sampleSize = MaxCandidates
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &Selector{filterer: filterer, sampleSize: sampleSize, rng: rng}
}

// Filtered returns the full deterministic filtered set, without sampling.
func (s *Selector) Filtered(p Profile) ([]foods.FoodItem, error) {
	return s.filterer.Filter(p)
}

// SelectCandidates filters for p and samples up to the configured size.
// An empty result is not an error.
func (s *Selector) SelectCandidates(p Profile) ([]foods.FoodItem, error) {
	filtered, err := s.filterer.Filter(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Sample(s.rng, filtered, s.sampleSize), nil
}
