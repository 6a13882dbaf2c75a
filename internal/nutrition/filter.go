package nutrition

import (
	"sort"

	"github.com/fdg312/meal-recommender/internal/foods"
)

// Thresholds shared by the goal rules.
const (
	SugarCeilingG    = 20.0
	SodiumCeilingMg  = 2000.0
	DietEnergyFactor = 0.8
	BulkEnergyFactor = 1.2

	baselineProteinPerKg = 1.6
	fatPerKg             = 1.0
)

// goalRule is the sort key and predicate for one goal.
type goalRule struct {
	less func(a, b foods.FoodItem) bool
	keep func(item foods.FoodItem, p Profile, t Targets) bool
}

var rules = map[Goal]goalRule{
	GoalDiet: {
		less: descending(fiber),
		keep: func(item foods.FoodItem, p Profile, _ Targets) bool {
			return atMost(item.SugarG, SugarCeilingG) &&
				atMost(item.SodiumMg, SodiumCeilingMg) &&
				atMost(item.EnergyKcal, p.BMR*DietEnergyFactor)
		},
	},
	GoalMuscleGain: {
		less: descending(protein),
		keep: func(item foods.FoodItem, _ Profile, t Targets) bool {
			return atLeast(item.ProteinG, t.ProteinG) && atMost(item.FatG, t.FatG)
		},
	},
	GoalMaintain: {
		less: descending(protein),
		keep: func(item foods.FoodItem, _ Profile, t Targets) bool {
			return atLeast(item.ProteinG, t.ProteinG) && atMost(item.SodiumMg, SodiumCeilingMg)
		},
	},
	GoalBulk: {
		less: descending(protein, energy),
		keep: func(item foods.FoodItem, p Profile, t Targets) bool {
			return atLeast(item.ProteinG, t.ProteinG) && atMost(item.EnergyKcal, p.BMR*BulkEnergyFactor)
		},
	},
}

// BaselineTargets returns the generic targets: protein 1.6 g/kg, fat 1 g/kg.
func BaselineTargets(p Profile) Targets {
	return Targets{
		ProteinG: p.Weight * baselineProteinPerKg,
		FatG:     p.Weight * fatPerKg,
	}
}

// TargetsFor applies the goal specific protein override to the baseline.
func TargetsFor(p Profile) Targets {
	t := BaselineTargets(p)

	switch p.Goal {
	case GoalMuscleGain:
		if p.Gender == GenderMan {
			t.ProteinG = p.Weight * 2.0
		} else {
			t.ProteinG = p.Weight * 1.5
		}
	case GoalMaintain:
		t.ProteinG = p.Weight * 1.0
	case GoalBulk:
		if p.Gender == GenderWoman {
			t.ProteinG = p.Weight * 2.0
		} else {
			t.ProteinG = p.Weight * 1.5
		}
	}

	return t
}

// Filter returns the goal-appropriate subset of items, sorted descending by
// the goal's key. It is deterministic and never modifies items.
//
// Under PolicyLegacy an unknown goal returns a copy of items unchanged.
func Filter(p Profile, items []foods.FoodItem, policy GoalPolicy) ([]foods.FoodItem, error) {
	if policy != PolicyLegacy {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	rule, ok := rules[p.Goal]
	if !ok {
		return append([]foods.FoodItem{}, items...), nil
	}

	t := TargetsFor(p)
	out := make([]foods.FoodItem, 0, len(items)/4)
	for _, item := range items {
		if rule.keep(item, p, t) {
			out = append(out, item)
		}
	}

	// Stable sort of the kept subset gives the same order as sorting
	// everything first and filtering afterwards.
	sort.SliceStable(out, func(i, j int) bool {
		return rule.less(out[i], out[j])
	})

	return out, nil
}

func atMost(v *float64, limit float64) bool {
	return v != nil && *v <= limit
}

func atLeast(v *float64, limit float64) bool {
	return v != nil && *v >= limit
}

type nutrientKey func(foods.FoodItem) *float64

func fiber(f foods.FoodItem) *float64   { return f.FiberG }
func protein(f foods.FoodItem) *float64 { return f.ProteinG }
func energy(f foods.FoodItem) *float64  { return f.EnergyKcal }

// descending orders by each key in turn, larger first, missing values last.
func descending(keys ...nutrientKey) func(a, b foods.FoodItem) bool {
	return func(a, b foods.FoodItem) bool {
		for _, key := range keys {
			va, vb := key(a), key(b)
			switch {
			case va == nil && vb == nil:
				continue
			case va == nil:
				return false
			case vb == nil:
				return true
			case *va != *vb:
				return *va > *vb
			}
		}
		return false
	}
}
