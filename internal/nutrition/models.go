package nutrition

import (
	"fmt"
	"strings"
)

// Goal drives which nutrient thresholds and sort order apply.
type Goal string

const (
	GoalDiet       Goal = "diet"
	GoalMuscleGain Goal = "muscle_gain"
	GoalMaintain   Goal = "maintain"
	GoalBulk       Goal = "bulk"
)

// Gender as sent by clients.
type Gender string

const (
	GenderMan   Gender = "man"
	GenderWoman Gender = "woman"
)

// GoalPolicy decides what happens to a goal or gender outside the known values.
type GoalPolicy string

const (
	// PolicyStrict rejects the profile with a *ValidationError.
	PolicyStrict GoalPolicy = "strict"
	// PolicyLegacy passes the items through unsorted and unfiltered.
	PolicyLegacy GoalPolicy = "legacy"
)

var (
	knownGoals   = []Goal{GoalDiet, GoalMuscleGain, GoalMaintain, GoalBulk}
	knownGenders = []Gender{GenderMan, GenderWoman}
)

func (g Goal) Valid() bool {
	for _, k := range knownGoals {
		if g == k {
			return true
		}
	}
	return false
}

func (g Gender) Valid() bool {
	for _, k := range knownGenders {
		if g == k {
			return true
		}
	}
	return false
}

// Profile is one request's body metrics. Extra holds any other request
// fields; they are not used for filtering but are forwarded to plan generation.
type Profile struct {
	Weight float64        `json:"weight"`
	BMR    float64        `json:"bmr"`
	Goal   Goal           `json:"goal"`
	Gender Gender         `json:"gender"`
	Extra  map[string]any `json:"-"`
}

// Validate checks the goal and gender enums. Non-positive weight or BMR is
// accepted on purpose: it yields an empty candidate set, not an error.
func (p Profile) Validate() error {
	if !p.Goal.Valid() {
		return &ValidationError{
			Field:   "goal",
			Value:   string(p.Goal),
			Message: fmt.Sprintf("goal must be one of %s", joinGoals(knownGoals)),
		}
	}
	if !p.Gender.Valid() {
		return &ValidationError{
			Field:   "gender",
			Value:   string(p.Gender),
			Message: "gender must be one of man, woman",
		}
	}
	return nil
}

// ValidationError is returned for profiles the filter refuses to evaluate.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// Targets are the daily protein and fat amounts the goal filter compares against.
type Targets struct {
	ProteinG float64 `json:"protein_g"`
	FatG     float64 `json:"fat_g"`
}

func joinGoals(goals []Goal) string {
	parts := make([]string, len(goals))
	for i, g := range goals {
		parts[i] = string(g)
	}
	return strings.Join(parts, ", ")
}
