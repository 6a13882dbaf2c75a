package ai

import (
	"context"
	"errors"

	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/nutrition"
)

// ErrGeneration marks any failure of the plan generation backend.
var ErrGeneration = errors.New("plan generation failed")

type Provider interface {
	GeneratePlan(ctx context.Context, req PlanRequest) (Plan, error)
}

// PlanRequest is everything a provider needs to write one daily plan.
type PlanRequest struct {
	Profile    nutrition.Profile
	Targets    nutrition.Targets
	Candidates []foods.FoodItem
	// NoCandidates asks for a plan from the profile alone.
	NoCandidates bool
}

// Plan is the structured answer returned to clients.
type Plan struct {
	Result            string   `json:"result"`
	RecommendMeal     MealPlan `json:"recommend-meal"`
	RecommendExercise string   `json:"recommend-exercise"`
}

type MealPlan struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}
