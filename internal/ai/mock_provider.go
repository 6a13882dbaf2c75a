package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/fdg312/meal-recommender/internal/nutrition"
)

// MockProvider builds a deterministic plan from the request alone.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) GeneratePlan(ctx context.Context, req PlanRequest) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	energy := mockEnergy(req.Profile)
	carbs := (energy - req.Targets.ProteinG*4 - req.Targets.FatG*9) / 4
	if carbs < 0 {
		carbs = 0
	}

	meals := []string{"현미밥과 된장국", "닭가슴살 샐러드", "두부 구이와 나물"}
	if !req.NoCandidates {
		for i, item := range req.Candidates {
			if i >= len(meals) {
				break
			}
			meals[i] = item.DisplayName()
		}
	}

	perMeal := energy / 3
	return Plan{
		Result: fmt.Sprintf("목표: %s 에너지: %.0fkcal 단백질: %.0fg 지방: %.0fg 탄수화물: %.0fg",
			req.Profile.Goal, energy, req.Targets.ProteinG, req.Targets.FatG, carbs),
		RecommendMeal: MealPlan{
			Breakfast: fmt.Sprintf("%s (약 %.0fkcal)", meals[0], perMeal),
			Lunch:     fmt.Sprintf("%s (약 %.0fkcal)", meals[1], perMeal),
			Dinner:    fmt.Sprintf("%s (약 %.0fkcal)", meals[2], perMeal),
		},
		RecommendExercise: mockExercise(req.Profile.Goal),
	}, nil
}

func mockEnergy(p nutrition.Profile) float64 {
	switch p.Goal {
	case nutrition.GoalDiet:
		return p.BMR * 0.8
	case nutrition.GoalBulk:
		return p.BMR * 1.2
	case nutrition.GoalMuscleGain:
		return p.BMR * 1.1
	default:
		return p.BMR
	}
}

func mockExercise(goal nutrition.Goal) string {
	parts := []string{"주 3회 30분 걷기"}
	switch goal {
	case nutrition.GoalDiet:
		parts = append(parts, "인터벌 유산소 20분")
	case nutrition.GoalMuscleGain, nutrition.GoalBulk:
		parts = append(parts, "주 4회 분할 근력 운동")
	case nutrition.GoalMaintain:
		parts = append(parts, "주 2회 전신 근력 운동")
	}
	return strings.Join(parts, ", ")
}
