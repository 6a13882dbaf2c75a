package mealplans

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fdg312/meal-recommender/internal/ai"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/nutrition"
)

const (
	defaultListLimit       = 20
	maxListLimit           = 100
	defaultCandidatesLimit = 20
)

// ErrRecommendationNotFound covers unknown ids and records of other users.
var ErrRecommendationNotFound = errors.New("recommendation not found")

// Recommendation is a generated plan as returned to clients.
type Recommendation struct {
	ID         string           `json:"id,omitempty"`
	UserID     string           `json:"user_id"`
	Goal       string           `json:"goal"`
	Profile    map[string]any   `json:"profile,omitempty"`
	Answer     ai.Plan          `json:"answer"`
	Candidates []foods.FoodItem `json:"candidates"`
	CreatedAt  time.Time        `json:"created_at"`
}

// AnswerResponse is the body of POST /{userId}/recommend_meal.
type AnswerResponse struct {
	Answer ai.Plan `json:"answer"`
}

type ListRecommendationsResponse struct {
	Items  []Recommendation `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type CandidatesResponse struct {
	Targets nutrition.Targets `json:"targets"`
	Total   int               `json:"total"`
	Items   []foods.FoodItem  `json:"items"`
}

var profileFields = map[string]bool{"weight": true, "bmr": true, "goal": true, "gender": true}

// ParseProfile decodes a request body into a profile. Fields other than
// weight, bmr, goal and gender are kept in Extra.
func ParseProfile(body []byte) (nutrition.Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nutrition.Profile{}, &nutrition.ValidationError{Field: "body", Message: "must be a JSON object"}
	}

	weight, err := numberField(raw, "weight")
	if err != nil {
		return nutrition.Profile{}, err
	}
	bmr, err := numberField(raw, "bmr")
	if err != nil {
		return nutrition.Profile{}, err
	}
	goal, err := stringField(raw, "goal")
	if err != nil {
		return nutrition.Profile{}, err
	}
	gender, err := stringField(raw, "gender")
	if err != nil {
		return nutrition.Profile{}, err
	}

	p := nutrition.Profile{
		Weight: weight,
		BMR:    bmr,
		Goal:   nutrition.Goal(goal),
		Gender: nutrition.Gender(gender),
	}
	for k, v := range raw {
		if profileFields[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return p, nil
}

func numberField(raw map[string]any, field string) (float64, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return 0, &nutrition.ValidationError{Field: field, Message: "is required"}
	}

	var f float64
	var err error
	switch n := v.(type) {
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		err = fmt.Errorf("unexpected type %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &nutrition.ValidationError{Field: field, Value: fmt.Sprint(v), Message: "must be a number"}
	}
	return f, nil
}

// stringField returns "" for a missing field so the goal policy decides.
func stringField(raw map[string]any, field string) (string, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &nutrition.ValidationError{Field: field, Value: fmt.Sprint(v), Message: "must be a string"}
	}
	return strings.TrimSpace(s), nil
}

// profileDocument is the profile as it is stored with a recommendation.
func profileDocument(p nutrition.Profile) map[string]any {
	doc := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		doc[k] = v
	}
	doc["weight"] = p.Weight
	doc["bmr"] = p.BMR
	doc["goal"] = string(p.Goal)
	doc["gender"] = string(p.Gender)
	return doc
}
