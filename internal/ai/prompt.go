package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fdg312/meal-recommender/internal/foods"
)

const basalMetabolicRateKey = "basal metabolic rate"

const answerFormat = `아래 형식(JSON)으로 응답을 작성해줘:

{
    "result": "목표: (목표 입력) 에너지: (kcal 값) 단백질: (g 값) 지방: (g 값) 탄수화물: (g 값)",
    "recommend-meal": {
        "breakfast": "(아침 식단 및 kcal 값)",
        "lunch": "(점심 식단 및 kcal 값)",
        "dinner": "(저녁 식단 및 kcal 값)"
    },
    "recommend-exercise": "(추천 운동 방법 상세 설명)"
}

위 JSON 형식에 맞춰 정확하게 응답해줘.`

// BuildPrompt renders the generation prompt for req.
func BuildPrompt(req PlanRequest) string {
	var b strings.Builder

	b.WriteString("사용자의 신체 정보: ")
	b.WriteString(profileJSON(req))
	b.WriteString("\n")

	if req.NoCandidates || len(req.Candidates) == 0 {
		b.WriteString("추천할 음식 데이터가 없습니다. 사용자의 신체 정보만 가지고 AI 추천 식단을 만들어줘.\n")
	} else {
		b.WriteString("추천 음식 리스트:\n")
		for _, item := range req.Candidates {
			b.WriteString("- ")
			b.WriteString(itemJSON(item))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "참고 목표 섭취량: 단백질 %.1fg, 지방 %.1fg\n", req.Targets.ProteinG, req.Targets.FatG)
	b.WriteString("이 정보를 바탕으로 목표에 따른 하루에 먹어야할 영양소 정보와 비율을 알려주고,\n")
	b.WriteString("하루 식단을 아침, 점심, 저녁으로 나눠서 적어주고 추천 운동 방법을 알려줘.\n\n")
	b.WriteString(answerFormat)

	return b.String()
}

// profileJSON renders the profile with bmr relabeled, extras included.
func profileJSON(req PlanRequest) string {
	p := req.Profile
	fields := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		fields[k] = v
	}
	fields["weight"] = p.Weight
	fields[basalMetabolicRateKey] = p.BMR
	fields["goal"] = string(p.Goal)
	fields["gender"] = string(p.Gender)
	delete(fields, "bmr")

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("weight=%v, %s=%v, goal=%s, gender=%s", p.Weight, basalMetabolicRateKey, p.BMR, p.Goal, p.Gender)
	}
	return string(data)
}

// itemJSON renders every source column in header order.
func itemJSON(item foods.FoodItem) string {
	if len(item.Columns) == 0 {
		data, _ := json.Marshal(item)
		return string(data)
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, col := range item.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, _ := json.Marshal(col.Name)
		val, _ := json.Marshal(col.Value)
		b.Write(key)
		b.WriteString(": ")
		b.Write(val)
	}
	b.WriteByte('}')
	return b.String()
}

// ParsePlan decodes a model answer, tolerating markdown fences and
// surrounding prose.
func ParsePlan(text string) (Plan, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start == -1 || end <= start {
		return Plan{}, fmt.Errorf("%w: answer contains no JSON object", ErrGeneration)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(body[start:end+1]), &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: decode answer: %v", ErrGeneration, err)
	}
	if err := plan.validate(); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return plan, nil
}

func (p Plan) validate() error {
	var missing []string
	if strings.TrimSpace(p.Result) == "" {
		missing = append(missing, "result")
	}
	if p.RecommendMeal == (MealPlan{}) {
		missing = append(missing, "recommend-meal")
	}
	if strings.TrimSpace(p.RecommendExercise) == "" {
		missing = append(missing, "recommend-exercise")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.New("answer is missing " + strings.Join(missing, ", "))
	}
	return nil
}
