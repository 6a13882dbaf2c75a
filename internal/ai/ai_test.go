package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/config"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/nutrition"
)

const planJSON = `{"result":"목표: diet 에너지: 1600kcal","recommend-meal":{"breakfast":"오트밀","lunch":"샐러드","dinner":"생선구이"},"recommend-exercise":"걷기"}`

func sampleRequest() PlanRequest {
	return PlanRequest{
		Profile: nutrition.Profile{
			Weight: 70, BMR: 2000, Goal: nutrition.GoalDiet, Gender: nutrition.GenderWoman,
			Extra: map[string]any{"age": 31},
		},
		Targets: nutrition.Targets{ProteinG: 112, FatG: 70},
		Candidates: []foods.FoodItem{{
			Name: "현미밥",
			Columns: []foods.Column{
				{Name: "식품명", Value: "현미밥"},
				{Name: "에너지(kcal)", Value: "150"},
			},
		}},
	}
}

func TestBuildPromptRelabelsBMR(t *testing.T) {
	prompt := BuildPrompt(sampleRequest())

	for _, want := range []string{`"basal metabolic rate":2000`, `"age":31`, `"식품명": "현미밥"`, `"recommend-meal"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, `"bmr"`) {
		t.Errorf("prompt still contains bmr key")
	}
}

func TestBuildPromptWithoutCandidates(t *testing.T) {
	req := sampleRequest()
	req.Candidates = nil
	req.NoCandidates = true

	prompt := BuildPrompt(req)
	if strings.Contains(prompt, "추천 음식 리스트") {
		t.Fatalf("prompt lists foods without candidates")
	}
	if !strings.Contains(prompt, "신체 정보만") {
		t.Fatalf("prompt missing profile-only instruction")
	}
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", planJSON, false},
		{"fenced", "```json\n" + planJSON + "\n```", false},
		{"prose", "여기 있습니다:\n" + planJSON, false},
		{"no json", "죄송합니다", true},
		{"broken", `{"result":`, true},
		{"incomplete", `{"result":"x"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrGeneration) {
					t.Fatalf("ParsePlan() error = %v, want ErrGeneration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePlan() error = %v", err)
			}
			if plan.RecommendMeal.Lunch != "샐러드" {
				t.Fatalf("lunch = %q", plan.RecommendMeal.Lunch)
			}
		})
	}
}

func TestMockProvider(t *testing.T) {
	plan, err := NewMockProvider().GeneratePlan(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if !strings.Contains(plan.RecommendMeal.Breakfast, "현미밥") {
		t.Errorf("breakfast = %q, want candidate name", plan.RecommendMeal.Breakfast)
	}
	if !strings.Contains(plan.Result, "1600kcal") {
		t.Errorf("result = %q", plan.Result)
	}
	if err := plan.validate(); err != nil {
		t.Errorf("mock plan invalid: %v", err)
	}
}

func TestOpenAIProvider(t *testing.T) {
	var got chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": planJSON}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(&config.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-test", AIMaxOutputTokens: 100})
	p.baseURL = srv.URL

	plan, err := p.GeneratePlan(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if plan.RecommendExercise != "걷기" {
		t.Fatalf("exercise = %q", plan.RecommendExercise)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %+v", got.ResponseFormat)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 {
		t.Fatalf("request = %+v", got)
	}
}

func TestOpenAIProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(&config.Config{})
	p.baseURL = srv.URL

	_, err := p.GeneratePlan(context.Background(), sampleRequest())
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
}

func geminiBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{{"text": text}}},
		}},
	}
}

func TestGeminiProviderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("missing api key")
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(geminiBody(planJSON))
	}))
	defer srv.Close()

	p := NewGeminiProvider(&config.Config{GeminiAPIKey: "g-key", GeminiModel: "gemini-test", AIMaxRetries: 3}, zerolog.Nop())
	p.baseURL = srv.URL
	p.backoff = time.Millisecond

	plan, err := p.GeneratePlan(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if plan.RecommendMeal.Dinner != "생선구이" {
		t.Fatalf("dinner = %q", plan.RecommendMeal.Dinner)
	}
}

func TestGeminiProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewGeminiProvider(&config.Config{GeminiModel: "m", AIMaxRetries: 3}, zerolog.Nop())
	p.baseURL = srv.URL
	p.backoff = time.Millisecond

	_, err := p.GeneratePlan(context.Background(), sampleRequest())
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestGeminiProviderHonorsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewGeminiProvider(&config.Config{GeminiModel: "m", AIMaxRetries: 5}, zerolog.Nop())
	p.baseURL = srv.URL
	p.backoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GeneratePlan(ctx, sampleRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestGeminiProviderRetryCount(t *testing.T) {
	tests := []struct {
		retries int
		want    int32
	}{
		{0, 1},
		{1, 2},
		{2, 3},
		{-1, 1},
	}
	for _, tt := range tests {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		p := NewGeminiProvider(&config.Config{GeminiModel: "m", AIMaxRetries: tt.retries}, zerolog.Nop())
		p.baseURL = srv.URL
		p.backoff = time.Millisecond

		_, err := p.GeneratePlan(context.Background(), sampleRequest())
		srv.Close()
		if !errors.Is(err, ErrGeneration) {
			t.Fatalf("retries=%d: error = %v, want ErrGeneration", tt.retries, err)
		}
		if calls.Load() != tt.want {
			t.Errorf("retries=%d: calls = %d, want %d", tt.retries, calls.Load(), tt.want)
		}
	}
}

func TestOpenAIProviderDeadlineDuringBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[`))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewOpenAIProvider(&config.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-test"})
	p.baseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GeneratePlan(ctx, sampleRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, must not be ErrGeneration", err)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"", "*ai.MockProvider"},
		{"mock", "*ai.MockProvider"},
		{"openai", "*ai.OpenAIProvider"},
		{"GEMINI", "*ai.GeminiProvider"},
	}
	for _, tt := range tests {
		p := NewProvider(&config.Config{AIMode: tt.mode}, zerolog.Nop())
		if got := typeName(p); got != tt.want {
			t.Errorf("NewProvider(%q) = %s, want %s", tt.mode, got, tt.want)
		}
	}
}

func typeName(p Provider) string {
	switch p.(type) {
	case *MockProvider:
		return "*ai.MockProvider"
	case *OpenAIProvider:
		return "*ai.OpenAIProvider"
	case *GeminiProvider:
		return "*ai.GeminiProvider"
	}
	return "unknown"
}
