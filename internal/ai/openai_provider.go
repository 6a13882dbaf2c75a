package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fdg312/meal-recommender/internal/config"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

const systemPrompt = "당신은 영양사이자 운동 코치입니다. 의학적 진단을 내리지 말고, " +
	"사용자의 신체 정보와 제공된 음식 데이터를 근거로 하루 식단과 운동을 추천하세요. " +
	"반드시 요청한 JSON 객체 하나만 응답하세요."

type OpenAIProvider struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	httpClient  *http.Client
}

func NewOpenAIProvider(cfg *config.Config) *OpenAIProvider {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}

	return &OpenAIProvider{
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		maxTokens:   cfg.AIMaxOutputTokens,
		temperature: cfg.AITemperature,
		baseURL:     openAIDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (p *OpenAIProvider) GeneratePlan(ctx context.Context, req PlanRequest) (Plan, error) {
	requestPayload := chatCompletionsRequest{
		Model:          p.model,
		Temperature:    p.temperature,
		MaxTokens:      p.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Messages: []chatMessageRequest{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
	}

	body, err := json.Marshal(requestPayload)
	if err != nil {
		return Plan{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.baseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Plan{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Plan{}, ctx.Err()
		}
		return Plan{}, fmt.Errorf("%w: openai request: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Plan{}, ctx.Err()
		}
		return Plan{}, fmt.Errorf("%w: read openai response: %v", ErrGeneration, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Plan{}, fmt.Errorf("%w: openai request failed with status %d", ErrGeneration, resp.StatusCode)
	}

	var parsed chatCompletionsResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return Plan{}, fmt.Errorf("%w: decode openai response: %v", ErrGeneration, err)
	}
	if len(parsed.Choices) == 0 {
		return Plan{}, fmt.Errorf("%w: openai response does not contain choices", ErrGeneration)
	}

	return ParsePlan(parsed.Choices[0].Message.Content)
}

type chatCompletionsRequest struct {
	Model          string               `json:"model"`
	Messages       []chatMessageRequest `json:"messages"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
