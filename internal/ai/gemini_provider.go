package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/config"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiInitialBackoff = 1 * time.Second
	structuredMimeType   = "application/json"
)

type GeminiProvider struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	maxAttempts int
	backoff     time.Duration
	baseURL     string
	httpClient  *http.Client
	log         zerolog.Logger
}

func NewGeminiProvider(cfg *config.Config, log zerolog.Logger) *GeminiProvider {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	// AI_MAX_RETRIES counts retries after the first call; 0 means a single call.
	attempts := 1
	if cfg.AIMaxRetries > 0 {
		attempts += cfg.AIMaxRetries
	}

	return &GeminiProvider{
		apiKey:      cfg.GeminiAPIKey,
		model:       cfg.GeminiModel,
		maxTokens:   cfg.AIMaxOutputTokens,
		temperature: cfg.AITemperature,
		maxAttempts: attempts,
		backoff:     geminiInitialBackoff,
		baseURL:     geminiDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		log: log.With().Str("provider", "gemini").Logger(),
	}
}

func (p *GeminiProvider) GeneratePlan(ctx context.Context, req PlanRequest) (Plan, error) {
	payload := geminiPayload{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: BuildPrompt(req)}}},
		},
		GenerationConfig: &generationConfig{
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   planSchema,
			MaxOutputTokens:  p.maxTokens,
			Temperature:      p.temperature,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Plan{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(p.baseURL, "/"), url.PathEscape(p.model), url.QueryEscape(p.apiKey))

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := p.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return Plan{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		text, retry, err := p.call(ctx, endpoint, payloadBytes)
		if err == nil {
			return ParsePlan(text)
		}
		if ctx.Err() != nil {
			return Plan{}, ctx.Err()
		}
		lastErr = err
		p.log.Warn().Err(err).Int("attempt", attempt+1).Msg("gemini call failed")
		if !retry {
			break
		}
	}

	return Plan{}, fmt.Errorf("%w: gemini failed after retries: %v", ErrGeneration, lastErr)
}

// call performs one request. retry reports whether the failure is transient.
func (p *GeminiProvider) call(ctx context.Context, endpoint string, body []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", transient, fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(errBody)))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("no content in response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, false, nil
}

var planSchema = &geminiSchema{
	Type: "OBJECT",
	Properties: map[string]*geminiSchema{
		"result": {Type: "STRING"},
		"recommend-meal": {
			Type: "OBJECT",
			Properties: map[string]*geminiSchema{
				"breakfast": {Type: "STRING"},
				"lunch":     {Type: "STRING"},
				"dinner":    {Type: "STRING"},
			},
			Required: []string{"breakfast", "lunch", "dinner"},
		},
		"recommend-exercise": {Type: "STRING"},
	},
	Required: []string{"result", "recommend-meal", "recommend-exercise"},
}

type geminiPayload struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string        `json:"responseMimeType"`
	ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
	MaxOutputTokens  int           `json:"maxOutputTokens,omitempty"`
	Temperature      float64       `json:"temperature"`
}

type geminiSchema struct {
	Type       string                   `json:"type"`
	Properties map[string]*geminiSchema `json:"properties,omitempty"`
	Required   []string                 `json:"required,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
