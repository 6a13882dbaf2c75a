package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultAPIBase = "http://localhost:8080"
	defaultUserID  = "1"
)

var (
	apiBase    string
	token      string
	userID     string
	client     = &http.Client{Timeout: 60 * time.Second}
	createdIDs = make(map[string]string) // track created resources for cleanup
)

func main() {
	fmt.Println("=== Meal Recommender E2E Smoke Test ===")
	fmt.Println()

	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	token = getEnv("SMOKE_TOKEN", "")
	userID = getEnv("SMOKE_USER_ID", defaultUserID)

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Token: %s\n", maskString(token))
	fmt.Printf("User ID: %s\n", userID)
	fmt.Println()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Healthz", testHealthz},
		{"Dev Token", testDevToken},
		{"Candidates Preview", testCandidates},
		{"Recommend Meal (legacy)", testRecommendMeal},
		{"Create Recommendation", testCreateRecommendation},
		{"List Recommendations", testListRecommendations},
		{"Download PDF", testDownloadPDF},
		{"Delete Recommendation", testDeleteRecommendation},
	}

	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(); err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func smokeProfile() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"weight": 70,
		"bmr":    2000,
		"goal":   "diet",
		"gender": "woman",
		"age":    30,
	})
	return body
}

func testHealthz() error {
	resp, err := do("GET", "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// testDevToken fetches a token when none is given and the server runs AUTH_MODE=dev.
func testDevToken() error {
	if token != "" {
		return nil
	}

	body, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := do("POST", "/v1/auth/dev", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// auth disabled or jwt mode without SMOKE_TOKEN
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	token = result.AccessToken
	return nil
}

func testCandidates() error {
	resp, err := do("GET", "/v1/foods/candidates?weight=70&bmr=2000&goal=diet&gender=woman&limit=5", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		Total int `json:"total"`
		Items []struct {
			Category string `json:"category"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if len(result.Items) > 5 {
		return fmt.Errorf("limit ignored: %d items", len(result.Items))
	}
	return nil
}

func testRecommendMeal() error {
	resp, err := do("POST", "/"+userID+"/recommend_meal", smokeProfile())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		Answer struct {
			Result        string `json:"result"`
			RecommendMeal struct {
				Breakfast string `json:"breakfast"`
				Lunch     string `json:"lunch"`
				Dinner    string `json:"dinner"`
			} `json:"recommend-meal"`
			RecommendExercise string `json:"recommend-exercise"`
		} `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.Answer.Result == "" || result.Answer.RecommendMeal.Lunch == "" {
		return fmt.Errorf("incomplete answer: %+v", result.Answer)
	}
	return nil
}

func testCreateRecommendation() error {
	resp, err := do("POST", "/v1/users/"+userID+"/recommendations", smokeProfile())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.ID == "" {
		return fmt.Errorf("recommendation was not stored")
	}

	createdIDs["recommendation"] = result.ID
	return nil
}

func testListRecommendations() error {
	resp, err := do("GET", "/v1/users/"+userID+"/recommendations?limit=5", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	for _, item := range result.Items {
		if item.ID == createdIDs["recommendation"] {
			return nil
		}
	}
	return fmt.Errorf("created recommendation not listed")
}

func testDownloadPDF() error {
	id := createdIDs["recommendation"]
	if id == "" {
		return fmt.Errorf("no recommendation ID to download")
	}

	// Don't follow redirects automatically - we need to check redirect behavior
	originalCheckRedirect := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	defer func() { client.CheckRedirect = originalCheckRedirect }()

	resp, err := do("GET", "/v1/users/"+userID+"/recommendations/"+id+"/pdf", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return checkPDF(resp.Body)

	case http.StatusFound:
		location := resp.Header.Get("Location")
		if location == "" {
			return fmt.Errorf("redirect without Location header")
		}

		getResp, err := client.Get(location)
		if err != nil {
			return fmt.Errorf("failed to follow redirect: %w", err)
		}
		defer getResp.Body.Close()

		if getResp.StatusCode != http.StatusOK {
			return fmt.Errorf("redirect failed: %w", statusError(getResp))
		}
		return checkPDF(getResp.Body)
	}

	return statusError(resp)
}

func testDeleteRecommendation() error {
	id := createdIDs["recommendation"]
	if id == "" {
		return fmt.Errorf("no recommendation ID to delete")
	}

	resp, err := do("DELETE", "/v1/users/"+userID+"/recommendations/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

func checkPDF(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return fmt.Errorf("not a PDF (%d bytes)", len(data))
	}
	return nil
}

func do(method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, apiBase+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuth(req)
	return client.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
}

func addAuth(req *http.Request) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
