package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/ai"
	"github.com/fdg312/meal-recommender/internal/auth"
	"github.com/fdg312/meal-recommender/internal/config"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/mealplans"
	"github.com/fdg312/meal-recommender/internal/nutrition"
	"github.com/fdg312/meal-recommender/internal/reports"
	"github.com/fdg312/meal-recommender/internal/storage"
	"github.com/fdg312/meal-recommender/internal/storage/memory"
)

func num(v float64) *float64 { return &v }

func testDataset() *foods.Dataset {
	cat := "구이류"
	return foods.NewDataset("test", []foods.FoodItem{
		{Name: "고등어구이", Category: &cat, EnergyKcal: num(250), ProteinG: num(130), FatG: num(10), SugarG: num(0), SodiumMg: num(500), FiberG: num(1)},
		{Name: "닭가슴살구이", Category: &cat, EnergyKcal: num(165), ProteinG: num(140), FatG: num(4), SugarG: num(0), SodiumMg: num(300), FiberG: num(0)},
	})
}

type downStorage struct {
	*memory.MemoryStorage
}

func (downStorage) Ping(ctx context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, cfg *config.Config, store storage.Storage) *Server {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	ds := testDataset()
	selector := nutrition.NewSelector(nutrition.StaticFilter{Items: ds.Items(), Policy: nutrition.PolicyStrict}, nutrition.NewRand(1), 3)
	mp := mealplans.NewService(selector, ai.NewMockProvider(), store, nil, time.Second, zerolog.Nop())
	gen, err := reports.NewGenerator("")
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	return New(cfg, Deps{
		Storage:   store,
		Dataset:   ds,
		MealPlans: mp,
		Reports:   reports.NewService(store, nil, gen, 0, zerolog.Nop()),
		Auth:      auth.NewService(cfg),
	}, zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080, AuthMode: config.AuthModeNone}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", resp["status"])
	}
	if resp["foods"] != float64(2) {
		t.Errorf("expected foods=2, got %v", resp["foods"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080}, nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestHealthzStorageDown(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080}, downStorage{memory.New()})

	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRecommendMealThroughChain(t *testing.T) {
	srv := newTestServer(t, &config.Config{AuthMode: config.AuthModeNone}, nil)
	handler := srv.Handler()

	body := `{"weight":70,"bmr":2000,"goal":"muscle_gain","gender":"man"}`
	req := httptest.NewRequest(http.MethodPost, "/1/recommend_meal", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp mealplans.AnswerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer.Result == "" || resp.Answer.RecommendMeal.Breakfast == "" {
		t.Fatalf("unexpected answer: %+v", resp.Answer)
	}
}

func TestAuthRequiredAndPathUser(t *testing.T) {
	cfg := &config.Config{
		AuthMode:      config.AuthModeJWT,
		AuthRequired:  true,
		JWTSecret:     "test-secret",
		JWTIssuer:     "test",
		JWTTTLMinutes: 5,
	}
	srv := newTestServer(t, cfg, nil)
	handler := srv.Handler()

	token, err := srv.deps.Auth.IssueToken("1")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	body := `{"weight":70,"bmr":2000,"goal":"diet","gender":"man"}`

	tests := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{"NoToken", "/1/recommend_meal", "", http.StatusUnauthorized},
		{"OwnUser", "/1/recommend_meal", token, http.StatusOK},
		{"OtherUser", "/2/recommend_meal", token, http.StatusNotFound},
		{"OtherUserV1", "/v1/users/2/recommendations", token, http.StatusNotFound},
		{"OwnUserV1", "/v1/users/1/recommendations", token, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz should stay public, got %d", w.Code)
	}
}

func TestDevAuthRoute(t *testing.T) {
	cfg := &config.Config{AuthMode: config.AuthModeDev, JWTSecret: "s", JWTTTLMinutes: 5}
	srv := newTestServer(t, cfg, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/auth/dev", strings.NewReader(`{"user_id":"9"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	jwtSrv := newTestServer(t, &config.Config{AuthMode: config.AuthModeJWT, JWTSecret: "s"}, nil)
	w = httptest.NewRecorder()
	jwtSrv.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/auth/dev", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("dev auth must not be routed in jwt mode, got %d", w.Code)
	}
}

func TestStartShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 0}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
