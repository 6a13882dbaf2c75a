package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/auth"
	"github.com/fdg312/meal-recommender/internal/config"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/mealplans"
	"github.com/fdg312/meal-recommender/internal/reports"
	"github.com/fdg312/meal-recommender/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// Deps are the services the server routes to. Reports and Auth are optional.
type Deps struct {
	Storage   storage.Storage
	Dataset   *foods.Dataset
	MealPlans *mealplans.Service
	Reports   *reports.Service
	Auth      *auth.Service
}

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	deps           Deps
	authMiddleware *auth.Middleware
	log            zerolog.Logger
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		deps:   deps,
		log:    log.With().Str("component", "http").Logger(),
	}
	if deps.Auth != nil {
		s.authMiddleware = auth.NewMiddleware(cfg, deps.Auth, log)
	}

	s.routes()
	return s
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	// Auth API (no auth required)
	if s.deps.Auth != nil && s.config.AuthMode == config.AuthModeDev {
		authHandlers := auth.NewHandlers(s.deps.Auth)
		s.mux.HandleFunc("POST /v1/auth/dev", authHandlers.HandleDevAuth)
	}

	// Recommendations API
	if s.deps.MealPlans != nil {
		h := mealplans.NewHandler(s.deps.MealPlans)
		s.mux.HandleFunc("POST /{userId}/recommend_meal", requireSameUser(h.HandleRecommendMeal))
		s.mux.HandleFunc("POST /v1/users/{userId}/recommendations", requireSameUser(h.HandleCreate))
		s.mux.HandleFunc("GET /v1/users/{userId}/recommendations", requireSameUser(h.HandleList))
		s.mux.HandleFunc("GET /v1/users/{userId}/recommendations/{id}", requireSameUser(h.HandleGet))
		s.mux.HandleFunc("DELETE /v1/users/{userId}/recommendations/{id}", requireSameUser(h.HandleDelete))
		s.mux.HandleFunc("GET /v1/foods/candidates", h.HandleCandidates)
	}

	// Reports API
	if s.deps.Reports != nil {
		h := reports.NewHandlers(s.deps.Reports)
		s.mux.HandleFunc("GET /v1/users/{userId}/recommendations/{id}/pdf", requireSameUser(h.HandlePDF))
		s.mux.HandleFunc("GET /v1/users/{userId}/recommendations/{id}/csv", requireSameUser(h.HandleCSV))
	}
}

// Handler returns the router wrapped in the middleware chain (outermost
// first): request log → CORS → rate limit → auth → router.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	if s.authMiddleware != nil {
		handler = s.authMiddleware.Wrap(handler)
	}
	handler = RateLimitMiddleware(s.config, s.log, handler)
	handler = CORSMiddleware(s.config, handler)
	return RequestLogMiddleware(s.log, handler)
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	resp := map[string]any{"status": "ok"}
	status := http.StatusOK

	if s.deps.Dataset != nil {
		resp["foods"] = s.deps.Dataset.Len()
	}
	if s.deps.Storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Storage.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("healthz: storage ping failed")
			resp["status"] = "degraded"
			resp["storage"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Generation may take up to AI_TIMEOUT_SECONDS.
		WriteTimeout: time.Duration(s.config.AITimeoutSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msgf("server listening on http://localhost%s", addr)
		s.log.Info().Msgf("health check: http://localhost%s/healthz", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.deps.Storage != nil {
		return s.deps.Storage.Close()
	}
	return nil
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
