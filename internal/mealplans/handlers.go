package mealplans

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fdg312/meal-recommender/internal/ai"
	"github.com/fdg312/meal-recommender/internal/nutrition"
)

const maxBodyBytes = 64 << 10

// Handler handles HTTP requests for meal recommendations.
type Handler struct {
	service *Service
}

// NewHandler creates a new meal recommendations handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleRecommendMeal handles POST /{userId}/recommend_meal
func (h *Handler) HandleRecommendMeal(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if _, err := strconv.Atoi(userID); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Not found")
		return
	}

	rec, ok := h.recommend(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: rec.Answer})
}

// HandleCreate handles POST /v1/users/{userId}/recommendations
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recommend(w, r, r.PathValue("userId"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request, userID string) (*Recommendation, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return nil, false
	}

	profile, err := ParseProfile(body)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}

	rec, err := h.service.Recommend(r.Context(), userID, profile)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return rec, true
}

// HandleList handles GET /v1/users/{userId}/recommendations?limit=&offset=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "offset must be an integer")
		return
	}

	resp, err := h.service.List(r.Context(), r.PathValue("userId"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list recommendations")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/users/{userId}/recommendations/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid recommendation ID")
		return
	}

	rec, err := h.service.Get(r.Context(), r.PathValue("userId"), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete handles DELETE /v1/users/{userId}/recommendations/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid recommendation ID")
		return
	}

	if err := h.service.Delete(r.Context(), r.PathValue("userId"), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCandidates handles GET /v1/foods/candidates?weight=&bmr=&goal=&gender=&limit=
func (h *Handler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := map[string]any{}
	for _, key := range []string{"weight", "bmr", "goal", "gender"} {
		if v := q.Get(key); v != "" {
			raw[key] = v
		}
	}
	body, _ := json.Marshal(raw)

	profile, err := ParseProfile(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", defaultCandidatesLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer between 1 and 100")
		return
	}

	resp, err := h.service.Candidates(profile, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *nutrition.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_request", verr.Error())
	case errors.Is(err, ErrRecommendationNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Recommendation not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "generation_timeout", "Plan generation timed out")
	case errors.Is(err, ai.ErrGeneration):
		writeError(w, http.StatusBadGateway, "generation_failed", "Failed to generate meal plan")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// writeJSON writes v without escaping HTML characters, so Korean text and
// symbols reach clients as they were generated.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
