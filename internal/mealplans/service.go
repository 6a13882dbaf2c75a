package mealplans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/ai"
	"github.com/fdg312/meal-recommender/internal/blob"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/nutrition"
	"github.com/fdg312/meal-recommender/internal/storage"
)

// CandidateSelector is implemented by *nutrition.Selector.
type CandidateSelector interface {
	Filtered(p nutrition.Profile) ([]foods.FoodItem, error)
	SelectCandidates(p nutrition.Profile) ([]foods.FoodItem, error)
}

// Service turns a profile into a daily plan: candidates from the dataset,
// a generated answer, and a history record.
type Service struct {
	selector  CandidateSelector
	provider  ai.Provider
	storage   storage.RecommendationsStorage
	blobStore blob.Store
	timeout   time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a service. blobStore may be nil.
func NewService(selector CandidateSelector, provider ai.Provider, storage storage.RecommendationsStorage, blobStore blob.Store, timeout time.Duration, log zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		selector:  selector,
		provider:  provider,
		storage:   storage,
		blobStore: blobStore,
		timeout:   timeout,
		log:       log.With().Str("component", "mealplans").Logger(),
		now:       time.Now,
	}
}

// Recommend generates and stores a plan for userID.
func (s *Service) Recommend(ctx context.Context, userID string, p nutrition.Profile) (*Recommendation, error) {
	candidates, err := s.selector.SelectCandidates(p)
	if err != nil {
		return nil, err
	}

	req := ai.PlanRequest{
		Profile:      p,
		Targets:      nutrition.TargetsFor(p),
		Candidates:   candidates,
		NoCandidates: len(candidates) == 0,
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	plan, err := s.provider.GeneratePlan(genCtx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("goal", string(p.Goal)).Dur("elapsed", s.now().Sub(started)).Msg("plan generation failed")
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("goal", string(p.Goal)).
		Int("candidates", len(candidates)).
		Dur("elapsed", s.now().Sub(started)).
		Msg("plan generated")

	out := &Recommendation{
		UserID:     userID,
		Goal:       string(p.Goal),
		Profile:    profileDocument(p),
		Answer:     plan,
		Candidates: candidates,
		CreatedAt:  s.now().UTC(),
	}

	rec, err := toRecord(out)
	if err != nil {
		return nil, err
	}
	if err := s.storage.CreateRecommendation(ctx, rec); err != nil {
		// The plan is already generated; history is best effort.
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to store recommendation")
		return out, nil
	}

	out.ID = rec.ID.String()
	out.CreatedAt = rec.CreatedAt
	return out, nil
}

// Candidates returns the full filtered candidate set for p, at most limit items.
func (s *Service) Candidates(p nutrition.Profile, limit int) (*CandidatesResponse, error) {
	items, err := s.selector.Filtered(p)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultCandidatesLimit
	}

	total := len(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return &CandidatesResponse{
		Targets: nutrition.TargetsFor(p),
		Total:   total,
		Items:   items,
	}, nil
}

// List returns userID's history, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) (*ListRecommendationsResponse, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.storage.ListRecommendations(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]Recommendation, 0, len(records))
	for i := range records {
		dto, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *dto)
	}
	return &ListRecommendationsResponse{Items: items, Limit: limit, Offset: offset}, nil
}

// Get returns one recommendation owned by userID.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Recommendation, error) {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return fromRecord(rec)
}

// Delete removes a recommendation and its archived PDF.
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteRecommendation(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecommendationNotFound
		}
		return err
	}

	if rec.PDFObjectKey != nil && s.blobStore != nil {
		if err := s.blobStore.DeleteObject(ctx, *rec.PDFObjectKey); err != nil {
			s.log.Warn().Err(err).Str("key", *rec.PDFObjectKey).Msg("failed to delete archived PDF")
		}
	}
	return nil
}

func (s *Service) owned(ctx context.Context, userID string, id uuid.UUID) (*storage.Recommendation, error) {
	rec, err := s.storage.GetRecommendation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrRecommendationNotFound
	}
	return rec, nil
}

func toRecord(r *Recommendation) (*storage.Recommendation, error) {
	profile, err := json.Marshal(r.Profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	answer, err := json.Marshal(r.Answer)
	if err != nil {
		return nil, fmt.Errorf("encode answer: %w", err)
	}
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}
	return &storage.Recommendation{
		UserID:     r.UserID,
		Goal:       r.Goal,
		Profile:    profile,
		Answer:     answer,
		Candidates: candidates,
		CreatedAt:  r.CreatedAt,
	}, nil
}

func fromRecord(rec *storage.Recommendation) (*Recommendation, error) {
	out := &Recommendation{
		ID:         rec.ID.String(),
		UserID:     rec.UserID,
		Goal:       rec.Goal,
		CreatedAt:  rec.CreatedAt,
		Candidates: []foods.FoodItem{},
	}
	if len(rec.Profile) > 0 {
		if err := json.Unmarshal(rec.Profile, &out.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	if err := json.Unmarshal(rec.Answer, &out.Answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	if len(rec.Candidates) > 0 {
		if err := json.Unmarshal(rec.Candidates, &out.Candidates); err != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
	}
	return out, nil
}
