package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fdg312/meal-recommender/internal/storage"
)

// MemoryStorage keeps recommendation history in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[uuid.UUID]storage.Recommendation
}

func New() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[uuid.UUID]storage.Recommendation),
	}
}

func (s *MemoryStorage) CreateRecommendation(ctx context.Context, rec *storage.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage.Prepare(rec, time.Now())
	s.records[rec.ID] = clone(*rec)
	return nil
}

func (s *MemoryStorage) GetRecommendation(ctx context.Context, id uuid.UUID) (*storage.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := clone(rec)
	return &out, nil
}

func (s *MemoryStorage) ListRecommendations(ctx context.Context, userID string, limit, offset int) ([]storage.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]storage.Recommendation, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			filtered = append(filtered, clone(r))
		}
	}

	// created_at DESC, id as tiebreaker
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].ID.String() < filtered[j].ID.String()
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(filtered) {
		return []storage.Recommendation{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

func (s *MemoryStorage) SetPDFObjectKey(ctx context.Context, id uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.PDFObjectKey = &key
	s.records[id] = rec
	return nil
}

func (s *MemoryStorage) DeleteRecommendation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }

func clone(r storage.Recommendation) storage.Recommendation {
	r.Profile = append([]byte(nil), r.Profile...)
	r.Answer = append([]byte(nil), r.Answer...)
	r.Candidates = append([]byte(nil), r.Candidates...)
	if r.PDFObjectKey != nil {
		key := *r.PDFObjectKey
		r.PDFObjectKey = &key
	}
	return r
}
