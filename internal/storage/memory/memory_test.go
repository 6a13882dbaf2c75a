package memory

import (
	"context"
	"testing"

	"github.com/fdg312/meal-recommender/internal/storage"
	"github.com/fdg312/meal-recommender/internal/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	storagetest.Run(t, New())
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &storage.Recommendation{UserID: "1", Answer: []byte(`{"a":1}`)}
	if err := s.CreateRecommendation(ctx, rec); err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}
	rec.Answer[0] = 'X'

	got, err := s.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecommendation() error = %v", err)
	}
	if string(got.Answer) != `{"a":1}` {
		t.Fatalf("stored answer mutated: %s", got.Answer)
	}
}
