// Package storagetest holds behaviour checks shared by every history backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fdg312/meal-recommender/internal/storage"
)

// Run exercises s. The backend must start empty.
func Run(t *testing.T, s storage.RecommendationsStorage) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := &storage.Recommendation{
			UserID:     "42",
			Goal:       "diet",
			Profile:    []byte(`{"weight":70,"bmr":2000,"goal":"diet","gender":"woman"}`),
			Answer:     []byte(`{"result":"목표: diet"}`),
			Candidates: []byte(`[{"name":"현미밥"}]`),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateRecommendation(ctx, rec); err != nil {
			t.Fatalf("CreateRecommendation() error = %v", err)
		}
		if rec.ID == uuid.Nil {
			t.Fatal("CreateRecommendation() did not assign an id")
		}
		ids = append(ids, rec.ID)
	}

	other := &storage.Recommendation{UserID: "7", Goal: "bulk", Profile: []byte(`{}`), Answer: []byte(`{}`)}
	if err := s.CreateRecommendation(ctx, other); err != nil {
		t.Fatalf("CreateRecommendation(other) error = %v", err)
	}
	if other.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not filled")
	}

	got, err := s.GetRecommendation(ctx, ids[1])
	if err != nil {
		t.Fatalf("GetRecommendation() error = %v", err)
	}
	if got.UserID != "42" || got.Goal != "diet" || string(got.Answer) != `{"result":"목표: diet"}` {
		t.Fatalf("GetRecommendation() = %+v", got)
	}
	if !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("CreatedAt = %v", got.CreatedAt)
	}
	if got.PDFObjectKey != nil {
		t.Fatalf("PDFObjectKey = %v, want nil", *got.PDFObjectKey)
	}

	list, err := s.ListRecommendations(ctx, "42", 2, 0)
	if err != nil {
		t.Fatalf("ListRecommendations() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Fatalf("ListRecommendations() page 1 = %v", recIDs(list))
	}
	list, _ = s.ListRecommendations(ctx, "42", 2, 2)
	if len(list) != 1 || list[0].ID != ids[0] {
		t.Fatalf("ListRecommendations() page 2 = %v", recIDs(list))
	}
	list, _ = s.ListRecommendations(ctx, "nobody", 10, 0)
	if list == nil || len(list) != 0 {
		t.Fatalf("ListRecommendations(nobody) = %v, want empty", list)
	}

	if err := s.SetPDFObjectKey(ctx, ids[0], "reports/42/a.pdf"); err != nil {
		t.Fatalf("SetPDFObjectKey() error = %v", err)
	}
	got, _ = s.GetRecommendation(ctx, ids[0])
	if got.PDFObjectKey == nil || *got.PDFObjectKey != "reports/42/a.pdf" {
		t.Fatalf("PDFObjectKey not stored: %+v", got)
	}

	if err := s.DeleteRecommendation(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteRecommendation() error = %v", err)
	}

	missing := uuid.New()
	if _, err := s.GetRecommendation(ctx, ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetRecommendation(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteRecommendation(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteRecommendation(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.SetPDFObjectKey(ctx, missing, "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("SetPDFObjectKey(missing) error = %v, want ErrNotFound", err)
	}
}

func recIDs(list []storage.Recommendation) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID.String()
	}
	return out
}
