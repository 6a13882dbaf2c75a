package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a recommendation does not exist.
var ErrNotFound = errors.New("recommendation not found")

// Recommendation is one generated plan kept for the user's history.
// Profile, Answer and Candidates hold JSON documents.
type Recommendation struct {
	ID           uuid.UUID
	UserID       string
	Goal         string
	Profile      json.RawMessage
	Answer       json.RawMessage
	Candidates   json.RawMessage
	PDFObjectKey *string
	CreatedAt    time.Time
}

// RecommendationsStorage persists recommendation history.
type RecommendationsStorage interface {
	// CreateRecommendation stores rec, filling ID and CreatedAt when unset.
	CreateRecommendation(ctx context.Context, rec *Recommendation) error

	// GetRecommendation returns ErrNotFound for unknown ids.
	GetRecommendation(ctx context.Context, id uuid.UUID) (*Recommendation, error)

	// ListRecommendations returns the user's records, newest first.
	ListRecommendations(ctx context.Context, userID string, limit, offset int) ([]Recommendation, error)

	// SetPDFObjectKey records where the rendered PDF was archived.
	SetPDFObjectKey(ctx context.Context, id uuid.UUID, key string) error

	// DeleteRecommendation returns ErrNotFound for unknown ids.
	DeleteRecommendation(ctx context.Context, id uuid.UUID) error
}

// Storage is a history backend with its lifecycle.
type Storage interface {
	RecommendationsStorage

	Ping(ctx context.Context) error
	Close() error
}

// Prepare fills the ID and CreatedAt defaults shared by all backends.
func Prepare(rec *Recommendation, now time.Time) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
}
