package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fdg312/meal-recommender/internal/ai"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/storage"
)

const (
	FormatPDF = "pdf"
	FormatCSV = "csv"

	ContentTypePDF = "application/pdf"
	ContentTypeCSV = "text/csv; charset=utf-8"
)

var (
	ErrReportNotFound = errors.New("recommendation not found")
	ErrInvalidFormat  = errors.New("unsupported export format")
)

// Document is a stored recommendation decoded for rendering.
type Document struct {
	ID         uuid.UUID
	UserID     string
	Goal       string
	CreatedAt  time.Time
	Profile    map[string]any
	Plan       ai.Plan
	Candidates []foods.FoodItem
}

// DocumentFromRecord decodes the JSON columns of rec.
func DocumentFromRecord(rec *storage.Recommendation) (Document, error) {
	doc := Document{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Goal:      rec.Goal,
		CreatedAt: rec.CreatedAt,
	}

	if len(rec.Profile) > 0 {
		if err := json.Unmarshal(rec.Profile, &doc.Profile); err != nil {
			return Document{}, fmt.Errorf("decode profile: %w", err)
		}
	}
	if err := json.Unmarshal(rec.Answer, &doc.Plan); err != nil {
		return Document{}, fmt.Errorf("decode answer: %w", err)
	}
	if len(rec.Candidates) > 0 {
		if err := json.Unmarshal(rec.Candidates, &doc.Candidates); err != nil {
			return Document{}, fmt.Errorf("decode candidates: %w", err)
		}
	}
	return doc, nil
}

// Export is either rendered bytes or a redirect to an archived copy.
type Export struct {
	Data        []byte
	RedirectURL string
	ContentType string
	Filename    string
}
