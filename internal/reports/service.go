package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/blob"
	"github.com/fdg312/meal-recommender/internal/storage"
)

// Service exports stored recommendations. With a blob store, PDFs are
// archived once and served through presigned URLs.
type Service struct {
	store      storage.RecommendationsStorage
	blobStore  blob.Store
	generator  *Generator
	presignTTL int
	log        zerolog.Logger
}

func NewService(store storage.RecommendationsStorage, blobStore blob.Store, generator *Generator, presignTTL int, log zerolog.Logger) *Service {
	if presignTTL <= 0 {
		presignTTL = 900
	}
	return &Service{
		store:      store,
		blobStore:  blobStore,
		generator:  generator,
		presignTTL: presignTTL,
		log:        log.With().Str("component", "reports").Logger(),
	}
}

// Export renders recommendation id of userID in format.
func (s *Service) Export(ctx context.Context, userID string, id uuid.UUID, format string) (*Export, error) {
	if format != FormatPDF && format != FormatCSV {
		return nil, ErrInvalidFormat
	}

	rec, err := s.store.GetRecommendation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrReportNotFound
	}

	if format == FormatCSV {
		doc, err := DocumentFromRecord(rec)
		if err != nil {
			return nil, err
		}
		data, err := s.generator.RenderCSV(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to render CSV: %w", err)
		}
		return &Export{Data: data, ContentType: ContentTypeCSV, Filename: filename(rec, FormatCSV)}, nil
	}

	if s.blobStore != nil && rec.PDFObjectKey != nil {
		url, err := s.blobStore.PresignGet(ctx, *rec.PDFObjectKey, s.presignTTL)
		if err == nil {
			return &Export{RedirectURL: url, ContentType: ContentTypePDF, Filename: filename(rec, FormatPDF)}, nil
		}
		s.log.Warn().Err(err).Str("key", *rec.PDFObjectKey).Msg("presign archived PDF failed, re-rendering")
	}

	doc, err := DocumentFromRecord(rec)
	if err != nil {
		return nil, err
	}
	data, err := s.generator.RenderPDF(doc)
	if err != nil {
		return nil, err
	}

	export := &Export{Data: data, ContentType: ContentTypePDF, Filename: filename(rec, FormatPDF)}
	if s.blobStore == nil {
		return export, nil
	}

	key := ObjectKey(rec.UserID, rec.ID)
	if _, err := s.blobStore.PutObject(ctx, key, data, ContentTypePDF); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("archive PDF failed, streaming instead")
		return export, nil
	}
	if err := s.store.SetPDFObjectKey(ctx, rec.ID, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("record PDF key failed")
	}
	url, err := s.blobStore.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("presign PDF failed, streaming instead")
		return export, nil
	}
	return &Export{RedirectURL: url, ContentType: ContentTypePDF, Filename: export.Filename}, nil
}

// ObjectKey is where a recommendation's PDF is archived.
func ObjectKey(userID string, id uuid.UUID) string {
	return fmt.Sprintf("reports/%s/%s.pdf", userID, id)
}

func filename(rec *storage.Recommendation, format string) string {
	return fmt.Sprintf("meal-plan-%s.%s", rec.ID, format)
}
