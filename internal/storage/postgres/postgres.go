package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fdg312/meal-recommender/internal/storage"
)

// PostgresStorage keeps recommendation history in the recommendations table.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// New opens a pool and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{pool: pool}, nil
}

const selectColumns = `id, user_id, goal, profile, answer, candidates, pdf_object_key, created_at`

func (s *PostgresStorage) CreateRecommendation(ctx context.Context, rec *storage.Recommendation) error {
	storage.Prepare(rec, time.Now())

	query := `
		INSERT INTO recommendations (id, user_id, goal, profile, answer, candidates, pdf_object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Goal,
		[]byte(rec.Profile),
		[]byte(rec.Answer),
		[]byte(rec.Candidates),
		rec.PDFObjectKey,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recommendation: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetRecommendation(ctx context.Context, id uuid.UUID) (*storage.Recommendation, error) {
	query := `SELECT ` + selectColumns + ` FROM recommendations WHERE id = $1`

	rec, err := scanRecommendation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

func (s *PostgresStorage) ListRecommendations(ctx context.Context, userID string, limit, offset int) ([]storage.Recommendation, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM recommendations
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	out := make([]storage.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) SetPDFObjectKey(ctx context.Context, id uuid.UUID, key string) error {
	result, err := s.pool.Exec(ctx, `UPDATE recommendations SET pdf_object_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("failed to update recommendation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) DeleteRecommendation(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM recommendations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recommendation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func scanRecommendation(row pgx.Row) (*storage.Recommendation, error) {
	var (
		rec                         storage.Recommendation
		profile, answer, candidates []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Goal,
		&profile,
		&answer,
		&candidates,
		&rec.PDFObjectKey,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Profile = profile
	rec.Answer = answer
	rec.Candidates = candidates
	return &rec, nil
}
