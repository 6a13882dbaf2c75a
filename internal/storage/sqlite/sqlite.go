package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fdg312/meal-recommender/internal/dbmigrate"
	"github.com/fdg312/meal-recommender/internal/storage"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage keeps recommendation history in a single SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// New opens path and applies pending migrations.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := dbmigrate.RunDB(ctx, db, dbmigrate.CommandUp, dbmigrate.DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) CreateRecommendation(ctx context.Context, rec *storage.Recommendation) error {
	storage.Prepare(rec, time.Now())

	query := `
        INSERT INTO recommendations (id, user_id, goal, profile, answer, candidates, pdf_object_key, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.UserID,
		rec.Goal,
		string(rec.Profile),
		string(rec.Answer),
		candidatesOrEmpty(rec.Candidates),
		rec.PDFObjectKey,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetRecommendation(ctx context.Context, id uuid.UUID) (*storage.Recommendation, error) {
	query := `
        SELECT id, user_id, goal, profile, answer, candidates, pdf_object_key, created_at
        FROM recommendations
        WHERE id = ?
    `
	rec, err := scanRecommendation(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStorage) ListRecommendations(ctx context.Context, userID string, limit, offset int) ([]storage.Recommendation, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
        SELECT id, user_id, goal, profile, answer, candidates, pdf_object_key, created_at
        FROM recommendations
        WHERE user_id = ?
        ORDER BY created_at DESC, id
        LIMIT ? OFFSET ?
    `
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
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

func (s *SQLiteStorage) SetPDFObjectKey(ctx context.Context, id uuid.UUID, key string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE recommendations SET pdf_object_key = ? WHERE id = ?`, key, id.String())
	if err != nil {
		return fmt.Errorf("failed to update recommendation: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) DeleteRecommendation(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM recommendations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete recommendation: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*storage.Recommendation, error) {
	var (
		rec                         storage.Recommendation
		id, createdAt               string
		profile, answer, candidates string
		pdfKey                      sql.NullString
	)
	if err := row.Scan(&id, &rec.UserID, &rec.Goal, &profile, &answer, &candidates, &pdfKey, &createdAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	rec.ID = parsedID

	rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}

	rec.Profile = []byte(profile)
	rec.Answer = []byte(answer)
	rec.Candidates = []byte(candidates)
	if pdfKey.Valid {
		key := pdfKey.String
		rec.PDFObjectKey = &key
	}
	return &rec, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func candidatesOrEmpty(raw []byte) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
