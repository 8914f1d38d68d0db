package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
)

// DiaryRepository reads the diaries table. It never writes. A repository without a database
// behaves like an empty table.
type DiaryRepository struct {
	svc    *Service
	logger *zap.Logger
}

func NewDiaryRepository(svc *Service, logger *zap.Logger) *DiaryRepository {
	return &DiaryRepository{svc: svc, logger: logger}
}

func (r *DiaryRepository) Configured() bool {
	return r != nil && r.svc != nil && r.svc.db != nil
}

// FetchRecent returns up to limit entries, newest first.
func (r *DiaryRepository) FetchRecent(ctx context.Context, limit int) ([]domain.DiaryLogEntry, error) {
	if !r.Configured() {
		return []domain.DiaryLogEntry{}, nil
	}
	if limit <= 0 {
		return []domain.DiaryLogEntry{}, nil
	}

	query := fmt.Sprintf(`SELECT id, created_at, content, emotions FROM diaries ORDER BY created_at DESC LIMIT %s`, r.placeholder(1))
	return r.query(ctx, "fetch_recent", query, limit)
}

// FetchAll returns every entry, newest first.
func (r *DiaryRepository) FetchAll(ctx context.Context) ([]domain.DiaryLogEntry, error) {
	if !r.Configured() {
		return []domain.DiaryLogEntry{}, nil
	}
	return r.query(ctx, "fetch_all", `SELECT id, created_at, content, emotions FROM diaries ORDER BY created_at DESC`)
}

func (r *DiaryRepository) placeholder(n int) string {
	if r.svc.Dialect() == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *DiaryRepository) query(ctx context.Context, operation, query string, args ...any) ([]domain.DiaryLogEntry, error) {
	rows, err := r.svc.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Diary query failed", zap.String("operation", operation), zap.Error(err))
		return nil, errors.NewPersistenceError("failed to query diaries", operation, err)
	}
	defer rows.Close()

	entries := make([]domain.DiaryLogEntry, 0)
	for rows.Next() {
		var (
			entry    domain.DiaryLogEntry
			emotions sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.CreatedAt, &entry.Content, &emotions); err != nil {
			return nil, errors.NewPersistenceError("failed to scan diary row", operation, err)
		}

		if emotions.Valid && emotions.String != "" {
			if err := json.Unmarshal([]byte(emotions.String), &entry.Emotions); err != nil {
				r.logger.Warn("Diary row has unreadable emotions, using zero scores",
					zap.String("id", entry.ID),
					zap.Error(err),
				)
				entry.Emotions = domain.EmotionVector{}
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("failed to iterate diaries", operation, err)
	}

	return entries, nil
}
