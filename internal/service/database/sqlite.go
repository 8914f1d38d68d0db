package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS diaries (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	content    TEXT NOT NULL,
	emotions   TEXT
);
CREATE INDEX IF NOT EXISTS idx_diaries_created_at ON diaries(created_at DESC);
`

// OpenSQLite opens a local history file and creates the diaries table when missing.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*Service, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migration failed: %w", err)
	}

	logger.Info("SQLite opened", zap.String("path", path))

	return &Service{db: db, dialect: DialectSQLite, logger: logger}, nil
}
