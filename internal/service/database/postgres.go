package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Dialect selects placeholder syntax for the two supported drivers.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Service owns the *sql.DB for whichever driver is configured.
type Service struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// OpenPostgres connects with a DSN (Supabase connection string or key=value form).
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Service, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("PostgreSQL connected")

	return &Service{db: db, dialect: DialectPostgres, logger: logger}, nil
}

func (s *Service) DB() *sql.DB {
	return s.db
}

func (s *Service) Dialect() Dialect {
	return s.dialect
}

func (s *Service) Close() error {
	if s != nil && s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
