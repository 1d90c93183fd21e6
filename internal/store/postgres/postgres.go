// Package postgres implements store.Store on PostgreSQL with the pgvector
// extension. Embeddings live in a vector column and the attendance
// uniqueness constraint is enforced by the database, so concurrent
// duplicate inserts resolve inside a single statement.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/store"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens a connection pool, verifies connectivity and applies pending
// migrations. log may be nil.
func New(cfg *config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", errors.Join(store.ErrUnavailable, err))
	}

	s := &Store{db: db, log: log}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// wrap marks backend failures as storage-unavailable so callers can use
// errors.Is(err, store.ErrUnavailable) without knowing the driver.
func wrap(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w", op, errors.Join(store.ErrUnavailable, err))
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}
