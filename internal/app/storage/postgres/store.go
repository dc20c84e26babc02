package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/recordstore/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.GenreStore = (*Store)(nil)
var _ storage.GroupStore = (*Store)(nil)
var _ storage.RecordStore = (*Store)(nil)
var _ storage.CartStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Postgres error codes mapped onto storage sentinels.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqInvalidTextRep      = "22P02"
)

// mapError translates driver errors into storage sentinels, keeping the
// original error in the chain.
func mapError(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation, pqForeignKeyViolation:
			return fmt.Errorf("%s %s: %w: %s", kind, id, storage.ErrConflict, pqErr.Message)
		case pqCheckViolation:
			if strings.Contains(pqErr.Constraint, "stock") {
				return fmt.Errorf("%s %s: %w", kind, id, storage.ErrInsufficientStock)
			}
			return fmt.Errorf("%s %s: %w: %s", kind, id, storage.ErrConflict, pqErr.Message)
		case pqInvalidTextRep:
			// Malformed UUIDs cannot identify any row.
			return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
		}
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}

func requireAffected(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// likePattern escapes LIKE metacharacters and wraps term in wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
