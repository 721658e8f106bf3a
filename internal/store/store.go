// Package store is the persistence layer: scenario and run CRUD, the
// persisted event log, and the read-mostly unit/bed/nurse/patient
// queries the API and replay streamer serve from. All values go through
// query parameters; the only SQL assembled by concatenation is generated
// $N placeholders, filter clauses and fixed table names, never caller input.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
)

// Store wraps a shared connection pool. Every method opens its own
// transaction or statement against db; Store holds no session state.
type Store struct {
	db *sql.DB

	// reseeding guards the demo loader's destructive reseed against
	// concurrent writers per the single-writer policy on demo data.
	reseeding int32
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for callers that need it directly; no
// package in this module calls it.
func (s *Store) DB() *sql.DB { return s.db }

// beginReseed marks a demo reseed in progress. It returns false if one is
// already running, so callers can reject a concurrent request instead of
// racing with it.
func (s *Store) beginReseed() bool {
	return atomic.CompareAndSwapInt32(&s.reseeding, 0, 1)
}

func (s *Store) endReseed() {
	atomic.StoreInt32(&s.reseeding, 0)
}

func (s *Store) IsReseeding() bool {
	return atomic.LoadInt32(&s.reseeding) == 1
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
