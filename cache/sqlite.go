// Package cache persists reference outcomes in a SQLite database so that
// grading many candidates against one reference runs the reference once.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CatConfLang/pytestgen/harness"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reference_outcomes (
	scope TEXT NOT NULL,
	case_key TEXT NOT NULL,
	raised INTEGER NOT NULL,
	category TEXT NOT NULL,
	value TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (scope, case_key)
);
`

// Store is a harness.ReferenceStore backed by SQLite
type Store struct {
	db   *sql.DB
	path string
}

var _ harness.ReferenceStore = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps the pragmas in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadOutcomes returns the stored outcomes of scope for the given keys.
// Keys without a stored outcome are absent from the result.
func (s *Store) LoadOutcomes(ctx context.Context, scope string, keys []string) (map[string]harness.Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`SELECT raised, category, value FROM reference_outcomes WHERE scope = ? AND case_key = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}
	defer stmt.Close()

	out := make(map[string]harness.Outcome)
	for _, key := range keys {
		var o harness.Outcome
		err := stmt.QueryRowContext(ctx, scope, key).Scan(&o.Raised, &o.Category, &o.Value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load outcome: %w", err)
		}
		out[key] = o
	}
	return out, nil
}

// SaveOutcomes stores outcomes under scope, replacing earlier ones.
func (s *Store) SaveOutcomes(ctx context.Context, scope string, outcomes map[string]harness.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO reference_outcomes (scope, case_key, raised, category, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for key, o := range outcomes {
		if _, err := stmt.ExecContext(ctx, scope, key, o.Raised, o.Category, o.Value); err != nil {
			return fmt.Errorf("failed to save outcome: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of outcomes stored under scope.
func (s *Store) Count(ctx context.Context, scope string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_outcomes WHERE scope = ?`, scope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return n, nil
}
