package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stackaudit/internal/errors"
	"stackaudit/internal/stackfile"
)

// savedAtLayout has fixed-width fractions so saved_at sorts as text.
const savedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StackSummary describes one saved stack without its graph.
type StackSummary struct {
	Name      string    `json:"name"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
	SavedAt   time.Time `json:"savedAt"`
}

// Store saves stack states under names.
type Store struct {
	db *DB
}

// NewStore wraps an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// OpenStore opens the database at path and returns a store over it.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Newf(errors.InvalidPayload, "stack name must not be empty")
	}
	return nil
}

// Save inserts or replaces the stack stored under name.
func (s *Store) Save(ctx context.Context, name string, st stackfile.State) error {
	if err := checkName(name); err != nil {
		return err
	}
	if st.Version == "" {
		st.Version = stackfile.CurrentVersion
	}
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now().UTC()
	}
	if err := st.Validate(); err != nil {
		return errors.New(errors.InvalidPayload, fmt.Sprintf("stack %q is not valid", name), err)
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal stack %q: %w", name, err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stacks (name, payload, node_count, edge_count, saved_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				payload = excluded.payload,
				node_count = excluded.node_count,
				edge_count = excluded.edge_count,
				saved_at = excluded.saved_at
		`, name, string(payload), len(st.Nodes), len(st.Edges), st.SavedAt.UTC().Format(savedAtLayout))
		if err != nil {
			return fmt.Errorf("failed to save stack %q: %w", name, err)
		}
		s.db.logger.Debug("Saved stack", "name", name, "nodes", len(st.Nodes), "edges", len(st.Edges))
		return nil
	})
}

// Load returns the stack stored under name.
func (s *Store) Load(ctx context.Context, name string) (stackfile.State, error) {
	var payload string
	err := s.db.QueryRow(ctx, `SELECT payload FROM stacks WHERE name = ?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return stackfile.State{}, notFound(name)
	}
	if err != nil {
		return stackfile.State{}, fmt.Errorf("failed to load stack %q: %w", name, err)
	}

	st, err := stackfile.Decode([]byte(payload), stackfile.FormatJSON)
	if err != nil {
		return stackfile.State{}, errors.New(errors.InvalidPayload, fmt.Sprintf("stored stack %q is corrupt", name), err)
	}
	return st, nil
}

// List returns all saved stacks, most recent first.
func (s *Store) List(ctx context.Context) ([]StackSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, node_count, edge_count, saved_at
		FROM stacks
		ORDER BY saved_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stacks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []StackSummary{}
	for rows.Next() {
		var sum StackSummary
		var savedAt string
		if err := rows.Scan(&sum.Name, &sum.NodeCount, &sum.EdgeCount, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stack row: %w", err)
		}
		sum.SavedAt, err = time.Parse(savedAtLayout, savedAt)
		if err != nil {
			return nil, fmt.Errorf("stack %q has bad saved_at %q: %w", sum.Name, savedAt, err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes the stack stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.Exec(ctx, `DELETE FROM stacks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete stack %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete stack %q: %w", name, err)
	}
	if n == 0 {
		return notFound(name)
	}
	return nil
}

func notFound(name string) error {
	return errors.Newf(errors.StackNotFound, "no saved stack named %q", name).
		WithDetails(map[string]string{"name": name})
}
