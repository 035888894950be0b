// Package store keeps a local index of produced attestation artifacts
// so past proofs can be listed without scanning the output directories.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Proof is one indexed attestation artifact.
type Proof struct {
	ID        string
	Model     string
	Provider  string
	Strategy  string
	Stage     string
	Path      string
	CreatedAt time.Time
}

// Registry is a SQLite-backed proof index.
type Registry struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS proofs (
	id         TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	provider   TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	stage      TEXT NOT NULL,
	path       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_proofs_created_at ON proofs (created_at);
`

// Open opens (and if needed initializes) a registry at the given path.
// Use ":memory:" for tests.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening proof registry %s: %w", path, err)
	}
	// SQLite allows one writer; a second pooled connection would also
	// see a fresh database when path is ":memory:".
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing proof registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Record indexes a written artifact and returns its registry id.
func (r *Registry) Record(ctx context.Context, p Proof) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO proofs (id, model, provider, strategy, stage, path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Model, p.Provider, p.Strategy, p.Stage, p.Path, p.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("recording proof: %w", err)
	}
	return p.ID, nil
}

// List returns all indexed proofs, newest first.
func (r *Registry) List(ctx context.Context) ([]Proof, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, model, provider, strategy, stage, path, created_at
		 FROM proofs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing proofs: %w", err)
	}
	defer rows.Close()

	var proofs []Proof
	for rows.Next() {
		var p Proof
		if err := rows.Scan(&p.ID, &p.Model, &p.Provider, &p.Strategy, &p.Stage, &p.Path, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning proof row: %w", err)
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}
