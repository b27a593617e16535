package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no artifact matches a lookup.
var ErrNotFound = errors.New("model not found")

// Artifact is one stored model version.
type Artifact struct {
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
	Payload   []byte `json:"-"`
}

// Store reads model artifacts from a sqlite registry file.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens the registry read-only and checks that it has a models table.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("model registry %s is a directory", path)
	}

	// The driver only honours mode=ro on file: URIs.
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry %s: %w", path, err)
	}

	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name='models'").Scan(&count)
	if err != nil || count == 0 {
		db.Close()
		return nil, fmt.Errorf("%s is not a valid model registry", path)
	}

	return &Store{db: db, path: path}, nil
}

// Latest returns the highest version stored under name.
func (s *Store) Latest(name string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT name, version, kind, payload, created_at FROM models WHERE name = ? ORDER BY version DESC LIMIT 1",
		name,
	)
	return scanArtifact(row, name, 0)
}

// Get returns one specific version.
func (s *Store) Get(name string, version int) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT name, version, kind, payload, created_at FROM models WHERE name = ? AND version = ?",
		name, version,
	)
	return scanArtifact(row, name, version)
}

// List returns every stored version without payloads, newest first per name.
func (s *Store) List() ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT name, version, kind, created_at FROM models ORDER BY name, version DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var created sql.NullString
		if err := rows.Scan(&a.Name, &a.Version, &a.Kind, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = created.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// Path is the registry file.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func scanArtifact(row *sql.Row, name string, version int) (*Artifact, error) {
	var a Artifact
	var created sql.NullString
	err := row.Scan(&a.Name, &a.Version, &a.Kind, &a.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		if version > 0 {
			return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, name, version)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", name, err)
	}
	a.CreatedAt = created.String
	return &a, nil
}
