// Package localstore provides the on-device SQLite store for diagrams and templates.
// Uses ncruces/go-sqlite3/driver, which runs SQLite as WASM and works in browser builds.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const driverName = "sqlite3"

var (
	// ErrNotFound indicates that no record exists for the identifier.
	ErrNotFound = errors.New("localstore: not found")
	// ErrDuplicateID indicates that Add was called with an identifier already present.
	ErrDuplicateID = errors.New("localstore: duplicate id")
	// ErrMissingID indicates that a write was attempted without an identifier.
	ErrMissingID = errors.New("localstore: id is required")
)

const schema = `
CREATE TABLE IF NOT EXISTS diagrams (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    database_kind TEXT NOT NULL DEFAULT 'generic',
    gist_id TEXT NOT NULL DEFAULT '',
    imported_from_gist_id TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    last_modified_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagrams_last_modified ON diagrams(last_modified_ms);
CREATE INDEX IF NOT EXISTS idx_diagrams_imported_gist ON diagrams(imported_from_gist_id);

CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    database_kind TEXT NOT NULL DEFAULT 'generic',
    custom INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    last_modified_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_templates_custom ON templates(custom);
`

const diagramColumns = `id, name, database_kind, gist_id, imported_from_gist_id, content, last_modified_ms`

// Store is the on-device diagram store.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	db    *sql.DB
	clock func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source used when records carry no lastModified.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// OpenMemory opens an in-memory store.
func OpenMemory(options ...Option) (*Store, error) {
	return Open(":memory:", options...)
}

// Open opens the store at the given path and creates the schema.
// Use ":memory:" for an in-memory store.
func Open(path string, options ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("localstore: path is required")
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	for _, option := range options {
		option(store)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the diagram with the identifier.
func (s *Store) Get(ctx context.Context, id string) (diagrams.Diagram, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+diagramColumns+` FROM diagrams WHERE id = ?`, id)
	return scanDiagram(row)
}

// Add inserts a new diagram and returns its identifier.
func (s *Store) Add(ctx context.Context, d diagrams.Diagram) (string, error) {
	if strings.TrimSpace(d.ID) == "" {
		return "", ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM diagrams WHERE id = ?`, d.ID).Scan(&exists)
	if err == nil {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	args, err := s.diagramArgs(d)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO diagrams (`+diagramColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return "", err
	}
	return d.ID, nil
}

// Update replaces the stored diagram with the identifier.
func (s *Store) Update(ctx context.Context, id string, d diagrams.Diagram) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	d.ID = id
	args, err := s.diagramArgs(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE diagrams SET name = ?, database_kind = ?, gist_id = ?, imported_from_gist_id = ?,
			content = ?, last_modified_ms = ?
		WHERE id = ?
	`, append(args[1:], id)...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Put inserts or replaces the diagram keyed by its identifier.
func (s *Store) Put(ctx context.Context, d diagrams.Diagram) error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrMissingID
	}
	args, err := s.diagramArgs(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagrams (`+diagramColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			database_kind = excluded.database_kind,
			gist_id = excluded.gist_id,
			imported_from_gist_id = excluded.imported_from_gist_id,
			content = excluded.content,
			last_modified_ms = excluded.last_modified_ms
	`, args...)
	return err
}

// QueryLatestByModifiedTime returns the most recently modified diagram.
func (s *Store) QueryLatestByModifiedTime(ctx context.Context) (diagrams.Diagram, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+diagramColumns+` FROM diagrams ORDER BY last_modified_ms DESC, rowid DESC LIMIT 1`)
	return scanDiagram(row)
}

// FindByImportedGistID returns the diagram seeded from the gist, if any.
func (s *Store) FindByImportedGistID(ctx context.Context, gistID string) (diagrams.Diagram, bool, error) {
	if strings.TrimSpace(gistID) == "" {
		return diagrams.Diagram{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+diagramColumns+` FROM diagrams WHERE imported_from_gist_id = ? ORDER BY rowid LIMIT 1`, gistID)
	return scanDiagram(row)
}

// ListAll returns every diagram in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]diagrams.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+diagramColumns+` FROM diagrams ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []diagrams.Diagram{}
	for rows.Next() {
		d, _, err := scanDiagram(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) diagramArgs(d diagrams.Diagram) ([]any, error) {
	d = d.Normalize()
	content, err := diagrams.EncodeContent(d)
	if err != nil {
		return nil, err
	}
	lastModified := d.LastModified
	if lastModified.IsZero() {
		lastModified = s.clock()
	}
	return []any{
		d.ID,
		d.Name,
		string(d.Database),
		d.GistID,
		d.ImportedFromGistID,
		string(content),
		lastModified.UnixMilli(),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagram(row rowScanner) (diagrams.Diagram, bool, error) {
	var (
		id, name, kind, gistID, importedFrom, content string
		lastModifiedMillis                            int64
	)
	err := row.Scan(&id, &name, &kind, &gistID, &importedFrom, &content, &lastModifiedMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return diagrams.Diagram{}, false, nil
	}
	if err != nil {
		return diagrams.Diagram{}, false, err
	}

	body, err := diagrams.DecodeContent([]byte(content))
	if err != nil {
		return diagrams.Diagram{}, false, fmt.Errorf("local diagram %s: %w", id, err)
	}
	body.Database = diagrams.ParseDatabaseKind(kind)
	body.GistID = gistID
	body.ImportedFromGistID = importedFrom
	return body.Diagram(id, name, time.UnixMilli(lastModifiedMillis).UTC()), true, nil
}
