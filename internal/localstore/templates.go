package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
)

const templateColumns = `id, title, database_kind, custom, content, last_modified_ms`

type templateBody struct {
	Tables        []json.RawMessage `json:"tables"`
	Relationships []json.RawMessage `json:"relationships"`
	Notes         []json.RawMessage `json:"notes"`
	SubjectAreas  []json.RawMessage `json:"subjectAreas"`
	Tasks         []json.RawMessage `json:"tasks"`
	Enums         []json.RawMessage `json:"enums,omitempty"`
	Types         []json.RawMessage `json:"types,omitempty"`
}

// GetTemplate returns the template with the identifier.
func (s *Store) GetTemplate(ctx context.Context, id string) (diagrams.Template, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

// PutTemplate inserts or replaces a template.
func (s *Store) PutTemplate(ctx context.Context, t diagrams.Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	args, err := s.templateArgs(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			database_kind = excluded.database_kind,
			custom = excluded.custom,
			content = excluded.content,
			last_modified_ms = excluded.last_modified_ms
	`, args...)
	return err
}

// UpdateTemplate replaces an existing template's content. The custom flag is preserved.
func (s *Store) UpdateTemplate(ctx context.Context, id string, t diagrams.Template) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	t.ID = id
	args, err := s.templateArgs(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE templates SET title = ?, database_kind = ?, content = ?, last_modified_ms = ?
		WHERE id = ?
	`, args[1], args[2], args[4], args[5], id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	return nil
}

// ListTemplates returns built-in templates first, then custom ones, each in insertion order.
func (s *Store) ListTemplates(ctx context.Context) ([]diagrams.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY custom, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []diagrams.Template{}
	for rows.Next() {
		t, _, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) templateArgs(t diagrams.Template) ([]any, error) {
	kind := diagrams.ParseDatabaseKind(string(t.Database))
	capabilities := diagrams.CapabilitiesOf(kind)
	body := templateBody{
		Tables:        t.Tables,
		Relationships: t.Relationships,
		Notes:         t.Notes,
		SubjectAreas:  t.SubjectAreas,
		Tasks:         t.Tasks,
	}
	if capabilities.HasEnums {
		body.Enums = t.Enums
	}
	if capabilities.HasTypes {
		body.Types = t.Types
	}
	content, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("localstore: encode template: %w", err)
	}
	lastModified := t.LastModified
	if lastModified.IsZero() {
		lastModified = s.clock()
	}
	return []any{t.ID, t.Title, string(kind), boolToInt(t.Custom), string(content), lastModified.UnixMilli()}, nil
}

func scanTemplate(row rowScanner) (diagrams.Template, bool, error) {
	var (
		id, title, kind, content string
		custom                   int
		lastModifiedMillis       int64
	)
	err := row.Scan(&id, &title, &kind, &custom, &content, &lastModifiedMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return diagrams.Template{}, false, nil
	}
	if err != nil {
		return diagrams.Template{}, false, err
	}

	var body templateBody
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return diagrams.Template{}, false, fmt.Errorf("local template %s: %w: %v", id, diagrams.ErrMalformedContent, err)
	}
	return diagrams.Template{
		ID:            id,
		Title:         title,
		Database:      diagrams.ParseDatabaseKind(kind),
		Tables:        body.Tables,
		Relationships: body.Relationships,
		Notes:         body.Notes,
		SubjectAreas:  body.SubjectAreas,
		Tasks:         body.Tasks,
		Enums:         body.Enums,
		Types:         body.Types,
		Custom:        custom != 0,
		LastModified:  time.UnixMilli(lastModifiedMillis).UTC(),
	}, true, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
