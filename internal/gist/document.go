package gist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
)

// Document is the shared diagram carried inside a gist file.
type Document struct {
	Database      string              `json:"database"`
	Title         string              `json:"title"`
	Tables        []json.RawMessage   `json:"tables"`
	Relationships []json.RawMessage   `json:"relationships"`
	Notes         []json.RawMessage   `json:"notes"`
	SubjectAreas  []json.RawMessage   `json:"subjectAreas"`
	Transform     *diagrams.Transform `json:"transform"`
	Types         []json.RawMessage   `json:"types,omitempty"`
	Enums         []json.RawMessage   `json:"enums,omitempty"`
}

// ParseDocument decodes a shared diagram. Only a JSON object is accepted.
func ParseDocument(raw string) (Document, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed[0] != '{' {
		return Document{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	var document Document
	if err := json.Unmarshal([]byte(trimmed), &document); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return document, nil
}

// Diagram projects the document into working-state shape. Tasks are not shared,
// so the result starts with none.
func (d Document) Diagram(id, shareID string) diagrams.Diagram {
	name := strings.TrimSpace(d.Title)
	if name == "" {
		name = diagrams.DefaultName
	}
	transform := diagrams.DefaultTransform()
	if d.Transform != nil {
		transform = *d.Transform
	}
	diagram := diagrams.Diagram{
		ID:                 id,
		Name:               name,
		Database:           diagrams.ParseDatabaseKind(d.Database),
		Tables:             d.Tables,
		Relationships:      d.Relationships,
		Notes:              d.Notes,
		Areas:              d.SubjectAreas,
		Types:              d.Types,
		Enums:              d.Enums,
		Transform:          transform,
		ImportedFromGistID: shareID,
	}
	return diagram.Normalize().Clone()
}
