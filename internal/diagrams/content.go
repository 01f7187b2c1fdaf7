package diagrams

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformedContent indicates that a stored content blob could not be decoded.
	ErrMalformedContent = errors.New("diagrams: malformed content")
	// ErrInvalidRecord indicates that a remote record lacks its identifier.
	ErrInvalidRecord = errors.New("diagrams: invalid remote record")
)

// Content is the diagram body without the hoisted id, name and timestamp columns.
type Content struct {
	Database           DatabaseKind      `json:"database"`
	Tables             []json.RawMessage `json:"tables"`
	Relationships      []json.RawMessage `json:"relationships"`
	Notes              []json.RawMessage `json:"notes"`
	Areas              []json.RawMessage `json:"areas"`
	Tasks              []json.RawMessage `json:"tasks"`
	Enums              []json.RawMessage `json:"enums,omitempty"`
	Types              []json.RawMessage `json:"types,omitempty"`
	Pan                Point             `json:"pan"`
	Zoom               float64           `json:"zoom"`
	GistID             string            `json:"gistId"`
	ImportedFromGistID string            `json:"importedFromGistId"`
}

// ContentOf extracts the body of the diagram, honoring dialect capabilities.
func ContentOf(d Diagram) Content {
	d = d.Normalize()
	return Content{
		Database:           d.Database,
		Tables:             orEmpty(d.Tables),
		Relationships:      orEmpty(d.Relationships),
		Notes:              orEmpty(d.Notes),
		Areas:              orEmpty(d.Areas),
		Tasks:              orEmpty(d.Tasks),
		Enums:              d.Enums,
		Types:              d.Types,
		Pan:                d.Transform.Pan,
		Zoom:               d.Transform.Zoom,
		GistID:             d.GistID,
		ImportedFromGistID: d.ImportedFromGistID,
	}
}

// Diagram rebuilds a diagram from the body and its hoisted columns.
func (c Content) Diagram(id, name string, lastModified time.Time) Diagram {
	d := Diagram{
		ID:                 id,
		Name:               name,
		Database:           c.Database,
		Tables:             c.Tables,
		Relationships:      c.Relationships,
		Notes:              c.Notes,
		Areas:              c.Areas,
		Tasks:              c.Tasks,
		Enums:              c.Enums,
		Types:              c.Types,
		Transform:          Transform{Pan: c.Pan, Zoom: c.Zoom},
		GistID:             c.GistID,
		ImportedFromGistID: c.ImportedFromGistID,
		LastModified:       lastModified,
	}
	return d.Normalize()
}

// EncodeContent serializes the diagram body.
func EncodeContent(d Diagram) (json.RawMessage, error) {
	encoded, err := json.Marshal(ContentOf(d))
	if err != nil {
		return nil, fmt.Errorf("diagrams: encode content: %w", err)
	}
	return encoded, nil
}

// DecodeContent parses a stored diagram body.
func DecodeContent(raw []byte) (Content, error) {
	var content Content
	if len(raw) == 0 {
		return content, fmt.Errorf("%w: empty", ErrMalformedContent)
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	return content, nil
}

// RemoteRecord is the denormalized mirror row held by the remote store.
type RemoteRecord struct {
	LocalID   string          `json:"local_id"`
	Name      string          `json:"name"`
	Content   json.RawMessage `json:"content"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToRemoteRecord builds the mirror row for a saved diagram.
func ToRemoteRecord(d Diagram, updatedAt time.Time) (RemoteRecord, error) {
	if strings.TrimSpace(d.ID) == "" {
		return RemoteRecord{}, fmt.Errorf("%w: missing local id", ErrInvalidRecord)
	}
	content, err := EncodeContent(d)
	if err != nil {
		return RemoteRecord{}, err
	}
	return RemoteRecord{
		LocalID:   d.ID,
		Name:      d.Name,
		Content:   content,
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

// FromRemoteRecord decodes a mirror row, rejecting malformed content.
func FromRemoteRecord(record RemoteRecord) (Diagram, error) {
	if strings.TrimSpace(record.LocalID) == "" {
		return Diagram{}, fmt.Errorf("%w: missing local id", ErrInvalidRecord)
	}
	content, err := DecodeContent(record.Content)
	if err != nil {
		return Diagram{}, fmt.Errorf("remote record %s: %w", record.LocalID, err)
	}
	return content.Diagram(record.LocalID, record.Name, record.UpdatedAt), nil
}

func orEmpty(elements []json.RawMessage) []json.RawMessage {
	if elements == nil {
		return []json.RawMessage{}
	}
	return elements
}
