package diagrams

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultName is assigned to diagrams created without an explicit title.
const DefaultName = "Untitled Diagram"

// UnsavedID marks a working diagram that has not been persisted yet.
const UnsavedID = ""

// DatabaseKind enumerates the target SQL dialect of a diagram.
type DatabaseKind string

const (
	DatabaseGeneric    DatabaseKind = "generic"
	DatabaseMySQL      DatabaseKind = "mysql"
	DatabasePostgreSQL DatabaseKind = "postgresql"
	DatabaseSQLite     DatabaseKind = "sqlite"
	DatabaseMariaDB    DatabaseKind = "mariadb"
	DatabaseMSSQL      DatabaseKind = "mssql"
	DatabaseOracleSQL  DatabaseKind = "oraclesql"
)

// Capabilities lists the dialect-conditional parts of a diagram.
type Capabilities struct {
	Name     string
	HasTypes bool
	HasEnums bool
}

var dialects = map[DatabaseKind]Capabilities{
	DatabaseGeneric:    {Name: "Generic", HasTypes: true},
	DatabaseMySQL:      {Name: "MySQL"},
	DatabasePostgreSQL: {Name: "PostgreSQL", HasTypes: true, HasEnums: true},
	DatabaseSQLite:     {Name: "SQLite"},
	DatabaseMariaDB:    {Name: "MariaDB"},
	DatabaseMSSQL:      {Name: "MSSQL"},
	DatabaseOracleSQL:  {Name: "Oracle"},
}

// ParseDatabaseKind normalizes raw input; empty or unknown values map to generic.
func ParseDatabaseKind(raw string) DatabaseKind {
	kind := DatabaseKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := dialects[kind]; ok {
		return kind
	}
	return DatabaseGeneric
}

// Known reports whether the kind is one of the supported dialects.
func (kind DatabaseKind) Known() bool {
	_, ok := dialects[kind]
	return ok
}

// CapabilitiesOf returns the capability set for the dialect.
func CapabilitiesOf(kind DatabaseKind) Capabilities {
	if capabilities, ok := dialects[kind]; ok {
		return capabilities
	}
	return dialects[DatabaseGeneric]
}

// Point is a viewport coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform captures the canvas viewport.
type Transform struct {
	Pan  Point   `json:"pan"`
	Zoom float64 `json:"zoom"`
}

// DefaultTransform is the viewport used for fresh diagrams and templates.
func DefaultTransform() Transform {
	return Transform{Pan: Point{}, Zoom: 1}
}

// Diagram is the unit of persisted work. Editor elements are kept opaque.
type Diagram struct {
	ID                 string
	Name               string
	Database           DatabaseKind
	Tables             []json.RawMessage
	Relationships      []json.RawMessage
	Notes              []json.RawMessage
	Areas              []json.RawMessage
	Tasks              []json.RawMessage
	Enums              []json.RawMessage
	Types              []json.RawMessage
	Transform          Transform
	GistID             string
	ImportedFromGistID string
	LastModified       time.Time
}

// New returns an empty diagram for the dialect.
func New(kind DatabaseKind) Diagram {
	return Diagram{
		ID:        UnsavedID,
		Name:      DefaultName,
		Database:  ParseDatabaseKind(string(kind)),
		Transform: DefaultTransform(),
	}
}

// Saved reports whether the diagram carries a permanent identifier.
func (d Diagram) Saved() bool {
	return d.ID != UnsavedID
}

// Empty reports whether no editor collection holds any element.
func (d Diagram) Empty() bool {
	return len(d.Tables) == 0 &&
		len(d.Areas) == 0 &&
		len(d.Notes) == 0 &&
		len(d.Types) == 0 &&
		len(d.Tasks) == 0
}

// Normalize defaults the dialect and drops fields the dialect does not support.
func (d Diagram) Normalize() Diagram {
	d.Database = ParseDatabaseKind(string(d.Database))
	capabilities := CapabilitiesOf(d.Database)
	if !capabilities.HasTypes {
		d.Types = nil
	}
	if !capabilities.HasEnums {
		d.Enums = nil
	}
	if d.Transform.Zoom <= 0 {
		d.Transform.Zoom = 1
	}
	return d
}

// Clone returns a deep copy detached from the receiver.
func (d Diagram) Clone() Diagram {
	cloned := d
	cloned.Tables = cloneElements(d.Tables)
	cloned.Relationships = cloneElements(d.Relationships)
	cloned.Notes = cloneElements(d.Notes)
	cloned.Areas = cloneElements(d.Areas)
	cloned.Tasks = cloneElements(d.Tasks)
	cloned.Enums = cloneElements(d.Enums)
	cloned.Types = cloneElements(d.Types)
	return cloned
}

// Template is a local-only starting point for new diagrams.
type Template struct {
	ID            string
	Title         string
	Database      DatabaseKind
	Tables        []json.RawMessage
	Relationships []json.RawMessage
	Notes         []json.RawMessage
	SubjectAreas  []json.RawMessage
	Tasks         []json.RawMessage
	Enums         []json.RawMessage
	Types         []json.RawMessage
	Custom        bool
	LastModified  time.Time
}

// AsDiagram projects the template into working-state shape with a reset viewport.
func (t Template) AsDiagram() Diagram {
	d := Diagram{
		ID:            t.ID,
		Name:          t.Title,
		Database:      t.Database,
		Tables:        cloneElements(t.Tables),
		Relationships: cloneElements(t.Relationships),
		Notes:         cloneElements(t.Notes),
		Areas:         cloneElements(t.SubjectAreas),
		Tasks:         cloneElements(t.Tasks),
		Enums:         cloneElements(t.Enums),
		Types:         cloneElements(t.Types),
		Transform:     DefaultTransform(),
		LastModified:  t.LastModified,
	}
	return d.Normalize()
}

// TemplateFromDiagram copies working state back into a template record.
func TemplateFromDiagram(id string, custom bool, d Diagram) Template {
	d = d.Normalize()
	return Template{
		ID:            id,
		Title:         d.Name,
		Database:      d.Database,
		Tables:        cloneElements(d.Tables),
		Relationships: cloneElements(d.Relationships),
		Notes:         cloneElements(d.Notes),
		SubjectAreas:  cloneElements(d.Areas),
		Tasks:         cloneElements(d.Tasks),
		Enums:         cloneElements(d.Enums),
		Types:         cloneElements(d.Types),
		Custom:        custom,
		LastModified:  d.LastModified,
	}
}

func cloneElements(elements []json.RawMessage) []json.RawMessage {
	if elements == nil {
		return nil
	}
	cloned := make([]json.RawMessage, len(elements))
	for index, element := range elements {
		cloned[index] = append(json.RawMessage(nil), element...)
	}
	return cloned
}
