package listing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
)

const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
)

// Entry is one display row of the diagram listing.
type Entry struct {
	ID           string
	Name         string
	Database     diagrams.DatabaseKind
	DialectName  string
	Tables       int
	Size         int
	SizeLabel    string
	LastModified time.Time
	RemoteOnly   bool
}

// NewEntry describes a merged diagram for display.
func NewEntry(diagram diagrams.Diagram, remoteOnly bool) Entry {
	kind := diagrams.ParseDatabaseKind(string(diagram.Database))
	size := encodedSize(diagram)
	return Entry{
		ID:           diagram.ID,
		Name:         diagram.Name,
		Database:     kind,
		DialectName:  diagrams.CapabilitiesOf(kind).Name,
		Tables:       len(diagram.Tables),
		Size:         size,
		SizeLabel:    FormatSize(size),
		LastModified: diagram.LastModified,
		RemoteOnly:   remoteOnly,
	}
}

// FormatSize renders a byte count as B, KB or MB with one decimal.
func FormatSize(size int) string {
	switch {
	case size >= megabyte:
		return fmt.Sprintf("%.1fMB", float64(size)/megabyte)
	case size >= kilobyte:
		return fmt.Sprintf("%.1fKB", float64(size)/kilobyte)
	default:
		return fmt.Sprintf("%dB", size)
	}
}

type sizedDiagram struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
	diagrams.Content
}

func encodedSize(diagram diagrams.Diagram) int {
	encoded, err := json.Marshal(sizedDiagram{
		ID:           diagram.ID,
		Name:         diagram.Name,
		LastModified: diagram.LastModified.UTC().Format(time.RFC3339Nano),
		Content:      diagrams.ContentOf(diagram),
	})
	if err != nil {
		return 0
	}
	return len(encoded)
}
