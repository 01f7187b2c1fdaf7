package remotestore

import (
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"gorm.io/datatypes"
)

// DiagramRow is the denormalized mirror of a client diagram.
type DiagramRow struct {
	LocalID         string         `gorm:"column:local_id;primaryKey;size:190;not null"`
	Name            string         `gorm:"column:name;size:512;not null;default:''"`
	Content         datatypes.JSON `gorm:"column:content;type:text;not null"`
	UpdatedAtMillis int64          `gorm:"column:updated_at_ms;not null;index:idx_remote_diagrams_updated"`
}

// TableName provides the explicit table binding for GORM.
func (DiagramRow) TableName() string {
	return "remote_diagrams"
}

func (row DiagramRow) record() diagrams.RemoteRecord {
	return diagrams.RemoteRecord{
		LocalID:   row.LocalID,
		Name:      row.Name,
		Content:   append([]byte(nil), row.Content...),
		UpdatedAt: time.UnixMilli(row.UpdatedAtMillis).UTC(),
	}
}

func rowFromRecord(record diagrams.RemoteRecord) DiagramRow {
	return DiagramRow{
		LocalID:         record.LocalID,
		Name:            record.Name,
		Content:         datatypes.JSON(append([]byte(nil), record.Content...)),
		UpdatedAtMillis: record.UpdatedAt.UnixMilli(),
	}
}
