package listing

import (
	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
)

// Merge combines the local list with remote-only rows.
//
// Local entries are returned verbatim and in store order. Remote rows whose
// local_id is absent locally follow in the order received. A remote row with
// undecodable content still yields an entry so no diagram disappears from the list.
func Merge(local []diagrams.Diagram, remote []diagrams.RemoteRecord) []diagrams.Diagram {
	merged := make([]diagrams.Diagram, 0, len(local)+len(remote))
	localIDs := make(map[string]struct{}, len(local))
	for _, diagram := range local {
		localIDs[diagram.ID] = struct{}{}
		merged = append(merged, diagram)
	}
	for _, record := range remote {
		if _, exists := localIDs[record.LocalID]; exists {
			continue
		}
		merged = append(merged, synthesize(record))
	}
	return merged
}

func synthesize(record diagrams.RemoteRecord) diagrams.Diagram {
	diagram, err := diagrams.FromRemoteRecord(record)
	if err == nil {
		return diagram
	}
	fallback := diagrams.New(diagrams.DatabaseGeneric)
	fallback.ID = record.LocalID
	fallback.Name = record.Name
	fallback.LastModified = record.UpdatedAt
	return fallback
}
