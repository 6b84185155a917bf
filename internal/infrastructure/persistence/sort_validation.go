package persistence

import (
	"strings"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/infrastructure/docstore"
)

// KarteSortFields maps list sort keys to stored field paths
var KarteSortFields = map[string]string{
	karte.SortByUpdated:      docstore.FieldUpdatedAt,
	karte.SortByDeparture:    "summaryProjection.departureDate",
	karte.SortByRecordNumber: "summaryProjection.recordNumber",
}

// ValidateSortField resolves a sort key against a whitelist of stored
// fields. Empty or unknown keys yield defaultField.
func ValidateSortField(sortField string, allowedFields map[string]string, defaultField string) string {
	key := strings.ToLower(strings.TrimSpace(sortField))
	if key == "" {
		return defaultField
	}
	if field, ok := allowedFields[key]; ok {
		return field
	}
	return defaultField
}
