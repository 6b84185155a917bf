package karte

import (
	"context"
	"time"
)

// DefaultListLimit is the number of records the list view shows
const DefaultListLimit = 50

// List sort keys
const (
	SortByUpdated      = "updated"
	SortByDeparture    = "departure"
	SortByRecordNumber = "record_number"
)

// ListOptions selects and orders the record list. The zero value lists the
// DefaultListLimit most recently updated records.
type ListOptions struct {
	Limit     int
	SortBy    string
	Ascending bool
}

// SummaryProjection is the denormalized subset of a record stored alongside
// it for list queries.
type SummaryProjection struct {
	RecordNumber  string
	StaffName     string
	ClientName    string
	DepartureDate string
	PersonCount   string
	Destination   string
}

// ProjectSummary derives the list projection of a snapshot
func ProjectSummary(s Snapshot) SummaryProjection {
	return SummaryProjection{
		RecordNumber:  s.RecordNumber,
		StaffName:     s.Fields.CompanyPerson,
		ClientName:    s.Fields.ClientCompany,
		DepartureDate: s.Fields.DepartureDate,
		PersonCount:   s.Fields.TotalPersons,
		Destination:   s.Fields.EffectiveDestination(),
	}
}

// ListEntry is one row of the record list
type ListEntry struct {
	ID          string
	Projection  SummaryProjection
	LastUpdated time.Time
}

// SaveResult reports the outcome of a store write
type SaveResult struct {
	ID      string
	SavedAt time.Time
	Created bool
}

// Repository persists records
type Repository interface {
	// FindByID loads a record. Missing ids yield a not-found error.
	FindByID(ctx context.Context, id string) (Snapshot, error)
	// Save creates the record when the snapshot has no id, otherwise
	// replaces the stored document.
	Save(ctx context.Context, s Snapshot) (SaveResult, error)
	// Delete removes a record. Missing ids are not an error.
	Delete(ctx context.Context, id string) error
	// List returns record projections ordered by opts.
	List(ctx context.Context, opts ListOptions) ([]ListEntry, error)
	// FindUpdatedBetween returns full records with from <= lastUpdated < to.
	FindUpdatedBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error)
}
