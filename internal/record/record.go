// Package record defines the read-only view of a ticketing-platform record
// that fired a trigger, plus an in-memory implementation built from the
// trigger body.
package record

import (
	"context"

	"github.com/bissquit/incident-relay/internal/domain"
)

// Row is a single row of a related table, keyed by column name.
type Row map[string]string

// Filter restricts a related-table query to rows where Field equals Value.
type Filter struct {
	Field string
	Value string
}

// Matches reports whether the row satisfies the filter.
// An empty filter field matches every row.
func (f Filter) Matches(row Row) bool {
	if f.Field == "" {
		return true
	}
	return row[f.Field] == f.Value
}

// Record is the capability set the payload builder needs from the platform.
type Record interface {
	ID() string
	Operation() domain.Operation
	Field(name string) string
	DisplayValue(name string) string
	// Changed reports whether the field is modified by the current operation.
	Changed(name string) bool
	// JournalEntry returns the n-th most recent journal entry (1-based) of a
	// journal field, or "" if there is none.
	JournalEntry(name string, n int) string
	QueryRelated(ctx context.Context, table string, filter Filter) ([]Row, error)
}

// RelationQuerier fetches related rows from the platform.
type RelationQuerier interface {
	QueryRelated(ctx context.Context, table string, filter Filter) ([]Row, error)
}
