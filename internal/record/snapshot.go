package record

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-relay/internal/domain"
)

// State holds the field values of a record at one point in time.
type State struct {
	SysID         string              `json:"sys_id" validate:"required"`
	Fields        map[string]string   `json:"fields"`
	DisplayValues map[string]string   `json:"display_values"`
	Journals      map[string][]string `json:"journals"` // newest entry first
}

// Snapshot implements Record over a decoded trigger body.
type Snapshot struct {
	operation domain.Operation
	current   State
	previous  *State
	changed   map[string]bool
	related   map[string][]Row
	querier   RelationQuerier
}

// SnapshotInput contains the data a Snapshot is built from.
type SnapshotInput struct {
	Operation     domain.Operation
	Current       State
	Previous      *State
	ChangedFields []string
	// Related holds rows embedded in the trigger, keyed by table name.
	Related map[string][]Row
}

// NewSnapshot creates a Snapshot. querier may be nil, in which case tables
// not embedded in the input have no rows.
func NewSnapshot(input SnapshotInput, querier RelationQuerier) *Snapshot {
	changed := make(map[string]bool, len(input.ChangedFields))
	for _, f := range input.ChangedFields {
		changed[f] = true
	}

	return &Snapshot{
		operation: input.Operation,
		current:   input.Current,
		previous:  input.Previous,
		changed:   changed,
		related:   input.Related,
		querier:   querier,
	}
}

// ID returns the record identifier.
func (s *Snapshot) ID() string {
	return s.current.SysID
}

// Operation returns the operation that fired the trigger.
func (s *Snapshot) Operation() domain.Operation {
	return s.operation
}

// Field returns the raw value of a field.
func (s *Snapshot) Field(name string) string {
	return s.current.Fields[name]
}

// DisplayValue returns the display value of a field, falling back to the raw value.
func (s *Snapshot) DisplayValue(name string) string {
	if v, ok := s.current.DisplayValues[name]; ok {
		return v
	}
	return s.current.Fields[name]
}

// Changed reports whether the field is modified by this operation.
// An explicit changed_fields entry wins; otherwise the current and previous
// snapshots are compared. Without a previous snapshot only inserts count
// non-empty fields as changed.
func (s *Snapshot) Changed(name string) bool {
	if s.changed[name] {
		return true
	}

	if s.previous == nil {
		if s.operation.IsUpdate() {
			return false
		}
		return s.current.Fields[name] != "" || len(s.current.Journals[name]) > 0
	}

	if s.current.Fields[name] != s.previous.Fields[name] {
		return true
	}
	return newest(s.current.Journals[name]) != newest(s.previous.Journals[name])
}

// JournalEntry returns the n-th most recent journal entry (1-based).
func (s *Snapshot) JournalEntry(name string, n int) string {
	entries := s.current.Journals[name]
	if n < 1 || n > len(entries) {
		return ""
	}
	return entries[n-1]
}

// QueryRelated returns rows of a related table matching the filter.
// Rows embedded in the trigger take precedence over the querier. They are
// already scoped to this record, so a row is skipped only when it carries
// the filter column with a different value.
func (s *Snapshot) QueryRelated(ctx context.Context, table string, filter Filter) ([]Row, error) {
	if rows, ok := s.related[table]; ok {
		matched := make([]Row, 0, len(rows))
		for _, row := range rows {
			if _, ok := row[filter.Field]; !ok || filter.Matches(row) {
				matched = append(matched, row)
			}
		}
		return matched, nil
	}

	if s.querier == nil {
		return nil, nil
	}

	rows, err := s.querier.QueryRelated(ctx, table, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return rows, nil
}

func newest(entries []string) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0]
}
