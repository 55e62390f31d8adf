// Package events builds dashboard status events from ticketing-platform records.
package events

import (
	"context"
	"maps"

	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
)

// Mapper translates source enumerations into dashboard enumerations.
// Lookups never fail: a miss yields domain.Unknown, which the dashboard rejects.
type Mapper struct {
	status   map[string]string
	severity map[string]string
}

// NewMapper creates a Mapper. The tables are copied.
func NewMapper(status, severity map[string]string) *Mapper {
	return &Mapper{
		status:   maps.Clone(status),
		severity: maps.Clone(severity),
	}
}

// MapStatus maps an incident state display label to a dashboard status.
func (m *Mapper) MapStatus(ctx context.Context, state string) domain.EventStatus {
	if v, ok := m.status[state]; ok {
		return domain.EventStatus(v)
	}
	ctxlog.FromContext(ctx).Warn("no status mapping for state, sending unknown", "state", state)
	recordMappingMiss("status")
	return domain.EventStatus(domain.Unknown)
}

// MapSeverity maps an impact display label to a dashboard severity.
func (m *Mapper) MapSeverity(ctx context.Context, impact string) domain.Severity {
	if v, ok := m.severity[impact]; ok {
		return domain.Severity(v)
	}
	ctxlog.FromContext(ctx).Warn("no severity mapping for impact, sending unknown", "impact", impact)
	recordMappingMiss("severity")
	return domain.Severity(domain.Unknown)
}
