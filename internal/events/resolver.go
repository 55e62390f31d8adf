package events

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"github.com/bissquit/incident-relay/internal/record"
)

// Relation names the one-to-many table linking a record to affected services.
type Relation struct {
	Table        string
	TaskField    string
	ServiceField string
}

// ResolveServices collects the affected service identifiers: the primary
// business service first, then every related service in query order.
// Duplicates and empty identifiers are dropped. The result is never nil.
func ResolveServices(ctx context.Context, rec record.Record, rel Relation) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	services := make([]string, 0)
	seen := make(map[string]struct{})

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		services = append(services, id)
	}

	if primary := rec.Field(domain.FieldBusinessService); primary != "" {
		logger.Debug("found primary business service",
			"service_id", primary,
			"service_name", rec.DisplayValue(domain.FieldBusinessService),
		)
		add(primary)
	}

	rows, err := rec.QueryRelated(ctx, rel.Table, record.Filter{
		Field: rel.TaskField,
		Value: rec.ID(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRelationQuery, err)
	}

	for _, row := range rows {
		logger.Debug("found impacted service", "service_id", row[rel.ServiceField])
		add(row[rel.ServiceField])
	}

	return services, nil
}
