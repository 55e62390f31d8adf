package events

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"github.com/bissquit/incident-relay/internal/record"
)

// BuilderConfig holds the payload options.
type BuilderConfig struct {
	StatusMapping          map[string]string
	SeverityMapping        map[string]string
	SeverityInclude        bool
	SeverityHide           bool
	IncludeLongDescription bool
	SuppressMarker         string
	Relation               Relation
}

// Builder assembles status events from records.
type Builder struct {
	config BuilderConfig
	mapper *Mapper
}

// NewBuilder creates a new Builder.
func NewBuilder(config BuilderConfig) *Builder {
	return &Builder{
		config: config,
		mapper: NewMapper(config.StatusMapping, config.SeverityMapping),
	}
}

// Build creates the status event for rec. A failed related-services query
// aborts the build; nothing should be sent in that case.
func (b *Builder) Build(ctx context.Context, rec record.Record) (*domain.StatusEvent, error) {
	event, err := b.build(ctx, rec)
	if err != nil {
		recordBuildFailure()
		return nil, err
	}
	recordEventBuilt(string(rec.Operation()))
	return event, nil
}

func (b *Builder) build(ctx context.Context, rec record.Record) (*domain.StatusEvent, error) {
	logger := ctxlog.FromContext(ctx)

	if rec.ID() == "" {
		return nil, ErrMissingID
	}
	if !rec.Operation().IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, rec.Operation())
	}

	services, err := ResolveServices(ctx, rec, b.config.Relation)
	if err != nil {
		return nil, fmt.Errorf("resolve services: %w", err)
	}

	state := rec.DisplayValue(domain.FieldState)
	logger.Debug("mapping incident state", "state", state)

	desc := ComposeDescription(
		rec.Field(domain.FieldShortDescription),
		rec.Field(domain.FieldDescription),
		b.config.SuppressMarker,
		b.config.IncludeLongDescription,
	)

	event := &domain.StatusEvent{
		ID:            rec.ID(),
		Type:          domain.EventTypeIncident,
		Status:        b.mapper.MapStatus(ctx, state),
		Services:      services,
		Timeline:      false,
		SeverityHide:  b.config.SeverityHide,
		SuppressNotif: desc.SuppressNotification,
		Description:   desc.Text,
	}

	if b.config.SeverityInclude {
		severity := b.mapper.MapSeverity(ctx, rec.DisplayValue(domain.FieldImpact))
		event.Severity = &severity
	}

	event.Update = ExtractUpdate(ctx, rec)

	logger.Debug("status event built",
		"event_id", event.ID,
		"status", event.Status,
		"services", len(event.Services),
		"suppress_notif", event.SuppressNotif,
		"has_update", event.Update != nil,
	)

	return event, nil
}
