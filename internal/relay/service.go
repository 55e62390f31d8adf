// Package relay runs incident records through the event builder and
// forwards the result to the dashboard.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"github.com/bissquit/incident-relay/internal/record"
	"github.com/bissquit/incident-relay/internal/statusdashboard"
	"github.com/google/uuid"
)

// EventBuilder builds the status event for a record.
type EventBuilder interface {
	Build(ctx context.Context, rec record.Record) (*domain.StatusEvent, error)
}

// Dashboard signs and delivers serialized events.
type Dashboard interface {
	Sign(ctx context.Context, body []byte) (string, error)
	Deliver(ctx context.Context, body []byte, signature string) (*statusdashboard.Delivery, error)
}

// Result describes what happened to one record.
type Result struct {
	DeliveryID string              `json:"delivery_id"`
	Event      *domain.StatusEvent `json:"event"`
	Signed     bool                `json:"signed"`
	Delivered  bool                `json:"delivered"`
	StatusCode int                 `json:"status_code,omitempty"`
}

// Service relays records to the dashboard.
type Service struct {
	builder   EventBuilder
	dashboard Dashboard
}

// NewService creates a new relay service.
func NewService(builder EventBuilder, dashboard Dashboard) *Service {
	return &Service{
		builder:   builder,
		dashboard: dashboard,
	}
}

// Handle builds the event for rec and sends it. Only build failures are
// returned; signing and delivery problems are logged and reflected in the
// Result.
func (s *Service) Handle(ctx context.Context, rec record.Record) (*Result, error) {
	result := &Result{DeliveryID: uuid.New().String()}
	ctx = ctxlog.With(ctx, "delivery_id", result.DeliveryID, "record_id", rec.ID())
	logger := ctxlog.FromContext(ctx)

	event, err := s.builder.Build(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("build event: %w", err)
	}
	result.Event = event

	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	logger.Debug("status event payload", "payload", string(body))

	signature, err := s.dashboard.Sign(ctx, body)
	if err != nil {
		logger.Error("failed to sign payload, sending unsigned", "error", err)
		signature = ""
	}
	result.Signed = signature != ""

	delivery, err := s.dashboard.Deliver(ctx, body, signature)
	if err != nil {
		logger.Error("failed to deliver status event", "error", err)
		return result, nil
	}

	result.Delivered = true
	result.StatusCode = delivery.StatusCode
	logger.Info("status event delivered",
		"status", delivery.StatusCode,
		"response", delivery.Body,
		"signed", result.Signed,
	)

	return result, nil
}

// Preview builds the event for rec without contacting the dashboard.
func (s *Service) Preview(ctx context.Context, rec record.Record) (*domain.StatusEvent, error) {
	event, err := s.builder.Build(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("build event: %w", err)
	}
	return event, nil
}
