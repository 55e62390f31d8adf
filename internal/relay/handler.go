package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/events"
	"github.com/bissquit/incident-relay/internal/pkg/httputil"
	"github.com/bissquit/incident-relay/internal/record"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodySize = 1 << 20

// Handler handles trigger calls from the ticketing platform.
type Handler struct {
	service   *Service
	querier   record.RelationQuerier
	validator *validator.Validate
}

// NewHandler creates a new relay handler. querier may be nil when related
// rows are always embedded in the trigger body.
func NewHandler(service *Service, querier record.RelationQuerier) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		service:   service,
		querier:   querier,
		validator: validate,
	}
}

// RegisterRoutes registers the trigger routes. Callers are not
// authenticated; the routes must only be reachable by the ticketing platform.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/servicenow/incidents", func(r chi.Router) {
		r.Post("/", h.HandleIncident)
		r.Post("/preview", h.PreviewIncident)
	})
}

// TriggerRequest is the body a business rule posts when an incident is
// inserted or updated.
type TriggerRequest struct {
	Operation     string                  `json:"operation" validate:"required"`
	Current       record.State            `json:"current" validate:"required"`
	Previous      *record.State           `json:"previous" validate:"omitempty"`
	ChangedFields []string                `json:"changed_fields"`
	Related       map[string][]record.Row `json:"related"`
}

// ToRecord converts the request to a record backed by querier.
func (r *TriggerRequest) ToRecord(querier record.RelationQuerier) *record.Snapshot {
	return record.NewSnapshot(record.SnapshotInput{
		Operation:     domain.ParseOperation(r.Operation),
		Current:       r.Current,
		Previous:      r.Previous,
		ChangedFields: r.ChangedFields,
		Related:       r.Related,
	}, querier)
}

// HandleIncident handles POST /servicenow/incidents request.
func (h *Handler) HandleIncident(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.service.Handle(r.Context(), req.ToRecord(h.querier))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusAccepted, result)
}

// PreviewIncident handles POST /servicenow/incidents/preview request.
func (h *Handler) PreviewIncident(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	event, err := h.service.Preview(r.Context(), req.ToRecord(h.querier))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, event)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*TriggerRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return nil, false
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return nil, false
	}

	return &req, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: events.ErrMissingID, Status: http.StatusBadRequest},
		{Error: events.ErrInvalidOperation, Status: http.StatusBadRequest},
		{Error: events.ErrRelationQuery, Status: http.StatusBadGateway, Message: "related services query failed"},
	})
}
