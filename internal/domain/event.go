package domain

// EventType represents the type of a status event.
type EventType string

// Event types. Incident is the only type the dashboard accepts from integrations.
const (
	EventTypeIncident EventType = "incident"
)

// EventStatus represents the dashboard status of an event.
type EventStatus string

// Event statuses.
const (
	EventStatusInvestigating EventStatus = "investigating"
	EventStatusIdentified    EventStatus = "identified"
	EventStatusMonitoring    EventStatus = "monitoring"
	EventStatusResolved      EventStatus = "resolved"
	EventStatusUpdate        EventStatus = "update"
)

// Severity represents the dashboard severity of an event.
// Dashboards may define custom severities, so any string is accepted.
type Severity string

// Standard severity levels.
const (
	SeverityMinorPerformance Severity = "minor_performance"
	SeverityMajorPerformance Severity = "major_performance"
	SeverityMinorOutage      Severity = "minor_outage"
	SeverityMajorOutage      Severity = "major_outage"
)

// Unknown is sent when a source value has no configured mapping.
// The dashboard rejects it; nothing is validated before sending.
const Unknown = "unknown"

// StatusEvent is the normalized webhook payload delivered to the dashboard.
type StatusEvent struct {
	ID            string       `json:"id"`
	Type          EventType    `json:"type"`
	Status        EventStatus  `json:"status"`
	Services      []string     `json:"services"`
	Timeline      bool         `json:"timeline"`
	SeverityHide  bool         `json:"severity_hide"`
	SuppressNotif bool         `json:"suppress_notif,omitempty"`
	Description   string       `json:"description"`
	Severity      *Severity    `json:"severity,omitempty"`
	Update        *EventUpdate `json:"update,omitempty"`
}

// EventUpdate is an "update" timeline entry carrying a customer-visible comment.
type EventUpdate struct {
	Status EventStatus `json:"status"`
	Update string      `json:"update"`
}

// NewEventUpdate creates an update timeline entry.
func NewEventUpdate(text string) *EventUpdate {
	return &EventUpdate{
		Status: EventStatusUpdate,
		Update: text,
	}
}

// IsValid checks if the status is one the dashboard accepts for incidents.
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusInvestigating, EventStatusIdentified,
		EventStatusMonitoring, EventStatusResolved:
		return true
	}
	return false
}
