package models

import "encoding/json"

// InboundEvent is the normalized shape every channel adapter produces.
type InboundEvent struct {
	Channel   string            `json:"channel"`
	UserID    string            `json:"userId"`
	Text      string            `json:"text"`
	MessageID string            `json:"messageId,omitempty"`
	Timestamp int64             `json:"timestampEpochSeconds"`
	Raw       json.RawMessage   `json:"rawTransportPayload,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Outbound action types.
const (
	ActionText     = "send_text"
	ActionButtons  = "send_buttons"
	ActionList     = "send_list"
	ActionLocation = "send_location"
	ActionEscalate = "escalate"
)

// ListSection groups list rows under a title.
type ListSection struct {
	Title string   `json:"title"`
	Rows  []string `json:"rows"`
}

// OutboundAction is the single action a processed event emits towards the
// channel adapter.
type OutboundAction struct {
	Type        string        `json:"type"`
	To          string        `json:"to"`
	Body        string        `json:"body,omitempty"`
	Options     []string      `json:"options,omitempty"`
	ButtonLabel string        `json:"buttonLabel,omitempty"`
	Sections    []ListSection `json:"sections,omitempty"`
	Lat         float64       `json:"lat,omitempty"`
	Lon         float64       `json:"lon,omitempty"`
	Name        string        `json:"name,omitempty"`
	Address     string        `json:"address,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// Processing outcomes reported per event.
const (
	OutcomeReplied    = "replied"
	OutcomeDuplicate  = "duplicate"
	OutcomeOutOfOrder = "out_of_order"
	OutcomeStaleFlow  = "stale_flow"
	OutcomeReset      = "reset"
	OutcomeEscalated  = "escalated"
)

// Result summarizes how an inbound event was handled.
type Result struct {
	Outcome string          `json:"outcome"`
	Action  *OutboundAction `json:"action,omitempty"`
}
