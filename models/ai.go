package models

// Intents produced by the interpreter tiers.
const (
	IntentReset    = "reset"
	IntentGreeting = "greeting"
	IntentInfo     = "info"
	IntentHistory  = "history"
	IntentBook     = "book"
	IntentAffirm   = "affirm"
	IntentDeny     = "deny"
	IntentEscalate = "escalate"
	IntentUnknown  = "unknown"
)

// Entities are the structured fields extracted from one user message.
type Entities struct {
	Sport           string `json:"sport,omitempty"`
	Date            string `json:"date,omitempty"` // 2006-01-02
	Time            string `json:"time,omitempty"` // HH:MM
	Duration        int    `json:"duration,omitempty"`
	DurationClamped bool   `json:"durationClamped,omitempty"`
	Name            string `json:"name,omitempty"`
	LastName        string `json:"lastName,omitempty"`
}

// Interpretation is the opaque interpreter output: an intent, extracted
// entities and the decision confidence. Deterministic matches carry
// confidence 1.0; model-backed interpretations carry whatever the model
// reports.
type Interpretation struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
}
