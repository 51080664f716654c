package models

// SessionSchemaVersion is the current session layout version. Sessions loaded
// under an older version are migrated in place before any logic touches them.
const SessionSchemaVersion = 2

// TranscriptLimit bounds the conversation transcript kept as interpreter context.
const TranscriptLimit = 12

// Turn is one exchanged message in the conversation transcript.
type Turn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// BookingDraft is the in-progress booking being assembled turn by turn.
type BookingDraft struct {
	Sport    string `json:"sport,omitempty"`
	Date     string `json:"date,omitempty"` // 2006-01-02
	Time     string `json:"time,omitempty"` // HH:MM
	Duration int    `json:"duration,omitempty"`
	Court    string `json:"court,omitempty"`
}

// PendingConfirmation is a candidate slot awaiting an explicit yes/no.
type PendingConfirmation struct {
	Sport    string   `json:"sport"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Times    []string `json:"times"`
	Court    string   `json:"court"`
	Name     string   `json:"name,omitempty"`
	LastName string   `json:"lastName,omitempty"`
}

// Session is the per-user conversation state, keyed by the user identifier.
// It is mutated exclusively by the dialogue orchestrator within one event's
// processing and persisted by the session store.
type Session struct {
	SchemaVersion int    `json:"schemaVersion"`
	UserID        string `json:"userId"`
	Channel       string `json:"channel"`

	Draft BookingDraft `json:"draft"`

	// Known identity.
	Name          string `json:"name,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Found         bool   `json:"found"`
	BackendUserID string `json:"backendUserId,omitempty"`

	// Derived availability cache, invalidated whenever sport or date changes.
	RawSlots   []Slot          `json:"rawSlots,omitempty"`
	Options    []BookingOption `json:"options,omitempty"`
	StartTimes []string        `json:"startTimes,omitempty"`

	Transcript []Turn `json:"transcript,omitempty"`

	// Control flags.
	AwaitingField string               `json:"awaitingField,omitempty"`
	LastMessageTS int64                `json:"lastMessageTs"`
	Pending       *PendingConfirmation `json:"pending,omitempty"`
	NameRequested bool                 `json:"nameRequested,omitempty"`
}

// NewSession returns an empty session for a first-contact user.
func NewSession(userID, channel string) *Session {
	return &Session{
		SchemaVersion: SessionSchemaVersion,
		UserID:        userID,
		Channel:       channel,
	}
}

// Migrate upgrades a session loaded under an older field layout so new logic
// never sees missing defaults. Idempotent.
func (s *Session) Migrate() {
	if s.SchemaVersion >= SessionSchemaVersion {
		return
	}
	// Version 1 stored no schema version and allowed a zero duration on a
	// draft that already had a time selected.
	if s.Draft.Time != "" && s.Draft.Duration == 0 {
		s.Draft.Duration = 1
	}
	if len(s.Transcript) > TranscriptLimit {
		s.Transcript = s.Transcript[len(s.Transcript)-TranscriptLimit:]
	}
	s.SchemaVersion = SessionSchemaVersion
}

// AppendTurn records one transcript turn, keeping the transcript bounded.
func (s *Session) AppendTurn(role, text string) {
	s.Transcript = append(s.Transcript, Turn{Role: role, Text: text})
	if len(s.Transcript) > TranscriptLimit {
		s.Transcript = s.Transcript[len(s.Transcript)-TranscriptLimit:]
	}
}

// InvalidateAvailability drops the cached slots and derived options. Called
// whenever sport or date changes.
func (s *Session) InvalidateAvailability() {
	s.RawSlots = nil
	s.Options = nil
	s.StartTimes = nil
	s.Draft.Court = ""
	s.Pending = nil
}

// ClearDraft resets the booking draft and its derived cache after a completed
// booking, keeping the known identity.
func (s *Session) ClearDraft() {
	s.Draft = BookingDraft{}
	s.InvalidateAvailability()
	s.AwaitingField = ""
	s.NameRequested = false
}
