// Package dialogue implements the per-event state machine: it loads the
// session, applies interpreted intent and entities, decides the next action,
// mutates and persists the session, and emits exactly one outbound action
// fenced by the flow token.
package dialogue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"courtside/config"
	historyRepo "courtside/database/repository/history"
	"courtside/models"
	"courtside/services/gateway"
	"courtside/services/intelligence"
	"courtside/services/session"
)

// AvailabilityGateway is the backend surface the orchestrator needs.
type AvailabilityGateway interface {
	GetUser(ctx context.Context, phone string) (*gateway.UserProfile, error)
	GetHours(ctx context.Context, sport, date string, currentHour int) ([]models.Slot, error)
	ConfirmBooking(ctx context.Context, req gateway.BookingRequest) error
}

// Sender delivers one outbound action through the channel adapter.
type Sender interface {
	Send(ctx context.Context, action models.OutboundAction) error
}

// DialogueService processes normalized inbound events.
type DialogueService interface {
	HandleEvent(ctx context.Context, event models.InboundEvent) (*models.Result, error)
}

// DefaultDialogueService implements DialogueService.
type DefaultDialogueService struct {
	Config      *config.Config
	Logger      *zap.Logger
	Sessions    *session.Store
	Dedup       *session.Dedup
	Flow        *session.FlowGuard
	Gateway     AvailabilityGateway
	Heuristic   *intelligence.Heuristic
	Interpreter intelligence.Interpreter
	History     historyRepo.Repository
	Sender      Sender
	Location    *time.Location

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func (s *DefaultDialogueService) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.Location)
	}
	return time.Now().In(s.Location)
}
