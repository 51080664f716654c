package dialogue

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"courtside/models"
)

// interpreterTimeout bounds each fallback-interpreter call; the model tier is
// slow and fallible and must never stall an event past it.
const interpreterTimeout = 8 * time.Second

// HandleEvent runs one inbound event through the full pipeline: dedup,
// ordering watermark, reset, interpretation, decision, one fenced send and
// one session persist, in that order.
func (s *DefaultDialogueService) HandleEvent(ctx context.Context, ev models.InboundEvent) (*models.Result, error) {
	now := s.now()

	first, err := s.Dedup.MarkProcessed(ctx, ev.MessageID)
	if err != nil {
		// Fail open: a second reply is better than silence.
		s.Logger.Warn("dedup check failed, processing anyway",
			zap.String("messageId", ev.MessageID), zap.Error(err))
		first = true
	}
	if !first {
		s.Logger.Debug("dropping duplicate message",
			zap.String("userId", ev.UserID), zap.String("messageId", ev.MessageID))
		return &models.Result{Outcome: models.OutcomeDuplicate}, nil
	}

	token, err := s.Flow.Ensure(ctx, ev.UserID)
	if err != nil {
		s.Logger.Warn("flow token unavailable, sending unfenced",
			zap.String("userId", ev.UserID), zap.Error(err))
		token = ""
	}

	sess, err := s.Sessions.Get(ctx, ev.UserID)
	if err != nil {
		s.Logger.Error("failed to load session, starting fresh",
			zap.String("userId", ev.UserID), zap.Error(err))
	}
	if sess == nil {
		sess = models.NewSession(ev.UserID, ev.Channel)
	}

	if ev.Timestamp != 0 && ev.Timestamp < sess.LastMessageTS {
		s.Logger.Info("dropping out-of-order message",
			zap.String("userId", ev.UserID),
			zap.Int64("eventTs", ev.Timestamp), zap.Int64("watermark", sess.LastMessageTS))
		return &models.Result{Outcome: models.OutcomeOutOfOrder}, nil
	}
	if ev.Timestamp != 0 {
		sess.LastMessageTS = ev.Timestamp
	}

	if s.Heuristic.IsReset(ev.Text) {
		return s.handleReset(ctx, ev)
	}

	interp := s.Heuristic.Classify(ev.Text, now)
	if interp.Intent == models.IntentUnknown {
		ictx, cancel := context.WithTimeout(ctx, interpreterTimeout)
		fallback, ferr := s.Interpreter.Interpret(ictx, ev.Text, sess.Transcript)
		cancel()
		if ferr != nil {
			s.Logger.Warn("fallback interpretation failed",
				zap.String("userId", ev.UserID), zap.Error(ferr))
		} else if fallback != nil {
			interp = fallback
		}
	}

	action, outcome := s.decide(ctx, sess, ev, interp, now)

	sess.AppendTurn("user", ev.Text)
	if action.Body != "" {
		sess.AppendTurn("assistant", action.Body)
	}

	sent, err := s.deliver(ctx, ev.UserID, token, action)
	if err != nil {
		s.Logger.Error("failed to deliver reply",
			zap.String("userId", ev.UserID), zap.Error(err))
	}
	if !sent {
		// A newer turn owns the conversation; its state must not be overwritten.
		return &models.Result{Outcome: models.OutcomeStaleFlow}, nil
	}

	if err := s.Sessions.Save(ctx, sess); err != nil {
		s.Logger.Error("failed to persist session",
			zap.String("userId", ev.UserID), zap.Error(err))
	}

	return &models.Result{Outcome: outcome, Action: &action}, nil
}

// decide maps one interpretation onto the next outbound action, mutating the
// session along the way. Exactly one action comes back.
func (s *DefaultDialogueService) decide(ctx context.Context, sess *models.Session, ev models.InboundEvent, interp *models.Interpretation, now time.Time) (models.OutboundAction, string) {
	to := ev.UserID

	if interp.Intent != models.IntentUnknown && interp.Confidence < s.Config.ConfidenceThreshold {
		s.Logger.Info("interpretation below confidence threshold, offering escalation",
			zap.String("userId", to),
			zap.String("intent", interp.Intent), zap.Float64("confidence", interp.Confidence))
		return escalationOffer(to, "low interpretation confidence"), models.OutcomeEscalated
	}

	switch interp.Intent {
	case models.IntentEscalate:
		return escalateAction(to,
			"Entendido, aviso a una persona del club para que te atienda enseguida.",
			"user requested staff assistance"), models.OutcomeEscalated

	case models.IntentGreeting:
		return s.greetingReply(to), models.OutcomeReplied

	case models.IntentInfo:
		return s.infoReply(to), models.OutcomeReplied

	case models.IntentHistory:
		bookings, err := s.History.ListByUser(ctx, to)
		if err != nil {
			s.Logger.Error("failed to list booking history",
				zap.String("userId", to), zap.Error(err))
			return textAction(to, "No puedo consultar tus reservas ahora mismo. Inténtalo más tarde, por favor."), models.OutcomeReplied
		}
		return s.historyReply(to, bookings), models.OutcomeReplied

	case models.IntentAffirm:
		if sess.Pending != nil {
			return s.submitBooking(ctx, sess, to)
		}
		return s.advanceBooking(ctx, sess, to, interp.Entities, now)

	case models.IntentDeny:
		if sess.Pending != nil {
			sess.Pending = nil
			sess.Draft.Time = ""
			sess.Draft.Court = ""
			sess.AwaitingField = "time"
			if starts := s.cappedStarts(sess.StartTimes); len(starts) > 0 {
				return buttonsAction(to, "Sin problema. ¿Qué otra hora te vendría bien?", starts), models.OutcomeReplied
			}
			return textAction(to, "Sin problema. ¿A qué hora te vendría bien?"), models.OutcomeReplied
		}
		return textAction(to, "De acuerdo. Si quieres reservar, dime deporte, día y hora."), models.OutcomeReplied

	case models.IntentBook:
		return s.advanceBooking(ctx, sess, to, interp.Entities, now)
	}

	// Unknown intent. When the user's name was just requested, the free text
	// is the answer.
	if sess.NameRequested && sess.AwaitingField == "name" {
		first, last := interp.Entities.Name, interp.Entities.LastName
		if first == "" {
			first, last = splitName(ev.Text)
		}
		if first != "" {
			sess.Name = capitalize(first)
			sess.LastName = capitalize(last)
			sess.NameRequested = false
			sess.AwaitingField = ""
			return s.advanceBooking(ctx, sess, to, models.Entities{}, now)
		}
	}

	rctx, cancel := context.WithTimeout(ctx, interpreterTimeout)
	reply, err := s.Interpreter.Reply(rctx, ev.Text, sess.Transcript)
	cancel()
	if err != nil {
		s.Logger.Warn("free-form reply failed",
			zap.String("userId", to), zap.Error(err))
	}
	if strings.TrimSpace(reply) == "" {
		return fallbackReply(to), models.OutcomeReplied
	}
	return textAction(to, reply), models.OutcomeReplied
}

// handleReset rotates the flow token first so any in-flight turn for this
// user becomes stale, then wipes session and history, then acknowledges under
// the fresh token.
func (s *DefaultDialogueService) handleReset(ctx context.Context, ev models.InboundEvent) (*models.Result, error) {
	token, err := s.Flow.Reset(ctx, ev.UserID)
	if err != nil {
		s.Logger.Error("failed to rotate flow token",
			zap.String("userId", ev.UserID), zap.Error(err))
		token = ""
	}
	if err := s.Sessions.Delete(ctx, ev.UserID); err != nil {
		s.Logger.Error("failed to delete session",
			zap.String("userId", ev.UserID), zap.Error(err))
	}
	if err := s.History.Clear(ctx, ev.UserID); err != nil {
		s.Logger.Error("failed to clear booking history",
			zap.String("userId", ev.UserID), zap.Error(err))
	}

	action := resetReply(ev.UserID)
	if _, err := s.deliver(ctx, ev.UserID, token, action); err != nil {
		s.Logger.Error("failed to deliver reset acknowledgement",
			zap.String("userId", ev.UserID), zap.Error(err))
	}
	return &models.Result{Outcome: models.OutcomeReset, Action: &action}, nil
}

// deliver re-reads the flow token immediately before sending. A mismatch
// means a newer turn superseded this one: the send is dropped, not an error.
func (s *DefaultDialogueService) deliver(ctx context.Context, userID, token string, action models.OutboundAction) (bool, error) {
	current, err := s.Flow.Current(ctx, userID)
	if err != nil {
		s.Logger.Warn("flow token re-read failed, sending anyway",
			zap.String("userId", userID), zap.Error(err))
	} else if token != "" && current != "" && current != token {
		s.Logger.Info("suppressing reply computed under a superseded flow token",
			zap.String("userId", userID))
		return false, nil
	}
	return true, s.Sender.Send(ctx, action)
}

func (s *DefaultDialogueService) cappedStarts(starts []string) []string {
	if s.Config.MaxOptions > 0 && len(starts) > s.Config.MaxOptions {
		return starts[:s.Config.MaxOptions]
	}
	return starts
}

func splitName(text string) (first, last string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", ""
	}
	first = fields[0]
	if len(fields) > 1 {
		last = strings.Join(fields[1:], " ")
	}
	return first, last
}
