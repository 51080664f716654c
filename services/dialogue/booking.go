package dialogue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"courtside/models"
	"courtside/services/booking"
	"courtside/services/gateway"
)

// advanceBooking moves the draft one step forward: merge the new entities,
// ask for whatever is still missing, fetch availability once per (sport,
// date), and when a concrete slot is selected stage it for confirmation.
func (s *DefaultDialogueService) advanceBooking(ctx context.Context, sess *models.Session, to string, ent models.Entities, now time.Time) (models.OutboundAction, string) {
	prefix := ""
	if ent.DurationClamped {
		prefix = clampNotice(s.Config.MaxDuration)
	}

	s.mergeEntities(sess, ent)

	if sess.Draft.Sport == "" {
		sess.AwaitingField = "sport"
		return withPrefix(prefix, askSportReply(to, s.Config.Sports)), models.OutcomeReplied
	}
	if sess.Draft.Date == "" {
		sess.AwaitingField = "date"
		return withPrefix(prefix, askDateReply(to)), models.OutcomeReplied
	}

	if sess.RawSlots == nil {
		slots, err := s.fetchHours(ctx, sess, now)
		if err != nil {
			return backendDownReply(to), models.OutcomeReplied
		}
		if len(slots) == 0 {
			date := sess.Draft.Date
			sport := sess.Draft.Sport
			sess.Draft.Date = ""
			sess.InvalidateAvailability()
			sess.AwaitingField = "date"
			return withPrefix(prefix, noAvailabilityReply(to, sport, date)), models.OutcomeReplied
		}
		sess.RawSlots = slots
	}

	duration := sess.Draft.Duration
	if duration < 1 {
		duration = 1
	}
	options := booking.BuildOptions(sess.RawSlots, duration)
	sess.Options = options
	sess.StartTimes = booking.StartTimes(booking.CollapseByStart(options))

	if len(options) == 0 {
		sess.AwaitingField = "time"
		return withPrefix(prefix, textAction(to, noRunMessage(duration))), models.OutcomeReplied
	}

	if sess.Draft.Time == "" {
		sess.AwaitingField = "time"
		ranked := booking.RankByCloseness(booking.CollapseByStart(options), "", s.Config.MaxOptions)
		return withPrefix(prefix, offerTimesReply(to, sess.Draft.Sport, sess.Draft.Date, startsOf(ranked))), models.OutcomeReplied
	}

	opt, ok := matchOption(options, sess.Draft.Time)
	if !ok {
		desired := sess.Draft.Time
		sess.Draft.Time = ""
		sess.AwaitingField = "time"
		ranked := booking.RankByCloseness(booking.CollapseByStart(options), desired, s.Config.MaxOptions)
		return withPrefix(prefix, offerAlternativesReply(to, startsOf(ranked))), models.OutcomeReplied
	}
	sess.Draft.Time = opt.Start
	sess.Draft.Court = opt.Court

	if sess.Name == "" {
		if !sess.Found {
			profile, err := s.Gateway.GetUser(ctx, sess.UserID)
			if err != nil {
				s.Logger.Warn("user lookup failed, asking for the name instead",
					zap.String("userId", sess.UserID), zap.Error(err))
			} else if profile.Found {
				sess.Found = true
				sess.Name = profile.Name
				sess.LastName = profile.LastName
				sess.BackendUserID = profile.ID
			}
		}
		if sess.Name == "" {
			sess.NameRequested = true
			sess.AwaitingField = "name"
			return withPrefix(prefix, askNameReply(to)), models.OutcomeReplied
		}
	}

	sess.Pending = &models.PendingConfirmation{
		Sport:    sess.Draft.Sport,
		Date:     sess.Draft.Date,
		Time:     opt.Start,
		Times:    opt.Times,
		Court:    opt.Court,
		Name:     sess.Name,
		LastName: sess.LastName,
	}
	sess.AwaitingField = "confirmation"
	return withPrefix(prefix, confirmReply(to, sess.Pending)), models.OutcomeReplied
}

// submitBooking sends the staged confirmation to the backend. A slot conflict
// triggers a re-fetch and a re-offer that excludes the failed start time.
func (s *DefaultDialogueService) submitBooking(ctx context.Context, sess *models.Session, to string) (models.OutboundAction, string) {
	p := sess.Pending
	if p == nil {
		return s.advanceBooking(ctx, sess, to, models.Entities{}, s.now())
	}

	userType := "guest"
	if sess.Found {
		userType = "member"
	}
	req := gateway.BookingRequest{
		Phone:         sess.UserID,
		Date:          p.Date,
		Times:         p.Times,
		Court:         p.Court,
		Sport:         p.Sport,
		UserType:      userType,
		Name:          p.Name,
		LastName:      p.LastName,
		BackendUserID: sess.BackendUserID,
	}

	err := s.Gateway.ConfirmBooking(ctx, req)
	switch {
	case err == nil:
		booked := *p
		record := models.ConfirmedBooking{
			UserID:      sess.UserID,
			Sport:       p.Sport,
			Date:        p.Date,
			Time:        p.Time,
			Court:       p.Court,
			Name:        p.Name,
			LastName:    p.LastName,
			Status:      "confirmed",
			ConfirmedAt: s.now().UTC(),
		}
		if herr := s.History.Append(ctx, record); herr != nil {
			s.Logger.Error("failed to record booking history",
				zap.String("userId", sess.UserID), zap.Error(herr))
		}
		sess.ClearDraft()
		return bookedReply(to, &booked), models.OutcomeReplied

	case errors.Is(err, gateway.ErrSlotTaken):
		s.Logger.Info("slot conflict on confirmation, re-offering",
			zap.String("userId", sess.UserID),
			zap.String("date", p.Date), zap.String("time", p.Time))
		return s.reofferAfterConflict(ctx, sess, to, p.Time)

	default:
		s.Logger.Error("booking submission failed",
			zap.String("userId", sess.UserID), zap.Error(err))
		sess.Pending = nil
		sess.AwaitingField = "time"
		return bookingFailedReply(to), models.OutcomeReplied
	}
}

// reofferAfterConflict refreshes the availability snapshot and offers the
// remaining start times; the start that just failed is removed outright.
func (s *DefaultDialogueService) reofferAfterConflict(ctx context.Context, sess *models.Session, to, failed string) (models.OutboundAction, string) {
	sess.Pending = nil
	sess.Draft.Time = ""
	sess.Draft.Court = ""

	slots, err := s.fetchHours(ctx, sess, s.now())
	if err != nil {
		sess.InvalidateAvailability()
		return backendDownReply(to), models.OutcomeReplied
	}
	sess.RawSlots = slots

	duration := sess.Draft.Duration
	if duration < 1 {
		duration = 1
	}
	options := booking.BuildOptions(slots, duration)
	sess.Options = options

	failedHour, _ := hourOf(failed)
	kept := make([]models.BookingOption, 0, len(options))
	for _, opt := range booking.CollapseByStart(options) {
		if h, ok := hourOf(opt.Start); ok && h == failedHour {
			continue
		}
		kept = append(kept, opt)
	}
	sess.StartTimes = booking.StartTimes(kept)

	if len(kept) == 0 {
		sess.Draft.Date = ""
		sess.InvalidateAvailability()
		sess.AwaitingField = "date"
		return slotTakenReply(to, nil), models.OutcomeReplied
	}

	sess.AwaitingField = "time"
	ranked := booking.RankByCloseness(kept, failed, s.Config.MaxOptions)
	return slotTakenReply(to, startsOf(ranked)), models.OutcomeReplied
}

// mergeEntities folds newly extracted entities into the draft. A sport or
// date change invalidates the availability cache; a duration change keeps the
// raw slots but drops the derived options.
func (s *DefaultDialogueService) mergeEntities(sess *models.Session, ent models.Entities) {
	if ent.Sport != "" && ent.Sport != sess.Draft.Sport {
		sess.Draft.Sport = ent.Sport
		sess.InvalidateAvailability()
	}
	if ent.Date != "" && ent.Date != sess.Draft.Date {
		sess.Draft.Date = ent.Date
		sess.InvalidateAvailability()
	}
	if ent.Time != "" {
		sess.Draft.Time = ent.Time
		sess.Pending = nil
	}
	if ent.Duration > 0 && ent.Duration != sess.Draft.Duration {
		sess.Draft.Duration = ent.Duration
		sess.Options = nil
		sess.StartTimes = nil
		sess.Pending = nil
	}
	if ent.Name != "" && sess.Name == "" {
		sess.Name = capitalize(ent.Name)
		sess.LastName = capitalize(ent.LastName)
	}
}

func (s *DefaultDialogueService) fetchHours(ctx context.Context, sess *models.Session, now time.Time) ([]models.Slot, error) {
	currentHour := 0
	if sess.Draft.Date == now.Format("2006-01-02") {
		currentHour = now.Hour()
	}
	slots, err := s.Gateway.GetHours(ctx, sess.Draft.Sport, sess.Draft.Date, currentHour)
	if err != nil {
		s.Logger.Error("availability fetch failed",
			zap.String("userId", sess.UserID),
			zap.String("sport", sess.Draft.Sport), zap.String("date", sess.Draft.Date),
			zap.Error(err))
		return nil, err
	}
	return slots, nil
}

// matchOption finds the collapsed option whose start hour matches the
// requested time.
func matchOption(options []models.BookingOption, desired string) (models.BookingOption, bool) {
	want, ok := hourOf(desired)
	if !ok {
		return models.BookingOption{}, false
	}
	for _, opt := range booking.CollapseByStart(options) {
		if h, ok := hourOf(opt.Start); ok && h == want {
			return opt, true
		}
	}
	return models.BookingOption{}, false
}

func hourOf(t string) (int, bool) {
	if idx := strings.Index(t, ":"); idx >= 0 {
		t = t[:idx]
	}
	h, err := strconv.Atoi(strings.TrimSpace(t))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

func startsOf(options []models.BookingOption) []string {
	starts := make([]string, 0, len(options))
	for _, opt := range options {
		starts = append(starts, opt.Start)
	}
	return starts
}

func withPrefix(prefix string, action models.OutboundAction) models.OutboundAction {
	if prefix != "" && action.Body != "" {
		action.Body = prefix + action.Body
	}
	return action
}

func noRunMessage(duration int) string {
	if duration <= 1 {
		return "No quedan horas libres ese día. ¿Quieres probar otra fecha?"
	}
	return "No hay " + strconv.Itoa(duration) + " horas seguidas libres ese día. ¿Quieres probar con menos horas u otra fecha?"
}
