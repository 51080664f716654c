package dialogue

import (
	"context"
	"strconv"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courtside/config"
	"courtside/models"
	"courtside/services/gateway"
	"courtside/services/intelligence"
	"courtside/services/session"
)

type fakeGateway struct {
	profile      *gateway.UserProfile
	hours        []models.Slot
	laterHours   []models.Slot
	hoursErr     error
	confirmErrs  []error
	hoursCalls   int
	confirmCalls int
	lastSport    string
	lastDate     string
	lastReq      gateway.BookingRequest
	onHours      func()
}

func (f *fakeGateway) GetUser(ctx context.Context, phone string) (*gateway.UserProfile, error) {
	if f.profile != nil {
		return f.profile, nil
	}
	return &gateway.UserProfile{Found: false}, nil
}

func (f *fakeGateway) GetHours(ctx context.Context, sport, date string, currentHour int) ([]models.Slot, error) {
	f.hoursCalls++
	f.lastSport, f.lastDate = sport, date
	if f.onHours != nil {
		f.onHours()
	}
	if f.hoursErr != nil {
		return nil, f.hoursErr
	}
	if f.hoursCalls > 1 && f.laterHours != nil {
		return f.laterHours, nil
	}
	return f.hours, nil
}

func (f *fakeGateway) ConfirmBooking(ctx context.Context, req gateway.BookingRequest) error {
	f.confirmCalls++
	f.lastReq = req
	if len(f.confirmErrs) > 0 {
		err := f.confirmErrs[0]
		f.confirmErrs = f.confirmErrs[1:]
		return err
	}
	return nil
}

type fakeSender struct {
	sent []models.OutboundAction
}

func (f *fakeSender) Send(ctx context.Context, action models.OutboundAction) error {
	f.sent = append(f.sent, action)
	return nil
}

func (f *fakeSender) last() models.OutboundAction {
	return f.sent[len(f.sent)-1]
}

type fakeHistory struct {
	records []models.ConfirmedBooking
	cleared int
}

func (f *fakeHistory) Append(ctx context.Context, b models.ConfirmedBooking) error {
	f.records = append(f.records, b)
	return nil
}

func (f *fakeHistory) ListByUser(ctx context.Context, userID string) ([]models.ConfirmedBooking, error) {
	return f.records, nil
}

func (f *fakeHistory) Clear(ctx context.Context, userID string) error {
	f.cleared++
	f.records = nil
	return nil
}

type fakeInterpreter struct {
	interp *models.Interpretation
	reply  string
}

func (f *fakeInterpreter) Interpret(ctx context.Context, text string, transcript []models.Turn) (*models.Interpretation, error) {
	if f.interp != nil {
		return f.interp, nil
	}
	return &models.Interpretation{Intent: models.IntentUnknown}, nil
}

func (f *fakeInterpreter) Reply(ctx context.Context, text string, transcript []models.Turn) (string, error) {
	return f.reply, nil
}

type testEnv struct {
	svc    *DefaultDialogueService
	gw     *fakeGateway
	sender *fakeSender
	hist   *fakeHistory
	interp *fakeInterpreter
	flow   *session.FlowGuard
	store  *session.Store
	seq    int64
}

const testUser = "34600111222"

// Reference instant: Wednesday 2025-06-11, 10:00.
var testNow = time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zap.NewNop()

	cfg := &config.Config{
		ClubName:            "Club Test",
		Sports:              []string{"padel", "tenis"},
		MaxDuration:         3,
		MaxOptions:          3,
		ConfidenceThreshold: 0.55,
		EscalationKeywords:  []string{"queja"},
	}

	env := &testEnv{
		gw:     &fakeGateway{},
		sender: &fakeSender{},
		hist:   &fakeHistory{},
		interp: &fakeInterpreter{},
		flow:   session.NewFlowGuard(client),
		store:  session.NewStore(client, logger),
	}
	env.svc = &DefaultDialogueService{
		Config:      cfg,
		Logger:      logger,
		Sessions:    env.store,
		Dedup:       session.NewDedup(client),
		Flow:        env.flow,
		Gateway:     env.gw,
		Heuristic:   intelligence.NewHeuristic(cfg.Sports, cfg.MaxDuration, cfg.EscalationKeywords, time.UTC),
		Interpreter: env.interp,
		History:     env.hist,
		Sender:      env.sender,
		Location:    time.UTC,
		Now:         func() time.Time { return testNow },
	}
	return env
}

// say delivers one user message with a fresh id and a monotonic timestamp.
func (e *testEnv) say(t *testing.T, text string) *models.Result {
	t.Helper()
	e.seq++
	res, err := e.svc.HandleEvent(context.Background(), models.InboundEvent{
		Channel:   "whatsapp",
		UserID:    testUser,
		Text:      text,
		MessageID: "msg-" + strconv.FormatInt(e.seq, 10),
		Timestamp: e.seq,
	})
	require.NoError(t, err)
	return res
}

func courtSlots(court string, hours ...string) []models.Slot {
	slots := make([]models.Slot, 0, len(hours))
	for _, h := range hours {
		slots = append(slots, models.Slot{Court: court, Time: h})
	}
	return slots
}

func TestBookingHappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00", "15:00", "16:00")
	env.gw.profile = &gateway.UserProfile{Found: true, Name: "Ana", LastName: "García", ID: "u-1"}

	res := env.say(t, "quiero reservar padel mañana")
	require.Equal(t, models.OutcomeReplied, res.Outcome)
	assert.Equal(t, models.ActionButtons, env.sender.last().Type)
	assert.Contains(t, env.sender.last().Options, "14:00")

	res = env.say(t, "a las 14")
	require.Equal(t, models.OutcomeReplied, res.Outcome)
	assert.Equal(t, 1, env.gw.hoursCalls, "availability is cached across turns")
	assert.Contains(t, env.sender.last().Body, "¿Confirmo")
	assert.Contains(t, env.sender.last().Body, "12 de junio")
	assert.Equal(t, []string{"Sí", "No"}, env.sender.last().Options)

	res = env.say(t, "si")
	require.Equal(t, models.OutcomeReplied, res.Outcome)
	assert.Contains(t, env.sender.last().Body, "Reserva confirmada")

	require.Equal(t, 1, env.gw.confirmCalls)
	assert.Equal(t, "member", env.gw.lastReq.UserType)
	assert.Equal(t, "2025-06-12", env.gw.lastReq.Date)
	assert.Equal(t, []string{"14:00"}, env.gw.lastReq.Times)
	assert.Equal(t, "u-1", env.gw.lastReq.BackendUserID)

	require.Len(t, env.hist.records, 1)
	assert.Equal(t, "confirmed", env.hist.records[0].Status)

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Empty(t, sess.Draft.Sport, "draft cleared after the booking")
	assert.Nil(t, sess.Pending)
}

func TestUnknownUserIsAskedForName(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00")
	env.gw.profile = &gateway.UserProfile{Found: false}

	env.say(t, "reservar padel mañana a las 14")
	assert.Contains(t, env.sender.last().Body, "nombre")

	env.say(t, "Ana García")
	assert.Contains(t, env.sender.last().Body, "¿Confirmo")

	env.say(t, "si")
	assert.Equal(t, "guest", env.gw.lastReq.UserType)
	assert.Equal(t, "Ana", env.gw.lastReq.Name)
	assert.Equal(t, "García", env.gw.lastReq.LastName)
}

func TestAccentedNameSurvivesCapture(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00")
	env.gw.profile = &gateway.UserProfile{Found: false}

	env.say(t, "reservar padel mañana a las 14")
	env.say(t, "ángel garcía")
	env.say(t, "si")

	assert.Equal(t, "Ángel", env.gw.lastReq.Name)
	assert.Equal(t, "García", env.gw.lastReq.LastName)
	assert.True(t, utf8.ValidString(env.gw.lastReq.Name))

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(sess.Name))

	require.Len(t, env.hist.records, 1)
	assert.True(t, utf8.ValidString(env.hist.records[0].Name))
}

func TestCapitalizeFirstRune(t *testing.T) {
	assert.Equal(t, "Ángel", capitalize("ángel"))
	assert.Equal(t, "Íñigo", capitalize("íñigo"))
	assert.Equal(t, "Ana", capitalize("ana"))
	assert.Equal(t, "", capitalize(""))
	for _, s := range []string{"ángel", "óscar", "álvaro"} {
		assert.True(t, utf8.ValidString(capitalize(s)), "capitalize(%q)", s)
	}
}

func TestSlotConflictReoffersWithoutFailedTime(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00", "15:00", "16:00")
	env.gw.laterHours = courtSlots("Pista 1", "15:00", "16:00")
	env.gw.profile = &gateway.UserProfile{Found: true, Name: "Ana", ID: "u-1"}
	env.gw.confirmErrs = []error{gateway.ErrSlotTaken}

	env.say(t, "reservar padel mañana a las 14")
	res := env.say(t, "si")

	require.Equal(t, models.OutcomeReplied, res.Outcome)
	last := env.sender.last()
	assert.Contains(t, last.Body, "se acaba de ocupar")
	assert.NotContains(t, last.Options, "14:00")
	require.NotEmpty(t, last.Options)
	assert.Equal(t, "15:00", last.Options[0], "closest remaining start is offered first")

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Empty(t, sess.Draft.Time)

	// Accepting the re-offer completes the booking.
	env.say(t, "a las 15")
	env.say(t, "si")
	assert.Equal(t, []string{"15:00"}, env.gw.lastReq.Times)
	assert.Len(t, env.hist.records, 1)
}

func TestDurationIsClampedWithNotice(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00", "15:00", "16:00", "17:00")
	env.gw.profile = &gateway.UserProfile{Found: true, Name: "Ana", ID: "u-1"}

	env.say(t, "reserva de padel mañana a las 14 durante 5 horas")

	last := env.sender.last()
	assert.Contains(t, last.Body, "máximo de 3 horas")
	assert.Contains(t, last.Body, "¿Confirmo")

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, sess.Pending)
	assert.Equal(t, []string{"14:00", "15:00", "16:00"}, sess.Pending.Times)
}

func TestDuplicateMessageIsDroppedSilently(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00")

	ev := models.InboundEvent{
		Channel: "whatsapp", UserID: testUser,
		Text: "hola", MessageID: "dup-1", Timestamp: 1,
	}
	res, err := env.svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeReplied, res.Outcome)
	sentBefore := len(env.sender.sent)

	res, err = env.svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, res.Outcome)
	assert.Len(t, env.sender.sent, sentBefore)
}

func TestOutOfOrderMessageIsDropped(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.HandleEvent(context.Background(), models.InboundEvent{
		Channel: "whatsapp", UserID: testUser, Text: "hola", MessageID: "ord-1", Timestamp: 100,
	})
	require.NoError(t, err)
	sentBefore := len(env.sender.sent)

	res, err := env.svc.HandleEvent(context.Background(), models.InboundEvent{
		Channel: "whatsapp", UserID: testUser, Text: "reservar padel", MessageID: "ord-2", Timestamp: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOutOfOrder, res.Outcome)
	assert.Len(t, env.sender.sent, sentBefore)
}

func TestResetWipesStateAndRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00")
	env.hist.records = []models.ConfirmedBooking{{UserID: testUser, Sport: "padel"}}

	env.say(t, "reservar padel mañana")
	before, err := env.flow.Current(context.Background(), testUser)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	res := env.say(t, "reset")
	assert.Equal(t, models.OutcomeReset, res.Outcome)
	assert.Contains(t, env.sender.last().Body, "borrado")

	after, err := env.flow.Current(context.Background(), testUser)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, 1, env.hist.cleared)
	assert.Empty(t, env.hist.records)
}

func TestReplySuppressedWhenTokenRotatesMidTurn(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00")
	// A reset lands while this turn is fetching availability.
	env.gw.onHours = func() {
		_, err := env.flow.Reset(context.Background(), testUser)
		require.NoError(t, err)
	}

	res := env.say(t, "reservar padel mañana")
	assert.Equal(t, models.OutcomeStaleFlow, res.Outcome)
	assert.Empty(t, env.sender.sent)

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, sess, "a stale turn must not persist its session")
}

func TestSportChangeInvalidatesAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00", "15:00")

	env.say(t, "reservar padel mañana")
	require.Equal(t, 1, env.gw.hoursCalls)
	assert.Equal(t, "padel", env.gw.lastSport)

	env.say(t, "mejor tenis")
	assert.Equal(t, 2, env.gw.hoursCalls, "sport change must re-fetch availability")
	assert.Equal(t, "tenis", env.gw.lastSport)
}

func TestLowConfidenceInterpretationEscalates(t *testing.T) {
	env := newTestEnv(t)
	env.interp.interp = &models.Interpretation{Intent: models.IntentBook, Confidence: 0.3}

	res := env.say(t, "xyzzy plugh")
	assert.Equal(t, models.OutcomeEscalated, res.Outcome)
	assert.Equal(t, models.ActionEscalate, env.sender.last().Type)
}

func TestExplicitEscalationKeyword(t *testing.T) {
	env := newTestEnv(t)

	res := env.say(t, "quiero poner una queja")
	assert.Equal(t, models.OutcomeEscalated, res.Outcome)
	assert.Equal(t, models.ActionEscalate, env.sender.last().Type)
}

func TestHistoryListing(t *testing.T) {
	env := newTestEnv(t)
	env.hist.records = []models.ConfirmedBooking{
		{UserID: testUser, Sport: "padel", Date: "2025-06-12", Time: "14:00", Court: "Pista 1"},
	}

	res := env.say(t, "mis reservas")
	require.Equal(t, models.OutcomeReplied, res.Outcome)
	last := env.sender.last()
	assert.Equal(t, models.ActionList, last.Type)
	require.Len(t, last.Sections, 1)
	assert.Len(t, last.Sections[0].Rows, 1)
	assert.Contains(t, last.Sections[0].Rows[0], "12 de junio")
}

func TestNoAvailabilityAsksForAnotherDate(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = nil

	env.say(t, "reservar padel mañana")
	assert.Contains(t, env.sender.last().Body, "no queda disponibilidad")

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, sess.Draft.Date, "the unavailable date is cleared")
	assert.Equal(t, "padel", sess.Draft.Sport, "the sport survives")
}

func TestDenyClearsPendingAndReoffers(t *testing.T) {
	env := newTestEnv(t)
	env.gw.hours = courtSlots("Pista 1", "14:00", "15:00")
	env.gw.profile = &gateway.UserProfile{Found: true, Name: "Ana", ID: "u-1"}

	env.say(t, "reservar padel mañana a las 14")
	res := env.say(t, "no")

	require.Equal(t, models.OutcomeReplied, res.Outcome)
	assert.Contains(t, env.sender.last().Body, "Sin problema")

	sess, err := env.store.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Empty(t, sess.Draft.Time)
}

func TestGreetingMentionsClub(t *testing.T) {
	env := newTestEnv(t)

	res := env.say(t, "hola")
	require.Equal(t, models.OutcomeReplied, res.Outcome)
	assert.Contains(t, env.sender.last().Body, "Club Test")
}
