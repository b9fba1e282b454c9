package server

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/lot"
	"github.com/Spok95/bpark/internal/domain/orders"
	"github.com/Spok95/bpark/internal/domain/sessions"
	"github.com/Spok95/bpark/internal/domain/subscribers"
)

type fixture struct {
	d        *Dispatcher
	subs     *fakeSubs
	sessions *fakeSessions
	orders   *fakeOrders
	activity *fakeActivity
	notifier *fakeNotifier
	now      time.Time
}

func newFixture(t *testing.T, subs ...subscribers.Subscriber) *fixture {
	t.Helper()
	f := &fixture{
		subs:     newFakeSubs(subs...),
		sessions: newFakeSessions(),
		activity: &fakeActivity{},
		notifier: &fakeNotifier{},
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.orders = newFakeOrders(f.sessions)
	log := slog.New(slog.DiscardHandler)
	f.d = NewDispatcher(log, f.subs, f.sessions, f.orders, f.activity, f.notifier, time.UTC, t.TempDir())
	f.d.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) login(t *testing.T, code string) {
	t.Helper()
	resp := f.d.Handle(context.Background(), "conn-1", "LOGIN:"+code)
	require.Equal(t, "LOGIN_SUCCESS", resp.Text)
}

func sub(code string) subscribers.Subscriber {
	return subscribers.Subscriber{Code: code, Name: "Dana", Email: "dana@example.com"}
}

func TestSplitCommand(t *testing.T) {
	cmd, payload := splitCommand("login:SUB1")
	assert.Equal(t, "LOGIN", cmd)
	assert.Equal(t, "SUB1", payload)

	cmd, payload = splitCommand("FUTURE_PARK_REQUEST;2026-03-12;14:00")
	assert.Equal(t, "FUTURE_PARK_REQUEST", cmd)
	assert.Equal(t, "2026-03-12;14:00", payload)

	cmd, payload = splitCommand("SHOW_SLOTS")
	assert.Equal(t, "SHOW_SLOTS", cmd)
	assert.Empty(t, payload)
}

func TestCommandsRequireLogin(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	for _, line := range []string{
		"PARK_REQUEST",
		"RELEASE_VEHICLE:ABC123",
		"EXTEND_PARKING;2",
		"FUTURE_PARK_REQUEST;2026-03-12;14:00",
		"PARK_WITH_RESERVATION;ABCD1234",
		"GET_MAX_EXTENSION",
		"FORGOT_CONFIRMATION_CODE",
	} {
		resp := f.d.Handle(context.Background(), "anon", line)
		assert.Contains(t, resp.Text, "You are not logged in.", "line %q", line)
	}
}

func TestLogin(t *testing.T) {
	frozen := sub("ICY")
	frozen.Frozen = true
	f := newFixture(t, sub("SUB1"), frozen)

	resp := f.d.Handle(context.Background(), "c1", "LOGIN:NOBODY")
	assert.Equal(t, "LOGIN_FAILED:Subscriber not found.", resp.Text)

	resp = f.d.Handle(context.Background(), "c1", "LOGIN:ICY")
	assert.Equal(t, "LOGIN_FAILED:Your account is frozen. Please contact customer support.", resp.Text)
	assert.True(t, f.activity.has(activity.TypeLoginFrozen))

	resp = f.d.Handle(context.Background(), "c1", "LOGIN:SUB1")
	assert.Equal(t, "LOGIN_SUCCESS", resp.Text)
	require.NotNil(t, resp.Rows)
	assert.True(t, f.activity.has(activity.TypeLogin))
}

func TestDisconnectDropsLogin(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")

	f.d.Disconnect("conn-1")
	resp := f.d.Handle(context.Background(), "conn-1", "PARK_REQUEST")
	assert.Equal(t, "PARK_FAILED;You are not logged in.", resp.Text)
}

func TestParkAssignsFreeSlot(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")

	resp := f.d.Handle(context.Background(), "conn-1", "PARK_REQUEST")
	var slot int
	var code string
	_, err := fmt.Sscanf(resp.Text, "PARK_CONFIRMED:%d:%s", &slot, &code)
	require.NoError(t, err, "reply was %q", resp.Text)
	assert.GreaterOrEqual(t, slot, 1)
	assert.LessOrEqual(t, slot, lot.Capacity)
	assert.Len(t, code, 6)

	sess, err := f.sessions.GetBySubscriber(context.Background(), "SUB1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, f.now.Add(lot.ReservationDuration), sess.EndsAt)

	// One active session per subscriber.
	resp = f.d.Handle(context.Background(), "conn-1", "PARK_REQUEST")
	assert.Equal(t, "PARK_FAILED:You already have an active parking session.", resp.Text)
	assert.True(t, f.activity.has(activity.TypeParkDenied))
}

func TestParkFull(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	for s := 1; s <= lot.Capacity; s++ {
		require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
			Slot: s, ConfirmationCode: fmt.Sprintf("C%03d", s), SubscriberCode: fmt.Sprintf("X%03d", s),
		}))
	}
	resp := f.d.Handle(context.Background(), "conn-1", "PARK_REQUEST")
	assert.Equal(t, "PARK_FULL", resp.Text)
}

func TestReleaseOnTime(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 7, ConfirmationCode: "CODE07", SubscriberCode: "SUB1",
		StartedAt: f.now.Add(-time.Hour), EndsAt: f.now.Add(3 * time.Hour),
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "RELEASE_VEHICLE:CODE07")
	assert.Equal(t, "RELEASE_SUCCESS:7", resp.Text)
	assert.True(t, f.activity.has(activity.TypeReleaseVehicle))
	assert.False(t, f.activity.has(activity.TypeLateRetrieval))

	got, err := f.subs.GetByCode(context.Background(), "SUB1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.LateCount)
	assert.Empty(t, f.sessions.byCode)
}

func TestReleaseLateAppliesPenaltyAndFreezes(t *testing.T) {
	s := sub("SUB1")
	s.LateCount = 1
	f := newFixture(t, s)
	f.login(t, "SUB1")
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 7, ConfirmationCode: "CODE07", SubscriberCode: "SUB1",
		StartedAt: f.now.Add(-5 * time.Hour), EndsAt: f.now.Add(-20 * time.Minute),
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "RELEASE_VEHICLE:CODE07")
	assert.Equal(t, "RELEASE_SUCCESS:7", resp.Text)
	assert.Equal(t, 1, f.activity.count(activity.TypeLateRetrieval))

	got, err := f.subs.GetByCode(context.Background(), "SUB1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.LateCount)
	assert.True(t, got.Frozen)
	assert.Equal(t, 1, f.notifier.count("frozen"))
	assert.Zero(t, f.notifier.count("late"))
	assert.Empty(t, f.sessions.byCode)
}

func TestReleaseWrongOwner(t *testing.T) {
	f := newFixture(t, sub("SUB1"), sub("SUB2"))
	f.login(t, "SUB1")
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 3, ConfirmationCode: "OTHER1", SubscriberCode: "SUB2",
		StartedAt: f.now, EndsAt: f.now.Add(4 * time.Hour),
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "RELEASE_VEHICLE:OTHER1")
	assert.Equal(t, "RELEASE_FAILED:This confirmation code does not belong to your account.", resp.Text)
	assert.True(t, f.activity.has(activity.TypeReleaseDenied))
	assert.Len(t, f.sessions.byCode, 1)
}

func TestExtendRespectsBudgetAndReservations(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	started := f.now.Add(-time.Hour)
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 12, ConfirmationCode: "CODE12", SubscriberCode: "SUB1",
		StartedAt: started, EndsAt: started.Add(4 * time.Hour),
	}))
	// A reservation 3 hours past the current deadline clips the 4h budget.
	require.NoError(t, f.orders.Insert(context.Background(), orders.Order{
		ConfirmationCode: "RES00001", SubscriberCode: "SUB2",
		ScheduledAt: started.Add(7 * time.Hour), Slot: 12,
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "GET_MAX_EXTENSION")
	assert.Equal(t, "MAX_EXTENSION_RESULT:3", resp.Text)

	resp = f.d.Handle(context.Background(), "conn-1", "EXTEND_PARKING;5")
	assert.Equal(t, "EXTEND_FAILED;You can extend by a maximum of 3 hour(s).", resp.Text)

	resp = f.d.Handle(context.Background(), "conn-1", "EXTEND_PARKING;3")
	assert.Equal(t, "EXTEND_SUCCESS;Your parking has been extended by 3 hours.", resp.Text)
	sess, _ := f.sessions.GetBySubscriber(context.Background(), "SUB1")
	assert.Equal(t, started.Add(7*time.Hour), sess.EndsAt)
}

func TestExtendExpiredSessionHardBlocked(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 12, ConfirmationCode: "CODE12", SubscriberCode: "SUB1",
		StartedAt: f.now.Add(-5 * time.Hour), EndsAt: f.now.Add(-time.Hour),
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "EXTEND_PARKING;1")
	assert.Equal(t, "EXTEND_FAILED;Cannot extend, your parking session has expired.", resp.Text)
	assert.True(t, f.activity.has(activity.TypeExtendDenied))
}

func TestExtendInvalidHours(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 12, ConfirmationCode: "CODE12", SubscriberCode: "SUB1",
		StartedAt: f.now, EndsAt: f.now.Add(4 * time.Hour),
	}))

	for _, payload := range []string{"zero", "0", "-2"} {
		resp := f.d.Handle(context.Background(), "conn-1", "EXTEND_PARKING;"+payload)
		assert.Equal(t, "EXTEND_FAILED;Invalid number of hours.", resp.Text)
	}
}

func TestFutureParkValidatesWindow(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")

	tooSoon := f.now.Add(23 * time.Hour)
	resp := f.d.Handle(context.Background(), "conn-1",
		"FUTURE_PARK_REQUEST;"+tooSoon.Format("2006-01-02")+";"+tooSoon.Format("15:04"))
	assert.Equal(t, "FUTURE_PARK_FAILED;Future booking must be at least 24 hours from now.", resp.Text)

	tooFar := f.now.Add(8 * 24 * time.Hour)
	resp = f.d.Handle(context.Background(), "conn-1",
		"FUTURE_PARK_REQUEST;"+tooFar.Format("2006-01-02")+";"+tooFar.Format("15:04"))
	assert.Equal(t, "FUTURE_PARK_FAILED;Future booking cannot be more than 7 days from now.", resp.Text)

	assert.Empty(t, f.orders.byCode, "rejected bookings must not persist")
	assert.Equal(t, 2, f.activity.count(activity.TypeFutureParkFail))
}

func TestFutureParkSuccess(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")

	start := f.now.Add(48 * time.Hour)
	resp := f.d.Handle(context.Background(), "conn-1",
		"FUTURE_PARK_REQUEST;"+start.Format("2006-01-02")+";"+start.Format("15:04"))
	require.Contains(t, resp.Text, "FUTURE_PARK_SUCCESS;")

	require.Len(t, f.orders.byCode, 1)
	for code, o := range f.orders.byCode {
		assert.Len(t, code, 8)
		assert.Equal(t, "SUB1", o.SubscriberCode)
		assert.Equal(t, start.Format("2006-01-02 15:04"), o.ScheduledAt.Format("2006-01-02 15:04"))
	}
	assert.Equal(t, 1, f.notifier.count("confirmed"))
}

func TestFutureParkCapReached(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	for i := 0; i < lot.FutureOrderCap; i++ {
		require.NoError(t, f.orders.Insert(context.Background(), orders.Order{
			ConfirmationCode: fmt.Sprintf("RES%05d", i), SubscriberCode: "OTHER",
			ScheduledAt: f.now.Add(48 * time.Hour), Slot: i + 1,
		}))
	}

	start := f.now.Add(72 * time.Hour)
	resp := f.d.Handle(context.Background(), "conn-1",
		"FUTURE_PARK_REQUEST;"+start.Format("2006-01-02")+";"+start.Format("15:04"))
	assert.Equal(t, "FUTURE_PARK_FAILED;Future reservations are currently full. Please try parking upon arrival.", resp.Text)
	assert.Len(t, f.orders.byCode, lot.FutureOrderCap)
}

func TestClaimTooEarly(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.orders.Insert(context.Background(), orders.Order{
		ConfirmationCode: "RES00001", SubscriberCode: "SUB1",
		ScheduledAt: f.now.Add(2 * time.Hour), Slot: 5,
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "PARK_WITH_RESERVATION;RES00001")
	assert.Equal(t, "PARK_WITH_RESERVATION_FAILED;It is too early to park. Please come back closer to your reservation time.", resp.Text)
	assert.Len(t, f.orders.byCode, 1, "order must survive a too-early claim")
}

func TestClaimOnTime(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.orders.Insert(context.Background(), orders.Order{
		ConfirmationCode: "RES00001", SubscriberCode: "SUB1",
		ScheduledAt: f.now, Slot: 5,
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "PARK_WITH_RESERVATION;RES00001")
	assert.Equal(t, "PARK_CONFIRMED:5:RES00001", resp.Text)
	assert.Empty(t, f.orders.byCode)
	sess, _ := f.sessions.GetBySubscriber(context.Background(), "SUB1")
	require.NotNil(t, sess)
	assert.Equal(t, 5, sess.Slot)
	assert.Equal(t, f.now.Add(lot.ReservationDuration), sess.EndsAt)

	got, _ := f.subs.GetByCode(context.Background(), "SUB1")
	assert.Equal(t, 0, got.LateCount, "on-time claim carries no penalty")
}

func TestClaimLateAppliesSilentPenalty(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.orders.Insert(context.Background(), orders.Order{
		ConfirmationCode: "RES00001", SubscriberCode: "SUB1",
		ScheduledAt: f.now.Add(-20 * time.Minute), Slot: 5,
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "PARK_WITH_RESERVATION;RES00001")
	assert.Equal(t, "PARK_CONFIRMED:5:RES00001", resp.Text)

	got, _ := f.subs.GetByCode(context.Background(), "SUB1")
	assert.Equal(t, 1, got.LateCount)
	assert.Empty(t, f.notifier.calls, "late claim penalizes without notifying")
}

func TestClaimRelocatesWhenSlotTaken(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")
	require.NoError(t, f.orders.Insert(context.Background(), orders.Order{
		ConfirmationCode: "RES00001", SubscriberCode: "SUB1",
		ScheduledAt: f.now, Slot: 5,
	}))
	// A walk-in already sits in the reserved slot.
	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 5, ConfirmationCode: "WALKIN", SubscriberCode: "SUB9",
		StartedAt: f.now.Add(-time.Hour), EndsAt: f.now.Add(3 * time.Hour),
	}))

	resp := f.d.Handle(context.Background(), "conn-1", "PARK_WITH_RESERVATION;RES00001")
	var slot int
	var code string
	_, err := fmt.Sscanf(resp.Text, "PARK_CONFIRMED:%d:%s", &slot, &code)
	require.NoError(t, err, "reply was %q", resp.Text)
	assert.NotEqual(t, 5, slot)
	assert.Equal(t, "RES00001", code)
}

func TestForgotCode(t *testing.T) {
	f := newFixture(t, sub("SUB1"))
	f.login(t, "SUB1")

	resp := f.d.Handle(context.Background(), "conn-1", "FORGOT_CONFIRMATION_CODE")
	assert.Equal(t, "FORGOT_CODE_FAILED:No active parking order found for your account.", resp.Text)

	require.NoError(t, f.sessions.Insert(context.Background(), sessions.Session{
		Slot: 2, ConfirmationCode: "CODE02", SubscriberCode: "SUB1",
		StartedAt: f.now, EndsAt: f.now.Add(4 * time.Hour),
	}))
	resp = f.d.Handle(context.Background(), "conn-1", "FORGOT_CONFIRMATION_CODE")
	assert.Equal(t, "FORGOT_CODE_SUCCESS", resp.Text)
	assert.Equal(t, 1, f.notifier.count("code"))
}

func TestRegisterAndUpdateSubscriber(t *testing.T) {
	f := newFixture(t)

	resp := f.d.Handle(context.Background(), "staff", "REGISTER_SUBSCRIBER;SUB9;Noa;0501234567;noa@example.com;123456789")
	assert.Equal(t, "REGISTER_SUCCESS", resp.Text)
	assert.Equal(t, 1, f.notifier.count("welcome"))

	resp = f.d.Handle(context.Background(), "staff", "UPDATE_SUBSCRIBER_INFO;SUB9;Noa Levi;0507654321;noa.levi@example.com")
	assert.Equal(t, "UPDATE_SUCCESS", resp.Text)
	got, _ := f.subs.GetByCode(context.Background(), "SUB9")
	assert.Equal(t, "Noa Levi", got.Name)

	resp = f.d.Handle(context.Background(), "staff", "REGISTER_SUBSCRIBER;short")
	assert.Equal(t, "REGISTER_FAILED;Malformed request.", resp.Text)
}

func TestSetFreezeStatus(t *testing.T) {
	f := newFixture(t, sub("SUB1"))

	resp := f.d.Handle(context.Background(), "staff", "SET_FREEZE_STATUS;SUB1;1")
	assert.Equal(t, "SET_FREEZE_SUCCESS", resp.Text)
	got, _ := f.subs.GetByCode(context.Background(), "SUB1")
	assert.True(t, got.Frozen)
	assert.True(t, f.activity.has(activity.TypeManuallyFrozen))

	resp = f.d.Handle(context.Background(), "staff", "SET_FREEZE_STATUS;SUB1;0")
	assert.Equal(t, "SET_FREEZE_SUCCESS", resp.Text)
	got, _ = f.subs.GetByCode(context.Background(), "SUB1")
	assert.False(t, got.Frozen)
	assert.True(t, f.activity.has(activity.TypeManuallyUnfrozen))
}

func TestUnknownCommandIsSilent(t *testing.T) {
	f := newFixture(t)
	resp := f.d.Handle(context.Background(), "c1", "MAKE_COFFEE")
	assert.Empty(t, resp.Text)
	assert.Nil(t, resp.Rows)
}
