package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/orders"
	"github.com/Spok95/bpark/internal/domain/sessions"
	"github.com/Spok95/bpark/internal/domain/subscribers"
	"github.com/Spok95/bpark/internal/infra/metrics"
	"github.com/Spok95/bpark/internal/notify"
)

// Store interfaces consumed by the dispatcher. Implemented by the
// domain repos; fakes stand in for them in tests.

type SubscriberStore interface {
	GetByCode(ctx context.Context, code string) (*subscribers.Subscriber, error)
	Insert(ctx context.Context, s subscribers.Subscriber) error
	UpdateInfo(ctx context.Context, code, name, phone, email string) error
	SetFrozen(ctx context.Context, code string, frozen bool) error
	IncrementLateAndFreeze(ctx context.Context, code string) (*subscribers.Subscriber, error)
	List(ctx context.Context) ([]subscribers.Subscriber, error)
}

type SessionStore interface {
	GetBySubscriber(ctx context.Context, subscriberCode string) (*sessions.Session, error)
	GetByConfirmationCode(ctx context.Context, code string) (*sessions.Session, error)
	OccupiedSlots(ctx context.Context) ([]int, error)
	SlotsOverlapping(ctx context.Context, from, to time.Time) ([]int, error)
	IsSlotOccupied(ctx context.Context, slot int) (bool, error)
	Insert(ctx context.Context, s sessions.Session) error
	ExtendBySubscriber(ctx context.Context, subscriberCode string, hours int) error
	DeleteByConfirmationCode(ctx context.Context, code string) error
	List(ctx context.Context) ([]sessions.Session, error)
	ParkingHoursPerSubscriber(ctx context.Context, year, month int) ([]sessions.SubscriberHours, error)
	OccupancyPerSlot(ctx context.Context, year, month int) ([]sessions.SlotHours, error)
}

type OrderStore interface {
	GetByCodeAndSubscriber(ctx context.Context, confirmationCode, subscriberCode string) (*orders.Order, error)
	CountOutstanding(ctx context.Context) (int, error)
	SlotsOverlapping(ctx context.Context, from, to time.Time, duration time.Duration) ([]int, error)
	SlotsForDate(ctx context.Context, date string) ([]int, error)
	NextForSlot(ctx context.Context, slot int, after time.Time) (*time.Time, error)
	Insert(ctx context.Context, o orders.Order) error
	Claim(ctx context.Context, confirmationCode string, s sessions.Session) error
	ListAll(ctx context.Context) ([]orders.Contact, error)
}

type ActivityStore interface {
	Log(ctx context.Context, subscriberCode, activityType, details string) error
	HistoryFor(ctx context.Context, subscriberCode string) ([]activity.Entry, error)
	ListAll(ctx context.Context) ([]activity.Entry, error)
	DailyCounts(ctx context.Context, activityType string, year, month int) ([]activity.DailyCount, error)
}

// Dispatcher carries the business semantics of the wire protocol:
// per-connection login state and command routing. The transport only
// delivers lines to Handle and reports disconnects.
type Dispatcher struct {
	log       *slog.Logger
	subs      SubscriberStore
	sessions  SessionStore
	orders    OrderStore
	activity  ActivityStore
	notifier  notify.Notifier
	logins    *Logins
	loc       *time.Location
	exportDir string
	now       func() time.Time
}

func NewDispatcher(log *slog.Logger, subs SubscriberStore, sess SessionStore,
	ord OrderStore, act ActivityStore, notifier notify.Notifier,
	loc *time.Location, exportDir string) *Dispatcher {

	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{
		log: log, subs: subs, sessions: sess, orders: ord, activity: act,
		notifier: notifier, logins: NewLogins(), loc: loc,
		exportDir: exportDir, now: time.Now,
	}
}

// splitCommand separates a raw line into the upper-cased command and
// its payload. The first colon or semicolon is the delimiter.
func splitCommand(line string) (string, string) {
	if i := strings.IndexAny(line, ":;"); i >= 0 {
		return strings.ToUpper(line[:i]), line[i+1:]
	}
	return strings.ToUpper(line), ""
}

// Handle routes one command line and returns the reply.
func (d *Dispatcher) Handle(ctx context.Context, connID, line string) Response {
	command, payload := splitCommand(strings.TrimSpace(line))

	var resp Response
	switch command {
	case "LOGIN":
		resp = d.handleLogin(ctx, connID, payload)
	case "SHOW_SLOTS":
		resp = d.handleShowSlots(ctx, connID)
	case "PARK_REQUEST":
		resp = d.handlePark(ctx, connID)
	case "PARK_WITH_RESERVATION":
		resp = d.handleParkWithReservation(ctx, connID, payload)
	case "RELEASE_VEHICLE":
		resp = d.handleRelease(ctx, connID, payload)
	case "EXTEND_PARKING":
		resp = d.handleExtend(ctx, connID, payload)
	case "FORGOT_CONFIRMATION_CODE":
		resp = d.handleForgotCode(ctx, connID)
	case "FUTURE_PARK_REQUEST":
		resp = d.handleFuturePark(ctx, connID, payload)
	case "GET_FUTURE_SLOTS":
		resp = d.handleFutureSlots(ctx, payload)
	case "UPDATE_SUBSCRIBER_INFO":
		resp = d.handleUpdateSubscriber(ctx, payload)
	case "REGISTER_SUBSCRIBER":
		resp = d.handleRegisterSubscriber(ctx, payload)
	case "GET_HISTORY":
		resp = d.handleGetHistory(ctx, payload)
	case "CLIENT_DISCONNECTED":
		d.Disconnect(connID)
		resp = none
	case "GET_MAX_EXTENSION":
		resp = d.handleMaxExtension(ctx, connID)
	case "GET_ALL_ORDERS":
		resp = d.handleGetAllOrders(ctx)
	case "GET_ALL_SCHEDULED_ORDERS":
		resp = d.handleGetAllScheduledOrders(ctx)
	case "GET_ALL_SUBSCRIBERS":
		resp = d.handleGetAllSubscribers(ctx)
	case "GET_ALL_ACTIVITY_LOGS":
		resp = d.handleGetAllActivityLogs(ctx)
	case "SET_FREEZE_STATUS":
		resp = d.handleSetFreezeStatus(ctx, payload)
	case "GET_MONTHLY_REPORT":
		resp = d.handleDailyCountReport(ctx, payload, activity.TypeParkCar, "GET_MONTHLY_REPORT")
	case "GET_DAILY_LATENESS_REPORT":
		resp = d.handleDailyCountReport(ctx, payload, activity.TypeLateRetrieval, "GET_DAILY_LATENESS_REPORT")
	case "GET_SUBSCRIBER_PARKING_REPORT":
		resp = d.handleSubscriberParkingReport(ctx, payload)
	case "GET_SLOT_OCCUPANCY_REPORT":
		resp = d.handleSlotOccupancyReport(ctx, payload)
	case "EXPORT_MONTHLY_REPORT":
		resp = d.handleExportMonthlyReport(ctx, payload)
	default:
		d.log.Warn("unknown command", "command", command)
		return none
	}

	metrics.CommandsTotal.WithLabelValues(command, outcomeOf(resp)).Inc()
	return resp
}

// Disconnect clears the login entry tied to the connection.
func (d *Dispatcher) Disconnect(connID string) {
	d.logins.Drop(connID)
}

// loggedIn returns the subscriber bound to the connection, or a uniform
// not-logged-in rejection carrying the attempted command tag.
func (d *Dispatcher) loggedIn(connID, commandTag string) (*subscribers.Subscriber, Response) {
	sub := d.logins.Get(connID)
	if sub == nil {
		return nil, text("%s_FAILED;You are not logged in.", strings.ToUpper(commandTag))
	}
	return sub, none
}

func outcomeOf(r Response) string {
	if strings.Contains(r.Text, "_FAILED") || r.Text == "PARK_FULL" {
		return "rejected"
	}
	return "ok"
}
