package server

import (
	"context"
	"sort"
	"time"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/orders"
	"github.com/Spok95/bpark/internal/domain/sessions"
	"github.com/Spok95/bpark/internal/domain/subscribers"
)

// In-memory stand-ins for the domain repos.

type fakeSubs struct {
	byCode map[string]*subscribers.Subscriber
}

func newFakeSubs(list ...subscribers.Subscriber) *fakeSubs {
	f := &fakeSubs{byCode: make(map[string]*subscribers.Subscriber)}
	for i := range list {
		s := list[i]
		f.byCode[s.Code] = &s
	}
	return f
}

func (f *fakeSubs) GetByCode(_ context.Context, code string) (*subscribers.Subscriber, error) {
	s, ok := f.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubs) Insert(_ context.Context, s subscribers.Subscriber) error {
	f.byCode[s.Code] = &s
	return nil
}

func (f *fakeSubs) UpdateInfo(_ context.Context, code, name, phone, email string) error {
	s, ok := f.byCode[code]
	if !ok {
		return subscribers.ErrNotFound
	}
	s.Name, s.Phone, s.Email = name, phone, email
	return nil
}

func (f *fakeSubs) SetFrozen(_ context.Context, code string, frozen bool) error {
	s, ok := f.byCode[code]
	if !ok {
		return subscribers.ErrNotFound
	}
	s.Frozen = frozen
	return nil
}

func (f *fakeSubs) IncrementLateAndFreeze(_ context.Context, code string) (*subscribers.Subscriber, error) {
	s, ok := f.byCode[code]
	if !ok {
		return nil, subscribers.ErrNotFound
	}
	s.LateCount++
	if s.LateCount >= subscribers.FreezeThreshold {
		s.Frozen = true
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubs) List(_ context.Context) ([]subscribers.Subscriber, error) {
	var out []subscribers.Subscriber
	for _, s := range f.byCode {
		out = append(out, *s)
	}
	return out, nil
}

type fakeSessions struct {
	byCode map[string]sessions.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byCode: make(map[string]sessions.Session)}
}

func (f *fakeSessions) GetBySubscriber(_ context.Context, subscriberCode string) (*sessions.Session, error) {
	for _, s := range f.byCode {
		if s.SubscriberCode == subscriberCode {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) GetByConfirmationCode(_ context.Context, code string) (*sessions.Session, error) {
	s, ok := f.byCode[code]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessions) OccupiedSlots(_ context.Context) ([]int, error) {
	var out []int
	for _, s := range f.byCode {
		out = append(out, s.Slot)
	}
	sort.Ints(out)
	return out, nil
}

func (f *fakeSessions) SlotsOverlapping(_ context.Context, from, to time.Time) ([]int, error) {
	var out []int
	for _, s := range f.byCode {
		if from.Before(s.EndsAt) && to.After(s.StartedAt) {
			out = append(out, s.Slot)
		}
	}
	return out, nil
}

func (f *fakeSessions) IsSlotOccupied(_ context.Context, slot int) (bool, error) {
	for _, s := range f.byCode {
		if s.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessions) Insert(_ context.Context, s sessions.Session) error {
	f.byCode[s.ConfirmationCode] = s
	return nil
}

func (f *fakeSessions) ExtendBySubscriber(_ context.Context, subscriberCode string, hours int) error {
	for code, s := range f.byCode {
		if s.SubscriberCode == subscriberCode {
			s.EndsAt = s.EndsAt.Add(time.Duration(hours) * time.Hour)
			f.byCode[code] = s
			return nil
		}
	}
	return sessions.ErrNotFound
}

func (f *fakeSessions) DeleteByConfirmationCode(_ context.Context, code string) error {
	delete(f.byCode, code)
	return nil
}

func (f *fakeSessions) List(_ context.Context) ([]sessions.Session, error) {
	var out []sessions.Session
	for _, s := range f.byCode {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessions) ParkingHoursPerSubscriber(_ context.Context, _, _ int) ([]sessions.SubscriberHours, error) {
	return nil, nil
}

func (f *fakeSessions) OccupancyPerSlot(_ context.Context, _, _ int) ([]sessions.SlotHours, error) {
	return nil, nil
}

type fakeOrders struct {
	byCode   map[string]orders.Order
	sessions *fakeSessions
}

func newFakeOrders(sess *fakeSessions) *fakeOrders {
	return &fakeOrders{byCode: make(map[string]orders.Order), sessions: sess}
}

func (f *fakeOrders) GetByCodeAndSubscriber(_ context.Context, confirmationCode, subscriberCode string) (*orders.Order, error) {
	o, ok := f.byCode[confirmationCode]
	if !ok || o.SubscriberCode != subscriberCode {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeOrders) CountOutstanding(_ context.Context) (int, error) {
	return len(f.byCode), nil
}

func (f *fakeOrders) SlotsOverlapping(_ context.Context, from, to time.Time, duration time.Duration) ([]int, error) {
	var out []int
	for _, o := range f.byCode {
		if from.Before(o.ScheduledAt.Add(duration)) && to.After(o.ScheduledAt) {
			out = append(out, o.Slot)
		}
	}
	return out, nil
}

func (f *fakeOrders) SlotsForDate(_ context.Context, date string) ([]int, error) {
	var out []int
	for _, o := range f.byCode {
		if o.ScheduledAt.Format("2006-01-02") == date {
			out = append(out, o.Slot)
		}
	}
	return out, nil
}

func (f *fakeOrders) NextForSlot(_ context.Context, slot int, after time.Time) (*time.Time, error) {
	var next *time.Time
	for _, o := range f.byCode {
		if o.Slot != slot || !o.ScheduledAt.After(after) {
			continue
		}
		if next == nil || o.ScheduledAt.Before(*next) {
			t := o.ScheduledAt
			next = &t
		}
	}
	return next, nil
}

func (f *fakeOrders) Insert(_ context.Context, o orders.Order) error {
	f.byCode[o.ConfirmationCode] = o
	return nil
}

func (f *fakeOrders) Claim(_ context.Context, confirmationCode string, s sessions.Session) error {
	if _, ok := f.byCode[confirmationCode]; !ok {
		return orders.ErrNotFound
	}
	delete(f.byCode, confirmationCode)
	f.sessions.byCode[s.ConfirmationCode] = s
	return nil
}

func (f *fakeOrders) ListAll(_ context.Context) ([]orders.Contact, error) {
	var out []orders.Contact
	for _, o := range f.byCode {
		out = append(out, orders.Contact{Order: o})
	}
	return out, nil
}

type fakeActivity struct {
	entries []activity.Entry
}

func (f *fakeActivity) Log(_ context.Context, subscriberCode, activityType, details string) error {
	f.entries = append(f.entries, activity.Entry{
		SubscriberCode: subscriberCode, Type: activityType, Details: details,
	})
	return nil
}

func (f *fakeActivity) HistoryFor(_ context.Context, subscriberCode string) ([]activity.Entry, error) {
	var out []activity.Entry
	for _, e := range f.entries {
		if e.SubscriberCode == subscriberCode {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivity) ListAll(_ context.Context) ([]activity.Entry, error) {
	return f.entries, nil
}

func (f *fakeActivity) DailyCounts(_ context.Context, _ string, _, _ int) ([]activity.DailyCount, error) {
	return nil, nil
}

func (f *fakeActivity) has(activityType string) bool {
	for _, e := range f.entries {
		if e.Type == activityType {
			return true
		}
	}
	return false
}

func (f *fakeActivity) count(activityType string) int {
	n := 0
	for _, e := range f.entries {
		if e.Type == activityType {
			n++
		}
	}
	return n
}

// fakeNotifier records every intent by name.
type fakeNotifier struct {
	calls []string
}

func (f *fakeNotifier) Welcome(_, _ string)                                { f.calls = append(f.calls, "welcome") }
func (f *fakeNotifier) ReservationConfirmed(_, _, _ string, _ time.Time)   { f.calls = append(f.calls, "confirmed") }
func (f *fakeNotifier) Reminder(_, _, _ string, _ time.Time)               { f.calls = append(f.calls, "reminder") }
func (f *fakeNotifier) ReservationCancelled(_, _, _ string, _ time.Time)   { f.calls = append(f.calls, "cancelled") }
func (f *fakeNotifier) AccountFrozen(_, _ string, _ int)                   { f.calls = append(f.calls, "frozen") }
func (f *fakeNotifier) LateRetrieval(_, _ string)                          { f.calls = append(f.calls, "late") }
func (f *fakeNotifier) ConfirmationCode(_, _, _ string)                    { f.calls = append(f.calls, "code") }

func (f *fakeNotifier) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}
