package orders

import "time"

// Order is a scheduled reservation of a slot, not yet claimed. It is
// deleted when converted into an active session at arrival, or by the
// expiry sweep when nobody shows up.
type Order struct {
	ConfirmationCode string
	SubscriberCode   string
	ScheduledAt      time.Time
	Slot             int
	ReminderSent     bool
}

// Contact carries the subscriber fields the notification collaborator
// needs alongside an order.
type Contact struct {
	Order
	Name  string
	Email string
}
