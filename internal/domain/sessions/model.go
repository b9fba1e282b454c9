package sessions

import "time"

// Session is a currently parked vehicle occupying one slot. There is at
// most one session per slot and one per subscriber; the deadline is only
// checked on release or extension, a session is never evicted on expiry.
type Session struct {
	Slot             int
	ConfirmationCode string
	SubscriberCode   string
	StartedAt        time.Time
	EndsAt           time.Time
}

// SubscriberHours is one row of the monthly parking-hours report.
type SubscriberHours struct {
	SubscriberCode string
	Name           string
	TotalHours     int
}

// SlotHours is one row of the monthly slot-occupancy report.
type SlotHours struct {
	Slot       int
	TotalHours int
}
