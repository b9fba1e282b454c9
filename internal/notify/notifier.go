// Package notify carries the notification intents the core produces.
// Actual subscriber-facing delivery (email) is an external collaborator;
// the default implementation records the intent in the log, and the
// Telegram implementation additionally mirrors staff-relevant events to
// an admin chat.
package notify

import (
	"log/slog"
	"time"
)

type Notifier interface {
	Welcome(email, subscriberCode string)
	ReservationConfirmed(email, name, code string, at time.Time)
	Reminder(email, name, code string, at time.Time)
	ReservationCancelled(email, name, code string, at time.Time)
	AccountFrozen(email, name string, lateCount int)
	LateRetrieval(email, name string)
	ConfirmationCode(email, name, code string)
}

// Log is the default Notifier: every intent becomes a structured log
// line for the delivery collaborator to pick up.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log { return &Log{log: log} }

func (n *Log) Welcome(email, subscriberCode string) {
	n.log.Info("notify: welcome", "email", email, "code", subscriberCode)
}

func (n *Log) ReservationConfirmed(email, name, code string, at time.Time) {
	n.log.Info("notify: reservation confirmed", "email", email, "name", name, "code", code, "at", at)
}

func (n *Log) Reminder(email, name, code string, at time.Time) {
	n.log.Info("notify: reservation reminder", "email", email, "name", name, "code", code, "at", at)
}

func (n *Log) ReservationCancelled(email, name, code string, at time.Time) {
	n.log.Info("notify: reservation cancelled", "email", email, "name", name, "code", code, "at", at)
}

func (n *Log) AccountFrozen(email, name string, lateCount int) {
	n.log.Info("notify: account frozen", "email", email, "name", name, "late_count", lateCount)
}

func (n *Log) LateRetrieval(email, name string) {
	n.log.Info("notify: late retrieval", "email", email, "name", name)
}

func (n *Log) ConfirmationCode(email, name, code string) {
	n.log.Info("notify: confirmation code reminder", "email", email, "name", name, "code", code)
}
