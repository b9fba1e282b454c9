package notify

import (
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram wraps another Notifier and mirrors the events staff care
// about (freezes, no-show cancellations) to the configured admin chat.
type Telegram struct {
	inner     Notifier
	api       *tgbotapi.BotAPI
	adminChat int64
	log       *slog.Logger
}

func NewTelegram(inner Notifier, api *tgbotapi.BotAPI, adminChat int64, log *slog.Logger) *Telegram {
	return &Telegram{inner: inner, api: api, adminChat: adminChat, log: log}
}

func (n *Telegram) alert(text string) {
	if _, err := n.api.Send(tgbotapi.NewMessage(n.adminChat, text)); err != nil {
		n.log.Error("admin alert failed", "err", err)
	}
}

func (n *Telegram) Welcome(email, subscriberCode string) { n.inner.Welcome(email, subscriberCode) }

func (n *Telegram) ReservationConfirmed(email, name, code string, at time.Time) {
	n.inner.ReservationConfirmed(email, name, code, at)
}

func (n *Telegram) Reminder(email, name, code string, at time.Time) {
	n.inner.Reminder(email, name, code, at)
}

func (n *Telegram) ReservationCancelled(email, name, code string, at time.Time) {
	n.inner.ReservationCancelled(email, name, code, at)
	n.alert(fmt.Sprintf("Reservation %s (%s) cancelled: no-show for %s", code, name, at.Format("2006-01-02 15:04")))
}

func (n *Telegram) AccountFrozen(email, name string, lateCount int) {
	n.inner.AccountFrozen(email, name, lateCount)
	n.alert(fmt.Sprintf("Account of %s frozen after %d late incidents", name, lateCount))
}

func (n *Telegram) LateRetrieval(email, name string) { n.inner.LateRetrieval(email, name) }

func (n *Telegram) ConfirmationCode(email, name, code string) {
	n.inner.ConfirmationCode(email, name, code)
}
