package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/lot"
	"github.com/Spok95/bpark/internal/domain/orders"
)

func (d *Dispatcher) handleFuturePark(ctx context.Context, connID, payload string) Response {
	sub, rej := d.loggedIn(connID, "FUTURE_PARK")
	if sub == nil {
		return rej
	}

	parts := strings.Split(payload, ";")
	if len(parts) != 2 {
		return text("FUTURE_PARK_FAILED;Invalid request format.")
	}

	count, err := d.orders.CountOutstanding(ctx)
	if err != nil {
		d.log.Error("outstanding order count failed", "err", err)
		return text("FUTURE_PARK_FAILED;Database error.")
	}
	if count >= lot.FutureOrderCap {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeFutureParkFail,
			"Booking failed, future reservation capacity is full.")
		return text("FUTURE_PARK_FAILED;Future reservations are currently full. Please try parking upon arrival.")
	}

	dateTime := parts[0] + " " + parts[1]
	start, err := time.ParseInLocation("2006-01-02 15:04", dateTime, d.loc)
	if err != nil {
		return text("FUTURE_PARK_FAILED;Invalid request format.")
	}

	now := d.now()
	switch lot.ValidateWindow(now, start) {
	case lot.ErrTooSoon:
		_ = d.activity.Log(ctx, sub.Code, activity.TypeFutureParkFail,
			"Booking failed, less than 24 hours notice.")
		return text("FUTURE_PARK_FAILED;Future booking must be at least 24 hours from now.")
	case lot.ErrTooFar:
		_ = d.activity.Log(ctx, sub.Code, activity.TypeFutureParkFail,
			"Booking failed, more than 7 days in advance.")
		return text("FUTURE_PARK_FAILED;Future booking cannot be more than 7 days from now.")
	}

	end := start.Add(lot.ReservationDuration)
	busy, err := d.sessions.SlotsOverlapping(ctx, start, end)
	if err != nil {
		d.log.Error("active overlap query failed", "err", err)
		return text("FUTURE_PARK_FAILED;Database error.")
	}
	booked, err := d.orders.SlotsOverlapping(ctx, start, end, lot.ReservationDuration)
	if err != nil {
		d.log.Error("scheduled overlap query failed", "err", err)
		return text("FUTURE_PARK_FAILED;Database error.")
	}
	slot, err := lot.PickSlot(append(busy, booked...))
	if err != nil {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeFutureParkFail,
			"Booking failed, lot full for "+dateTime)
		return text("FUTURE_PARK_FAILED;Parking lot is fully booked for the selected time. Please try another time.")
	}

	code := lot.NewCode(8)
	if err := d.orders.Insert(ctx, orders.Order{
		ConfirmationCode: code,
		SubscriberCode:   sub.Code,
		ScheduledAt:      start,
		Slot:             slot,
	}); err != nil {
		d.log.Error("order insert failed", "err", err)
		return text("FUTURE_PARK_FAILED;A database error occurred while saving the order.")
	}

	d.notifier.ReservationConfirmed(sub.Email, sub.Name, code, start)
	_ = d.activity.Log(ctx, sub.Code, activity.TypeFutureParkSuccess,
		fmt.Sprintf("Booked parking for %s. Spot: %d. Code: %s", dateTime, slot, code))
	return text("FUTURE_PARK_SUCCESS;%s", code)
}

func (d *Dispatcher) handleFutureSlots(ctx context.Context, payload string) Response {
	date := strings.TrimSpace(payload)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return text("GET_FUTURE_SLOTS_FAILED;Invalid date.")
	}
	slots, err := d.orders.SlotsForDate(ctx, date)
	if err != nil {
		d.log.Error("future slots query failed", "err", err, "date", date)
		return text("GET_FUTURE_SLOTS_FAILED;Database error.")
	}
	return withRows("GET_FUTURE_SLOTS_SUCCESS", slots)
}
