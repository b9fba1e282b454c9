package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/lot"
	"github.com/Spok95/bpark/internal/domain/sessions"
)

func (d *Dispatcher) handleLogin(ctx context.Context, connID, payload string) Response {
	code := strings.TrimSpace(payload)
	sub, err := d.subs.GetByCode(ctx, code)
	if err != nil {
		d.log.Error("login lookup failed", "err", err)
		return text("LOGIN_FAILED:Database error.")
	}
	if sub == nil {
		return text("LOGIN_FAILED:Subscriber not found.")
	}
	if sub.Frozen {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeLoginFrozen, "Login denied, account is frozen.")
		return text("LOGIN_FAILED:Your account is frozen. Please contact customer support.")
	}
	d.logins.Put(connID, sub)
	_ = d.activity.Log(ctx, sub.Code, activity.TypeLogin, "Logged in successfully")
	return withRows("LOGIN_SUCCESS", sub)
}

func (d *Dispatcher) handleShowSlots(ctx context.Context, connID string) Response {
	if sub := d.logins.Get(connID); sub != nil {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeViewSlots, "Viewed parking lot status")
	}
	occupied, err := d.sessions.OccupiedSlots(ctx)
	if err != nil {
		d.log.Error("occupied slots query failed", "err", err)
		return text("SHOW_SLOTS_FAILED:Database error.")
	}
	return withRows("show_slots", occupied)
}

func (d *Dispatcher) handlePark(ctx context.Context, connID string) Response {
	sub, rej := d.loggedIn(connID, "PARK")
	if sub == nil {
		return rej
	}

	existing, err := d.sessions.GetBySubscriber(ctx, sub.Code)
	if err != nil {
		d.log.Error("active session lookup failed", "err", err)
		return text("PARK_FAILED:Database error.")
	}
	if existing != nil {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeParkDenied,
			fmt.Sprintf("Denied: Already has an active session in slot %d", existing.Slot))
		return text("PARK_FAILED:You already have an active parking session.")
	}

	occupied, err := d.sessions.OccupiedSlots(ctx)
	if err != nil {
		d.log.Error("occupied slots query failed", "err", err)
		return text("PARK_FAILED:Database error.")
	}
	slot, err := lot.PickSlot(occupied)
	if err != nil {
		return text("PARK_FULL")
	}

	code := lot.NewCode(6)
	now := d.now()
	if err := d.sessions.Insert(ctx, sessions.Session{
		Slot:             slot,
		ConfirmationCode: code,
		SubscriberCode:   sub.Code,
		StartedAt:        now,
		EndsAt:           now.Add(lot.ReservationDuration),
	}); err != nil {
		d.log.Error("session insert failed", "err", err, "slot", slot)
		return text("PARK_FAILED:Database error.")
	}
	_ = d.activity.Log(ctx, sub.Code, activity.TypeParkCar,
		fmt.Sprintf("Parked in slot %d. Code: %s", slot, code))
	return text("PARK_CONFIRMED:%d:%s", slot, code)
}

func (d *Dispatcher) handleParkWithReservation(ctx context.Context, connID, payload string) Response {
	sub, rej := d.loggedIn(connID, "PARK_WITH_RESERVATION")
	if sub == nil {
		return rej
	}

	code := strings.TrimSpace(payload)
	order, err := d.orders.GetByCodeAndSubscriber(ctx, code, sub.Code)
	if err != nil {
		d.log.Error("reservation lookup failed", "err", err)
		return text("PARK_WITH_RESERVATION_FAILED;Database error.")
	}
	if order == nil {
		return text("PARK_WITH_RESERVATION_FAILED;Invalid reservation code or it does not belong to you.")
	}

	now := d.now()
	if now.Before(order.ScheduledAt.Add(-lot.EarlyArrivalSlack)) {
		return text("PARK_WITH_RESERVATION_FAILED;It is too early to park. Please come back closer to your reservation time.")
	}
	if now.After(order.ScheduledAt.Add(lot.GracePeriod)) {
		// Late but still claimable; the penalty rides along.
		if _, err := d.subs.IncrementLateAndFreeze(ctx, sub.Code); err != nil {
			d.log.Error("lateness penalty failed", "err", err, "subscriber", sub.Code)
		}
	}

	slot := order.Slot
	occupied, err := d.sessions.IsSlotOccupied(ctx, slot)
	if err != nil {
		d.log.Error("slot occupancy check failed", "err", err)
		return text("PARK_WITH_RESERVATION_FAILED;Database error.")
	}
	if occupied {
		// A walk-in took the reserved slot; relocate.
		all, err := d.sessions.OccupiedSlots(ctx)
		if err != nil {
			d.log.Error("occupied slots query failed", "err", err)
			return text("PARK_WITH_RESERVATION_FAILED;Database error.")
		}
		slot, err = lot.PickSlot(all)
		if err != nil {
			return text("PARK_WITH_RESERVATION_FAILED;Parking lot is full, no substitute slot is available.")
		}
	}

	if err := d.orders.Claim(ctx, code, sessions.Session{
		Slot:             slot,
		ConfirmationCode: code,
		SubscriberCode:   sub.Code,
		StartedAt:        now,
		EndsAt:           now.Add(lot.ReservationDuration),
	}); err != nil {
		d.log.Error("reservation claim failed", "err", err, "code", code)
		return text("PARK_WITH_RESERVATION_FAILED;Database error.")
	}
	_ = d.activity.Log(ctx, sub.Code, activity.TypeParkWithOrder,
		fmt.Sprintf("Parked in slot %d with code %s", slot, code))
	return text("PARK_CONFIRMED:%d:%s", slot, code)
}

func (d *Dispatcher) handleRelease(ctx context.Context, connID, payload string) Response {
	sub, rej := d.loggedIn(connID, "RELEASE")
	if sub == nil {
		return rej
	}

	code := strings.TrimSpace(payload)
	sess, err := d.sessions.GetByConfirmationCode(ctx, code)
	if err != nil {
		d.log.Error("session lookup failed", "err", err)
		return text("RELEASE_FAILED:Database error.")
	}
	if sess == nil {
		return text("RELEASE_FAILED:Invalid or incomplete code.")
	}
	if sess.SubscriberCode != sub.Code {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeReleaseDenied,
			fmt.Sprintf("Attempted to release vehicle with code %s", code))
		return text("RELEASE_FAILED:This confirmation code does not belong to your account.")
	}

	// The penalty is applied before deletion so a failed delete cannot
	// swallow the late event; the event itself is logged exactly once.
	if d.now().After(sess.EndsAt) {
		_ = d.activity.Log(ctx, sess.SubscriberCode, activity.TypeLateRetrieval,
			fmt.Sprintf("Car was taken late from slot %d", sess.Slot))
		updated, err := d.subs.IncrementLateAndFreeze(ctx, sess.SubscriberCode)
		if err != nil {
			d.log.Error("lateness penalty failed", "err", err, "subscriber", sess.SubscriberCode)
		} else if updated.Frozen {
			d.notifier.AccountFrozen(updated.Email, updated.Name, updated.LateCount)
		} else {
			d.notifier.LateRetrieval(updated.Email, updated.Name)
		}
	} else {
		_ = d.activity.Log(ctx, sess.SubscriberCode, activity.TypeReleaseVehicle,
			fmt.Sprintf("Released vehicle from slot %d", sess.Slot))
	}

	if err := d.sessions.DeleteByConfirmationCode(ctx, code); err != nil {
		d.log.Error("session delete failed", "err", err, "code", code)
		return text("RELEASE_FAILED:Database error during deletion.")
	}
	return text("RELEASE_SUCCESS:%d", sess.Slot)
}

func (d *Dispatcher) handleExtend(ctx context.Context, connID, payload string) Response {
	sub, rej := d.loggedIn(connID, "EXTEND")
	if sub == nil {
		return rej
	}

	sess, err := d.sessions.GetBySubscriber(ctx, sub.Code)
	if err != nil {
		d.log.Error("active session lookup failed", "err", err)
		return text("EXTEND_FAILED;Database error.")
	}
	if sess == nil {
		return text("EXTEND_FAILED;Could not extend parking. You may not have an active session.")
	}
	if d.now().After(sess.EndsAt) {
		_ = d.activity.Log(ctx, sub.Code, activity.TypeExtendDenied, "Denied: Parking session already expired.")
		return text("EXTEND_FAILED;Cannot extend, your parking session has expired.")
	}

	hours, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil || hours <= 0 {
		return text("EXTEND_FAILED;Invalid number of hours.")
	}

	maxHours, rej := d.maxExtensionFor(ctx, sess)
	if rej.Text != "" {
		return rej
	}
	if hours > maxHours {
		if maxHours > 0 {
			return text("EXTEND_FAILED;You can extend by a maximum of %d hour(s).", maxHours)
		}
		return text("EXTEND_FAILED;Extension is not possible at this time (e.g., due to a future reservation).")
	}

	if err := d.sessions.ExtendBySubscriber(ctx, sub.Code, hours); err != nil {
		d.log.Error("extension update failed", "err", err, "subscriber", sub.Code)
		return text("EXTEND_FAILED;Could not extend parking due to an unexpected error.")
	}
	_ = d.activity.Log(ctx, sub.Code, activity.TypeExtendParking,
		fmt.Sprintf("Extended parking by %d hours.", hours))
	return text("EXTEND_SUCCESS;Your parking has been extended by %d hours.", hours)
}

func (d *Dispatcher) handleMaxExtension(ctx context.Context, connID string) Response {
	sub, rej := d.loggedIn(connID, "GET_MAX_EXTENSION")
	if sub == nil {
		return rej
	}

	sess, err := d.sessions.GetBySubscriber(ctx, sub.Code)
	if err != nil {
		d.log.Error("active session lookup failed", "err", err)
		return text("GET_MAX_EXTENSION_FAILED;Database error.")
	}
	if sess == nil {
		return text("MAX_EXTENSION_RESULT:0")
	}
	maxHours, rej := d.maxExtensionFor(ctx, sess)
	if rej.Text != "" {
		return rej
	}
	return text("MAX_EXTENSION_RESULT:%d", maxHours)
}

func (d *Dispatcher) maxExtensionFor(ctx context.Context, sess *sessions.Session) (int, Response) {
	next, err := d.orders.NextForSlot(ctx, sess.Slot, sess.EndsAt)
	if err != nil {
		d.log.Error("next reservation lookup failed", "err", err, "slot", sess.Slot)
		return 0, text("EXTEND_FAILED;Database error.")
	}
	return lot.MaxExtension(sess.StartedAt, sess.EndsAt, next), none
}

func (d *Dispatcher) handleForgotCode(ctx context.Context, connID string) Response {
	sub, rej := d.loggedIn(connID, "FORGOT_CODE")
	if sub == nil {
		return rej
	}

	sess, err := d.sessions.GetBySubscriber(ctx, sub.Code)
	if err != nil {
		d.log.Error("active session lookup failed", "err", err)
		return text("FORGOT_CODE_FAILED:Database error.")
	}
	if sess == nil || sess.ConfirmationCode == "" {
		return text("FORGOT_CODE_FAILED:No active parking order found for your account.")
	}
	d.notifier.ConfirmationCode(sub.Email, sub.Name, sess.ConfirmationCode)
	_ = d.activity.Log(ctx, sub.Code, activity.TypeForgotCode, "Requested confirmation code reminder.")
	return text("FORGOT_CODE_SUCCESS")
}
