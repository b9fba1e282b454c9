// Package lot holds the parking-lot business rules that need no I/O:
// slot selection, reservation window validation and the extension
// budget. Callers fetch current occupancy and pass it in; nothing here
// touches the database.
package lot

import (
	"errors"
	"math/rand/v2"
	"time"
)

const (
	// Capacity is the number of physical slots, numbered 1..Capacity.
	Capacity = 100

	// FutureOrderCap limits outstanding reservations to 40% of capacity.
	FutureOrderCap = 40

	// ReservationDuration is the fixed span of a reservation window and
	// the initial deadline of every new session.
	ReservationDuration = 4 * time.Hour

	// MaxSessionSpan caps a session at 8 hours from its original start,
	// extensions included.
	MaxSessionSpan = 8 * time.Hour

	// GracePeriod is how long after the scheduled time an arrival still
	// counts as on time; past it the reservation is late (claimable with
	// a penalty) and eventually cancelled by the sweep.
	GracePeriod = 15 * time.Minute

	// EarlyArrivalSlack is how early a claim is accepted.
	EarlyArrivalSlack = time.Minute

	// MinAdvanceNotice and MaxAdvanceNotice bound how far ahead a
	// reservation may be placed.
	MinAdvanceNotice = 24 * time.Hour
	MaxAdvanceNotice = 7 * 24 * time.Hour
)

var (
	ErrFull    = errors.New("lot: no free slot")
	ErrTooSoon = errors.New("lot: less than 24 hours notice")
	ErrTooFar  = errors.New("lot: more than 7 days ahead")
)

// PickSlot returns a uniformly chosen free slot given the slots that are
// taken, or ErrFull when none remain. Duplicate or out-of-range entries
// in taken are harmless.
func PickSlot(taken []int) (int, error) {
	free := FreeSlots(taken)
	if len(free) == 0 {
		return 0, ErrFull
	}
	return free[rand.IntN(len(free))], nil
}

// FreeSlots returns the slots in 1..Capacity not present in taken,
// ascending.
func FreeSlots(taken []int) []int {
	busy := make(map[int]bool, len(taken))
	for _, s := range taken {
		busy[s] = true
	}
	free := make([]int, 0, Capacity)
	for s := 1; s <= Capacity; s++ {
		if !busy[s] {
			free = append(free, s)
		}
	}
	return free
}

// ValidateWindow checks that a reservation start time falls inside
// [now+24h, now+7d].
func ValidateWindow(now, start time.Time) error {
	if start.Before(now.Add(MinAdvanceNotice)) {
		return ErrTooSoon
	}
	if start.After(now.Add(MaxAdvanceNotice)) {
		return ErrTooFar
	}
	return nil
}

// MaxExtension computes the whole hours a session may still be extended
// by: the remainder of the 8-hour budget measured from the original
// start, clipped by the next reservation on the same slot when one
// exists. Never negative.
func MaxExtension(startedAt, endsAt time.Time, nextReservation *time.Time) int {
	budget := int(startedAt.Add(MaxSessionSpan).Sub(endsAt).Hours())
	if budget < 0 {
		budget = 0
	}
	if nextReservation != nil {
		untilNext := int(nextReservation.Sub(endsAt).Hours())
		if untilNext < budget {
			budget = untilNext
		}
		if budget < 0 {
			budget = 0
		}
	}
	return budget
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode generates a confirmation code of n characters over the
// uppercase alphanumeric alphabet clients are used to typing in.
func NewCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
