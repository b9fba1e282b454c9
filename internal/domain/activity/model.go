package activity

import "time"

// Activity type tags. These are stored verbatim and some reports filter
// on them, so they must stay stable.
const (
	TypeLogin              = "LOGIN"
	TypeLoginFrozen        = "LOGIN_ATTEMPT_FROZEN"
	TypeViewSlots          = "VIEW_SLOTS"
	TypeParkCar            = "PARK_CAR"
	TypeParkDenied         = "PARK_ATTEMPT_DENIED"
	TypeParkWithOrder      = "PARK_WITH_RESERVATION"
	TypeReleaseVehicle     = "RELEASE_VEHICLE"
	TypeReleaseDenied      = "RELEASE_ATTEMPT_DENIED"
	TypeLateRetrieval      = "LATE_CAR_RETRIEVAL"
	TypeExtendParking      = "EXTEND_PARKING"
	TypeExtendDenied       = "EXTEND_ATTEMPT_DENIED"
	TypeForgotCode         = "FORGOT_CODE"
	TypeFutureParkSuccess  = "FUTURE_PARK_SUCCESS"
	TypeFutureParkFail     = "FUTURE_PARK_FAIL"
	TypeUpdateInfo         = "UPDATE_INFO"
	TypeAccountFrozen      = "ACCOUNT_FROZEN"
	TypeManuallyFrozen     = "ACCOUNT_MANUALLY_FROZEN"
	TypeManuallyUnfrozen   = "ACCOUNT_MANUALLY_UNFROZEN"
	TypeReservationExpired = "RESERVATION_CANCELLED"
)

// Entry is an append-only audit record. Name is filled only by queries
// that join the subscriber table.
type Entry struct {
	SubscriberCode string
	Name           string
	Type           string
	Details        string
	At             time.Time
}

// DailyCount is one row of a per-day aggregation report.
type DailyCount struct {
	Date  string
	Count int
}
