package subscribers

import "time"

// FreezeThreshold is the number of lateness incidents after which an
// account is frozen automatically.
const FreezeThreshold = 2

type Subscriber struct {
	Code       string
	Name       string
	Phone      string
	Email      string
	NationalID string
	LateCount  int
	Frozen     bool
	CreatedAt  time.Time
}
