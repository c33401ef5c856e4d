package contracts

import "time"

// Clock returns the time elapsed since a fixed origin. Input drivers stamp
// events with it and the recorder uses the same clock to arm its silence
// deadline, so both sides agree on a single monotonic time base.
type Clock func() time.Duration

// NewMonotonicClock returns a Clock whose origin is the moment of the call.
func NewMonotonicClock() Clock {
	origin := time.Now()
	return func() time.Duration {
		return time.Since(origin)
	}
}
