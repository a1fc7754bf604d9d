package tracker

import "time"

// Clock supplies wall-clock time to trackers and the sweeper.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now keeps the monotonic reading. Convert with UTC() only when storing.
func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
var SystemClock Clock = systemClock{}

// elapsedSeconds returns whole seconds between start and now, never negative.
func elapsedSeconds(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
