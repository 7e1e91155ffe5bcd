package sar

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the package time source, swappable for deterministic tests.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the time source used for provenance and product
// timestamps. Passing nil restores the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current pipeline time from the package clock.
func Now() time.Time {
	return clock.Now()
}
