package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperationThreshold is the duration above which Timer.Stop logs a warning.
const SlowOperationThreshold = 5 * time.Second

// Timer is a simple performance timer for measuring operation duration
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return newTimerAt(name, log, time.Now)
}

func newTimerAt(name string, log zerolog.Logger, now func() time.Time) *Timer {
	return &Timer{
		start: now(),
		name:  name,
		log:   log,
		now:   now,
	}
}

// Stop logs the elapsed time at debug level, or at warn level past
// SlowOperationThreshold, and returns it.
func (t *Timer) Stop() time.Duration {
	duration := t.now().Sub(t.start)

	if duration > SlowOperationThreshold {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected")
		return duration
	}

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Performance measurement")
	return duration
}
