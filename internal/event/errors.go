package event

import "errors"

var (
	// ErrNoSuchTimer is returned when a timer id is not registered.
	ErrNoSuchTimer = errors.New("no such timer")

	// ErrScheduleInPast is returned by Schedule for non-future timestamps.
	ErrScheduleInPast = errors.New("schedule timestamp is not in the future")

	// ErrTimerIDExhausted is returned when the int16 timer id space has
	// been used up. Ids are never recycled within a process lifetime.
	ErrTimerIDExhausted = errors.New("timer id space exhausted")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("dispatcher already started")
)
