package poll

import "time"

// Clock abstracts timer creation so tests can drive virtual time instead of
// waiting on wall-clock timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
