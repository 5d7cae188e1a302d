package lesson

import "time"

// Token cancels a scheduled callback
type Token interface {
	// Cancel prevents the callback from running. It returns false if the
	// callback already ran or was already canceled.
	Cancel() bool
}

// Scheduler runs callbacks after a delay
type Scheduler interface {
	After(d time.Duration, fn func()) Token
}

// TimerScheduler schedules with time.AfterFunc
type TimerScheduler struct{}

// After runs fn on its own goroutine once d has elapsed
func (TimerScheduler) After(d time.Duration, fn func()) Token {
	return timerToken{t: time.AfterFunc(d, fn)}
}

type timerToken struct {
	t *time.Timer
}

func (t timerToken) Cancel() bool {
	return t.t.Stop()
}
