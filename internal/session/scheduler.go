package session

import "time"

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Callbacks run on their own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type wallClock struct{}

// WallClock schedules on real time.
func WallClock() Scheduler { return wallClock{} }

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (wallClock) Now() time.Time { return time.Now() }
