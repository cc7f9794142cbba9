package pipeline

import "time"

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies tickers, so idle housekeeping can run against a fake
// timebase in tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }

func (rt *realTicker) Stop() { rt.t.Stop() }
