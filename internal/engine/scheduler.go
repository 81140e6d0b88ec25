// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"runtime"
	"time"
)

// DefaultPeriod is the pause between iterations of the loop.
const DefaultPeriod = time.Millisecond

// Scheduler paces the engine loop.
type Scheduler interface {
	Ticks() <-chan time.Time
	Stop()
}

// TickerScheduler paces the loop with a wall-clock ticker.
type TickerScheduler struct {
	ticker *time.Ticker
}

// NewTickerScheduler returns a scheduler ticking every period, or every
// DefaultPeriod if period is not positive.
func NewTickerScheduler(period time.Duration) *TickerScheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &TickerScheduler{ticker: time.NewTicker(period)}
}

func (s *TickerScheduler) Ticks() <-chan time.Time { return s.ticker.C }
func (s *TickerScheduler) Stop()                   { s.ticker.Stop() }

// ManualScheduler only ticks when Tick is called. Tick blocks until the loop
// receives it, so after two calls the first iteration has completed.
type ManualScheduler struct {
	ch chan time.Time
}

// NewManualScheduler returns a scheduler driven by Tick.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{ch: make(chan time.Time)}
}

func (s *ManualScheduler) Tick()                   { s.ch <- time.Now() }
func (s *ManualScheduler) Ticks() <-chan time.Time { return s.ch }
func (s *ManualScheduler) Stop()                   {}

// Run steps the engine on every scheduler tick until ctx is done. The loop
// keeps its goroutine on one OS thread for the lifetime of the call.
func (e *Engine) Run(ctx context.Context, s Scheduler) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer s.Stop()

	ticks := s.Ticks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			e.Step()
		}
	}
}
