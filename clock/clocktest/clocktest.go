/*
 *
 * Copyright 2024 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package clocktest provides a deterministic fake implementation of
// clock.Clock for use in tests that need to assert on exact millisecond
// timings without sleeping real wall-clock time.
package clocktest

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/grpc-instrumentation/corerpc/clock"
)

// FakeClock is a clock.Clock that only moves forward when Advance is
// called, so that tests can deterministically drive timers and deadlines.
type FakeClock interface {
	clock.Clock
	// Advance advances the fake clock by d, firing any timers and tickers
	// scheduled to fire at or before the new time.
	Advance(d time.Duration)
}

// NewFakeClock returns a new FakeClock set to an arbitrary fixed time.
func NewFakeClock() FakeClock {
	return fakeClock{clockwork.NewFakeClock()}
}

// fakeClock adapts clockwork.FakeClock to clock.Clock. Compatibility
// between Go interfaces is shallow: clockwork.Clock's NewTicker and
// NewTimer return *clockwork.FakeTicker/*clockwork.FakeTimer, which satisfy
// clockwork's own Ticker/Timer interfaces but not this package's Ticker/
// Timer (different method sets), so each needs a thin wrapper.
type fakeClock struct {
	clockwork.FakeClock
}

func (f fakeClock) NewTicker(d time.Duration) clock.Ticker {
	return fakeTicker{f.FakeClock.NewTicker(d)}
}

func (f fakeClock) NewTimer(d time.Duration) clock.Timer {
	return fakeTimer{f.FakeClock.NewTimer(d)}
}

func (f fakeClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	return fakeTimer{f.FakeClock.AfterFunc(d, fn)}
}

func (f fakeClock) Advance(d time.Duration) {
	f.FakeClock.Advance(d)
}

type fakeTicker struct {
	t clockwork.Ticker
}

func (f fakeTicker) Chan() <-chan time.Time { return f.t.Chan() }
func (f fakeTicker) Stop()                  { f.t.Stop() }
func (f fakeTicker) Reset(d time.Duration)  { f.t.Reset(d) }

type fakeTimer struct {
	t clockwork.Timer
}

func (f fakeTimer) Chan() <-chan time.Time     { return f.t.Chan() }
func (f fakeTimer) Stop() bool                 { return f.t.Stop() }
func (f fakeTimer) Reset(d time.Duration) bool { return f.t.Reset(d) }
