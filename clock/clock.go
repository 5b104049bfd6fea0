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

// Package clock provides a monotonic time source that can be swapped for a
// deterministic fake in tests. The cluster manager's deletion timer and the
// metrics tracers' start and end times take a Clock instead of calling the
// time package directly, so that tests can advance time explicitly instead
// of sleeping. The handshaker stream's deadline does not: it is applied with
// context.WithTimeout on real time.
package clock

import "time"

// Clock abstracts time for production code so it can be faked in tests. Its
// shape mirrors github.com/jonboulle/clockwork's Clock interface so that a
// real implementation can wrap time directly and a fake can wrap
// clockwork.FakeClock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
	// After returns a channel that receives the current time after d has
	// elapsed.
	After(d time.Duration) <-chan time.Time
	// Sleep blocks until d has elapsed.
	Sleep(d time.Duration)
	// NewTicker returns a new Ticker that fires every d.
	NewTicker(d time.Duration) Ticker
	// NewTimer returns a new Timer that fires after d.
	NewTimer(d time.Duration) Timer
	// AfterFunc waits for d to elapse and then calls f in its own
	// goroutine. It returns a Timer that can be used to cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker is satisfied by *time.Ticker and its fake counterparts.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// Timer is satisfied by *time.Timer and its fake counterparts.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// realClock delegates to the time package.
type realClock struct{}

// NewReal returns a Clock backed by the time package.
func NewReal() Clock { return realClock{} }

func (realClock) Now() time.Time                     { return time.Now() }
func (realClock) Since(t time.Time) time.Duration     { return time.Since(t) }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) Sleep(d time.Duration)               { time.Sleep(d) }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) Chan() <-chan time.Time  { return r.t.C }
func (r realTicker) Stop()                   { r.t.Stop() }
func (r realTicker) Reset(d time.Duration)   { r.t.Reset(d) }

type realTimer struct{ t *time.Timer }

func (r realTimer) Chan() <-chan time.Time     { return r.t.C }
func (r realTimer) Stop() bool                 { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
