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

package grpcsync

import (
	"context"
	"sync"
	"time"

	"github.com/grpc-instrumentation/corerpc/clock"
)

// ScheduledHandle is a cancellable handle to a callback scheduled to run on
// a CallbackSerializer after a delay. Cancel is safe to call from any
// goroutine, any number of times, and after the callback has already fired.
type ScheduledHandle struct {
	timer clock.Timer

	mu        sync.Mutex
	cancelled bool
	fired     bool
}

// ScheduleAfter arranges for f to run on cs after d has elapsed on clk,
// unless the returned handle is cancelled first. The delay is measured by
// clk, not cs, so tests can drive it deterministically with a fake clock
// without waiting on the serializer itself.
func ScheduleAfter(cs *CallbackSerializer, clk clock.Clock, d time.Duration, f func(ctx context.Context)) *ScheduledHandle {
	h := &ScheduledHandle{}
	h.timer = clk.AfterFunc(d, func() {
		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return
		}
		h.fired = true
		h.mu.Unlock()
		cs.Schedule(f)
	})
	return h
}

// Cancel prevents a pending callback from running. It has no effect if the
// callback has already fired or been cancelled.
func (h *ScheduledHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled || h.fired {
		return
	}
	h.cancelled = true
	h.timer.Stop()
}

// IsPending reports whether the callback has neither fired nor been
// cancelled yet.
func (h *ScheduledHandle) IsPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled && !h.fired
}
