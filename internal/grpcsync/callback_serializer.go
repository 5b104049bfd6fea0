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

// Package grpcsync provides the synchronization context: a single-threaded,
// serialized task executor on which all balancer callbacks and timers run.
package grpcsync

import (
	"context"
	"sync"
)

// CallbackSerializer provides a mechanism to schedule callbacks in a
// synchronized manner. Callbacks passed to Schedule are executed in the
// order they were scheduled, one at a time, never concurrently. A callback
// scheduled from within another running callback is queued and will run
// after the currently executing one returns, never re-entrantly on the
// calling goroutine's stack.
type CallbackSerializer struct {
	done chan struct{}

	callbacks *bufferedChan
	closedMu  sync.Mutex
	closed    bool
}

// NewCallbackSerializer returns a new CallbackSerializer instance. The
// provided context is used to terminate the serializer's run goroutine when
// cancelled; no further callbacks will execute after that point, though
// callbacks already queued before cancellation are discarded rather than
// run, matching a cooperative shutdown.
func NewCallbackSerializer(ctx context.Context) *CallbackSerializer {
	cs := &CallbackSerializer{
		done:      make(chan struct{}),
		callbacks: newBufferedChan(),
	}
	go cs.run(ctx)
	return cs
}

// Schedule adds a callback to be executed by the serializer. Callbacks are
// executed in the order they are scheduled. A callback scheduled after the
// serializer has been closed (because the context passed to
// NewCallbackSerializer was cancelled) is silently dropped; the return
// value reports whether scheduling succeeded.
func (cs *CallbackSerializer) Schedule(f func(ctx context.Context)) bool {
	cs.closedMu.Lock()
	defer cs.closedMu.Unlock()
	if cs.closed {
		return false
	}
	cs.callbacks.put(f)
	return true
}

// Done returns a channel that is closed once the serializer's run goroutine
// has exited following cancellation of its context. Callbacks still queued
// at that point are discarded, not run.
func (cs *CallbackSerializer) Done() <-chan struct{} {
	return cs.done
}

func (cs *CallbackSerializer) run(ctx context.Context) {
	defer close(cs.done)
	for {
		select {
		case <-ctx.Done():
			cs.closedMu.Lock()
			cs.closed = true
			cs.closedMu.Unlock()
			return
		case f := <-cs.callbacks.get():
			cs.callbacks.load()
			f(ctx)
		}
	}
}

// bufferedChan is an unbounded FIFO queue of callbacks, built from a
// dynamically growing backing slice guarded by a mutex, with a channel used
// to signal availability to a single consuming goroutine. It exists because
// a plain unbuffered channel cannot hold an arbitrary, growing backlog of
// callbacks scheduled faster than the serializer can drain them.
type bufferedChan struct {
	mu      sync.Mutex
	backlog []func(ctx context.Context)
	ch      chan func(ctx context.Context)
}

func newBufferedChan() *bufferedChan {
	return &bufferedChan{ch: make(chan func(ctx context.Context), 1)}
}

func (b *bufferedChan) put(f func(ctx context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Only bypass the backlog when it is empty; otherwise f would overtake
	// callbacks that were scheduled before it.
	if len(b.backlog) == 0 {
		select {
		case b.ch <- f:
			return
		default:
		}
	}
	b.backlog = append(b.backlog, f)
}

func (b *bufferedChan) get() <-chan func(ctx context.Context) {
	return b.ch
}

// load refills the channel from the backlog after a callback has been
// consumed, maintaining FIFO order.
func (b *bufferedChan) load() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.backlog) == 0 {
		return
	}
	select {
	case b.ch <- b.backlog[0]:
		b.backlog = b.backlog[1:]
	default:
	}
}
