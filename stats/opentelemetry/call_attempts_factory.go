/*
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
 */

package opentelemetry

import (
	"context"
	"sync/atomic"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/grpc-instrumentation/corerpc/clock"
	"github.com/grpc-instrumentation/corerpc/status"
)

// CallAttemptsTracerFactory is the per-logical-call aggregator: it creates
// one attemptTracer per network attempt (including retries and transparent
// retries) and emits the single call-level duration point when the call
// ends. Callers obtain one from a ClientMetrics for each new RPC.
type CallAttemptsTracerFactory struct {
	is     *instrumentSet
	clk    clock.Clock
	method string

	callStartTime time.Time

	attemptCount uint32 // atomic; total newClientStreamTracer invocations
	lastTracer   atomic.Pointer[attemptTracer]

	callEnded uint32 // 0 or 1, guards single call.duration emission
}

// NewCallAttemptsTracerFactory creates a factory for one logical call to
// method, timestamped at creation with clk.Now().
func NewCallAttemptsTracerFactory(is *instrumentSet, clk clock.Clock, method string) *CallAttemptsTracerFactory {
	return &CallAttemptsTracerFactory{
		is:            is,
		clk:           clk,
		method:        method,
		callStartTime: clk.Now(),
	}
}

// NewClientStreamTracer creates a new attempt tracer and unconditionally
// increments grpc.client.attempt.started, whether this is the first
// attempt, a regular retry, or a transparent retry.
func (f *CallAttemptsTracerFactory) NewClientStreamTracer(si StreamInfo, _ any) *attemptTracer {
	atomic.AddUint32(&f.attemptCount, 1)
	f.is.clientAttemptStarted.Add(context.Background(), 1, otelmetric.WithAttributes(otelAttrString("grpc.method", f.method)))

	t := newAttemptTracer(f.is, f.clk, f.method, si)
	f.lastTracer.Store(t)
	return t
}

// CallEnded records exactly one grpc.client.call.duration point and, if the
// call never produced a stream that reached outboundHeaders, also
// synthesizes a single zero-sized attempt record so that the attempt
// histograms observe a point for every call. A second invocation is a
// no-op.
func (f *CallAttemptsTracerFactory) CallEnded(st *status.Status) {
	if !atomic.CompareAndSwapUint32(&f.callEnded, 0, 1) {
		return
	}

	duration := f.clk.Since(f.callStartTime)
	code := st.Code()
	f.is.clientCallDuration.Record(context.Background(), duration.Seconds(), otelmetric.WithAttributes(
		otelAttrString("grpc.method", f.method),
		otelAttrString("grpc.status", code.String()),
	))

	switch count := atomic.LoadUint32(&f.attemptCount); {
	case count == 0:
		// No attempt was ever created: synthesize both the started count
		// and the zero-sized histogram points so the attempt metrics still
		// observe one point for this call.
		f.is.clientAttemptStarted.Add(context.Background(), 1, otelmetric.WithAttributes(otelAttrString("grpc.method", f.method)))
		synth := newAttemptTracer(f.is, f.clk, f.method, StreamInfo{})
		synth.record(st, 0)
	case count == 1:
		if t := f.lastTracer.Load(); t != nil && !t.headersStarted() {
			// The lone attempt never got far enough to send headers; close
			// it out as a zero-sized point keyed by the call's terminal
			// status. If the attempt already closed itself for any reason
			// this CAS loses and nothing happens.
			if atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
				t.record(st, 0)
			}
		}
	}
}
