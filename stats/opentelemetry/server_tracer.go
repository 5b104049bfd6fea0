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

// CallInfo identifies the method a ServerCallTracer was constructed for;
// serverCallStarted rebinds it as a redundant safety check against the
// method the tracer was already created with.
type CallInfo struct {
	Method string
}

// ServerCallTracer mirrors attemptTracer plus CallAttemptsTracerFactory for
// the server side, which has no retries: one tracer serves exactly one
// call.
type ServerCallTracer struct {
	is     *instrumentSet
	clk    clock.Clock
	method string

	startTime time.Time

	sentBytes uint64 // atomic
	rcvdBytes uint64 // atomic

	closed uint32 // 0 or 1, guards single emission
}

// newServerCallTracer creates the tracer and immediately increments
// grpc.server.call.started with {method}, since server calls have no retry
// concept requiring a separate factory layer.
func newServerCallTracer(is *instrumentSet, clk clock.Clock, method string) *ServerCallTracer {
	is.serverCallStarted.Add(context.Background(), 1, otelmetric.WithAttributes(otelAttrString("grpc.method", method)))
	return &ServerCallTracer{
		is:        is,
		clk:       clk,
		method:    method,
		startTime: clk.Now(),
	}
}

// ServerCallStarted binds the method a second time as a redundant safety
// check; it does not re-emit the started counter.
func (t *ServerCallTracer) ServerCallStarted(ci CallInfo) {
	t.method = ci.Method
}

func (t *ServerCallTracer) OutboundWireSize(n int) {
	atomic.AddUint64(&t.sentBytes, uint64(n))
}

func (t *ServerCallTracer) InboundWireSize(n int) {
	atomic.AddUint64(&t.rcvdBytes, uint64(n))
}

func (t *ServerCallTracer) OutboundMessage(int) {}
func (t *ServerCallTracer) InboundMessage(int)  {}

// StreamClosed records call.duration, sent, and rcvd exactly once, keyed by
// st. A second call is ignored.
func (t *ServerCallTracer) StreamClosed(st *status.Status) {
	if !atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		return
	}
	duration := t.clk.Since(t.startTime)
	attrs := otelmetric.WithAttributes(
		otelAttrString("grpc.method", t.method),
		otelAttrString("grpc.status", st.Code().String()),
	)
	t.is.serverCallDuration.Record(context.Background(), duration.Seconds(), attrs)
	t.is.serverCallSentTotalCompressedSize.Record(context.Background(), int64(atomic.LoadUint64(&t.sentBytes)), attrs)
	t.is.serverCallRcvdTotalCompressedSize.Record(context.Background(), int64(atomic.LoadUint64(&t.rcvdBytes)), attrs)
}
