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
	"github.com/grpc-instrumentation/corerpc/codes"
	"github.com/grpc-instrumentation/corerpc/status"
)

// StreamInfo carries attempt-scoped metadata the transport knows about an
// attempt before any bytes are exchanged, used to decide how the attempt
// should be accounted for in metrics.
type StreamInfo struct {
	// IsTransparentRetry reports whether this attempt is a retry performed
	// before any response headers were observed on the previous attempt.
	IsTransparentRetry bool
	// NameResolutionDelay is the time spent waiting on name resolution
	// before the attempt could start, if any. Carried for completeness;
	// this spec does not surface it as a distinct metric.
	NameResolutionDelay *time.Duration
}

// attemptTracer is created per network attempt and records exactly the
// three attempt-level histogram points, exactly once, at streamClosed. Byte
// totals are lock-free atomics because the transport's stream thread is the
// only writer at any given moment but successive attempts may run on
// different goroutines.
type attemptTracer struct {
	is     *instrumentSet
	clk    clock.Clock
	method string

	startTime  time.Time
	streamInfo StreamInfo

	headersSent uint32 // 0 or 1, set via CAS by outboundHeaders

	sentBytes uint64 // atomic
	rcvdBytes uint64 // atomic

	closed uint32 // 0 or 1, set via CAS by streamClosed; guards single emission
}

func newAttemptTracer(is *instrumentSet, clk clock.Clock, method string, si StreamInfo) *attemptTracer {
	return &attemptTracer{
		is:         is,
		clk:        clk,
		method:     method,
		startTime:  clk.Now(),
		streamInfo: si,
	}
}

// outboundHeaders records that request headers have gone out on the wire.
// It has no direct metric emission of its own; the factory consults
// headersStarted to decide whether a zero-sized synthetic attempt is needed
// at call end.
func (t *attemptTracer) outboundHeaders() {
	atomic.StoreUint32(&t.headersSent, 1)
}

func (t *attemptTracer) headersStarted() bool {
	return atomic.LoadUint32(&t.headersSent) == 1
}

// outboundMessage is a no-op for metrics purposes: only wire sizes are
// observable, not message counts.
func (t *attemptTracer) outboundMessage(int) {}

// inboundMessage is a no-op for metrics purposes, see outboundMessage.
func (t *attemptTracer) inboundMessage(int) {}

func (t *attemptTracer) outboundWireSize(n int) {
	atomic.AddUint64(&t.sentBytes, uint64(n))
}

func (t *attemptTracer) inboundWireSize(n int) {
	atomic.AddUint64(&t.rcvdBytes, uint64(n))
}

// streamClosed captures the terminal status and records the attempt's
// duration/sent/rcvd histogram points exactly once. A second call is
// ignored.
func (t *attemptTracer) streamClosed(st *status.Status) {
	if !atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		return
	}
	t.record(st, t.clk.Since(t.startTime))
}

// record emits the three attempt histogram points with the given duration;
// factored out so the call-attempts factory can synthesize a zero-sized
// point for an attempt that never produced a stream without duplicating the
// attribute construction.
func (t *attemptTracer) record(st *status.Status, duration time.Duration) {
	code := codes.OK
	if st != nil {
		code = st.Code()
	}
	attrs := attemptAttributeSet(t.method, code)

	t.is.clientAttemptDuration.Record(context.Background(), duration.Seconds(), attrs)
	t.is.clientAttemptSentTotalCompressedSize.Record(context.Background(), int64(atomic.LoadUint64(&t.sentBytes)), attrs)
	t.is.clientAttemptRcvdTotalCompressedSize.Record(context.Background(), int64(atomic.LoadUint64(&t.rcvdBytes)), attrs)
}

func attemptAttributeSet(method string, code codes.Code) otelmetric.RecordOption {
	return otelmetric.WithAttributes(
		otelAttrString("grpc.method", method),
		otelAttrString("grpc.status", code.String()),
	)
}
