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
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/grpc-instrumentation/corerpc/clock/clocktest"
	"github.com/grpc-instrumentation/corerpc/codes"
	"github.com/grpc-instrumentation/corerpc/status"
)

const testMethod = "package1.service2/method3"

func sumOf(t *testing.T, rm *metricdata.ResourceMetrics, name string) float64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				var sum float64
				for _, dp := range d.DataPoints {
					sum += float64(dp.Value)
				}
				return sum
			case metricdata.Histogram[int64]:
				var sum float64
				for _, dp := range d.DataPoints {
					sum += float64(dp.Sum)
				}
				return sum
			case metricdata.Histogram[float64]:
				var sum float64
				for _, dp := range d.DataPoints {
					sum += dp.Sum
				}
				return sum
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

// TestBasicSuccessfulClientCall covers a single attempt that sends two
// messages and receives one, closing OK.
func TestBasicSuccessfulClientCall(t *testing.T) {
	fc := clocktest.NewFakeClock()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	cm := NewClientMetrics(Options{MeterProvider: provider, Clock: fc})

	factory := cm.NewCallAttemptsTracerFactory(testMethod)
	tr := factory.NewClientStreamTracer(StreamInfo{}, nil)

	fc.Advance(30 * time.Millisecond)
	tr.outboundHeaders()
	fc.Advance(100 * time.Millisecond)
	tr.outboundMessage(0)
	tr.outboundWireSize(1028)
	fc.Advance(16 * time.Millisecond)
	tr.inboundMessage(0)
	tr.outboundMessage(1)
	tr.outboundWireSize(99)
	fc.Advance(24 * time.Millisecond)
	tr.inboundWireSize(154)
	tr.streamClosed(status.New(codes.OK, ""))
	factory.CallEnded(status.New(codes.OK, ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if got := sumOf(t, &rm, "grpc.client.attempt.started"); got != 1 {
		t.Errorf("attempt.started = %v, want 1", got)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.duration"); got < 0.169 || got > 0.171 {
		t.Errorf("attempt.duration sum = %v, want ~0.170", got)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.sent_total_compressed_message_size"); got != 1127 {
		t.Errorf("attempt.sent sum = %v, want 1127", got)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.rcvd_total_compressed_message_size"); got != 154 {
		t.Errorf("attempt.rcvd sum = %v, want 154", got)
	}
	if got := sumOf(t, &rm, "grpc.client.call.duration"); got < 0.169 || got > 0.171 {
		t.Errorf("call.duration sum = %v, want ~0.170", got)
	}
}

// TestRetryThenTransparentRetryThenSuccess covers four attempts, each with
// its own terminal status, contributing one started-count increment apiece.
func TestRetryThenTransparentRetryThenSuccess(t *testing.T) {
	fc := clocktest.NewFakeClock()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	cm := NewClientMetrics(Options{MeterProvider: provider, Clock: fc})

	factory := cm.NewCallAttemptsTracerFactory(testMethod)

	statuses := []codes.Code{codes.Unavailable, codes.NotFound, codes.Unavailable, codes.OK}
	transparent := []bool{false, true, true, true}
	for i, code := range statuses {
		tr := factory.NewClientStreamTracer(StreamInfo{IsTransparentRetry: transparent[i]}, nil)
		tr.outboundHeaders()
		fc.Advance(time.Millisecond)
		tr.streamClosed(status.New(code, ""))
	}
	factory.CallEnded(status.New(codes.OK, ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.started"); got != 4 {
		t.Errorf("attempt.started = %v, want 4", got)
	}
}

// TestCallEndsBeforeAnyStream covers callEnded firing having never created
// a stream tracer, where the attempt-started counter and a zero-sized
// attempt record are still synthesized.
func TestCallEndsBeforeAnyStream(t *testing.T) {
	fc := clocktest.NewFakeClock()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	cm := NewClientMetrics(Options{MeterProvider: provider, Clock: fc})

	factory := cm.NewCallAttemptsTracerFactory(testMethod)
	fc.Advance(3000 * time.Millisecond)
	factory.CallEnded(status.New(codes.DeadlineExceeded, ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.started"); got != 1 {
		t.Errorf("attempt.started = %v, want 1", got)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.duration"); got != 0 {
		t.Errorf("attempt.duration sum = %v, want 0", got)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.sent_total_compressed_message_size"); got != 0 {
		t.Errorf("attempt.sent sum = %v, want 0", got)
	}
	if got := sumOf(t, &rm, "grpc.client.call.duration"); got != 3 {
		t.Errorf("call.duration sum = %v, want 3", got)
	}
}

// TestCallEndedIsIdempotent covers a second CallEnded after the first
// being a no-op.
func TestCallEndedIsIdempotent(t *testing.T) {
	fc := clocktest.NewFakeClock()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	cm := NewClientMetrics(Options{MeterProvider: provider, Clock: fc})

	factory := cm.NewCallAttemptsTracerFactory(testMethod)
	factory.CallEnded(status.New(codes.OK, ""))
	// Let time pass so that a second recording would add a non-zero point.
	fc.Advance(time.Second)
	factory.CallEnded(status.New(codes.Internal, ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if got := sumOf(t, &rm, "grpc.client.call.duration"); got != 0 {
		t.Errorf("call.duration sum = %v, want 0 (only first CallEnded counts)", got)
	}
}

// TestServerCallCancelledMidStream covers a server call cancelled mid-stream
// after partial message exchange.
func TestServerCallCancelledMidStream(t *testing.T) {
	fc := clocktest.NewFakeClock()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	sm := NewServerMetrics(Options{MeterProvider: provider, Clock: fc})

	tr := sm.NewServerCallTracer(testMethod)
	tr.ServerCallStarted(CallInfo{Method: testMethod})
	tr.InboundMessage(0)
	tr.InboundWireSize(34)
	fc.Advance(100 * time.Millisecond)
	tr.OutboundMessage(0)
	tr.OutboundWireSize(1028)
	fc.Advance(16 * time.Millisecond)
	tr.InboundWireSize(154)
	tr.OutboundWireSize(99)
	fc.Advance(24 * time.Millisecond)
	tr.StreamClosed(status.New(codes.Canceled, ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if got := sumOf(t, &rm, "grpc.server.call.started"); got != 1 {
		t.Errorf("call.started = %v, want 1", got)
	}
	if got := sumOf(t, &rm, "grpc.server.call.duration"); got < 0.139 || got > 0.141 {
		t.Errorf("call.duration sum = %v, want ~0.140", got)
	}
	if got := sumOf(t, &rm, "grpc.server.call.sent_total_compressed_message_size"); got != 1127 {
		t.Errorf("sent sum = %v, want 1127", got)
	}
	if got := sumOf(t, &rm, "grpc.server.call.rcvd_total_compressed_message_size"); got != 188 {
		t.Errorf("rcvd sum = %v, want 188", got)
	}
}

// TestStreamClosedIsIdempotent covers the attempt-tracer half of the
// idempotence property: a second streamClosed call is ignored.
func TestStreamClosedIsIdempotent(t *testing.T) {
	fc := clocktest.NewFakeClock()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	cm := NewClientMetrics(Options{MeterProvider: provider, Clock: fc})

	factory := cm.NewCallAttemptsTracerFactory(testMethod)
	tr := factory.NewClientStreamTracer(StreamInfo{}, nil)
	tr.outboundWireSize(10)
	tr.streamClosed(status.New(codes.OK, ""))
	tr.outboundWireSize(1000) // must not be observed; already closed
	tr.streamClosed(status.New(codes.Internal, ""))
	factory.CallEnded(status.New(codes.OK, ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if got := sumOf(t, &rm, "grpc.client.attempt.sent_total_compressed_message_size"); got != 10 {
		t.Errorf("attempt.sent sum = %v, want 10 (second streamClosed must be ignored)", got)
	}
}
