/*
 * Copyright 2023 gRPC authors.
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
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/grpc-instrumentation/corerpc/clock"
)

// Options configures the instrument set shared by a ClientMetrics or
// ServerMetrics instance.
type Options struct {
	// MeterProvider supplies the Meter instruments are created against. A
	// nil MeterProvider yields a fully functional but silently-discarding
	// set of instruments.
	MeterProvider otelmetric.MeterProvider
	// Clock is the time source used to stamp attempt/call start times and
	// measure durations. Defaults to clock.NewReal() when nil, letting
	// tests substitute a clocktest.FakeClock.
	Clock clock.Clock
}

func (o Options) clock() clock.Clock {
	if o.Clock == nil {
		return clock.NewReal()
	}
	return o.Clock
}

// ClientMetrics owns the fixed instrument set used by every
// CallAttemptsTracerFactory created against it. Create exactly one per
// process (or per MeterProvider under test).
type ClientMetrics struct {
	is  *instrumentSet
	clk clock.Clock
}

// NewClientMetrics builds the fixed client-side instrument set once against
// opts's MeterProvider.
func NewClientMetrics(opts Options) *ClientMetrics {
	return &ClientMetrics{
		is:  newInstrumentSet(opts.MeterProvider),
		clk: opts.clock(),
	}
}

// NewCallAttemptsTracerFactory creates a fresh per-call factory for method,
// timestamped at the current time on the metrics' clock.
func (m *ClientMetrics) NewCallAttemptsTracerFactory(method string) *CallAttemptsTracerFactory {
	return NewCallAttemptsTracerFactory(m.is, m.clk, method)
}

// ServerMetrics owns the fixed instrument set used by every
// ServerCallTracer created against it. Create exactly one per process (or
// per MeterProvider under test).
type ServerMetrics struct {
	is  *instrumentSet
	clk clock.Clock
}

// NewServerMetrics builds the fixed server-side instrument set once against
// opts's MeterProvider. The client- and server-side instruments are independent,
// even though a single process commonly shares the same MeterProvider and
// hence the same underlying meter for both.
func NewServerMetrics(opts Options) *ServerMetrics {
	return &ServerMetrics{
		is:  newInstrumentSet(opts.MeterProvider),
		clk: opts.clock(),
	}
}

// NewServerCallTracer creates a tracer for one incoming call to method,
// immediately incrementing grpc.server.call.started.
func (m *ServerMetrics) NewServerCallTracer(method string) *ServerCallTracer {
	return newServerCallTracer(m.is, m.clk, method)
}
