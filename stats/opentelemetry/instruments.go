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

// Package opentelemetry records per-attempt and per-call gRPC metrics as
// OpenTelemetry instruments. It implements the attempt tracer, the
// call-attempts factory, and the server call tracer against a fixed
// instrument set bound once to a Meter.
package opentelemetry

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/grpc-instrumentation/corerpc/internal/grpclog"
)

const instrumentationScope = "github.com/grpc-instrumentation/corerpc"

var logger = grpclog.Component("opentelemetry-instrumentation")

// instrumentSet holds the fixed set of instruments shared by every tracer
// and factory created against the same MeterProvider. It is built exactly
// once per process (per MeterProvider) and is safe for concurrent use,
// since every otel instrument is itself safe for concurrent recording.
type instrumentSet struct {
	clientAttemptStarted                 metric.Int64Counter
	clientAttemptDuration                metric.Float64Histogram
	clientAttemptSentTotalCompressedSize metric.Int64Histogram
	clientAttemptRcvdTotalCompressedSize metric.Int64Histogram
	clientCallDuration                   metric.Float64Histogram

	serverCallStarted                 metric.Int64Counter
	serverCallDuration                metric.Float64Histogram
	serverCallSentTotalCompressedSize metric.Int64Histogram
	serverCallRcvdTotalCompressedSize metric.Int64Histogram
}

// newInstrumentSet creates the fixed set of client and server instruments
// against a Meter obtained from provider. If provider is nil, a no-op MeterProvider
// is substituted, so the returned instruments silently discard every
// recorded point instead of requiring every call site to nil-check.
func newInstrumentSet(provider metric.MeterProvider) *instrumentSet {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(instrumentationScope)

	is := &instrumentSet{}
	var err error

	is.clientAttemptStarted, err = meter.Int64Counter(
		"grpc.client.attempt.started",
		metric.WithUnit("{attempt}"),
		metric.WithDescription("Number of client call attempts started."))
	logIfErr(err)

	is.clientAttemptDuration, err = meter.Float64Histogram(
		"grpc.client.attempt.duration",
		metric.WithUnit("s"),
		metric.WithDescription("End-to-end time taken to complete a client call attempt."),
		metric.WithExplicitBucketBoundaries(DefaultLatencyBounds...))
	logIfErr(err)

	is.clientAttemptSentTotalCompressedSize, err = meter.Int64Histogram(
		"grpc.client.attempt.sent_total_compressed_message_size",
		metric.WithUnit("By"),
		metric.WithDescription("Compressed message bytes sent per client call attempt."),
		metric.WithExplicitBucketBoundaries(DefaultSizeBounds...))
	logIfErr(err)

	is.clientAttemptRcvdTotalCompressedSize, err = meter.Int64Histogram(
		"grpc.client.attempt.rcvd_total_compressed_message_size",
		metric.WithUnit("By"),
		metric.WithDescription("Compressed message bytes received per call attempt."),
		metric.WithExplicitBucketBoundaries(DefaultSizeBounds...))
	logIfErr(err)

	is.clientCallDuration, err = meter.Float64Histogram(
		"grpc.client.call.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time taken by gRPC to complete an RPC from application's perspective."),
		metric.WithExplicitBucketBoundaries(DefaultLatencyBounds...))
	logIfErr(err)

	is.serverCallStarted, err = meter.Int64Counter(
		"grpc.server.call.started",
		metric.WithUnit("{call}"),
		metric.WithDescription("Number of server calls started."))
	logIfErr(err)

	is.serverCallDuration, err = meter.Float64Histogram(
		"grpc.server.call.duration",
		metric.WithUnit("s"),
		metric.WithDescription("End-to-end time taken to complete a call from server transport's perspective."),
		metric.WithExplicitBucketBoundaries(DefaultLatencyBounds...))
	logIfErr(err)

	is.serverCallSentTotalCompressedSize, err = meter.Int64Histogram(
		"grpc.server.call.sent_total_compressed_message_size",
		metric.WithUnit("By"),
		metric.WithDescription("Compressed message bytes sent per server call."),
		metric.WithExplicitBucketBoundaries(DefaultSizeBounds...))
	logIfErr(err)

	is.serverCallRcvdTotalCompressedSize, err = meter.Int64Histogram(
		"grpc.server.call.rcvd_total_compressed_message_size",
		metric.WithUnit("By"),
		metric.WithDescription("Compressed message bytes received per server call."),
		metric.WithExplicitBucketBoundaries(DefaultSizeBounds...))
	logIfErr(err)

	return is
}

func logIfErr(err error) {
	if err != nil {
		logger.Errorf("failed to create instrument: %v", err)
	}
}
