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

// DefaultSizeBounds are the default bucket boundaries, in bytes, for the
// message-size histograms (attempt/call sent and received compressed
// message size).
var DefaultSizeBounds = []float64{
	0, 1024, 2048, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216,
	67108864, 268435456, 1073741824, 4294967296,
}

// DefaultLatencyBounds are the default bucket boundaries, in seconds, for
// the duration histograms (attempt duration, call duration).
var DefaultLatencyBounds = []float64{
	0, 0.00001, 0.00005, 0.0001, 0.0003, 0.0006, 0.0008, 0.001, 0.002, 0.003,
	0.004, 0.005, 0.006, 0.008, 0.01, 0.013, 0.016, 0.02, 0.025, 0.03, 0.04,
	0.05, 0.065, 0.08, 0.1, 0.13, 0.16, 0.2, 0.25, 0.3, 0.4, 0.5, 0.65, 0.8,
	1, 2, 5, 10, 20, 50, 100,
}
