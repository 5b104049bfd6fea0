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

// Package connectivity defines the connectivity states a balancer or child
// balancer can report to its parent.
package connectivity

// State indicates the state of connectivity of a child balancer or
// subchannel.
type State int

const (
	// Idle indicates no connection attempt is in progress; one will be
	// initiated lazily on the next pick.
	Idle State = iota
	// Connecting indicates a connection attempt is underway.
	Connecting
	// Ready indicates the entity is ready to serve picks.
	Ready
	// TransientFailure indicates the entity has seen a failure but may
	// recover.
	TransientFailure
	// Shutdown indicates the entity has stopped permanently.
	Shutdown
)

var names = map[State]string{
	Idle:             "IDLE",
	Connecting:       "CONNECTING",
	Ready:            "READY",
	TransientFailure: "TRANSIENT_FAILURE",
	Shutdown:         "SHUTDOWN",
}

func (s State) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "INVALID_STATE"
}
