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

// Package balancer defines the minimal APIs a load-balancing policy must
// implement to plug into the runtime, and the registry that maps a policy
// name to its Builder. Transport, subchannel connection management and
// name resolution are out of scope; this package only models the surface
// the cluster manager needs to multiplex picks across named children.
package balancer

import (
	"encoding/json"
	"errors"

	"github.com/grpc-instrumentation/corerpc/connectivity"
	"github.com/grpc-instrumentation/corerpc/resolver"
	"github.com/grpc-instrumentation/corerpc/serviceconfig"
)

// SubConn represents a single connection to a server, as seen by a balancer.
// It is opaque outside of the balancer that created it.
type SubConn interface {
	// Connect starts connecting the SubConn.
	Connect()
	// Shutdown shuts down the SubConn.
	Shutdown()
}

// ClientConn is the interface a Balancer uses to communicate with the rest
// of the runtime: creating subchannels and publishing picker updates.
type ClientConn interface {
	// NewSubConn creates a new SubConn for addrs.
	NewSubConn(addrs []resolver.Address, opts NewSubConnOptions) (SubConn, error)
	// UpdateState notifies the runtime of a change in the overall
	// connectivity state and the Picker to use for subsequent picks.
	UpdateState(State)
	// ResolveNow is called to ask the name resolver to re-resolve.
	ResolveNow()
}

// NewSubConnOptions configures a NewSubConn call.
type NewSubConnOptions struct {
	HealthCheckEnabled bool
}

// BuildOptions contains additional information for Build.
type BuildOptions struct {
	// Target is the name of the target this balancer is serving.
	Target string
}

// ClientConnState is the balancer's snapshot of the resolver state plus its
// parsed balancer configuration.
type ClientConnState struct {
	ResolverState  resolver.State
	BalancerConfig serviceconfig.LoadBalancingConfig
}

// ErrBadResolverState may be returned by UpdateClientConnState to indicate
// that the resolver state is unusable.
var ErrBadResolverState = errors.New("bad resolver state")

// ErrNoSubConnAvailable may be returned by a Picker to indicate that no
// SubConn is available for a pick and the caller should wait for a state
// change before retrying, typically while a balancer is still CONNECTING.
var ErrNoSubConnAvailable = errors.New("no SubConn is available")

// Balancer takes input from the runtime (address updates, errors) and
// produces output (new/removed SubConns, and new Pickers).
type Balancer interface {
	// UpdateClientConnState is called when the ClientConn changes the
	// resolver state or balancer config.
	UpdateClientConnState(ClientConnState) error
	// ResolverError is called when the name resolver reports an error.
	ResolverError(error)
	// UpdateSubConnState is called when a SubConn's connectivity state
	// changes.
	UpdateSubConnState(SubConn, SubConnState)
	// Close shuts down the balancer, releasing all resources.
	Close()
}

// SubConnState describes the state of a SubConn.
type SubConnState struct {
	ConnectivityState connectivity.State
	ConnectionError   error
}

// State is the balancer state communicated to the ClientConn via
// UpdateState.
type State struct {
	ConnectivityState connectivity.State
	Picker            Picker
}

// PickInfo contains additional information for a Pick.
type PickInfo struct {
	// FullMethodName is the method name for the RPC being picked for.
	FullMethodName string
	// Ctx carries call-scoped values, including the cluster-selection key
	// consulted by the cluster-dispatch picker.
	Ctx CallContext
}

// CallContext is the minimal context surface a Picker needs: reading a
// single opaque value attached by the caller.
type CallContext interface {
	Value(key any) any
}

// DoneInfo is passed to the done callback returned by a pick.
type DoneInfo struct {
	Err error
}

// PickResult is returned by Pick.
type PickResult struct {
	SubConn SubConn
	Done    func(DoneInfo)
}

// Picker is a pure function from PickInfo to a PickResult or a pick error.
// It must be safe for concurrent use and must not block.
type Picker interface {
	Pick(PickInfo) (PickResult, error)
}

// ConfigParser parses a JSON balancer config into a
// serviceconfig.LoadBalancingConfig understood by the matching Builder.
type ConfigParser interface {
	ParseConfig(json.RawMessage) (serviceconfig.LoadBalancingConfig, error)
}

// Builder creates a Balancer and optionally parses its configuration.
type Builder interface {
	// Build creates a new Balancer with the ClientConn.
	Build(cc ClientConn, opts BuildOptions) Balancer
	// Name returns the name of balancers built by this builder.
	Name() string
}

var registry = make(map[string]Builder)

// Register registers the balancer builder under b.Name(). Registering a
// name a second time overwrites the prior registration, matching how the
// runtime lets late-loaded policies shadow earlier ones.
func Register(b Builder) {
	registry[b.Name()] = b
}

// Get returns the Builder registered under name, or nil if none exists.
func Get(name string) Builder {
	return registry[name]
}

// unregisterForTesting removes a registration; exists only for test
// isolation between balancer implementations that reuse the same name.
func unregisterForTesting(name string) {
	delete(registry, name)
}
