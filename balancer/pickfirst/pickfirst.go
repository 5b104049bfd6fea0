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

// Package pickfirst implements the pick_first balancing policy: no
// load-balancing over the addresses from the resolver, just a single
// SubConn wrapping the whole resolved address list, optionally shuffled.
package pickfirst

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/connectivity"
	"github.com/grpc-instrumentation/corerpc/internal/envconfig"
	"github.com/grpc-instrumentation/corerpc/internal/grpclog"
	"github.com/grpc-instrumentation/corerpc/resolver"
	"github.com/grpc-instrumentation/corerpc/serviceconfig"
)

// Name is the name of the pick_first balancing policy.
const Name = "pick_first"

var logger = grpclog.Component("core")

func init() {
	balancer.Register(bb{})
}

// LBConfig is the JSON configuration schema for pick_first. Since
// serviceconfig.LoadBalancingConfig is an unconstrained marker type, *LBConfig
// satisfies it without any embedding.
type LBConfig struct {
	// ShuffleAddressList randomizes the order of the resolved address list
	// before attempting to connect, once per address update.
	ShuffleAddressList bool `json:"shuffleAddressList,omitempty"`
}

type parser struct{}

// ParseConfig unmarshals js into an LBConfig, defaulting ShuffleAddressList
// to false when absent.
func (parser) ParseConfig(js json.RawMessage) (serviceconfig.LoadBalancingConfig, error) {
	cfg := &LBConfig{}
	if err := json.Unmarshal(js, cfg); err != nil {
		return nil, fmt.Errorf("pickfirst: unable to unmarshal LB policy config %q: %v", string(js), err)
	}
	return cfg, nil
}

// NewParser returns a fresh ConfigParser for pick_first, usable directly by
// a Builder implementation or by tests that only need config round-tripping.
func NewParser() balancer.ConfigParser {
	return parser{}
}

// EnabledViaEnv reports whether the new pick-first implementation variant is
// selected via GRPC_EXPERIMENTAL_ENABLE_NEW_PICK_FIRST.
func EnabledViaEnv() bool {
	return envconfig.NewPickFirstEnabled
}

// bb builds pick_first balancers and parses their config; it is what
// balancer.Get(Name) resolves to once registered.
type bb struct{}

func (bb) Name() string { return Name }

func (bb) ParseConfig(js json.RawMessage) (serviceconfig.LoadBalancingConfig, error) {
	return parser{}.ParseConfig(js)
}

func (bb) Build(cc balancer.ClientConn, opts balancer.BuildOptions) balancer.Balancer {
	return &pickFirstBalancer{cc: cc}
}

// pickFirstBalancer wraps the whole resolved address list in a single
// SubConn and sticks to it; it never load-balances across addresses. Like
// leastRequestBalancer, every field is touched only from the runtime's
// single-threaded balancer callbacks.
type pickFirstBalancer struct {
	cc balancer.ClientConn

	addrs   []resolver.Address
	subConn balancer.SubConn
}

func (b *pickFirstBalancer) UpdateClientConnState(s balancer.ClientConnState) error {
	cfg, ok := s.BalancerConfig.(*LBConfig)
	if !ok {
		return fmt.Errorf("pickfirst: unexpected balancer config type %T", s.BalancerConfig)
	}

	var addrs []resolver.Address
	for _, ep := range s.ResolverState.Endpoints {
		addrs = append(addrs, ep.Addresses...)
	}
	if len(addrs) == 0 {
		return balancer.ErrBadResolverState
	}
	if cfg.ShuffleAddressList {
		rand.Shuffle(len(addrs), func(i, j int) { addrs[i], addrs[j] = addrs[j], addrs[i] })
	}
	b.addrs = addrs

	if b.subConn != nil {
		b.subConn.Shutdown()
	}
	sc, err := b.cc.NewSubConn(addrs, balancer.NewSubConnOptions{})
	if err != nil {
		logger.Warningf("pickfirst: failed to create SubConn: %v", err)
		b.subConn = nil
		b.updateState(connectivity.TransientFailure, err)
		return nil
	}
	b.subConn = sc
	b.updateState(connectivity.Connecting, balancer.ErrNoSubConnAvailable)
	sc.Connect()
	return nil
}

func (b *pickFirstBalancer) UpdateSubConnState(sc balancer.SubConn, s balancer.SubConnState) {
	if sc != b.subConn {
		return
	}
	switch s.ConnectivityState {
	case connectivity.Ready:
		b.updateState(connectivity.Ready, nil)
	case connectivity.TransientFailure:
		// pick_first sticks to a single SubConn and relies on the runtime's
		// own connect backoff to retry it; there is no next address to fall
		// through to here since one SubConn already wraps the whole
		// resolved address list.
		b.updateState(connectivity.TransientFailure, s.ConnectionError)
	case connectivity.Idle, connectivity.Connecting:
		b.updateState(connectivity.Connecting, balancer.ErrNoSubConnAvailable)
	case connectivity.Shutdown:
		b.subConn = nil
	}
}

func (b *pickFirstBalancer) ResolverError(err error) {
	logger.Warningf("pickfirst: resolver error: %v", err)
}

func (b *pickFirstBalancer) Close() {
	if b.subConn != nil {
		b.subConn.Shutdown()
		b.subConn = nil
	}
}

func (b *pickFirstBalancer) updateState(state connectivity.State, pickErr error) {
	var p balancer.Picker
	if state == connectivity.Ready {
		p = &picker{sc: b.subConn}
	} else {
		p = &errPicker{err: pickErr}
	}
	b.cc.UpdateState(balancer.State{ConnectivityState: state, Picker: p})
}

type picker struct {
	sc balancer.SubConn
}

func (p *picker) Pick(balancer.PickInfo) (balancer.PickResult, error) {
	return balancer.PickResult{SubConn: p.sc}, nil
}

type errPicker struct{ err error }

func (p *errPicker) Pick(balancer.PickInfo) (balancer.PickResult, error) {
	return balancer.PickResult{}, p.err
}
