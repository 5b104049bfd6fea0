/*
 *
 * Copyright 2022 gRPC authors.
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

// Package leastrequest implements the least_request balancing policy: among
// choiceCount randomly sampled ready subchannels, picks the one currently
// carrying the fewest outstanding RPCs.
package leastrequest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/connectivity"
	"github.com/grpc-instrumentation/corerpc/internal/grpclog"
	"github.com/grpc-instrumentation/corerpc/resolver"
	"github.com/grpc-instrumentation/corerpc/serviceconfig"
)

// Name is the name of the least_request balancing policy.
const Name = "least_request_experimental"

var logger = grpclog.Component("core")

func init() {
	balancer.Register(bb{})
}

// LBConfig is the parsed form of the least_request balancer configuration.
type LBConfig struct {
	// ChoiceCount is the number of random subchannels sampled per pick.
	// Values below 2 are rejected; values above 10 are clamped to 10.
	ChoiceCount uint32 `json:"choiceCount,omitempty"`
}

type bb struct{}

func (bb) Name() string { return Name }

func (bb) ParseConfig(js json.RawMessage) (serviceconfig.LoadBalancingConfig, error) {
	cfg := &LBConfig{ChoiceCount: 2}
	if err := json.Unmarshal(js, cfg); err != nil {
		return nil, fmt.Errorf("least_request: unable to unmarshal LB policy config %q: %v", string(js), err)
	}
	if cfg.ChoiceCount < 2 {
		return nil, fmt.Errorf("least_request: choiceCount %d must be >= 2", cfg.ChoiceCount)
	}
	if cfg.ChoiceCount > 10 {
		cfg.ChoiceCount = 10
	}
	return cfg, nil
}

func (bb) Build(cc balancer.ClientConn, opts balancer.BuildOptions) balancer.Balancer {
	return &leastRequestBalancer{
		cc:            cc,
		choiceCount:   2,
		subConns:      make(map[balancer.SubConn]*subConnInfo),
		addrToSubConn: make(map[string]balancer.SubConn),
	}
}

type subConnInfo struct {
	rpcCount  int32
	connState connectivity.State
}

// leastRequestBalancer tracks one SubConn per resolved address and routes
// picks to whichever of choiceCount randomly sampled ready subchannels has
// the fewest RPCs in flight. Every field is touched only by the runtime's
// single-threaded balancer callbacks, so none of it needs its own lock
// beyond the atomic RPC counters shared with in-flight pickers.
type leastRequestBalancer struct {
	cc          balancer.ClientConn
	choiceCount uint32

	subConns      map[balancer.SubConn]*subConnInfo
	addrToSubConn map[string]balancer.SubConn
}

func (b *leastRequestBalancer) UpdateClientConnState(state balancer.ClientConnState) error {
	cfg, ok := state.BalancerConfig.(*LBConfig)
	if !ok {
		return fmt.Errorf("least_request: unexpected balancer config type %T", state.BalancerConfig)
	}
	b.choiceCount = cfg.ChoiceCount

	seen := make(map[string]bool)
	for _, ep := range state.ResolverState.Endpoints {
		for _, addr := range ep.Addresses {
			seen[addr.Addr] = true
			if _, ok := b.addrToSubConn[addr.Addr]; ok {
				continue
			}
			sc, err := b.cc.NewSubConn([]resolver.Address{addr}, balancer.NewSubConnOptions{})
			if err != nil {
				logger.Warningf("least_request: failed to create SubConn for %s: %v", addr.Addr, err)
				continue
			}
			b.subConns[sc] = &subConnInfo{connState: connectivity.Idle}
			b.addrToSubConn[addr.Addr] = sc
			sc.Connect()
		}
	}

	for addr, sc := range b.addrToSubConn {
		if seen[addr] {
			continue
		}
		sc.Shutdown()
		delete(b.addrToSubConn, addr)
		delete(b.subConns, sc)
	}

	b.regeneratePicker()
	return nil
}

func (b *leastRequestBalancer) UpdateSubConnState(sc balancer.SubConn, state balancer.SubConnState) {
	info, ok := b.subConns[sc]
	if !ok {
		return
	}
	if state.ConnectivityState == connectivity.Shutdown {
		delete(b.subConns, sc)
	} else {
		info.connState = state.ConnectivityState
	}
	b.regeneratePicker()
}

func (b *leastRequestBalancer) ResolverError(err error) {
	logger.Warningf("least_request: resolver error: %v", err)
}

func (b *leastRequestBalancer) Close() {
	for sc := range b.subConns {
		sc.Shutdown()
	}
}

func (b *leastRequestBalancer) regeneratePicker() {
	ready := make([]*readySubConn, 0, len(b.subConns))
	for sc, info := range b.subConns {
		if info.connState == connectivity.Ready {
			ready = append(ready, &readySubConn{sc: sc, info: info})
		}
	}
	if len(ready) == 0 {
		b.cc.UpdateState(balancer.State{ConnectivityState: connectivity.Connecting, Picker: &errPicker{err: balancer.ErrBadResolverState}})
		return
	}
	b.cc.UpdateState(balancer.State{
		ConnectivityState: connectivity.Ready,
		Picker:            &picker{choiceCount: b.choiceCount, subConns: ready},
	})
}

type readySubConn struct {
	sc   balancer.SubConn
	info *subConnInfo
}

type picker struct {
	choiceCount uint32
	subConns    []*readySubConn
}

// Pick samples choiceCount subconns with replacement and returns the one
// with the fewest RPCs currently in flight, per gRFC A48.
func (p *picker) Pick(balancer.PickInfo) (balancer.PickResult, error) {
	best := p.subConns[rand.Intn(len(p.subConns))]
	for i := 1; i < int(p.choiceCount); i++ {
		candidate := p.subConns[rand.Intn(len(p.subConns))]
		if atomic.LoadInt32(&candidate.info.rpcCount) < atomic.LoadInt32(&best.info.rpcCount) {
			best = candidate
		}
	}
	atomic.AddInt32(&best.info.rpcCount, 1)
	return balancer.PickResult{
		SubConn: best.sc,
		Done: func(balancer.DoneInfo) {
			atomic.AddInt32(&best.info.rpcCount, -1)
		},
	}, nil
}

type errPicker struct{ err error }

func (p *errPicker) Pick(balancer.PickInfo) (balancer.PickResult, error) {
	return balancer.PickResult{}, p.err
}
