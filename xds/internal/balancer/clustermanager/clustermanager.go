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

// Package clustermanager implements the cluster-manager load balancer: the
// top-level xDS policy that multiplexes calls over a dynamic set of child
// balancers addressed by cluster name, deferring deletion of removed
// children so that a cluster briefly withdrawn and re-advertised reuses its
// existing child instead of being rebuilt from scratch.
package clustermanager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/clock"
	"github.com/grpc-instrumentation/corerpc/connectivity"
	"github.com/grpc-instrumentation/corerpc/internal/grpclog"
	"github.com/grpc-instrumentation/corerpc/internal/grpcsync"
	"github.com/grpc-instrumentation/corerpc/serviceconfig"
)

// Name is the name of the cluster_manager balancing policy.
const Name = "xds_cluster_manager_experimental"

// deletionTimeout is how long a deactivated child survives before it is
// shut down and removed from the registry. Long enough to ride out a
// machine reboot; short enough that churn doesn't accumulate unboundedly.
const deletionTimeout = 15 * time.Minute

var logger = grpclog.Component("xds")

func init() {
	balancer.Register(bb{})
}

type bb struct{}

func (bb) Name() string { return Name }

func (bb) Build(cc balancer.ClientConn, opts balancer.BuildOptions) balancer.Balancer {
	ctx, cancel := context.WithCancel(context.Background())
	b := &clusterManagerBalancer{
		cc:               cc,
		bOpts:            opts,
		clk:              clock.NewReal(),
		children:         make(map[string]*childBalancer),
		serializer:       grpcsync.NewCallbackSerializer(ctx),
		serializerCancel: cancel,
	}
	logger.Infof("Created")
	return b
}

func (bb) ParseConfig(js json.RawMessage) (serviceconfig.LoadBalancingConfig, error) {
	return ParseConfig(js)
}

// clusterManagerBalancer is the top-level balancer.Balancer implementation.
// Every field below children, clk, and bOpts is mutated exclusively from
// callbacks running on serializer, matching the synchronization-context
// discipline: the registry is never touched concurrently with itself.
type clusterManagerBalancer struct {
	cc    balancer.ClientConn
	bOpts balancer.BuildOptions
	clk   clock.Clock

	serializer       *grpcsync.CallbackSerializer
	serializerCancel context.CancelFunc

	children map[string]*childBalancer
}

// UpdateClientConnState funnels the update through the serializer and
// blocks until it has been fully applied, so that callers observe a
// synchronous balancer.Balancer contract while the registry mutation itself
// stays single-threaded.
func (b *clusterManagerBalancer) UpdateClientConnState(state balancer.ClientConnState) error {
	errCh := make(chan error, 1)
	b.serializer.Schedule(func(ctx context.Context) {
		errCh <- b.updateClientConnStateLocked(state)
	})
	return <-errCh
}

func (b *clusterManagerBalancer) updateClientConnStateLocked(state balancer.ClientConnState) error {
	cfg, ok := state.BalancerConfig.(*LBConfig)
	if !ok {
		return fmt.Errorf("clustermanager: unexpected balancer config type %T", state.BalancerConfig)
	}

	present := make(map[string]bool, len(cfg.ChildPolicies))
	var firstErr error
	for name, cp := range cfg.ChildPolicies {
		present[name] = true

		child, exists := b.children[name]
		if !exists {
			child = newChildBalancer(name, b)
			b.children[name] = child
		} else if child.deactivated {
			// Reactivation MUST cancel the pending deletion timer before
			// any new picker state derived from this update is published.
			child.reactivate()
		}
		child.ensureBuilt(cp.Builder)

		if err := child.updateClientConnState(balancer.ClientConnState{
			ResolverState:  state.ResolverState,
			BalancerConfig: cp.Config,
		}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clustermanager: child %q: %w", name, err)
		}
	}

	for name, child := range b.children {
		if !present[name] && !child.deactivated {
			child.deactivate(b.clk, deletionTimeout)
		}
	}

	b.updatePickerLocked()
	return firstErr
}

// removeChild shuts down and deletes name's child. Called only from the
// deletion timer's callback on the serializer; a no-op if the child was
// already removed (e.g. by Close racing the timer), since a fired timer
// that finds its child gone must not resurrect or double-close anything.
func (b *clusterManagerBalancer) removeChild(name string) {
	child, ok := b.children[name]
	if !ok {
		return
	}
	child.shutdown()
	delete(b.children, name)
	b.updatePickerLocked()
}

// updatePickerLocked rebuilds and publishes the aggregate picker from the
// current set of non-deactivated children. It MUST run on the serializer.
func (b *clusterManagerBalancer) updatePickerLocked() {
	active := make(map[string]balancer.Picker, len(b.children))

	var ready, connecting, idle, transientFailure int
	for name, child := range b.children {
		if child.deactivated {
			// A deactivated child is not serving new picks; a pick for its
			// cluster behaves as if the child were absent until it is
			// either reactivated or removed.
			continue
		}
		active[name] = child.state.Picker
		switch child.state.ConnectivityState {
		case connectivity.Ready:
			ready++
		case connectivity.Connecting:
			connecting++
		case connectivity.Idle:
			idle++
		default:
			transientFailure++
		}
	}

	aggState := connectivity.TransientFailure
	switch {
	case ready > 0:
		aggState = connectivity.Ready
	case connecting > 0:
		aggState = connectivity.Connecting
	case idle > 0:
		aggState = connectivity.Idle
	}

	b.cc.UpdateState(balancer.State{
		ConnectivityState: aggState,
		Picker:            &clusterPicker{children: active},
	})
}

// ResolverError forwards err to every non-deactivated child. If every child
// is deactivated (or there are none), it instead publishes a
// TRANSIENT_FAILURE picker carrying the error, since no child is left to
// report the failure on the balancer's behalf.
func (b *clusterManagerBalancer) ResolverError(err error) {
	done := make(chan struct{})
	b.serializer.Schedule(func(ctx context.Context) {
		defer close(done)
		anyActive := false
		for _, child := range b.children {
			if child.deactivated {
				continue
			}
			anyActive = true
			if child.bal != nil {
				child.bal.ResolverError(err)
			}
		}
		if !anyActive {
			b.cc.UpdateState(balancer.State{
				ConnectivityState: connectivity.TransientFailure,
				Picker:            &errPicker{err: fmt.Errorf("name resolution error: %w", err)},
			})
		}
	})
	<-done
}

// UpdateSubConnState is unused: children own their SubConns directly and
// receive state updates through their own ClientConn, not this balancer's.
func (b *clusterManagerBalancer) UpdateSubConnState(balancer.SubConn, balancer.SubConnState) {}

func (b *clusterManagerBalancer) Close() {
	done := make(chan struct{})
	b.serializer.Schedule(func(ctx context.Context) {
		defer close(done)
		for name, child := range b.children {
			child.shutdown()
			delete(b.children, name)
		}
	})
	<-done
	b.serializerCancel()
	<-b.serializer.Done()
}
