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

package clustermanager

import (
	"context"
	"time"

	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/clock"
	"github.com/grpc-instrumentation/corerpc/connectivity"
	"github.com/grpc-instrumentation/corerpc/internal/grpcsync"
)

// childBalancer holds one cluster's child policy and its deactivation
// state. Every field here is touched only from callbacks running on the
// owning clusterManagerBalancer's serializer, so none of it needs its own
// lock.
type childBalancer struct {
	name   string
	parent *clusterManagerBalancer

	cc  *childClientConn
	bal balancer.Balancer

	builderName string

	deactivated   bool
	deletionTimer *grpcsync.ScheduledHandle

	state balancer.State
}

func newChildBalancer(name string, parent *clusterManagerBalancer) *childBalancer {
	c := &childBalancer{
		name:   name,
		parent: parent,
		state:  balancer.State{ConnectivityState: connectivity.Connecting},
	}
	c.cc = &childClientConn{ClientConn: parent.cc, child: c}
	return c
}

// ensureBuilt installs b as this cluster's child policy if it isn't already,
// closing out any previously installed policy first.
func (c *childBalancer) ensureBuilt(b balancer.Builder) {
	if c.bal != nil && c.builderName == b.Name() {
		return
	}
	if c.bal != nil {
		c.bal.Close()
	}
	c.builderName = b.Name()
	c.bal = b.Build(c.cc, c.parent.bOpts)
}

func (c *childBalancer) updateClientConnState(state balancer.ClientConnState) error {
	return c.bal.UpdateClientConnState(state)
}

// reactivate cancels any pending deletion timer and marks the child active
// again. It MUST run before any new picker state derived from this update is
// published, so that a reactivated child is never simultaneously subject to
// a pending deletion.
func (c *childBalancer) reactivate() {
	if c.deletionTimer != nil {
		c.deletionTimer.Cancel()
		c.deletionTimer = nil
	}
	c.deactivated = false
}

// deactivate marks the child deactivated and schedules its deletion after
// timeout, measured by clk. It is a no-op if already deactivated.
func (c *childBalancer) deactivate(clk clock.Clock, timeout time.Duration) {
	if c.deactivated {
		return
	}
	c.deactivated = true
	var h *grpcsync.ScheduledHandle
	h = grpcsync.ScheduleAfter(c.parent.serializer, clk, timeout, func(ctx context.Context) {
		// A timer that fired before a reactivation could cancel it is stale.
		if c.deletionTimer != h {
			return
		}
		c.parent.removeChild(c.name)
	})
	c.deletionTimer = h
}

// shutdown cancels any pending deletion timer and closes the underlying
// policy. It does not remove the child from the parent's map; the caller
// does that.
func (c *childBalancer) shutdown() {
	if c.deletionTimer != nil {
		c.deletionTimer.Cancel()
		c.deletionTimer = nil
	}
	if c.bal != nil {
		c.bal.Close()
	}
}

// childClientConn wraps the parent balancer.ClientConn to intercept
// UpdateState from the child policy, funneling it through the parent's
// serializer before the aggregate picker is rebuilt.
type childClientConn struct {
	balancer.ClientConn
	child *childBalancer
}

func (w *childClientConn) UpdateState(state balancer.State) {
	w.child.parent.serializer.Schedule(func(ctx context.Context) {
		w.child.state = state
		w.child.parent.updatePickerLocked()
	})
}
