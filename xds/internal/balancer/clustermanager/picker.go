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
	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/codes"
	"github.com/grpc-instrumentation/corerpc/resolver"
	"github.com/grpc-instrumentation/corerpc/status"
)

// clusterPicker is a stateless, immutable snapshot of the non-deactivated
// children's pickers, keyed by cluster name. A new snapshot is built every
// time the set of active children or any one of their pickers changes, so a
// pick racing with an update observes one snapshot or the other in full,
// never a torn mix.
type clusterPicker struct {
	children map[string]balancer.Picker
}

func (p *clusterPicker) Pick(info balancer.PickInfo) (balancer.PickResult, error) {
	clusterName, _ := info.Ctx.Value(resolver.ClusterSelectionKey{}).(string)
	childPicker := p.children[clusterName]
	if childPicker == nil {
		return balancer.PickResult{}, status.Newf(codes.Unavailable,
			"CDS encountered error: unable to find available subchannel for cluster %s", clusterName).Err()
	}
	return childPicker.Pick(info)
}

// errPicker fails every pick with a fixed error, used while the balancer
// has no children able to serve picks (e.g. after a terminal name
// resolution error).
type errPicker struct {
	err error
}

func (p *errPicker) Pick(balancer.PickInfo) (balancer.PickResult, error) {
	return balancer.PickResult{}, p.err
}
