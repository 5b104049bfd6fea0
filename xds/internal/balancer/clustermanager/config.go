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
	"encoding/json"
	"fmt"

	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/serviceconfig"
)

// ChildPolicy is one cluster's resolved child balancer: the builder to
// construct it with, and its already-parsed policy configuration.
type ChildPolicy struct {
	Builder balancer.Builder
	Config  serviceconfig.LoadBalancingConfig
}

// LBConfig is the parsed form of the cluster_manager balancer configuration:
// a mapping from cluster name to the child policy that should serve it.
type LBConfig struct {
	ChildPolicies map[string]ChildPolicy
}

// wireChildPolicy mirrors the on-the-wire {policyProvider, policyConfig}
// pair before the provider name has been resolved to a balancer.Builder.
type wireChildPolicy struct {
	PolicyProvider string          `json:"policyProvider"`
	PolicyConfig   json.RawMessage `json:"policyConfig"`
}

type wireConfig struct {
	ChildPolicies map[string]wireChildPolicy `json:"childPolicies"`
}

// ParseConfig unmarshals js as a cluster_manager configuration, resolving
// each cluster's policyProvider name against the global balancer registry
// and delegating policyConfig to that builder's ConfigParser, if it has one.
func ParseConfig(js json.RawMessage) (serviceconfig.LoadBalancingConfig, error) {
	var wire wireConfig
	if err := json.Unmarshal(js, &wire); err != nil {
		return nil, fmt.Errorf("clustermanager: unable to unmarshal LB policy config %q: %v", string(js), err)
	}

	cfg := &LBConfig{ChildPolicies: make(map[string]ChildPolicy, len(wire.ChildPolicies))}
	for cluster, wcp := range wire.ChildPolicies {
		b := balancer.Get(wcp.PolicyProvider)
		if b == nil {
			return nil, fmt.Errorf("clustermanager: no balancer registered for policyProvider %q (cluster %q)", wcp.PolicyProvider, cluster)
		}
		var parsed serviceconfig.LoadBalancingConfig
		if parser, ok := b.(balancer.ConfigParser); ok {
			var err error
			if parsed, err = parser.ParseConfig(wcp.PolicyConfig); err != nil {
				return nil, fmt.Errorf("clustermanager: failed to parse config for cluster %q: %v", cluster, err)
			}
		}
		cfg.ChildPolicies[cluster] = ChildPolicy{Builder: b, Config: parsed}
	}
	return cfg, nil
}
