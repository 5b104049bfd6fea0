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

// Package resolver declares the address and endpoint types produced by name
// resolution and consumed by balancers. Resolution itself is out of scope;
// only the data shapes balancers key off of live here.
package resolver

import (
	"github.com/grpc-instrumentation/corerpc/attributes"
	"github.com/grpc-instrumentation/corerpc/serviceconfig"
)

// Address represents a server the balancer may create a connection to.
type Address struct {
	// Addr is the server address on which a connection will be established.
	Addr string
	// ServerName is the name of this address, for use in TLS server name
	// verification and virtual hosting.
	ServerName string
	// Attributes contains arbitrary data about this address, intended for
	// use by the balancer.
	Attributes *attributes.Attributes
	// BalancerAttributes contains arbitrary data about this address which
	// is speific to the balancer in use, and is not meant to be used by
	// the address's resolver.
	BalancerAttributes *attributes.Attributes
	// Metadata is the information associated with Addr, which may be used
	// to make load balancing decisions.
	Metadata any
}

// Equal returns whether a and o are identical. Metadata is compared directly,
// not with any recursive introspection.
func (a Address) Equal(o Address) bool {
	return a.Addr == o.Addr && a.ServerName == o.ServerName &&
		a.Attributes.Equal(o.Attributes) && a.BalancerAttributes.Equal(o.BalancerAttributes) &&
		a.Metadata == o.Metadata
}

// Endpoint is one network endpoint, or server, which may have multiple
// addresses with which it may be accessed.
type Endpoint struct {
	// Addresses contains the addresses belonging to this endpoint. Must
	// contain at least one entry.
	Addresses []Address
	// Attributes contains arbitrary data about this endpoint, intended for
	// consumption by the LB policy.
	Attributes *attributes.Attributes
}

// State contains the current resolver state relevant to the balancer.
type State struct {
	// Endpoints is the latest set of resolved endpoints.
	Endpoints []Endpoint
	// ServiceConfig contains the result from parsing the latest service
	// config, or nil if the resolver did not produce one.
	ServiceConfig *serviceconfig.ParseResult
}

// ClusterSelectionKey is the call-options key under which the cluster
// manager's dispatch picker expects to find the destination cluster name,
// typically attached by a name resolver or upstream interceptor.
type ClusterSelectionKey struct{}
