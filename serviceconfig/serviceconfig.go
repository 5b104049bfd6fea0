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

// Package serviceconfig defines the types carrying a balancer's parsed
// configuration between the name resolver and the balancer that consumes
// it.
package serviceconfig

// Config represents an opaque data structure holding a service config. Its
// concrete type is whatever a balancer's ConfigParser produced.
type Config any

// LoadBalancingConfig is implemented by any balancer-specific configuration
// type returned from a balancer.ConfigParser. It carries no methods of its
// own; it exists purely to document intent at the type-signature level.
type LoadBalancingConfig any

// ParseResult wraps the result of parsing a JSON service config, which may
// fail per-LB-policy without discarding the rest of the configuration.
type ParseResult struct {
	Config Config
	Err    error
}
