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

// Package attributes defines a generic key/value store used to attach
// opaque, strongly typed metadata to resolver addresses and call options
// without growing their struct definitions.
package attributes

// Attributes is an immutable struct for storing and retrieving generic
// key/value pairs. Keys must be hashable, and users should define their own
// unexported types to avoid collisions between packages.
type Attributes struct {
	m map[any]any
}

// New returns a new Attributes containing the key/value pair.
func New(key, value any) *Attributes {
	return &Attributes{m: map[any]any{key: value}}
}

// WithValue returns a new Attributes containing all key/value pairs in a
// and the new key/value pair. If a already contains a value for key, the new
// value overwrites the old one. a is not modified.
func (a *Attributes) WithValue(key, value any) *Attributes {
	if a == nil {
		return New(key, value)
	}
	n := make(map[any]any, len(a.m)+1)
	for k, v := range a.m {
		n[k] = v
	}
	n[key] = value
	return &Attributes{m: n}
}

// Value returns the value associated with key in a, or nil if no value is
// associated with key.
func (a *Attributes) Value(key any) any {
	if a == nil {
		return nil
	}
	return a.m[key]
}

// Equal reports whether a and o are equivalent. Equality is defined as
// having the same set of keys, each mapping to values that compare equal
// via ==, except for values implementing an Equal(any) bool method, which
// is preferred.
func (a *Attributes) Equal(o *Attributes) bool {
	if a == nil && o == nil {
		return true
	}
	if a == nil || o == nil {
		return false
	}
	if len(a.m) != len(o.m) {
		return false
	}
	for k, v := range a.m {
		ov, ok := o.m[k]
		if !ok {
			return false
		}
		if eq, ok := v.(interface{ Equal(any) bool }); ok {
			if !eq.Equal(ov) {
				return false
			}
			continue
		}
		if v != ov {
			return false
		}
	}
	return true
}
