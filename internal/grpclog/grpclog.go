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

// Package grpclog provides a minimal component-scoped logger used by the
// runtime's internal packages, backed by glog the way the teacher's own
// internal/grpclog abstraction is.
package grpclog

import "github.com/golang/glog"

// ComponentLogger is a logger tagged with a component name, prefixed on
// every line it emits.
type ComponentLogger struct {
	component string
}

// Component creates a new ComponentLogger with component as the prefix.
func Component(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

func (c *ComponentLogger) Infof(format string, args ...any) {
	glog.Infof("[%s] "+format, append([]any{c.component}, args...)...)
}

func (c *ComponentLogger) Warningf(format string, args ...any) {
	glog.Warningf("[%s] WARNING: "+format, append([]any{c.component}, args...)...)
}

func (c *ComponentLogger) Errorf(format string, args ...any) {
	glog.Errorf("[%s] ERROR: "+format, append([]any{c.component}, args...)...)
}

func (c *ComponentLogger) Error(args ...any) {
	glog.Error(append([]any{"[" + c.component + "] ERROR:"}, args...)...)
}
