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

// Package envconfig centralizes the reading of environment variables that
// toggle experimental runtime behavior.
package envconfig

import (
	"os"
	"strings"
)

// NewPickFirstEnabled is read from GRPC_EXPERIMENTAL_ENABLE_NEW_PICK_FIRST.
// Case-insensitive "true" enables the new pick_first variant; anything else,
// including an unset or empty variable, disables it.
var NewPickFirstEnabled = boolFromEnv("GRPC_EXPERIMENTAL_ENABLE_NEW_PICK_FIRST", false)

func boolFromEnv(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}
