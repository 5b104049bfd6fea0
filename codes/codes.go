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

// Package codes defines the canonical status codes used throughout the
// runtime, along with their canonical upper-snake-case textual form.
package codes

// Code is a status code as defined by the gRPC status model.
type Code uint32

const (
	// OK means the operation completed successfully.
	OK Code = iota
	// Canceled means the operation was cancelled, typically by the caller.
	Canceled
	// Unknown covers errors raised by APIs that do not return enough
	// information to convert to a more precise code.
	Unknown
	// InvalidArgument means the client specified an invalid argument.
	InvalidArgument
	// DeadlineExceeded means the deadline expired before the operation
	// completed.
	DeadlineExceeded
	// NotFound means some requested entity was not found.
	NotFound
	// AlreadyExists means an entity the caller attempted to create already
	// exists.
	AlreadyExists
	// PermissionDenied means the caller lacks permission to execute the
	// operation.
	PermissionDenied
	// ResourceExhausted means a resource has been exhausted.
	ResourceExhausted
	// FailedPrecondition means the system is not in a state required for
	// the operation's execution.
	FailedPrecondition
	// Aborted means the operation was aborted.
	Aborted
	// OutOfRange means the operation was attempted past the valid range.
	OutOfRange
	// Unimplemented means the operation is not implemented or not
	// supported/enabled.
	Unimplemented
	// Internal means an internal error occurred.
	Internal
	// Unavailable means the service is currently unavailable.
	Unavailable
	// DataLoss means unrecoverable data loss or corruption occurred.
	DataLoss
	// Unauthenticated means the request does not have valid authentication
	// credentials.
	Unauthenticated

	_maxCode
)

var strs = [...]string{
	OK:                 "OK",
	Canceled:           "CANCELLED",
	Unknown:            "UNKNOWN",
	InvalidArgument:    "INVALID_ARGUMENT",
	DeadlineExceeded:   "DEADLINE_EXCEEDED",
	NotFound:           "NOT_FOUND",
	AlreadyExists:      "ALREADY_EXISTS",
	PermissionDenied:   "PERMISSION_DENIED",
	ResourceExhausted:  "RESOURCE_EXHAUSTED",
	FailedPrecondition: "FAILED_PRECONDITION",
	Aborted:            "ABORTED",
	OutOfRange:         "OUT_OF_RANGE",
	Unimplemented:      "UNIMPLEMENTED",
	Internal:           "INTERNAL",
	Unavailable:        "UNAVAILABLE",
	DataLoss:           "DATA_LOSS",
	Unauthenticated:    "UNAUTHENTICATED",
}

// String returns the canonical upper-snake-case name of the code, matching
// the textual form used for the grpc.status metric attribute.
func (c Code) String() string {
	if c >= _maxCode {
		return "CODE(" + itoa(uint32(c)) + ")"
	}
	return strs[c]
}

func itoa(u uint32) string {
	if u == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}
