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

// Package status implements errors returned by the runtime. These errors
// carry a standard gRPC status code and textual description, and wrap the
// canonical protobuf status representation used on the wire.
package status

import (
	"errors"
	"fmt"

	"github.com/grpc-instrumentation/corerpc/codes"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/proto"
)

// Status holds a status code and message, along with any protobuf-encodable
// details. It is typically accessed through the error interface via Error.
type Status struct {
	s *spb.Status
}

// New returns a Status representing c and msg.
func New(c codes.Code, msg string) *Status {
	return &Status{s: &spb.Status{Code: int32(c), Message: msg}}
}

// Newf returns New(c, fmt.Sprintf(format, a...)).
func Newf(c codes.Code, format string, a ...any) *Status {
	return New(c, fmt.Sprintf(format, a...))
}

// Code returns the status code contained in s.
func (s *Status) Code() codes.Code {
	if s == nil || s.s == nil {
		return codes.OK
	}
	return codes.Code(s.s.Code)
}

// Message returns the message contained in s.
func (s *Status) Message() string {
	if s == nil || s.s == nil {
		return ""
	}
	return s.s.Message
}

// Proto returns s's status as a google.rpc.Status proto message.
func (s *Status) Proto() *spb.Status {
	if s == nil {
		return nil
	}
	return proto.Clone(s.s).(*spb.Status)
}

// Err returns an immutable error representing s; returns nil if s.Code() is
// OK.
func (s *Status) Err() error {
	if s.Code() == codes.OK {
		return nil
	}
	return (*statusError)(s)
}

// statusError wraps a Status to satisfy the error interface.
type statusError Status

func (e *statusError) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", codes.Code(e.s.Code), e.s.Message)
}

// GRPCStatus returns the Status represented by e.
func (e *statusError) GRPCStatus() *Status {
	return (*Status)(e)
}

// Error returns an error representing c and msg. If c is OK, returns nil.
func Error(c codes.Code, msg string) error {
	return New(c, msg).Err()
}

// Errorf returns Error(c, fmt.Sprintf(format, a...)).
func Errorf(c codes.Code, format string, a ...any) error {
	return Error(c, fmt.Sprintf(format, a...))
}

// FromError returns a Status representation of err.
//
// If err was produced by this package or implements the `GRPCStatus()
// *Status` method, the cached Status is returned. Otherwise err is wrapped
// as an Unknown status carrying err.Error() as its message. ok is false in
// that case, and also when err's GRPCStatus() returns nil, in which case an
// OK status is returned. Only err itself is inspected; errors wrapped inside
// err are not unwrapped.
func FromError(err error) (s *Status, ok bool) {
	if err == nil {
		return New(codes.OK, ""), true
	}
	type grpcstatus interface{ GRPCStatus() *Status }
	if gs, ok := err.(grpcstatus); ok {
		if gs.GRPCStatus() == nil {
			return New(codes.OK, ""), false
		}
		return gs.GRPCStatus(), true
	}
	return New(codes.Unknown, err.Error()), false
}

// Code returns the Code of the error if it is a Status error or wraps a
// Status error. If that is not the case, it returns codes.OK if err is nil,
// or codes.Unknown otherwise.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var se interface{ GRPCStatus() *Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code()
	}
	return codes.Unknown
}
