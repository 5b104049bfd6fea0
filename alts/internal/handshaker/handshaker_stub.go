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

// Package handshaker adapts a long-lived bidirectional stream into a
// blocking send(req) (resp, error) primitive, serialising one in-flight
// request/response exchange at a time. The Req/Resp pair is opaque so it can
// front any handshaker-shaped service, not only ALTS.
package handshaker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grpc-instrumentation/corerpc/clock"
)

// handshakeRPCDeadline is the fixed deadline applied to the handshaker
// stream when it is lazily opened on the first Send.
const handshakeRPCDeadline = 20 * time.Second

// Stream is the bidirectional transport the Stub drives: Send writes one
// request frame, Recv blocks for the next response frame (returning an
// error, typically io.EOF, when the server half-closes or fails), and
// CloseSend half-closes the writer.
type Stream[Req, Resp any] interface {
	Send(Req) error
	Recv() (Resp, error)
	CloseSend() error
}

// StreamOpener lazily creates the bidirectional stream with a fixed
// handshakeRPCDeadline applied.
type StreamOpener[Req, Resp any] func(ctx context.Context) (Stream[Req, Resp], error)

// Stub is a bounded request/response adapter over a Stream: it serialises
// one in-flight exchange at a time via a capacity-1 response slot and a
// single terminal-error latch set at most once via compare-and-set.
type Stub[Req, Resp any] struct {
	open StreamOpener[Req, Resp]
	clk  clock.Clock

	mu     sync.Mutex // guards stream creation and unread-response tracking
	stream Stream[Req, Resp]

	respCh chan result[Resp] // capacity 1; the bounded response slot

	err error // the latched terminal error, guarded by mu, set at most once

	pending uint32 // 0 or 1; whether a response is sitting unread in respCh
}

type result[Resp any] struct {
	resp Resp
	ok   bool // false means the sentinel "no response" was pushed
}

// UnexpectedResponseError is latched when onNext observes a response while
// the one-slot buffer is already full.
type UnexpectedResponseError struct{}

func (UnexpectedResponseError) Error() string { return "handshaker: received an unexpected response" }

// StreamTerminatedError is latched when the stream ends (onError or
// onCompleted) while a send is or was awaiting a response.
type StreamTerminatedError struct {
	// Cause is the error reported by the stream, or nil if it closed
	// cleanly (onCompleted).
	Cause error
}

func (e StreamTerminatedError) Error() string {
	if e.Cause == nil {
		return "handshaker: response stream closed"
	}
	return fmt.Sprintf("handshaker: terminating error: %v", e.Cause)
}

func (e StreamTerminatedError) Unwrap() error { return e.Cause }

// UnreadResponseError is returned by Send when a prior response is still
// sitting unread in the one-slot buffer.
type UnreadResponseError struct{}

func (UnreadResponseError) Error() string {
	return "handshaker: a previous response is still unread"
}

// NewStub creates a Stub that lazily opens its stream via open on the first
// Send. clk is stored on the Stub (a nil clk is replaced by clock.NewReal());
// the stream's deadline is applied with context.WithTimeout and is measured
// by the time package, not by clk.
func NewStub[Req, Resp any](open StreamOpener[Req, Resp], clk clock.Clock) *Stub[Req, Resp] {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Stub[Req, Resp]{
		open:   open,
		clk:    clk,
		respCh: make(chan result[Resp], 1),
	}
}

// Send writes req onto the stream and blocks until exactly one response
// arrives, or the stream terminates. It fails immediately, without writing
// anything, if the stub already has a latched terminal error, or if a
// previously-received response is still sitting unread in the buffer.
func (s *Stub[Req, Resp]) Send(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	if err := s.terminalError(); err != nil {
		return zero, err
	}

	stream, err := s.streamForSend(ctx)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	if s.pending == 1 {
		s.mu.Unlock()
		return zero, UnreadResponseError{}
	}
	s.mu.Unlock()

	if err := stream.Send(req); err != nil {
		return zero, err
	}

	r := <-s.respCh
	s.mu.Lock()
	s.pending = 0
	s.mu.Unlock()
	if r.ok {
		return r.resp, nil
	}
	if err := s.terminalError(); err != nil {
		return zero, err
	}
	return zero, StreamTerminatedError{}
}

func (s *Stub[Req, Resp]) streamForSend(ctx context.Context) (Stream[Req, Resp], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return s.stream, nil
	}
	dctx, cancel := context.WithTimeout(ctx, handshakeRPCDeadline)
	stream, err := s.open(dctx)
	if err != nil {
		cancel()
		return nil, err
	}
	s.stream = stream
	go s.readLoop(stream, cancel)
	return stream, nil
}

// readLoop pumps Recv in a dedicated goroutine and dispatches each outcome
// to onNext, onError, or onCompleted.
func (s *Stub[Req, Resp]) readLoop(stream Stream[Req, Resp], cancel context.CancelFunc) {
	defer cancel()
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			s.onCompleted()
			return
		}
		if err != nil {
			s.onError(err)
			return
		}
		s.onNext(resp)
	}
}

func (s *Stub[Req, Resp]) onNext(resp Resp) {
	s.mu.Lock()
	if s.pending == 1 {
		s.mu.Unlock()
		s.latch(UnexpectedResponseError{})
		s.Close()
		return
	}
	s.pending = 1
	s.mu.Unlock()

	select {
	case s.respCh <- result[Resp]{resp: resp, ok: true}:
	default:
		// Lost the race against a concurrent onNext; treat identically to
		// the buffer-full case above.
		s.latch(UnexpectedResponseError{})
		s.Close()
	}
}

func (s *Stub[Req, Resp]) onError(err error) {
	s.latch(StreamTerminatedError{Cause: err})
	s.unblockWaiters()
}

// onCompleted is reached when the transport reports a clean end-of-stream;
// the latched StreamTerminatedError carries a nil Cause to distinguish this
// from onError's case.
func (s *Stub[Req, Resp]) onCompleted() {
	s.latch(StreamTerminatedError{})
	s.unblockWaiters()
}

func (s *Stub[Req, Resp]) latch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stub[Req, Resp]) unblockWaiters() {
	select {
	case s.respCh <- result[Resp]{}:
	default:
	}
}

func (s *Stub[Req, Resp]) terminalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close idempotently half-closes the writer, if a stream was ever opened.
func (s *Stub[Req, Resp]) Close() {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream != nil {
		stream.CloseSend()
	}
}
