/*
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
 */

package handshaker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grpc-instrumentation/corerpc/clock"
)

type fakeRecvResult struct {
	resp string
	err  error
}

// fakeStream is an in-memory Stream[string, string] double. Recv reads from
// an unbuffered channel, so a test's push call does not return until the
// stub's read loop has actually claimed that value, giving deterministic
// interleaving without sleeps.
type fakeStream struct {
	sent   []string
	recvCh chan fakeRecvResult

	closeSendCalled uint32
}

func newFakeStream() *fakeStream {
	return &fakeStream{recvCh: make(chan fakeRecvResult)}
}

func (f *fakeStream) Send(req string) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStream) Recv() (string, error) {
	r, ok := <-f.recvCh
	if !ok {
		return "", io.EOF
	}
	return r.resp, r.err
}

func (f *fakeStream) CloseSend() error {
	atomic.StoreUint32(&f.closeSendCalled, 1)
	return nil
}

func (f *fakeStream) push(resp string)  { f.recvCh <- fakeRecvResult{resp: resp} }
func (f *fakeStream) pushErr(err error) { f.recvCh <- fakeRecvResult{err: err} }
func (f *fakeStream) closeClean()       { close(f.recvCh) }

func newTestStub(fs *fakeStream) *Stub[string, string] {
	opener := func(ctx context.Context) (Stream[string, string], error) {
		return fs, nil
	}
	return NewStub[string, string](opener, clock.NewReal())
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSendRoundTrip(t *testing.T) {
	fs := newFakeStream()
	stub := newTestStub(fs)

	done := make(chan struct{})
	var resp string
	var err error
	go func() {
		resp, err = stub.Send(context.Background(), "req1")
		close(done)
	}()

	fs.push("resp1")
	<-done

	if err != nil {
		t.Fatalf("Send() error = %v, want nil", err)
	}
	if resp != "resp1" {
		t.Errorf("Send() = %q, want %q", resp, "resp1")
	}
	if len(fs.sent) != 1 || fs.sent[0] != "req1" {
		t.Errorf("sent = %v, want [req1]", fs.sent)
	}
}

func TestSendReturnsUnreadResponseError(t *testing.T) {
	fs := newFakeStream()
	stub := newTestStub(fs)

	// Simulate a response already sitting unread in the buffer, as would
	// happen if a caller invoked Send again before consuming a prior
	// result.
	stub.mu.Lock()
	stub.pending = 1
	stub.mu.Unlock()

	_, err := stub.Send(context.Background(), "req1")
	if _, ok := err.(UnreadResponseError); !ok {
		t.Fatalf("Send() error = %v (%T), want UnreadResponseError", err, err)
	}
	if len(fs.sent) != 0 {
		t.Errorf("sent = %v, want no writes after UnreadResponseError", fs.sent)
	}
}

func TestStreamErrorSurfacesOnNextSend(t *testing.T) {
	fs := newFakeStream()
	stub := newTestStub(fs)

	// Prime the stream so streamForSend opens it, then let it fail.
	done := make(chan struct{})
	go func() {
		stub.Send(context.Background(), "req1")
		close(done)
	}()
	fs.push("resp1")
	<-done

	cause := errors.New("transport reset")
	go fs.pushErr(cause)

	waitUntil(t, func() bool { return stub.terminalError() != nil })

	_, err := stub.Send(context.Background(), "req2")
	var terminated StreamTerminatedError
	if !errors.As(err, &terminated) {
		t.Fatalf("Send() error = %v, want StreamTerminatedError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestCleanCloseSurfacesOnNextSend(t *testing.T) {
	fs := newFakeStream()
	stub := newTestStub(fs)

	done := make(chan struct{})
	go func() {
		stub.Send(context.Background(), "req1")
		close(done)
	}()
	fs.push("resp1")
	<-done

	fs.closeClean()

	waitUntil(t, func() bool { return stub.terminalError() != nil })

	_, err := stub.Send(context.Background(), "req2")
	var terminated StreamTerminatedError
	if !errors.As(err, &terminated) {
		t.Fatalf("Send() error = %v, want StreamTerminatedError", err)
	}
	if terminated.Cause != nil {
		t.Errorf("terminated.Cause = %v, want nil for a clean close", terminated.Cause)
	}
}

// TestUnsolicitedResponseOverflow exercises the one-slot buffer: a second
// response arriving before the first is consumed latches
// UnexpectedResponseError and closes the send side.
func TestUnsolicitedResponseOverflow(t *testing.T) {
	fs := newFakeStream()
	stub := newTestStub(fs)

	done := make(chan struct{})
	go func() {
		stub.Send(context.Background(), "req1")
		close(done)
	}()
	fs.push("resp1")
	<-done

	// resp2 fills the one-slot buffer; resp3 arrives before anyone reads
	// it, which is a protocol violation.
	fs.push("resp2")
	fs.push("resp3")

	waitUntil(t, func() bool { return stub.terminalError() != nil })

	if _, ok := stub.terminalError().(UnexpectedResponseError); !ok {
		t.Fatalf("terminalError() = %v (%T), want UnexpectedResponseError", stub.terminalError(), stub.terminalError())
	}
	waitUntil(t, func() bool { return atomic.LoadUint32(&fs.closeSendCalled) == 1 })
}

func TestCloseIsIdempotentAndNilSafeBeforeOpen(t *testing.T) {
	fs := newFakeStream()
	stub := newTestStub(fs)

	// No stream ever opened; Close must not panic.
	stub.Close()
	stub.Close()

	if atomic.LoadUint32(&fs.closeSendCalled) != 0 {
		t.Errorf("CloseSend called before any stream was opened")
	}
}
