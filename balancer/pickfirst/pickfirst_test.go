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

package pickfirst

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/grpc-instrumentation/corerpc/balancer"
	"github.com/grpc-instrumentation/corerpc/connectivity"
	"github.com/grpc-instrumentation/corerpc/resolver"
)

func TestParseConfigDefaultsShuffleToFalse(t *testing.T) {
	got, err := NewParser().ParseConfig(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	cfg, ok := got.(*LBConfig)
	if !ok {
		t.Fatalf("ParseConfig() returned %T, want *LBConfig", got)
	}
	if cfg.ShuffleAddressList {
		t.Errorf("ShuffleAddressList = true, want false by default")
	}
}

func TestParseConfigRoundTrip(t *testing.T) {
	in := &LBConfig{ShuffleAddressList: true}
	js, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := NewParser().ParseConfig(js)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	out, ok := got.(*LBConfig)
	if !ok {
		t.Fatalf("ParseConfig() returned %T, want *LBConfig", got)
	}
	if out.ShuffleAddressList != in.ShuffleAddressList {
		t.Errorf("ShuffleAddressList = %v, want %v", out.ShuffleAddressList, in.ShuffleAddressList)
	}
}

func TestParseConfigRejectsMalformedJSON(t *testing.T) {
	if _, err := NewParser().ParseConfig(json.RawMessage(`{"shuffleAddressList": "not-a-bool"}`)); err == nil {
		t.Error("ParseConfig() error = nil, want a type-mismatch error")
	}
}

func TestIsRegistered(t *testing.T) {
	if got := balancer.Get(Name); got == nil {
		t.Fatalf("balancer.Get(%q) = nil, want a registered Builder", Name)
	}
}

type fakeSubConn struct{ balancer.SubConn }

func (f *fakeSubConn) Connect() {}

type fakeClientConn struct {
	sc    *fakeSubConn
	state balancer.State
}

func (f *fakeClientConn) NewSubConn([]resolver.Address, balancer.NewSubConnOptions) (balancer.SubConn, error) {
	f.sc = &fakeSubConn{}
	return f.sc, nil
}

func (f *fakeClientConn) UpdateState(s balancer.State) { f.state = s }
func (f *fakeClientConn) ResolveNow()                  {}

func oneAddrState() balancer.ClientConnState {
	return balancer.ClientConnState{
		ResolverState:  resolver.State{Endpoints: []resolver.Endpoint{{Addresses: []resolver.Address{{Addr: "1.1.1.1:1"}}}}},
		BalancerConfig: &LBConfig{},
	}
}

func TestUpdateClientConnStateCreatesSubConnAndConnects(t *testing.T) {
	cc := &fakeClientConn{}
	b := bb{}.Build(cc, balancer.BuildOptions{})

	if err := b.UpdateClientConnState(oneAddrState()); err != nil {
		t.Fatalf("UpdateClientConnState: %v", err)
	}
	if cc.sc == nil {
		t.Fatal("no SubConn created")
	}
	if cc.state.ConnectivityState != connectivity.Connecting {
		t.Errorf("ConnectivityState = %v, want Connecting", cc.state.ConnectivityState)
	}
	if _, err := cc.state.Picker.Pick(balancer.PickInfo{}); err != balancer.ErrNoSubConnAvailable {
		t.Errorf("Pick() error = %v, want ErrNoSubConnAvailable", err)
	}
}

func TestUpdateSubConnStateReadyPublishesPickableSubConn(t *testing.T) {
	cc := &fakeClientConn{}
	b := bb{}.Build(cc, balancer.BuildOptions{})

	if err := b.UpdateClientConnState(oneAddrState()); err != nil {
		t.Fatalf("UpdateClientConnState: %v", err)
	}
	b.UpdateSubConnState(cc.sc, balancer.SubConnState{ConnectivityState: connectivity.Ready})

	if cc.state.ConnectivityState != connectivity.Ready {
		t.Fatalf("ConnectivityState = %v, want Ready", cc.state.ConnectivityState)
	}
	res, err := cc.state.Picker.Pick(balancer.PickInfo{})
	if err != nil {
		t.Fatalf("Pick() error = %v, want nil", err)
	}
	if res.SubConn != cc.sc {
		t.Errorf("Pick() returned a different SubConn than the one created")
	}
}

func TestUpdateSubConnStateTransientFailurePropagatesError(t *testing.T) {
	cc := &fakeClientConn{}
	b := bb{}.Build(cc, balancer.BuildOptions{})

	if err := b.UpdateClientConnState(oneAddrState()); err != nil {
		t.Fatalf("UpdateClientConnState: %v", err)
	}
	wantErr := errors.New("connection refused")
	b.UpdateSubConnState(cc.sc, balancer.SubConnState{ConnectivityState: connectivity.TransientFailure, ConnectionError: wantErr})

	if cc.state.ConnectivityState != connectivity.TransientFailure {
		t.Fatalf("ConnectivityState = %v, want TransientFailure", cc.state.ConnectivityState)
	}
	if _, err := cc.state.Picker.Pick(balancer.PickInfo{}); err != wantErr {
		t.Errorf("Pick() error = %v, want %v", err, wantErr)
	}
}

func TestUpdateClientConnStateRejectsEmptyAddressList(t *testing.T) {
	cc := &fakeClientConn{}
	b := bb{}.Build(cc, balancer.BuildOptions{})

	err := b.UpdateClientConnState(balancer.ClientConnState{BalancerConfig: &LBConfig{}})
	if err != balancer.ErrBadResolverState {
		t.Errorf("UpdateClientConnState() error = %v, want ErrBadResolverState", err)
	}
}
