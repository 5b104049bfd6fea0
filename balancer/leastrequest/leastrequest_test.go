/*
 *
 * Copyright 2022 gRPC authors.
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

package leastrequest

import (
	"encoding/json"
	"testing"

	"github.com/grpc-instrumentation/corerpc/balancer"
)

type fakeSubConn struct {
	balancer.SubConn
	name string
}

func TestParseConfigDefaultsChoiceCountToTwo(t *testing.T) {
	cfg, err := bb{}.ParseConfig(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	got := cfg.(*LBConfig)
	if got.ChoiceCount != 2 {
		t.Errorf("ChoiceCount = %d, want 2", got.ChoiceCount)
	}
}

func TestParseConfigRejectsBelowTwo(t *testing.T) {
	if _, err := (bb{}).ParseConfig(json.RawMessage(`{"choiceCount": 1}`)); err == nil {
		t.Fatal("ParseConfig(choiceCount=1): got nil error, want rejection")
	}
}

func TestParseConfigClampsAboveTen(t *testing.T) {
	cfg, err := bb{}.ParseConfig(json.RawMessage(`{"choiceCount": 25}`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if got := cfg.(*LBConfig).ChoiceCount; got != 10 {
		t.Errorf("ChoiceCount = %d, want clamped to 10", got)
	}
}

func TestPickFavorsFewerOutstandingRPCs(t *testing.T) {
	busy := &subConnInfo{connState: 0, rpcCount: 100}
	idle := &subConnInfo{connState: 0, rpcCount: 0}
	p := &picker{
		choiceCount: 10,
		subConns: []*readySubConn{
			{sc: fakeSubConn{name: "busy"}, info: busy},
			{sc: fakeSubConn{name: "idle"}, info: idle},
		},
	}

	res, err := p.Pick(balancer.PickInfo{})
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if got := res.SubConn.(fakeSubConn).name; got != "idle" {
		t.Errorf("Pick chose %q, want %q (fewer outstanding RPCs, sampled with choiceCount=10)", got, "idle")
	}
	if idle.rpcCount != 1 {
		t.Errorf("idle.rpcCount = %d, want 1 after being picked", idle.rpcCount)
	}

	res.Done(balancer.DoneInfo{})
	if idle.rpcCount != 0 {
		t.Errorf("idle.rpcCount = %d, want 0 after Done", idle.rpcCount)
	}
}
