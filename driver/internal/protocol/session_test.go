// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSessionStateJSON(t *testing.T) {
	in := []byte(`{"database":"db1","role":"admin","settings":{"warehouse":"wh1"},"txn_state":"Active","need_sticky":true}`)
	var s SessionState
	if err := json.Unmarshal(in, &s); err != nil {
		t.Fatal(err)
	}
	if s.Database != "db1" || s.Role != "admin" || s.Settings["warehouse"] != "wh1" {
		t.Fatalf("decoded %+v", s)
	}
	if len(s.extra) != 2 {
		t.Fatalf("extra %v", s.extra)
	}

	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(in, &want); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) || got["txn_state"] != "Active" || got["need_sticky"] != true {
		t.Fatalf("round trip lost fields: %s", out)
	}
}

func TestSessionStateEmpty(t *testing.T) {
	var s SessionState
	if !s.isZero() {
		t.Fatal("zero value not zero")
	}
	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte("{}")) {
		t.Fatalf("got %s", out)
	}

	a := newSessionAttrs(nil, "")
	if a.session() != nil {
		t.Fatal("empty state should marshal as absent")
	}
}

func TestSessionAttrsSnapshotIsolated(t *testing.T) {
	a := newSessionAttrs(&SessionState{Database: "db", Settings: map[string]string{"k": "v"}}, "wh")
	snap := a.session()
	snap.Settings["k"] = "changed"
	if a.session().Settings["k"] != "v" {
		t.Fatal("snapshot shares state")
	}
}
