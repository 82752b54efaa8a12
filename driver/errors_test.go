// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/databendcloud/databend-client/driver/internal/dsn"
	"github.com/databendcloud/databend-client/driver/internal/protocol"
)

func TestWrapErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"nil", nil, KindUnknown},
		{"dsn parse", &dsn.ParseError{}, KindParsing},
		{"dsn argument", &dsn.ArgumentError{Name: "sslmode", Value: "maybe"}, KindBadArgument},
		{"protocol argument", &protocol.ArgumentError{Reason: "empty sql"}, KindBadArgument},
		{"session timeout", &protocol.SessionTimeoutError{Body: "gone"}, KindSessionTimeout},
		{"query error", &protocol.QueryError{Code: 1063, Message: "denied"}, KindInvalidResponse},
		{"invalid response", &protocol.InvalidResponseError{Reason: "no rows"}, KindInvalidResponse},
		{"status", &protocol.StatusError{StatusCode: 502}, KindRequest},
		{"transport", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, KindRequest},
		{"io", &protocol.IOError{Err: errors.New("clock")}, KindIO},
		{"path", &fs.PathError{Op: "open", Path: "x", Err: errors.New("missing")}, KindIO},
		{"wrapped cause", fmt.Errorf("query page request: %w", &protocol.SessionTimeoutError{}), KindSessionTimeout},
		{"unclassified", errors.New("boom"), KindUnknown},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wrapped := wrapError(test.err)
			if test.err == nil {
				if wrapped != nil {
					t.Fatalf("wrap of nil is %v", wrapped)
				}
				return
			}
			if got := KindOf(wrapped); got != test.kind {
				t.Fatalf("got kind %v, want %v", got, test.kind)
			}
			if !errors.Is(wrapped, test.err) {
				t.Fatal("cause lost")
			}
		})
	}
}

func TestWrapErrorPassthrough(t *testing.T) {
	orig := badArgumentError("no such option")
	if wrapError(orig) != orig {
		t.Fatal("driver errors must pass through unwrapped")
	}
	// Double classification must not occur through wrapping either.
	wrapped := fmt.Errorf("outer: %w", orig)
	if got := wrapError(wrapped); got != wrapped {
		t.Fatalf("got %v", got)
	}
}

func TestErrorFormat(t *testing.T) {
	err := wrapError(&protocol.SessionTimeoutError{Body: "query expired"})
	if !strings.HasPrefix(err.Error(), "session timeout error: ") {
		t.Fatalf("got %q", err.Error())
	}
	if !IsSessionTimeout(err) {
		t.Fatal("IsSessionTimeout")
	}
	if IsSessionTimeout(errors.New("boom")) {
		t.Fatal("IsSessionTimeout on foreign error")
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range kindTexts {
		if kind.String() != want {
			t.Fatalf("got %q, want %q", kind.String(), want)
		}
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Fatalf("got %q", got)
	}
}
