// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/databendcloud/databend-client/driver/internal/dsn"
	"github.com/databendcloud/databend-client/driver/internal/protocol"
)

// Kind classifies driver errors.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindParsing
	KindBadArgument
	KindRequest
	KindInvalidResponse
	KindSessionTimeout
	KindIO
	KindDecode
)

var kindTexts = map[Kind]string{
	KindUnknown:         "unknown",
	KindParsing:         "parsing",
	KindBadArgument:     "bad argument",
	KindRequest:         "request",
	KindInvalidResponse: "invalid response",
	KindSessionTimeout:  "session timeout",
	KindIO:              "io",
	KindDecode:          "decode",
}

func (k Kind) String() string {
	if text, ok := kindTexts[k]; ok {
		return text
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by all Connection operations. The wrapped
// cause stays reachable through errors.Is and errors.As.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s error: %s", e.kind, e.err) }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.err }

// KindOf returns the classification of err, or KindUnknown if err is not a
// driver error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsSessionTimeout reports whether err means the server reclaimed the query
// session, so that the caller can reconnect and retry.
func IsSessionTimeout(err error) bool { return KindOf(err) == KindSessionTimeout }

func badArgumentError(format string, args ...any) *Error {
	return &Error{kind: KindBadArgument, err: fmt.Errorf(format, args...)}
}

func decodeError(err error) *Error { return &Error{kind: KindDecode, err: err} }

func invalidResponseError(format string, args ...any) *Error {
	return &Error{kind: KindInvalidResponse, err: fmt.Errorf(format, args...)}
}

// wrapError classifies an error crossing the driver boundary. Driver errors
// pass through unchanged.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var (
		driverErr  *Error
		parseErr   *dsn.ParseError
		dsnArgErr  *dsn.ArgumentError
		argErr     *protocol.ArgumentError
		timeoutErr *protocol.SessionTimeoutError
		queryErr   *protocol.QueryError
		invalidErr *protocol.InvalidResponseError
		statusErr  *protocol.StatusError
		ioErr      *protocol.IOError
		urlErr     *url.Error
		pathErr    *fs.PathError
	)
	switch {
	case errors.As(err, &driverErr):
		return err
	case errors.As(err, &parseErr):
		return &Error{kind: KindParsing, err: err}
	case errors.As(err, &dsnArgErr), errors.As(err, &argErr):
		return &Error{kind: KindBadArgument, err: err}
	case errors.As(err, &timeoutErr):
		return &Error{kind: KindSessionTimeout, err: err}
	case errors.As(err, &queryErr), errors.As(err, &invalidErr):
		return &Error{kind: KindInvalidResponse, err: err}
	case errors.As(err, &statusErr), errors.As(err, &urlErr):
		return &Error{kind: KindRequest, err: err}
	case errors.As(err, &ioErr), errors.As(err, &pathErr):
		return &Error{kind: KindIO, err: err}
	default:
		return &Error{kind: KindUnknown, err: err}
	}
}
