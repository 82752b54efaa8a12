// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// QueryError is the error object embedded in a query response body.
type QueryError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *QueryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("code: %d, message: %s\n%s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// StatusError is returned on a non-200 response that is neither retriable nor
// covered by a more specific error.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// SessionTimeoutError is returned when a next page request answers 404: the
// server reclaimed the query session and the statement must be re-submitted.
type SessionTimeoutError struct {
	Body string
}

func (e *SessionTimeoutError) Error() string {
	return fmt.Sprintf("session timeout: %s", e.Body)
}

// InvalidResponseError is returned when a 200 response violates the protocol
// shape, e.g. a malformed presign result or an unparsable page URI.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid response: " + e.Reason
}

// ArgumentError is returned on malformed caller input, e.g. a stage reference
// without the leading '@'.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string {
	return "bad argument: " + e.Reason
}

// IOError is returned on local failures: file access, clock, stream.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return e.Err.Error() }

// Unwrap returns the nested error.
func (e *IOError) Unwrap() error { return e.Err }
