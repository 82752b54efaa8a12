// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"maps"
	"sync"
)

// SessionState is the session object exchanged with the server on every
// query request and echoed back in every response. Fields not modeled here
// (transaction state, stickiness hints) are preserved verbatim so that a
// round trip does not lose them.
type SessionState struct {
	Database string
	Role     string
	Settings map[string]string

	extra map[string]json.RawMessage
}

func (s *SessionState) clone() *SessionState {
	if s == nil {
		return nil
	}
	c := &SessionState{Database: s.Database, Role: s.Role}
	if s.Settings != nil {
		c.Settings = maps.Clone(s.Settings)
	}
	if s.extra != nil {
		c.extra = maps.Clone(s.extra)
	}
	return c
}

func (s *SessionState) isZero() bool {
	return s == nil || (s.Database == "" && s.Role == "" && len(s.Settings) == 0 && len(s.extra) == 0)
}

// MarshalJSON writes the modeled fields plus any preserved opaque fields.
func (s *SessionState) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	for k, v := range s.extra {
		m[k] = v
	}
	if s.Database != "" {
		m["database"] = s.Database
	}
	if s.Role != "" {
		m["role"] = s.Role
	}
	if len(s.Settings) != 0 {
		m["settings"] = s.Settings
	}
	return json.Marshal(m)
}

// UnmarshalJSON keeps unrecognized fields in an opaque map.
func (s *SessionState) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*s = SessionState{}
	for k, v := range m {
		switch k {
		case "database":
			if err := json.Unmarshal(v, &s.Database); err != nil {
				return err
			}
		case "role":
			if err := json.Unmarshal(v, &s.Role); err != nil {
				return err
			}
		case "settings":
			if err := json.Unmarshal(v, &s.Settings); err != nil {
				return err
			}
		default:
			if s.extra == nil {
				s.extra = map[string]json.RawMessage{}
			}
			s.extra[k] = v
		}
	}
	return nil
}

/*
sessionAttrs holds the server-controlled session state together with the two
derived caches, the current database and the current warehouse. A single mutex
guards all three; critical sections are plain field copies and never perform
I/O.
*/
type sessionAttrs struct {
	mu         sync.Mutex
	_session   *SessionState
	_database  string
	_warehouse string
}

func newSessionAttrs(session *SessionState, warehouse string) *sessionAttrs {
	a := &sessionAttrs{_session: session.clone(), _warehouse: warehouse}
	if session != nil {
		a._database = session.Database
	}
	return a
}

func (a *sessionAttrs) database() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a._database
}

func (a *sessionAttrs) warehouse() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a._warehouse
}

// session returns a snapshot for embedding into the next request, or nil if
// the state carries no information.
func (a *sessionAttrs) session() *SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a._session.isZero() {
		return nil
	}
	return a._session.clone()
}

/*
merge applies a session echo:
 1. the echoed object replaces the whole state,
 2. a present database updates the database cache,
 3. a present settings.warehouse updates the warehouse cache.
*/
func (a *sessionAttrs) merge(s *SessionState) {
	if s == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a._session = s.clone()
	if s.Database != "" {
		a._database = s.Database
	}
	if w, ok := s.Settings["warehouse"]; ok {
		a._warehouse = w
	}
}
