// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import "encoding/json"

// SchemaField describes one result column. The type is the server's textual
// type name, e.g. "UInt64" or "Nullable(String)".
type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ProgressValues is a rows/bytes counter pair reported by the server.
type ProgressValues struct {
	Rows  int64 `json:"rows"`
	Bytes int64 `json:"bytes"`
}

// Progresses groups the per-query progress counters.
type Progresses struct {
	ScanProgress   ProgressValues `json:"scan_progress"`
	WriteProgress  ProgressValues `json:"write_progress"`
	ResultProgress ProgressValues `json:"result_progress"`
}

// QueryStats is the statistics object attached to every page. The counters
// are absolute values for the query so far, not per-page deltas.
type QueryStats struct {
	RunningTimeMS float64
	Progresses    Progresses
}

// UnmarshalJSON accepts both the nested shape ({"progresses": {...}}) and the
// flattened shape ({"scan_progress": {...}, ...}) seen across server versions.
func (s *QueryStats) UnmarshalJSON(b []byte) error {
	var aux struct {
		RunningTimeMS  float64         `json:"running_time_ms"`
		Progresses     *Progresses     `json:"progresses"`
		ScanProgress   *ProgressValues `json:"scan_progress"`
		WriteProgress  *ProgressValues `json:"write_progress"`
		ResultProgress *ProgressValues `json:"result_progress"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.RunningTimeMS = aux.RunningTimeMS
	if aux.Progresses != nil {
		s.Progresses = *aux.Progresses
		return nil
	}
	if aux.ScanProgress != nil {
		s.Progresses.ScanProgress = *aux.ScanProgress
	}
	if aux.WriteProgress != nil {
		s.Progresses.WriteProgress = *aux.WriteProgress
	}
	if aux.ResultProgress != nil {
		s.Progresses.ResultProgress = *aux.ResultProgress
	}
	return nil
}

// MarshalJSON writes the flattened wire shape.
func (s QueryStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RunningTimeMS  float64        `json:"running_time_ms"`
		ScanProgress   ProgressValues `json:"scan_progress"`
		WriteProgress  ProgressValues `json:"write_progress"`
		ResultProgress ProgressValues `json:"result_progress"`
	}{s.RunningTimeMS, s.Progresses.ScanProgress, s.Progresses.WriteProgress, s.Progresses.ResultProgress})
}

// QueryResponse is one page of a query result. Row values arrive as strings;
// a JSON null marks a NULL value.
type QueryResponse struct {
	ID       string        `json:"id"`
	Session  *SessionState `json:"session,omitempty"`
	Schema   []SchemaField `json:"schema,omitempty"`
	Data     [][]*string   `json:"data"`
	State    string        `json:"state,omitempty"`
	Error    *QueryError   `json:"error,omitempty"`
	Stats    QueryStats    `json:"stats"`
	NextURI  string        `json:"next_uri,omitempty"`
	KillURI  string        `json:"kill_uri,omitempty"`
	FinalURI string        `json:"final_uri,omitempty"`
}
