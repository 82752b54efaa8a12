// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

// QueryRequest is the body of a start query POST.
type QueryRequest struct {
	SQL             string           `json:"sql"`
	Session         *SessionState    `json:"session,omitempty"`
	Pagination      *Pagination      `json:"pagination,omitempty"`
	StageAttachment *StageAttachment `json:"stage_attachment,omitempty"`
}

// Pagination carries the optional paging hints from the DSN. Unset hints are
// omitted so the server applies its own defaults.
type Pagination struct {
	WaitTimeSecs    *int64 `json:"wait_time_secs,omitempty"`
	MaxRowsInBuffer *int64 `json:"max_rows_in_buffer,omitempty"`
	MaxRowsPerPage  *int64 `json:"max_rows_per_page,omitempty"`
}

// StageAttachment points the server at a previously uploaded stage file to be
// used as the data source of the statement.
type StageAttachment struct {
	Location          string            `json:"location"`
	FileFormatOptions map[string]string `json:"file_format_options,omitempty"`
	CopyOptions       map[string]string `json:"copy_options,omitempty"`
}
