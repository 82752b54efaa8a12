// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"strings"

	"github.com/databendcloud/databend-client/driver/internal/protocol"
)

// Progress is a rows/bytes counter pair reported by the server.
type Progress struct {
	Rows  int64
	Bytes int64
}

// ServerStats are the server side execution statistics of one query. The
// values are absolute for the query so far, not deltas.
type ServerStats struct {
	RunningTimeMS  float64
	ScanProgress   Progress
	WriteProgress  Progress
	ResultProgress Progress
}

func newServerStats(s protocol.QueryStats) ServerStats {
	return ServerStats{
		RunningTimeMS:  s.RunningTimeMS,
		ScanProgress:   Progress{Rows: s.Progresses.ScanProgress.Rows, Bytes: s.Progresses.ScanProgress.Bytes},
		WriteProgress:  Progress{Rows: s.Progresses.WriteProgress.Rows, Bytes: s.Progresses.WriteProgress.Bytes},
		ResultProgress: Progress{Rows: s.Progresses.ResultProgress.Rows, Bytes: s.Progresses.ResultProgress.Bytes},
	}
}

func (s ServerStats) String() string {
	return fmt.Sprintf("read %d rows %d bytes, written %d rows %d bytes in %.3fs",
		s.ScanProgress.Rows, s.ScanProgress.Bytes, s.WriteProgress.Rows, s.WriteProgress.Bytes, s.RunningTimeMS/1000)
}

// DurationStat represents a duration statistic.
type DurationStat struct {
	Count   uint64
	Sum     uint64            // Values in milliseconds.
	Buckets map[uint64]uint64 // map[<duration in ms>]<counter>.
}

func (s *DurationStat) String() string {
	return fmt.Sprintf("count %d sum %d values %v", s.Count, s.Sum, s.Buckets)
}

// Stats contains client side driver statistics.
type Stats struct {
	// Gauges
	OpenConnections int // The number of established driver connections.
	OpenIterators   int // The number of open row iterators.
	// Counters
	Queries       uint64 // Total queries started.
	QueryErrors   uint64 // Total queries that returned an error.
	RowsRead      uint64 // Total rows yielded by iterators.
	BytesUploaded uint64 // Total bytes uploaded to stages.
	//
	OpDurations []*DurationStat // Operation duration statistics.
}

func (s Stats) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("\nopenConnections %d", s.OpenConnections))
	sb.WriteString(fmt.Sprintf("\nopenIterators   %d", s.OpenIterators))
	sb.WriteString(fmt.Sprintf("\nqueries         %d", s.Queries))
	sb.WriteString(fmt.Sprintf("\nqueryErrors     %d", s.QueryErrors))
	sb.WriteString(fmt.Sprintf("\nrowsRead        %d", s.RowsRead))
	sb.WriteString(fmt.Sprintf("\nbytesUploaded   %d", s.BytesUploaded))
	sb.WriteString("\nopDurations")
	for i, durationStat := range s.OpDurations {
		sb.WriteString(fmt.Sprintf("\n  %-8s %s", StatsOpTexts[i], durationStat.String()))
	}
	return sb.String()
}
