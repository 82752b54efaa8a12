// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/databendcloud/databend-client/driver/internal/protocol"
)

// Field describes one result column.
type Field struct {
	Name string
	Type string
}

// Schema is the ordered column list of a result.
type Schema []Field

func newSchema(fields []protocol.SchemaField) Schema {
	if len(fields) == 0 {
		return nil
	}
	schema := make(Schema, len(fields))
	for i, f := range fields {
		schema[i] = Field{Name: f.Name, Type: f.Type}
	}
	return schema
}

// Row is one decoded result row.
type Row struct {
	schema Schema
	values []any
}

func newRow(schema Schema, raw []*string) (*Row, error) {
	values := make([]any, len(raw))
	for i, cell := range raw {
		var typ string
		if i < len(schema) {
			typ = schema[i].Type
		}
		v, err := decodeValue(cell, typ)
		if err != nil {
			return nil, decodeError(err)
		}
		values[i] = v
	}
	return &Row{schema: schema, values: values}, nil
}

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.values) }

// Values returns the decoded column values. NULL columns are nil.
func (r *Row) Values() []any { return r.values }

// Schema returns the row's column list.
func (r *Row) Schema() Schema { return r.schema }

// Scan copies the column values into dest, which must hold one pointer per
// column. Supported targets are *string, *int64, *uint64, *float64, *bool,
// *time.Time, *decimal.Decimal, their double pointer variants for NULLable
// columns and *any.
func (r *Row) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return badArgumentError("scan expects %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		if err := scanValue(r.values[i], d); err != nil {
			return badArgumentError("scan column %d: %v", i, err)
		}
	}
	return nil
}

func scanValue(src, dest any) error {
	switch d := dest.(type) {
	case *any:
		*d = src
		return nil
	case *string:
		if src == nil {
			return fmt.Errorf("cannot scan NULL into %T", dest)
		}
		*d = FormatValue(src, "NULL")
		return nil
	case **string:
		if src == nil {
			*d = nil
			return nil
		}
		s := FormatValue(src, "NULL")
		*d = &s
		return nil
	case *bool:
		switch v := src.(type) {
		case bool:
			*d = v
			return nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*d = b
			return nil
		}
	case *int64:
		switch v := src.(type) {
		case int64:
			*d = v
			return nil
		case uint64:
			*d = int64(v)
			return nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			*d = n
			return nil
		}
	case **int64:
		if src == nil {
			*d = nil
			return nil
		}
		var n int64
		if err := scanValue(src, &n); err != nil {
			return err
		}
		*d = &n
		return nil
	case *uint64:
		switch v := src.(type) {
		case uint64:
			*d = v
			return nil
		case int64:
			if v < 0 {
				return fmt.Errorf("cannot scan negative value %d into %T", v, dest)
			}
			*d = uint64(v)
			return nil
		case string:
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			*d = n
			return nil
		}
	case *float64:
		switch v := src.(type) {
		case float64:
			*d = v
			return nil
		case int64:
			*d = float64(v)
			return nil
		case uint64:
			*d = float64(v)
			return nil
		case decimal.Decimal:
			*d = v.InexactFloat64()
			return nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*d = f
			return nil
		}
	case *time.Time:
		if v, ok := src.(time.Time); ok {
			*d = v
			return nil
		}
	case **time.Time:
		if src == nil {
			*d = nil
			return nil
		}
		if v, ok := src.(time.Time); ok {
			*d = &v
			return nil
		}
	case *decimal.Decimal:
		switch v := src.(type) {
		case decimal.Decimal:
			*d = v
			return nil
		case int64:
			*d = decimal.NewFromInt(v)
			return nil
		case float64:
			*d = decimal.NewFromFloat(v)
			return nil
		case string:
			dec, err := decimal.NewFromString(v)
			if err != nil {
				return err
			}
			*d = dec
			return nil
		}
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return fmt.Errorf("cannot scan %T into %T", src, dest)
}

// resultItem is one element of an extended result stream: either a row or a
// statistics snapshot.
type resultItem struct {
	row   *Row
	stats *ServerStats
}

/*
RowStatsIterator streams a query result page by page, yielding decoded rows
interleaved with server statistics snapshots. Pages are fetched on demand
from Next, never ahead of it, so closing the iterator stops all traffic for
the query.

The usage pattern follows bufio.Scanner:

	it, err := conn.QueryIterExt(ctx, "SELECT ...")
	...
	defer it.Close()
	for it.Next() {
		if row := it.Row(); row != nil {
			...
		}
		if stats := it.Stats(); stats != nil {
			...
		}
	}
	err = it.Err()

An iterator error is terminal. The iterator is not safe for concurrent use.
*/
type RowStatsIterator struct {
	ctx     context.Context
	client  *protocol.Client
	metrics *metrics

	queryID string
	nextURI string
	schema  Schema

	queue    []resultItem
	current  resultItem
	err      error
	closed   bool
	released bool
}

func newRowStatsIterator(ctx context.Context, client *protocol.Client, metrics *metrics, resp *protocol.QueryResponse) (*RowStatsIterator, error) {
	it := &RowStatsIterator{
		ctx:     ctx,
		client:  client,
		metrics: metrics,
		queryID: resp.ID,
		nextURI: resp.NextURI,
		schema:  newSchema(resp.Schema),
	}
	// The first page's statistics are not yielded: an item stream that opens
	// with all-zero counters carries no information.
	if err := it.enqueueRows(resp.Data); err != nil {
		return nil, err
	}
	metrics.addGaugeValue(gaugeIter, 1)
	return it, nil
}

func (it *RowStatsIterator) enqueueRows(data [][]*string) error {
	for _, raw := range data {
		row, err := newRow(it.schema, raw)
		if err != nil {
			return err
		}
		it.queue = append(it.queue, resultItem{row: row})
	}
	return nil
}

// Next advances to the next item, fetching the next result page when the
// current one is exhausted. It returns false at the end of the result or on
// error.
func (it *RowStatsIterator) Next() bool {
	it.current = resultItem{}
	if it.err != nil || it.closed {
		return false
	}
	for len(it.queue) == 0 {
		if it.nextURI == "" {
			it.release()
			return false
		}
		resp, err := it.client.QueryPage(it.ctx, it.queryID, it.nextURI)
		if err != nil {
			it.fail(wrapError(err))
			return false
		}
		if len(it.schema) == 0 {
			it.schema = newSchema(resp.Schema)
		}
		it.nextURI = resp.NextURI
		stats := newServerStats(resp.Stats)
		it.queue = append(it.queue, resultItem{stats: &stats})
		if err := it.enqueueRows(resp.Data); err != nil {
			it.fail(err)
			return false
		}
	}
	it.current = it.queue[0]
	it.queue = it.queue[1:]
	if it.current.row != nil {
		it.metrics.addCounterValue(counterRowsRead, 1)
	}
	return true
}

// Row returns the current row, or nil if the current item is a statistics
// snapshot.
func (it *RowStatsIterator) Row() *Row { return it.current.row }

// Stats returns the current statistics snapshot, or nil if the current item
// is a row.
func (it *RowStatsIterator) Stats() *ServerStats { return it.current.stats }

// Schema returns the result schema. It may be empty until the first page
// carrying one has been fetched.
func (it *RowStatsIterator) Schema() Schema { return it.schema }

// Err returns the error that ended the iteration, if any.
func (it *RowStatsIterator) Err() error { return it.err }

// Close ends the iteration. Remaining pages are not fetched and the server
// side query is left to finish on its own.
func (it *RowStatsIterator) Close() error {
	it.closed = true
	it.queue = nil
	it.current = resultItem{}
	it.release()
	return nil
}

func (it *RowStatsIterator) fail(err error) {
	it.err = err
	it.queue = nil
	it.release()
}

// release decrements the open iterator gauge exactly once.
func (it *RowStatsIterator) release() {
	if !it.released {
		it.released = true
		it.metrics.addGaugeValue(gaugeIter, -1)
	}
}

// RowIterator streams only the rows of a query result, hiding the
// interleaved statistics items.
type RowIterator struct {
	inner *RowStatsIterator
}

// Next advances to the next row. It returns false at the end of the result
// or on error.
func (it *RowIterator) Next() bool {
	for it.inner.Next() {
		if it.inner.Row() != nil {
			return true
		}
	}
	return false
}

// Row returns the current row.
func (it *RowIterator) Row() *Row { return it.inner.Row() }

// Scan copies the current row's values into dest, see Row.Scan.
func (it *RowIterator) Scan(dest ...any) error { return it.inner.Row().Scan(dest...) }

// Schema returns the result schema. It may be empty until the first page
// carrying one has been fetched.
func (it *RowIterator) Schema() Schema { return it.inner.Schema() }

// Err returns the error that ended the iteration, if any.
func (it *RowIterator) Err() error { return it.inner.Err() }

// Close ends the iteration.
func (it *RowIterator) Close() error { return it.inner.Close() }
