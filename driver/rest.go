// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/databendcloud/databend-client/driver/internal/dsn"
	"github.com/databendcloud/databend-client/driver/internal/protocol"
)

// ConnectionInfo describes an established connection.
type ConnectionInfo struct {
	Handler   string
	Host      string
	Port      int
	User      string
	Database  string
	Warehouse string
}

// restConn implements Connection on top of the HTTP query protocol.
type restConn struct {
	client  *protocol.Client
	metrics *metrics
}

func newRestConn(cfg *dsn.DSN) (*restConn, error) {
	client, err := protocol.New(cfg)
	if err != nil {
		return nil, wrapError(err)
	}
	client.SetLogger(stdLogger())
	m := newMetrics(stdMetrics)
	m.addGaugeValue(gaugeConn, 1)
	return &restConn{client: client, metrics: m}, nil
}

func (c *restConn) Info() *ConnectionInfo {
	return &ConnectionInfo{
		Handler:   "RestAPI",
		Host:      c.client.Host(),
		Port:      c.client.Port(),
		User:      c.client.User(),
		Database:  c.client.Database(),
		Warehouse: c.client.Warehouse(),
	}
}

func (c *restConn) Version(ctx context.Context) (string, error) {
	row, err := c.QueryRow(ctx, "SELECT version()")
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", invalidResponseError("version query returned no rows")
	}
	var version string
	if err := row.Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (c *restConn) Stats() Stats { return c.metrics.stats() }

func (c *restConn) Close() error {
	c.client.CloseIdleConnections()
	c.metrics.addGaugeValue(gaugeConn, -1)
	return nil
}

func (c *restConn) recordQuery(op int, start time.Time, err error) {
	c.metrics.addCounterValue(counterQueries, 1)
	if err != nil {
		c.metrics.addCounterValue(counterQueryErrors, 1)
	}
	c.metrics.addDurationHistogramValue(op, time.Since(start).Milliseconds())
}

// Exec runs sql to completion and returns the number of rows written.
func (c *restConn) Exec(ctx context.Context, sql string) (affected int64, err error) {
	defer func(start time.Time) { c.recordQuery(opExec, start, err) }(time.Now())
	resp, err := c.client.Query(ctx, sql)
	if err != nil {
		return 0, wrapError(err)
	}
	return resp.Stats.Progresses.WriteProgress.Rows, nil
}

// QueryRow runs sql and returns its first row, or nil if the result is
// empty. A query still producing rows after the first page is cancelled.
func (c *restConn) QueryRow(ctx context.Context, sql string) (row *Row, err error) {
	defer func(start time.Time) { c.recordQuery(opQuery, start, err) }(time.Now())
	resp, err := c.client.StartQuery(ctx, sql)
	if err != nil {
		return nil, wrapError(err)
	}
	schemaFields := resp.Schema
	for len(resp.Data) == 0 && resp.NextURI != "" {
		next, err := c.client.QueryPage(ctx, resp.ID, resp.NextURI)
		if err != nil {
			return nil, wrapError(err)
		}
		if len(schemaFields) == 0 {
			schemaFields = next.Schema
		}
		resp = next
	}
	if resp.NextURI != "" {
		if resp.KillURI == "" {
			return nil, invalidResponseError("pagination without a kill uri")
		}
		if err := c.client.KillQuery(ctx, resp.ID, resp.KillURI); err != nil {
			log := stdLogger()
			log.Debug().Err(err).Str("query_id", resp.ID).Msg("kill after first row failed")
		}
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return newRow(newSchema(schemaFields), resp.Data[0])
}

// QueryIter runs sql and streams the result rows.
func (c *restConn) QueryIter(ctx context.Context, sql string) (*RowIterator, error) {
	inner, err := c.QueryIterExt(ctx, sql)
	if err != nil {
		return nil, err
	}
	return &RowIterator{inner: inner}, nil
}

// QueryIterExt runs sql and streams the result rows interleaved with server
// statistics snapshots.
func (c *restConn) QueryIterExt(ctx context.Context, sql string) (it *RowStatsIterator, err error) {
	defer func(start time.Time) { c.recordQuery(opQuery, start, err) }(time.Now())
	resp, err := c.client.StartQuery(ctx, sql)
	if err != nil {
		return nil, wrapError(err)
	}
	return newRowStatsIterator(ctx, c.client, c.metrics, resp)
}

// StreamLoad renders rows as headerless CSV and ingests them into the target
// of the INSERT statement.
func (c *restConn) StreamLoad(ctx context.Context, sql string, rows [][]string) (*ServerStats, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, &Error{kind: KindIO, err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &Error{kind: KindIO, err: err}
	}
	return c.LoadData(ctx, sql, bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil, nil)
}

// LoadData uploads size bytes of data to a scratch stage and attaches it to
// sql, which must be an INSERT statement. Nil options select headerless CSV
// input and purge-on-success.
func (c *restConn) LoadData(ctx context.Context, sql string, data io.Reader, size int64, fileFormatOptions, copyOptions map[string]string) (stats *ServerStats, err error) {
	defer func(start time.Time) { c.recordQuery(opLoad, start, err) }(time.Now())
	stage, err := protocol.ScratchStagePath()
	if err != nil {
		return nil, wrapError(err)
	}
	if err := c.uploadToStage(ctx, stage, data, size); err != nil {
		return nil, err
	}
	resp, err := c.client.InsertWithStage(ctx, sql, stage, fileFormatOptions, copyOptions)
	if err != nil {
		return nil, wrapError(err)
	}
	s := newServerStats(resp.Stats)
	return &s, nil
}

var fileFormatsByExt = map[string]map[string]string{
	".csv":     {"type": "CSV", "field_delimiter": ",", "record_delimiter": "\n", "skip_header": "0"},
	".tsv":     {"type": "TSV", "field_delimiter": "\t", "record_delimiter": "\n"},
	".ndjson":  {"type": "NDJSON"},
	".jsonl":   {"type": "NDJSON"},
	".parquet": {"type": "PARQUET"},
}

// LoadFile ingests a local file like LoadData. With nil fileFormatOptions
// the format is derived from the file extension.
func (c *restConn) LoadFile(ctx context.Context, sql, path string, fileFormatOptions, copyOptions map[string]string) (*ServerStats, error) {
	if fileFormatOptions == nil {
		ext := strings.ToLower(filepath.Ext(path))
		format, ok := fileFormatsByExt[ext]
		if !ok {
			return nil, badArgumentError("cannot derive a file format from %q, pass file format options", path)
		}
		fileFormatOptions = format
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, wrapError(err)
	}
	return c.LoadData(ctx, sql, f, fi.Size(), fileFormatOptions, copyOptions)
}

// PresignedResponse carries a presigned request for direct object store
// access: the HTTP method, headers to send verbatim and the signed URL.
type PresignedResponse struct {
	Method  string
	Headers map[string]string
	URL     string
}

// GetPresignedURL requests a presigned URL for operation ("UPLOAD" or
// "DOWNLOAD") on a stage location.
func (c *restConn) GetPresignedURL(ctx context.Context, operation, stage string) (*PresignedResponse, error) {
	presigned, err := c.client.PresignURL(ctx, strings.ToUpper(operation), stage)
	if err != nil {
		return nil, wrapError(err)
	}
	return &PresignedResponse{Method: presigned.Method, Headers: presigned.Headers, URL: presigned.URL}, nil
}

// UploadToStage places size bytes of data at the stage location, e.g.
// "@~/client/load/part.csv".
func (c *restConn) UploadToStage(ctx context.Context, stage string, data io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { c.metrics.addDurationHistogramValue(opUpload, time.Since(start).Milliseconds()) }()
	return c.uploadToStage(ctx, stage, data, size)
}

func (c *restConn) uploadToStage(ctx context.Context, stage string, data io.Reader, size int64) error {
	if err := c.client.UploadToStage(ctx, stage, data, size); err != nil {
		return wrapError(err)
	}
	c.metrics.addCounterValue(counterBytesUploaded, uint64(size))
	return nil
}

// PutFiles uploads all local files matching pattern into the stage directory
// and returns the number of files uploaded.
func (c *restConn) PutFiles(ctx context.Context, pattern, stage string) (int, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, badArgumentError("invalid file pattern %q: %v", pattern, err)
	}
	stageDir := strings.TrimSuffix(stage, "/")
	uploaded := 0
	for _, match := range matches {
		fi, err := os.Stat(match)
		if err != nil {
			return uploaded, wrapError(err)
		}
		if fi.IsDir() {
			continue
		}
		f, err := os.Open(match)
		if err != nil {
			return uploaded, wrapError(err)
		}
		err = c.UploadToStage(ctx, stageDir+"/"+filepath.Base(match), f, fi.Size())
		f.Close()
		if err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}

// GetFiles downloads all files under the stage location into localDir and
// returns the number of files written.
func (c *restConn) GetFiles(ctx context.Context, stage, localDir string) (int, error) {
	location, err := protocol.ParseStageLocation(stage)
	if err != nil {
		return 0, wrapError(err)
	}
	it, err := c.QueryIter(ctx, "LIST "+location.String())
	if err != nil {
		return 0, err
	}
	defer it.Close()

	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return 0, wrapError(err)
	}
	downloaded := 0
	for it.Next() {
		values := it.Row().Values()
		if len(values) == 0 {
			continue
		}
		name, ok := values[0].(string)
		if !ok {
			return downloaded, invalidResponseError("list %s: unexpected name column %T", stage, values[0])
		}
		if err := c.downloadStageFile(ctx, location.Name, name, filepath.Join(localDir, filepath.Base(name))); err != nil {
			return downloaded, err
		}
		downloaded++
	}
	if err := it.Err(); err != nil {
		return downloaded, err
	}
	return downloaded, nil
}

func (c *restConn) downloadStageFile(ctx context.Context, stageName, name, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return wrapError(err)
	}
	_, err = c.client.DownloadFromStage(ctx, "@"+stageName+"/"+name, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return wrapError(err)
	}
	return nil
}
