// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the HTTP query protocol spoken by Databend:
// paginated query execution with retries, session state carried across
// requests, stage uploads and staged ingest.
package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/databendcloud/databend-client/driver/internal/dsn"
)

// Version is the client version reported in the User-Agent header.
const Version = "0.7.0"

const userAgent = "databend-client-go/" + Version

// Request headers.
const (
	headerQueryID   = "X-DATABEND-QUERY-ID"
	headerTenant    = "X-DATABEND-TENANT"
	headerWarehouse = "X-DATABEND-WAREHOUSE"
	headerStageName = "X-DATABEND-STAGE-NAME"
)

const (
	// Start query retries on 503, without backoff.
	maxStartQueryRetries = 3
	// Page request retries on transport failure, with backoff and jitter.
	pageRetryAttempts  = 3
	pageRetryBaseDelay = 10 * time.Millisecond
)

/*
Client speaks the query protocol to one server endpoint. It is safe for
concurrent use: all connection scoped fields are immutable after New and the
session state is guarded by its own mutex. Concurrent queries get independent
query ids and pagination chains; their session echoes are merged in completion
order.
*/
type Client struct {
	cli    *http.Client
	logger zerolog.Logger

	endpoint *url.URL
	host     string
	port     int
	user     string
	password string
	tenant   string

	presignedURLDisabled bool
	pagination           *Pagination
	pageRequestTimeout   time.Duration

	attrs *sessionAttrs
}

// New creates a Client from a parsed DSN.
func New(d *dsn.DSN) (*Client, error) {
	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		IdleConnTimeout: time.Second,
	}
	scheme := "http"
	if d.TLS {
		scheme = "https"
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if d.RootCAFile != "" {
			rootPEM, err := os.ReadFile(path.Clean(d.RootCAFile))
			if err != nil {
				return nil, &IOError{Err: err}
			}
			certPool := x509.NewCertPool()
			if ok := certPool.AppendCertsFromPEM(rootPEM); !ok {
				return nil, &IOError{Err: fmt.Errorf("failed to parse root certificate - filename: %s", d.RootCAFile)}
			}
			cfg.RootCAs = certPool
		}
		tr.TLSClientConfig = cfg
	}

	var pagination *Pagination
	if d.WaitTimeSecs != nil || d.MaxRowsInBuffer != nil || d.MaxRowsPerPage != nil {
		pagination = &Pagination{
			WaitTimeSecs:    d.WaitTimeSecs,
			MaxRowsInBuffer: d.MaxRowsInBuffer,
			MaxRowsPerPage:  d.MaxRowsPerPage,
		}
	}

	session := &SessionState{Database: d.Database, Settings: maps.Clone(d.SessionSettings)}

	return &Client{
		cli:                  &http.Client{Transport: tr},
		logger:               zerolog.Nop(),
		endpoint:             &url.URL{Scheme: scheme, Host: net.JoinHostPort(d.Host, strconv.Itoa(d.Port))},
		host:                 d.Host,
		port:                 d.Port,
		user:                 d.Username,
		password:             d.Password,
		tenant:               d.Tenant,
		presignedURLDisabled: d.PresignedURLDisabled,
		pagination:           pagination,
		pageRequestTimeout:   d.PageRequestTimeout,
		attrs:                newSessionAttrs(session, d.Warehouse),
	}, nil
}

// SetLogger replaces the default no-op logger. Call before issuing requests.
func (c *Client) SetLogger(logger zerolog.Logger) { c.logger = logger }

// CloseIdleConnections closes keep-alive connections held by the transport.
func (c *Client) CloseIdleConnections() { c.cli.CloseIdleConnections() }

// Host returns the configured server host.
func (c *Client) Host() string { return c.host }

// Port returns the configured server port.
func (c *Client) Port() int { return c.port }

// User returns the configured user name.
func (c *Client) User() string { return c.user }

// Database returns the cached current database.
func (c *Client) Database() string { return c.attrs.database() }

// Warehouse returns the cached current warehouse.
func (c *Client) Warehouse() string { return c.attrs.warehouse() }

func genQueryID() string { return uuid.NewString() }

func (c *Client) makeHeaders(queryID string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set(headerQueryID, queryID)
	if c.tenant != "" {
		h.Set(headerTenant, c.tenant)
	}
	if warehouse := c.attrs.warehouse(); warehouse != "" {
		h.Set(headerWarehouse, warehouse)
	}
	return h
}

type rawResponse struct {
	status int
	body   []byte
}

// do sends one request and drains the body, so that per request timeouts
// cover the full read.
func (c *Client) do(ctx context.Context, method string, u *url.URL, queryID string, body []byte) (*rawResponse, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header = c.makeHeaders(queryID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &rawResponse{status: resp.StatusCode, body: b}, nil
}

func (c *Client) handleQueryResponse(op string, raw *rawResponse) (*QueryResponse, error) {
	if raw.status != http.StatusOK {
		return nil, &StatusError{Op: op, StatusCode: raw.status, Body: string(raw.body)}
	}
	var resp QueryResponse
	if err := json.Unmarshal(raw.body, &resp); err != nil {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("unmarshal %s response: %v", op, err)}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	c.attrs.merge(resp.Session)
	return &resp, nil
}

// StartQuery submits sql and returns the first page.
func (c *Client) StartQuery(ctx context.Context, sql string) (*QueryResponse, error) {
	return c.startQuery(ctx, &QueryRequest{SQL: sql})
}

func (c *Client) startQuery(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	req.Session = c.attrs.session()
	if req.Pagination == nil {
		req.Pagination = c.pagination
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal query request")
	}

	queryID := genQueryID()
	u := c.endpoint.JoinPath("/v1/query")
	c.logger.Info().Str("query_id", queryID).Str("sql", req.SQL).Msg("start query")

	retries := 0
	for {
		raw, err := c.do(ctx, http.MethodPost, u, queryID, body)
		if err != nil {
			return nil, errors.Wrap(err, "start query request")
		}
		if raw.status == http.StatusServiceUnavailable && retries < maxStartQueryRetries {
			retries++
			c.logger.Debug().Str("query_id", queryID).Int("retry", retries).Msg("start query unavailable, retrying")
			continue
		}
		return c.handleQueryResponse("start query", raw)
	}
}

// QueryPage follows a next page URI. Transport failures are retried with
// exponential backoff and jitter; a 404 means the server reclaimed the
// session and is terminal.
func (c *Client) QueryPage(ctx context.Context, queryID, nextURI string) (*QueryResponse, error) {
	ref, err := url.Parse(nextURI)
	if err != nil {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("invalid next page uri %q", nextURI)}
	}
	u := c.endpoint.ResolveReference(ref)
	c.logger.Debug().Str("query_id", queryID).Str("uri", nextURI).Msg("query page")

	var raw *rawResponse
	err = retry.Do(
		func() error {
			tctx, cancel := context.WithTimeout(ctx, c.pageRequestTimeout)
			defer cancel()
			var err error
			raw, err = c.do(tctx, http.MethodGet, u, queryID, nil)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(pageRetryAttempts),
		retry.Delay(pageRetryBaseDelay),
		retry.MaxJitter(pageRetryBaseDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "query page request")
	}
	if raw.status == http.StatusNotFound {
		return nil, &SessionTimeoutError{Body: string(raw.body)}
	}
	return c.handleQueryResponse("query page", raw)
}

// KillQuery cancels a running query, best-effort.
func (c *Client) KillQuery(ctx context.Context, queryID, killURI string) error {
	ref, err := url.Parse(killURI)
	if err != nil {
		return &InvalidResponseError{Reason: fmt.Sprintf("invalid kill uri %q", killURI)}
	}
	u := c.endpoint.ResolveReference(ref)
	c.logger.Debug().Str("query_id", queryID).Msg("kill query")

	raw, err := c.do(ctx, http.MethodPost, u, queryID, nil)
	if err != nil {
		return errors.Wrap(err, "kill query request")
	}
	if raw.status != http.StatusOK {
		return &InvalidResponseError{Reason: fmt.Sprintf("kill query failed with status %d: %s", raw.status, string(raw.body))}
	}
	return nil
}

// WaitForQuery follows the pagination chain to completion, accumulating rows
// and keeping the schema of the first page that carries one. The returned
// response holds the final statistics, which are absolute for the query.
func (c *Client) WaitForQuery(ctx context.Context, resp *QueryResponse) (*QueryResponse, error) {
	schema := resp.Schema
	data := resp.Data
	for resp.NextURI != "" {
		next, err := c.QueryPage(ctx, resp.ID, resp.NextURI)
		if err != nil {
			return nil, err
		}
		if len(schema) == 0 && len(next.Schema) > 0 {
			schema = next.Schema
		}
		data = append(data, next.Data...)
		resp = next
	}
	resp.Schema = schema
	resp.Data = data
	return resp, nil
}

// Query submits sql and drains all pages.
func (c *Client) Query(ctx context.Context, sql string) (*QueryResponse, error) {
	resp, err := c.StartQuery(ctx, sql)
	if err != nil {
		return nil, err
	}
	return c.WaitForQuery(ctx, resp)
}

// DefaultFileFormatOptions returns the stage attachment format used when the
// caller does not provide one: headerless CSV.
func DefaultFileFormatOptions() map[string]string {
	return map[string]string{
		"type":             "CSV",
		"field_delimiter":  ",",
		"record_delimiter": "\n",
		"skip_header":      "0",
	}
}

// DefaultCopyOptions returns the copy options used when the caller does not
// provide any: remove the stage file after a successful copy.
func DefaultCopyOptions() map[string]string {
	return map[string]string{"purge": "true"}
}

// InsertWithStage submits sql with a stage attachment and drains the
// pagination chain. Options default per DefaultFileFormatOptions and
// DefaultCopyOptions.
func (c *Client) InsertWithStage(ctx context.Context, sql, stage string, fileFormatOptions, copyOptions map[string]string) (*QueryResponse, error) {
	if sql == "" {
		return nil, &ArgumentError{Reason: "empty sql for staged insert"}
	}
	if stage == "" {
		return nil, &ArgumentError{Reason: "empty stage location for staged insert"}
	}
	if fileFormatOptions == nil {
		fileFormatOptions = DefaultFileFormatOptions()
	}
	if copyOptions == nil {
		copyOptions = DefaultCopyOptions()
	}
	resp, err := c.startQuery(ctx, &QueryRequest{
		SQL: sql,
		StageAttachment: &StageAttachment{
			Location:          stage,
			FileFormatOptions: fileFormatOptions,
			CopyOptions:       copyOptions,
		},
	})
	if err != nil {
		return nil, err
	}
	return c.WaitForQuery(ctx, resp)
}
