// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// PresignedResponse is the parsed result of a PRESIGN statement: the HTTP
// method to use, headers to forward verbatim and the signed target URL.
type PresignedResponse struct {
	Method  string
	Headers map[string]string
	URL     string
}

// PresignURL runs "PRESIGN <operation> <stage>" and validates the result
// shape: exactly one row with three columns (method, headers object, url).
func (c *Client) PresignURL(ctx context.Context, operation, stage string) (*PresignedResponse, error) {
	resp, err := c.Query(ctx, fmt.Sprintf("PRESIGN %s %s", operation, stage))
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != 1 {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("presign %s %s: expected 1 row, got %d", operation, stage, len(resp.Data))}
	}
	row := resp.Data[0]
	if len(row) != 3 {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("presign %s %s: expected 3 columns, got %d", operation, stage, len(row))}
	}
	headers := map[string]string{}
	if err := json.Unmarshal([]byte(deref(row[1])), &headers); err != nil {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("presign %s %s: invalid headers object: %v", operation, stage, err)}
	}
	return &PresignedResponse{Method: deref(row[0]), Headers: headers, URL: deref(row[2])}, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// UploadToStage places size bytes from r at the stage path. It prefers a
// presigned PUT to the backing object store; when presigning is disabled or
// the presigned method is not recognized it falls back to the proxied
// endpoint. Both paths succeed only on HTTP 200.
func (c *Client) UploadToStage(ctx context.Context, stage string, r io.Reader, size int64) error {
	location, err := ParseStageLocation(stage)
	if err != nil {
		return err
	}
	if c.presignedURLDisabled {
		return c.uploadToStageByAPI(ctx, location, r, size)
	}
	presigned, err := c.PresignURL(ctx, "UPLOAD", stage)
	if err != nil {
		return err
	}
	if presigned.Method != http.MethodPut {
		c.logger.Warn().Str("method", presigned.Method).Msg("unrecognized presign method, falling back to proxied upload")
		return c.uploadToStageByAPI(ctx, location, r, size)
	}
	return c.uploadByPresignedURL(ctx, presigned, r, size)
}

// DownloadFromStage streams the content of a stage file through a presigned
// GET into w and returns the number of bytes copied.
func (c *Client) DownloadFromStage(ctx context.Context, stage string, w io.Writer) (int64, error) {
	presigned, err := c.PresignURL(ctx, "DOWNLOAD", stage)
	if err != nil {
		return 0, err
	}
	if presigned.Method != http.MethodGet {
		return 0, &InvalidResponseError{Reason: fmt.Sprintf("presign download returned method %q", presigned.Method)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presigned.URL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "create presigned download request")
	}
	for k, v := range presigned.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "presigned download request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, &StatusError{Op: "presigned download", StatusCode: resp.StatusCode, Body: string(body)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &IOError{Err: err}
	}
	return n, nil
}

func (c *Client) uploadByPresignedURL(ctx context.Context, presigned *PresignedResponse, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.URL, r)
	if err != nil {
		return errors.Wrap(err, "create presigned upload request")
	}
	// The signed URL addresses the object store directly: only the presigned
	// headers go along, no client auth headers.
	for k, v := range presigned.Headers {
		req.Header.Set(k, v)
	}
	req.ContentLength = size
	c.logger.Info().Int64("size", size).Msg("uploading to stage by presigned url")

	resp, err := c.cli.Do(req)
	if err != nil {
		return errors.Wrap(err, "presigned upload request")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "presigned upload", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
