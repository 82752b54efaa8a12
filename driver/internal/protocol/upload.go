// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

/*
uploadToStageByAPI uploads through the server's upload_to_stage endpoint with
a multipart body of a single part named "upload" whose filename is the stage
path. The multipart framing is rendered by hand so the body streams from r
while the request still declares an exact Content-Length.
*/
func (c *Client) uploadToStageByAPI(ctx context.Context, location *StageLocation, r io.Reader, size int64) error {
	boundary := multipart.NewWriter(io.Discard).Boundary()
	head := fmt.Sprintf("--%s\r\nContent-Disposition: form-data; name=\"upload\"; filename=\"%s\"\r\nContent-Type: application/octet-stream\r\n\r\n",
		boundary, quoteEscaper.Replace(location.Path))
	tail := fmt.Sprintf("\r\n--%s--\r\n", boundary)

	u := c.endpoint.JoinPath("/v1/upload_to_stage")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(),
		io.MultiReader(strings.NewReader(head), r, strings.NewReader(tail)))
	if err != nil {
		return errors.Wrap(err, "create upload request")
	}
	req.Header = c.makeHeaders(genQueryID())
	req.Header.Set(headerStageName, location.Name)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.ContentLength = int64(len(head)) + size + int64(len(tail))
	req.SetBasicAuth(c.user, c.password)

	c.logger.Info().Str("stage", location.String()).Int64("size", size).Msg("uploading to stage by api")
	resp, err := c.cli.Do(req)
	if err != nil {
		return errors.Wrap(err, "upload request")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "upload to stage", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
