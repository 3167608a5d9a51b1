/*
 * Copyright 2026 Yem Networks.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package nmosapi implements the versioned HTTP client shared by the
// Query, Node and Connection API clients: version negotiation against the
// API root, GET with Link-relation pagination, and the write verbs.
package nmosapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/netutil"
)

// pagingSentinel marks the "since the beginning of time" cursor that
// terminates a backward page walk, per IS-04 query pagination.
const pagingSentinel = "paging.until=0:0"

// Client is a versioned NMOS API client bound to one socket and one API
// name (query, node or connection). Concrete clients hold one by
// composition.
type Client struct {
	http    *http.Client
	log     logger.Logger
	socket  netutil.Socket
	api     string
	version string
	url     string
}

// New negotiates the API version and returns a ready client. When pinned
// is empty the lexicographically highest version the server implements is
// used; a pinned version the server does not implement is an error.
func New(ctx context.Context, socket netutil.Socket, api, pinned string, log logger.Logger) (*Client, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil

	c := &Client{
		http:   rc.StandardClient(),
		log:    log.WithComponent(api + "-api"),
		socket: socket,
		api:    api,
	}

	if err := c.negotiateVersion(ctx, pinned); err != nil {
		return nil, err
	}

	c.url = socket.BaseURL() + api + "/" + c.version + "/"
	c.log.Info().Str("url", c.url).Msg("base URL set")

	return c, nil
}

// Version returns the negotiated API version, e.g. "v1.3".
func (c *Client) Version() string { return c.version }

// URL returns the versioned base URL, with a trailing slash.
func (c *Client) URL() string { return c.url }

// Socket returns the endpoint the client is bound to.
func (c *Client) Socket() netutil.Socket { return c.socket }

// negotiateVersion asks the server for its implemented versions rather
// than trusting advertised TXT records, which go stale.
func (c *Client) negotiateVersion(ctx context.Context, pinned string) error {
	root := c.socket.BaseURL() + c.api + "/"

	body, _, err := c.getOnce(ctx, root)
	if err != nil {
		return err
	}

	var listed []string
	if err := json.Unmarshal(body, &listed); err != nil {
		return fmt.Errorf("%w: version list from %s: %v", ErrMalformedResponse, root, err)
	}

	supported := make([]string, 0, len(listed))
	for _, v := range listed {
		supported = append(supported, strings.TrimSuffix(v, "/"))
	}

	c.log.Info().Strs("versions", supported).Str("api", c.api).Msg("server supported versions")

	if pinned != "" {
		for _, v := range supported {
			if v == pinned {
				c.version = pinned
				c.log.Info().Str("version", pinned).Msg("using statically assigned version")

				return nil
			}
		}

		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, pinned)
	}

	max := ""
	for _, v := range supported {
		if v > max {
			max = v
		}
	}

	if max == "" {
		return fmt.Errorf("%w: empty version list from %s", ErrMalformedResponse, root)
	}

	c.version = max
	c.log.Info().Str("version", max).Msg("using latest supported version")

	return nil
}

// Get fetches path relative to the versioned base URL and decodes the
// JSON body. A single JSON object is wrapped into a one-element slice so
// callers always see a sequence.
//
// When the response carries a "next" link relation the client walks the
// "prev" links backward, concatenating pages, until the sentinel
// since-the-beginning cursor appears in the prev URL. The result is the
// full history in the order the server delivers it.
func (c *Client) Get(ctx context.Context, path string) ([]interface{}, error) {
	body, header, err := c.getOnce(ctx, c.url+path)
	if err != nil {
		return nil, err
	}

	results, err := decodeSequence(body)
	if err != nil {
		return nil, err
	}

	links := parseLinks(header)
	if links["next"] == "" {
		return results, nil
	}

	for !strings.Contains(links["prev"], pagingSentinel) {
		body, header, err = c.getOnce(ctx, links["prev"])
		if err != nil {
			return nil, err
		}

		page, err := decodeSequence(body)
		if err != nil {
			return nil, err
		}

		results = append(results, page...)
		links = parseLinks(header)
	}

	return results, nil
}

// GetText fetches path and returns the raw body, for non-JSON payloads
// such as transport files. A 404 is reported as a StatusError.
func (c *Client) GetText(ctx context.Context, path string) (string, error) {
	body, _, err := c.getOnce(ctx, c.url+path)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// GetURL fetches an absolute URL outside the versioned base, e.g. a
// manifest href advertised in a sender record.
func (c *Client) GetURL(ctx context.Context, url string) ([]byte, error) {
	body, _, err := c.getOnce(ctx, url)
	return body, err
}

// Post sends body as JSON and returns the decoded response, which may be
// an object or a sequence depending on the endpoint.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (interface{}, error) {
	return c.write(ctx, http.MethodPost, path, body)
}

// Patch sends body as JSON and decodes the response object.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	decoded, err := c.write(ctx, http.MethodPatch, path, body)
	if err != nil {
		return nil, err
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok && decoded != nil {
		return nil, fmt.Errorf("%w: PATCH %s did not return an object", ErrMalformedResponse, path)
	}

	return obj, nil
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	url := c.url + path
	c.log.Info().Str("url", url).Msg("DELETE")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE %s: %w", url, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return nil
}

func (c *Client) write(ctx context.Context, method, path string, body interface{}) (interface{}, error) {
	url := c.url + path
	c.log.Info().Str("url", url).Msg(method)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var decoded interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("%w: %s response from %s: %v", ErrMalformedResponse, method, url, err)
		}
	}

	return decoded, nil
}

// getOnce performs a single GET with no pagination handling.
func (c *Client) getOnce(ctx context.Context, url string) ([]byte, http.Header, error) {
	c.log.Debug().Str("url", url).Msg("GET")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", url, err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return body, resp.Header, nil
}

// decodeSequence decodes a JSON body that may be either a sequence or a
// single object.
func decodeSequence(body []byte) ([]interface{}, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var seq []interface{}
		if err := json.Unmarshal(trimmed, &seq); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		return seq, nil
	}

	var obj interface{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return []interface{}{obj}, nil
}
