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

// Package query implements the read-only IS-04 Query and Node API client:
// resource listing with pagination, filtered queries, key projection,
// subscription management and manifest retrieval.
package query

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
	"github.com/yemnet/nmosctl/pkg/nmosapi"
)

// connControlPrefix identifies a device control advertising an IS-05
// Connection API.
const connControlPrefix = "urn:x-nmos:control:sr-ctrl/v"

// Filter is a single query-string constraint on a resource listing.
// Double underscores in the key are translated to dotted paths, so
// "params__label" filters on params.label.
type Filter struct {
	Key   string
	Value string
}

// Reader is the read path shared by the live Query API client and the
// mirror-backed store: list a resource type, optionally filtered on one
// field.
type Reader interface {
	Resources(ctx context.Context, rt models.ResourceType, filter *Filter) ([]models.Resource, error)
}

// Client queries one IS-04 Query API instance.
type Client struct {
	api         *nmosapi.Client
	log         logger.Logger
	pagingLimit int
	base        []string
}

// NewClient connects to the query API on the given socket, negotiates a
// version and caches the server's base resource listing.
func NewClient(ctx context.Context, socket netutil.Socket, version string, pagingLimit int, log logger.Logger) (*Client, error) {
	api, err := nmosapi.New(ctx, socket, "query", version, log)
	if err != nil {
		return nil, err
	}

	c := &Client{
		api:         api,
		log:         log.WithComponent("query"),
		pagingLimit: pagingLimit,
	}

	base, err := c.api.Get(ctx, "")
	if err != nil {
		return nil, err
	}

	for _, entry := range base {
		if s, ok := entry.(string); ok {
			c.base = append(c.base, strings.TrimSuffix(s, "/"))
		}
	}

	return c, nil
}

// Base returns the resource paths the server advertises at its root.
func (c *Client) Base() []string { return c.base }

// Version returns the negotiated query API version.
func (c *Client) Version() string { return c.api.Version() }

// Resources implements Reader against the live registry. At most one
// filter may be supplied. An empty result is ErrNoResults.
func (c *Client) Resources(ctx context.Context, rt models.ResourceType, filter *Filter) ([]models.Resource, error) {
	path := buildPath(string(rt), filter, c.pagingLimit)

	raw, err := c.api.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	records := toRecords(raw)
	if len(records) == 0 {
		c.log.Error().Str("path", path).Msg("query returned no results")
		return nil, fmt.Errorf("%w: %s", ErrNoResults, path)
	}

	return records, nil
}

// ResourceByID fetches a single record by UID.
func (c *Client) ResourceByID(ctx context.Context, rt models.ResourceType, id string) (models.Resource, error) {
	records, err := c.Resources(ctx, rt, &Filter{Key: "id", Value: id})
	if err != nil {
		return nil, err
	}

	return records[0], nil
}

// GetID translates a label to a UID within one resource type. For
// subscriptions the label lives under params.
func (c *Client) GetID(ctx context.Context, rt models.ResourceType, label string) (string, error) {
	if !models.ValidResourceType(rt) {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, rt)
	}

	filter := &Filter{Key: "label", Value: label}
	if rt == models.ResourceSubscriptions {
		filter.Key = "params__label"
	}

	records, err := c.Resources(ctx, rt, filter)
	if err != nil {
		return "", err
	}

	ids := ProjectStrings(records, "id")
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no id for label %q", ErrNoResults, label)
	}

	return ids[0], nil
}

// Search queries every mirrored resource type with the same filter and
// projection, keyed by resource type.
func (c *Client) Search(ctx context.Context, filter *Filter, keys ...string) (map[models.ResourceType][]models.Resource, error) {
	out := make(map[models.ResourceType][]models.Resource)

	for _, rt := range models.BaseResources() {
		records, err := c.Resources(ctx, rt, filter)
		if err != nil {
			if strings.Contains(err.Error(), ErrNoResults.Error()) {
				continue
			}

			return nil, err
		}

		out[rt] = Project(records, keys...)
	}

	return out, nil
}

// ConnectionHref resolves, among a device's advertised controls, the
// Connection API control with the numerically highest version and returns
// its href.
func (c *Client) ConnectionHref(ctx context.Context, deviceID string) (string, error) {
	device, err := c.ResourceByID(ctx, models.ResourceDevices, deviceID)
	if err != nil {
		return "", err
	}

	return ConnectionHrefFromDevice(device)
}

// ConnectionHrefFromDevice picks the connection-management control out of
// an already-fetched device record.
func ConnectionHrefFromDevice(device models.Resource) (string, error) {
	controls, _ := device["controls"].([]interface{})

	var hrefs []string

	for _, entry := range controls {
		control, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		ctype, _ := control["type"].(string)
		href, _ := control["href"].(string)

		if strings.HasPrefix(ctype, connControlPrefix) && href != "" {
			hrefs = append(hrefs, href)
		}
	}

	if len(hrefs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoConnectionHref, device.ID())
	}

	// Highest version wins; the version is the final segment of the
	// control path, so ordering the paths orders the versions.
	sort.Slice(hrefs, func(i, j int) bool {
		return controlPath(hrefs[i]) > controlPath(hrefs[j])
	})

	return hrefs[0], nil
}

// Manifest fetches a sender's transport file (SDP) via its advertised
// manifest href.
func (c *Client) Manifest(ctx context.Context, senderID string) (string, error) {
	sender, err := c.ResourceByID(ctx, models.ResourceSenders, senderID)
	if err != nil {
		return "", err
	}

	href := sender.String("manifest_href")
	if href == "" {
		c.log.Warn().Str("sender", sender.Label()).Msg("manifest not available")
		return "", fmt.Errorf("%w: %s", ErrManifestUnavailable, senderID)
	}

	body, err := c.api.GetURL(ctx, href)
	if err != nil {
		return "", fmt.Errorf("retrieving manifest for %s: %w", senderID, err)
	}

	c.log.Info().Str("sender", senderID).Msg("got manifest")

	return string(body), nil
}

// CreateSubscription asks the registry for a notification channel on one
// resource path, optionally filtered.
func (c *Client) CreateSubscription(ctx context.Context, rt models.ResourceType, persist bool, params map[string]string) (*models.Subscription, error) {
	if params == nil {
		params = map[string]string{}
	}

	body := map[string]interface{}{
		"max_update_rate_ms": 100,
		"resource_path":      "/" + string(rt),
		"params":             params,
		"persist":            persist,
		"secure":             false,
	}

	raw, err := c.api.Post(ctx, "subscriptions", body)
	if err != nil {
		return nil, err
	}

	resp, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: subscription response is not an object", nmosapi.ErrMalformedResponse)
	}

	sub := &models.Subscription{
		Persist: persist,
		Params:  params,
	}

	sub.ID, _ = resp["id"].(string)
	sub.ResourcePath, _ = resp["resource_path"].(string)
	sub.WebsocketHref, _ = resp["ws_href"].(string)

	if sub.WebsocketHref == "" {
		return nil, fmt.Errorf("%w: subscription response missing ws_href", nmosapi.ErrMalformedResponse)
	}

	return sub, nil
}

// RemoveSubscription deletes a previously created subscription.
func (c *Client) RemoveSubscription(ctx context.Context, id string) error {
	return c.api.Delete(ctx, "subscriptions/"+id)
}

// buildPath assembles the request path with the optional filter and
// paging limit.
func buildPath(resource string, filter *Filter, pagingLimit int) string {
	values := url.Values{}

	if filter != nil {
		key := strings.ReplaceAll(filter.Key, "__", ".")
		values.Set(key, filter.Value)
	}

	if pagingLimit > 0 {
		values.Set("paging.limit", fmt.Sprintf("%d", pagingLimit))
	}

	if encoded := values.Encode(); encoded != "" {
		return resource + "?" + encoded
	}

	return resource
}

// controlPath returns the href's path with any trailing slash removed.
func controlPath(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return strings.TrimSuffix(u.Path, "/")
}

// toRecords keeps only object-typed entries from a decoded sequence.
func toRecords(raw []interface{}) []models.Resource {
	records := make([]models.Resource, 0, len(raw))

	for _, entry := range raw {
		if m, ok := entry.(map[string]interface{}); ok {
			records = append(records, models.Resource(m))
		}
	}

	return records
}
