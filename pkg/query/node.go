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

package query

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
	"github.com/yemnet/nmosctl/pkg/nmosapi"
)

// NodeClient queries a single node's IS-04 Node API directly, without
// going through a registry. Built from the href advertised in the node's
// registry record.
type NodeClient struct {
	api   *nmosapi.Client
	log   logger.Logger
	ID    string
	Label string
}

// NewNodeClient validates and probes the node href, negotiates a version
// and reads the node's identity from its self resource.
func NewNodeClient(ctx context.Context, href, version string, prober netutil.Prober, log logger.Logger) (*NodeClient, error) {
	socket, err := SocketFromHref(href)
	if err != nil {
		return nil, err
	}

	if !prober.TestConnection(socket) {
		return nil, fmt.Errorf("node %s: %w", href, netutil.ErrUnreachable)
	}

	api, err := nmosapi.New(ctx, socket, "node", version, log)
	if err != nil {
		return nil, err
	}

	n := &NodeClient{api: api, log: log.WithComponent("node")}

	self, err := n.Self(ctx)
	if err != nil {
		return nil, err
	}

	n.ID = self.ID()
	n.Label = self.Label()

	return n, nil
}

// Self returns the node's own record.
func (n *NodeClient) Self(ctx context.Context) (models.Resource, error) {
	raw, err := n.api.Get(ctx, "self")
	if err != nil {
		return nil, err
	}

	records := toRecords(raw)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty self resource", nmosapi.ErrMalformedResponse)
	}

	return records[0], nil
}

// Resources lists one resource type from the node's own API. Node APIs do
// not page and take no filters.
func (n *NodeClient) Resources(ctx context.Context, rt models.ResourceType) ([]models.Resource, error) {
	raw, err := n.api.Get(ctx, string(rt))
	if err != nil {
		return nil, err
	}

	return toRecords(raw), nil
}

// SocketFromHref breaks an http URL into a validated socket. A missing
// port defaults to 80.
func SocketFromHref(href string) (netutil.Socket, error) {
	u, err := url.Parse(href)
	if err != nil {
		return netutil.Socket{}, fmt.Errorf("parsing href %q: %w", href, err)
	}

	port := 80

	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return netutil.Socket{}, fmt.Errorf("parsing port in href %q: %w", href, err)
		}
	}

	return netutil.NewSocket(strings.ToLower(u.Scheme), u.Hostname(), port)
}
