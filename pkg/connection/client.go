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

// Package connection implements the IS-05 connection-management client:
// staged/active parameter access, sender and receiver staging, scheduled
// activation, disconnect and bulk operations.
//
// RTP over multicast is the only supported transport.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
	"github.com/yemnet/nmosctl/pkg/nmosapi"
	"github.com/yemnet/nmosctl/pkg/query"
)

// Client controls the senders and receivers behind one device's
// Connection API, reached via the href advertised in the device's
// controls.
type Client struct {
	api *nmosapi.Client
	log logger.Logger

	// NodeID is the owning node, filled in by the controller once the
	// device's registry record has been resolved.
	NodeID string
}

// NewClient validates and probes the control href, then negotiates an
// API version.
func NewClient(ctx context.Context, href, version string, prober netutil.Prober, log logger.Logger) (*Client, error) {
	socket, err := query.SocketFromHref(href)
	if err != nil {
		return nil, err
	}

	if !prober.TestConnection(socket) {
		return nil, fmt.Errorf("connection api %s: %w", href, netutil.ErrUnreachable)
	}

	api, err := nmosapi.New(ctx, socket, "connection", version, log)
	if err != nil {
		return nil, err
	}

	return &Client{api: api, log: log.WithComponent("connection")}, nil
}

// SenderIDs lists the sender UIDs this device exposes.
func (c *Client) SenderIDs(ctx context.Context) ([]string, error) {
	return c.idList(ctx, models.KindSenders)
}

// ReceiverIDs lists the receiver UIDs this device exposes.
func (c *Client) ReceiverIDs(ctx context.Context) ([]string, error) {
	return c.idList(ctx, models.KindReceivers)
}

func (c *Client) idList(ctx context.Context, kind models.ResourceKind) ([]string, error) {
	raw, err := c.api.Get(ctx, "single/"+string(kind))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))

	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			ids = append(ids, strings.TrimSuffix(s, "/"))
		}
	}

	return ids, nil
}

// GetActive returns the active parameter set for a sender or receiver,
// optionally projected onto keys.
func (c *Client) GetActive(ctx context.Context, id string, keys ...string) (models.Resource, error) {
	return c.singleResource(ctx, id, "active", keys...)
}

// GetStaged returns the staged parameter set.
func (c *Client) GetStaged(ctx context.Context, id string, keys ...string) (models.Resource, error) {
	return c.singleResource(ctx, id, "staged", keys...)
}

// GetConstraints returns the device's parameter constraints for id.
func (c *Client) GetConstraints(ctx context.Context, id string) ([]models.Resource, error) {
	kind, err := c.resolveKind(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := c.api.Get(ctx, fmt.Sprintf("single/%s/%s/constraints", kind, id))
	if err != nil {
		return nil, err
	}

	out := make([]models.Resource, 0, len(raw))

	for _, entry := range raw {
		if m, ok := entry.(map[string]interface{}); ok {
			out = append(out, models.Resource(m))
		}
	}

	return out, nil
}

// GetTransportType returns the urn:x-nmos:transport for id.
func (c *Client) GetTransportType(ctx context.Context, id string) (string, error) {
	kind, err := c.resolveKind(ctx, id)
	if err != nil {
		return "", err
	}

	raw, err := c.api.Get(ctx, fmt.Sprintf("single/%s/%s/transporttype", kind, id))
	if err != nil {
		return "", err
	}

	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: transporttype for %s", ErrEmptyResource, id)
}

// TransportFile fetches a sender's session description. A 404 maps to
// ErrNoTransportFile so callers can fall back to discrete parameters.
func (c *Client) TransportFile(ctx context.Context, senderID string) (string, error) {
	text, err := c.api.GetText(ctx, fmt.Sprintf("single/senders/%s/transportfile", senderID))
	if err != nil {
		var statusErr *nmosapi.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", ErrNoTransportFile, senderID)
		}

		return "", err
	}

	c.log.Info().Str("sender", senderID).Msg("got transport file")

	return text, nil
}

// DownloadTransportFile writes a sender's session description under dir
// and returns the written path.
func (c *Client) DownloadTransportFile(ctx context.Context, senderID, dir string) (string, error) {
	text, err := c.TransportFile(ctx, senderID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/%s.sdp", dir, senderID)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}

	return path, nil
}

// StageSender builds and optionally PATCHes the staged parameters of a
// sender. Addresses and ports are validated before any network call, and
// unset fields are stripped so the device only sees what the caller set.
// With opts.Apply false, the constructed payload is returned
// untransmitted for later bulk use.
func (c *Client) StageSender(ctx context.Context, id string, red, blue SenderLeg, opts StageOptions) (models.StagePayload, error) {
	if err := validateLegs(
		[]string{red.DestinationIP, red.SourceIP, blue.DestinationIP, blue.SourceIP},
		[]int{red.DestinationPort, red.SourcePort, blue.DestinationPort, blue.SourcePort},
	); err != nil {
		return nil, err
	}

	data := models.StagePayload{
		"transport_params": []interface{}{red.payload(), blue.payload()},
	}

	data = formatStaged(data, opts, true)

	if !opts.Apply {
		return data, nil
	}

	resp, err := c.api.Patch(ctx, fmt.Sprintf("single/senders/%s/staged", id), data)
	if err != nil {
		return nil, err
	}

	return models.StagePayload(resp), nil
}

// StageReceiver builds and optionally PATCHes the staged parameters of a
// receiver. A session description takes priority over discrete leg
// parameters; if sdp names a readable file its contents are used,
// otherwise it is treated as inline text.
func (c *Client) StageReceiver(ctx context.Context, id, senderID string, red, blue ReceiverLeg, sdp string, opts StageOptions) (models.StagePayload, error) {
	if err := validateLegs(
		[]string{red.MulticastIP, red.InterfaceIP, red.SourceIP, blue.MulticastIP, blue.InterfaceIP, blue.SourceIP},
		[]int{red.DestinationPort, blue.DestinationPort},
	); err != nil {
		return nil, err
	}

	var data models.StagePayload

	if sdp != "" {
		if contents, err := os.ReadFile(sdp); err == nil {
			sdp = string(contents)
		} else {
			c.log.Debug().Msg("supplied SDP is not a path, assuming inline text")
		}

		data = models.StagePayload{
			"sender_id": senderID,
			"transport_file": map[string]interface{}{
				"data": sdp,
				"type": "application/sdp",
			},
		}
	} else {
		data = models.StagePayload{
			"sender_id":        senderID,
			"transport_params": []interface{}{red.payload(), blue.payload()},
		}
	}

	data = formatStaged(data, opts, true)

	if !opts.Apply {
		return data, nil
	}

	resp, err := c.api.Patch(ctx, fmt.Sprintf("single/receivers/%s/staged", id), data)
	if err != nil {
		return nil, err
	}

	return models.StagePayload(resp), nil
}

// SetMasterEnable PATCHes only the master-enable flag of a sender or
// receiver, resolving which of the two the UID belongs to.
func (c *Client) SetMasterEnable(ctx context.Context, id string, enabled bool) error {
	kind, err := c.resolveKind(ctx, id)
	if err != nil {
		return err
	}

	data := map[string]interface{}{"master_enable": enabled}

	_, err = c.api.Patch(ctx, fmt.Sprintf("single/%s/%s/staged", kind, id), data)

	return err
}

// Activate PATCHes only an activation descriptor for the resolved
// resource kind.
func (c *Client) Activate(ctx context.Context, id, mode string, requestedTime *string) error {
	kind, err := c.resolveKind(ctx, id)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"activation": models.Activation{Mode: mode, RequestedTime: requestedTime},
	}

	_, err = c.api.Patch(ctx, fmt.Sprintf("single/%s/%s/staged", kind, id), data)

	return err
}

// DisconnectReceiver clears a receiver's staged configuration: the sender
// reference, transport file and both legs are explicitly nulled, with
// ports returned to "auto". Nothing is stripped here, since transmitting
// the nulls is the point.
func (c *Client) DisconnectReceiver(ctx context.Context, id string, opts StageOptions) (models.StagePayload, error) {
	clearedLeg := func() map[string]interface{} {
		return map[string]interface{}{
			"destination_port": "auto",
			"multicast_ip":     nil,
			"source_ip":        nil,
		}
	}

	data := models.StagePayload{
		"sender_id": nil,
		"transport_file": map[string]interface{}{
			"data": nil,
			"type": nil,
		},
		"transport_params": []interface{}{clearedLeg(), clearedLeg()},
	}

	data = formatStaged(data, opts, false)

	resp, err := c.api.Patch(ctx, fmt.Sprintf("single/receivers/%s/staged", id), data)
	if err != nil {
		return nil, err
	}

	return models.StagePayload(resp), nil
}

// BulkStage POSTs one batch of previously built payloads to the device's
// bulk endpoint, applying many UIDs in a single round trip.
func (c *Client) BulkStage(ctx context.Context, kind models.ResourceKind, payloads map[string]models.StagePayload) error {
	entries := make([]models.BulkEntry, 0, len(payloads))

	for id, params := range payloads {
		entries = append(entries, models.BulkEntry{ID: id, Params: params})
	}

	_, err := c.api.Post(ctx, "bulk/"+string(kind), entries)

	return err
}

// resolveKind determines whether id names a sender or a receiver on this
// device by consulting both ID lists.
func (c *Client) resolveKind(ctx context.Context, id string) (models.ResourceKind, error) {
	senders, err := c.SenderIDs(ctx)
	if err != nil {
		return "", err
	}

	for _, s := range senders {
		if s == id {
			return models.KindSenders, nil
		}
	}

	receivers, err := c.ReceiverIDs(ctx)
	if err != nil {
		return "", err
	}

	for _, r := range receivers {
		if r == id {
			return models.KindReceivers, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrResourceNotFound, id)
}

func (c *Client) singleResource(ctx context.Context, id, endpoint string, keys ...string) (models.Resource, error) {
	kind, err := c.resolveKind(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := c.api.Get(ctx, fmt.Sprintf("single/%s/%s/%s", kind, id, endpoint))
	if err != nil {
		return nil, err
	}

	for _, entry := range raw {
		if m, ok := entry.(map[string]interface{}); ok {
			records := query.Project([]models.Resource{models.Resource(m)}, keys...)
			if len(records) == 0 {
				return nil, fmt.Errorf("%w: %s/%s", ErrEmptyResource, id, endpoint)
			}

			return records[0], nil
		}
	}

	return nil, fmt.Errorf("%w: %s/%s", ErrEmptyResource, id, endpoint)
}

// validateLegs rejects malformed addresses and ports before anything is
// transmitted. Empty and zero values mean "unset" and pass.
func validateLegs(ips []string, ports []int) error {
	for _, ip := range ips {
		if ip == "" {
			continue
		}

		if err := netutil.VerifyIP(ip); err != nil {
			return err
		}
	}

	for _, port := range ports {
		if port == 0 {
			continue
		}

		if err := netutil.VerifyPort(port); err != nil {
			return err
		}
	}

	return nil
}
