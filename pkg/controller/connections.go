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

package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yemnet/nmosctl/pkg/caps"
	"github.com/yemnet/nmosctl/pkg/connection"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
	"github.com/yemnet/nmosctl/pkg/query"
)

// OpenRegistryConnection connects to the active registry: it creates one
// websocket subscription per mirrored resource type, waits for the
// initial sync grains to land, then builds a node client per mirrored
// node and a connection client per device that advertises a Connection
// API control. An already-open connection is closed first.
func (c *Controller) OpenRegistryConnection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rds != nil {
		c.closeLocked()
	}

	if c.active == nil {
		return ErrNoActiveRegistry
	}

	socket, err := netutil.NewSocket(c.active.Transport, c.active.IP, c.active.Port)
	if err != nil {
		return err
	}

	rds, err := query.NewClient(ctx, socket, "", c.cfg.PagingLimit, c.log)
	if err != nil {
		return fmt.Errorf("connecting to registry %s: %w", c.active.Addr(), err)
	}

	c.rds = rds

	for _, rt := range models.MirroredResources() {
		sub, err := rds.CreateSubscription(ctx, rt, false, nil)
		if err != nil {
			c.closeLocked()
			return fmt.Errorf("subscribing to %s: %w", rt, err)
		}

		if err := c.mirror.Open(ctx, sub); err != nil {
			c.closeLocked()
			return fmt.Errorf("opening mirror channel for %s: %w", rt, err)
		}
	}

	c.log.Info().Dur("settle", c.settle).Msg("waiting for initial registry sync")
	time.Sleep(c.settle)

	if err := c.buildNodeClientsLocked(ctx); err != nil {
		c.log.Warn().Err(err).Msg("no nodes mirrored yet")
	}

	if err := c.buildConnClientsLocked(ctx); err != nil {
		c.log.Warn().Err(err).Msg("no devices mirrored yet")
	}

	c.log.Info().
		Str("registry", c.active.Name).
		Int("nodes", len(c.nodes)).
		Int("devices", len(c.conns)).
		Msg("registry connection open")

	return nil
}

// CloseRegistryConnection tears down the websocket channels and drops the
// per-node and per-device clients. The mirrored tables stay readable.
func (c *Controller) CloseRegistryConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
}

func (c *Controller) closeLocked() {
	c.mirror.Close()

	c.rds = nil
	c.nodes = make(map[string]*query.NodeClient)
	c.conns = make(map[string]ConnectionAPI)
	c.pending = nil
}

func (c *Controller) buildNodeClientsLocked(ctx context.Context) error {
	nodes, err := c.db.Resources(ctx, models.ResourceNodes, nil)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		href := node.String("href")
		if href == "" {
			continue
		}

		nc, err := query.NewNodeClient(ctx, href, "", c.prober, c.log)
		if err != nil {
			c.log.Warn().Err(err).Str("node", node.Label()).Msg("skipping node")
			continue
		}

		c.nodes[node.ID()] = nc
	}

	return nil
}

func (c *Controller) buildConnClientsLocked(ctx context.Context) error {
	devices, err := c.db.Resources(ctx, models.ResourceDevices, nil)
	if err != nil {
		return err
	}

	for _, device := range devices {
		href, err := query.ConnectionHrefFromDevice(device)
		if err != nil {
			c.log.Debug().Str("device", device.Label()).Msg("device has no connection control")
			continue
		}

		conn, err := connection.NewClient(ctx, href, "", c.prober, c.log)
		if err != nil {
			c.log.Warn().Err(err).Str("device", device.Label()).Msg("skipping device")
			continue
		}

		conn.NodeID = device.String("node_id")
		c.conns[device.ID()] = conn
	}

	return nil
}

// StageConnection stages a route from sender to receiver without
// activating it. The sender's capabilities are checked first; then the
// sender's transport file is preferred as the staging source, falling
// back to deriving receiver legs from the sender's active transport
// parameters when no transport file is available. The receiver joins the
// pending set for a later bulk activation.
func (c *Controller) StageConnection(ctx context.Context, senderID, receiverID string) error {
	if !models.ValidUID(senderID) || !models.ValidUID(receiverID) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidUID, senderID, receiverID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.verifyCompatibilityLocked(ctx, senderID, receiverID); err != nil {
		return fmt.Errorf("sender %s is not compatible with receiver %s: %w", senderID, receiverID, err)
	}

	recvDevice, err := c.db.ResourceField(ctx, models.ResourceReceivers, &query.Filter{Key: "id", Value: receiverID}, "device_id")
	if err != nil {
		return err
	}

	rconn, ok := c.conns[recvDevice]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoConnectionClient, recvDevice)
	}

	opts := connection.DefaultStageOptions()
	opts.Activate = false

	sdp := c.manifestLocked(ctx, senderID)

	if sdp != "" {
		if _, err := rconn.StageReceiver(ctx, receiverID, senderID, connection.ReceiverLeg{}, connection.ReceiverLeg{}, sdp, opts); err != nil {
			return err
		}
	} else {
		red, blue, st20227, err := c.senderLegsLocked(ctx, senderID)
		if err != nil {
			return err
		}

		opts.ST20227 = st20227

		if _, err := rconn.StageReceiver(ctx, receiverID, senderID, red, blue, "", opts); err != nil {
			return err
		}
	}

	c.pending = append(c.pending, receiverID)
	c.log.Info().Str("sender", senderID).Str("receiver", receiverID).Msg("connection staged")

	return nil
}

// UnstageConnection disconnects a staged receiver and removes it from
// the pending set. A receiver that was never staged is an error.
func (c *Controller) UnstageConnection(ctx context.Context, receiverID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1

	for i, id := range c.pending {
		if id == receiverID {
			idx = i
			break
		}
	}

	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotPending, receiverID)
	}

	recvDevice, err := c.db.ResourceField(ctx, models.ResourceReceivers, &query.Filter{Key: "id", Value: receiverID}, "device_id")
	if err != nil {
		return err
	}

	rconn, ok := c.conns[recvDevice]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoConnectionClient, recvDevice)
	}

	// unstage only flattens the staged parameter set; activation stays a
	// separate, explicitly requested step
	opts := connection.DefaultStageOptions()
	opts.Activate = false

	if _, err := rconn.DisconnectReceiver(ctx, receiverID, opts); err != nil {
		return err
	}

	c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	c.log.Info().Str("receiver", receiverID).Msg("connection unstaged")

	return nil
}

// ActivatePendingReceivers activates every staged receiver, grouped into
// one bulk request per owning device. The pending set is kept after a
// successful activation; call ClearPending once the routes are confirmed.
func (c *Controller) ActivatePendingReceivers(ctx context.Context, mode string, requestedTime *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}

	payload := models.StagePayload{
		"activation": map[string]interface{}{
			"mode":           mode,
			"requested_time": requestedTime,
		},
	}

	byDevice := make(map[string]map[string]models.StagePayload)

	for _, receiverID := range c.pending {
		device, err := c.db.ResourceField(ctx, models.ResourceReceivers, &query.Filter{Key: "id", Value: receiverID}, "device_id")
		if err != nil {
			return err
		}

		if byDevice[device] == nil {
			byDevice[device] = make(map[string]models.StagePayload)
		}

		byDevice[device][receiverID] = payload
	}

	for device, payloads := range byDevice {
		conn, ok := c.conns[device]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoConnectionClient, device)
		}

		if err := conn.BulkStage(ctx, models.KindReceivers, payloads); err != nil {
			return fmt.Errorf("bulk activation on device %s: %w", device, err)
		}

		c.log.Info().Str("device", device).Int("receivers", len(payloads)).Msg("bulk activation sent")
	}

	return nil
}

// PendingReceivers returns a copy of the staged-but-unactivated set.
func (c *Controller) PendingReceivers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.pending...)
}

// ClearPending empties the pending set.
func (c *Controller) ClearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = nil
}

// verifyCompatibilityLocked assembles the sender's flow, source and
// optional transport file from the mirror and runs the capability check
// against the receiver.
func (c *Controller) verifyCompatibilityLocked(ctx context.Context, senderID, receiverID string) error {
	flowID, err := c.db.ResourceField(ctx, models.ResourceSenders, &query.Filter{Key: "id", Value: senderID}, "flow_id")
	if err != nil {
		return err
	}

	flows, err := c.db.Resources(ctx, models.ResourceFlows, &query.Filter{Key: "id", Value: flowID})
	if err != nil {
		return err
	}

	flow := flows[0]

	sources, err := c.db.Resources(ctx, models.ResourceSources, &query.Filter{Key: "id", Value: flow.String("source_id")})
	if err != nil {
		return err
	}

	receivers, err := c.db.Resources(ctx, models.ResourceReceivers, &query.Filter{Key: "id", Value: receiverID})
	if err != nil {
		return err
	}

	desc := caps.SenderDescription{Flow: flow, Source: sources[0]}

	if text := c.manifestLocked(ctx, senderID); text != "" {
		if parsed, err := caps.ParseSDP(text); err == nil {
			desc.SDP = parsed
		}
	}

	return caps.Verify(desc, receivers[0])
}

// Manifest fetches a sender's transport file via the live query client.
func (c *Controller) Manifest(ctx context.Context, senderID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rds == nil {
		return "", ErrNoActiveRegistry
	}

	return c.rds.Manifest(ctx, senderID)
}

// manifestLocked fetches the sender's transport file via the live query
// client. An unavailable manifest is not an error here; callers fall
// back to transport parameters.
func (c *Controller) manifestLocked(ctx context.Context, senderID string) string {
	if c.rds == nil {
		return ""
	}

	text, err := c.rds.Manifest(ctx, senderID)
	if err != nil {
		if !errors.Is(err, query.ErrManifestUnavailable) {
			c.log.Debug().Err(err).Str("sender", senderID).Msg("transport file unavailable")
		}

		return ""
	}

	return text
}

// senderLegsLocked derives receiver transport legs from the sender's
// active transport parameters. A sender publishing two legs is treated
// as an ST 2022-7 pair.
func (c *Controller) senderLegsLocked(ctx context.Context, senderID string) (red, blue connection.ReceiverLeg, st20227 bool, err error) {
	sendDevice, err := c.db.ResourceField(ctx, models.ResourceSenders, &query.Filter{Key: "id", Value: senderID}, "device_id")
	if err != nil {
		return red, blue, false, err
	}

	sconn, ok := c.conns[sendDevice]
	if !ok {
		return red, blue, false, fmt.Errorf("%w: %s", ErrNoConnectionClient, sendDevice)
	}

	active, err := sconn.GetActive(ctx, senderID, "transport_params")
	if err != nil {
		return red, blue, false, err
	}

	legs, _ := active["transport_params"].([]interface{})
	if len(legs) == 0 {
		return red, blue, false, fmt.Errorf("sender %s has no active transport parameters", senderID)
	}

	red = receiverLegFromSender(legs[0])

	if len(legs) > 1 {
		blue = receiverLegFromSender(legs[1])
		st20227 = true
	}

	return red, blue, st20227, nil
}

// receiverLegFromSender maps one sender leg onto the matching receiver
// leg: the sender's destination becomes the receiver's multicast group
// and port.
func receiverLegFromSender(leg interface{}) connection.ReceiverLeg {
	params, _ := leg.(map[string]interface{})

	out := connection.ReceiverLeg{RTPEnabled: true}

	if ip, ok := params["destination_ip"].(string); ok {
		out.MulticastIP = ip
	}

	if port, ok := params["destination_port"].(float64); ok {
		out.DestinationPort = int(port)
	}

	if src, ok := params["source_ip"].(string); ok {
		out.SourceIP = src
	}

	return out
}
