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

// Package mirror maintains a local read model of registry state by
// consuming IS-04 subscription websockets, one channel per resource type,
// each writing only to its own table.
package mirror

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
)

// Mirror owns the set of open subscription channels and applies their
// event streams to the store. Channels are independent: a failure on one
// leaves every other table untouched.
type Mirror struct {
	store  Store
	log    logger.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	channels map[string]*channel
	wg       sync.WaitGroup
}

type channel struct {
	subID string
	rt    models.ResourceType
	conn  *websocket.Conn
}

func New(store Store, log logger.Logger) *Mirror {
	return &Mirror{
		store:    store,
		log:      log.WithComponent("mirror"),
		dialer:   websocket.DefaultDialer,
		channels: make(map[string]*channel),
	}
}

// Store exposes the mirror's read path.
func (m *Mirror) Store() Store { return m.store }

// Open resets the table for the subscription's resource type and begins
// consuming its websocket. Reads against the table are valid from the
// moment Open returns; the initial sync replay fills it in.
func (m *Mirror) Open(ctx context.Context, sub *models.Subscription) error {
	rt, err := topicResource(sub.ResourcePath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, open := m.channels[sub.ID]; open {
		m.mu.Unlock()
		return ErrChannelOpen
	}
	m.mu.Unlock()

	// A stale table from a previous connection is dropped, making
	// reconnects idempotent.
	if err := m.store.Reset(ctx, rt); err != nil {
		return err
	}

	m.log.Info().Str("ws_href", sub.WebsocketHref).Str("resource", string(rt)).Msg("opening subscription channel")

	conn, resp, err := m.dialer.DialContext(ctx, sub.WebsocketHref, nil)
	if err != nil {
		if resp != nil {
			m.log.Error().Int("status", resp.StatusCode).Str("ws_href", sub.WebsocketHref).Msg("websocket dial rejected")
		}

		return err
	}

	ch := &channel{subID: sub.ID, rt: rt, conn: conn}

	m.mu.Lock()
	m.channels[sub.ID] = ch
	m.mu.Unlock()

	m.wg.Add(1)

	go m.consume(ctx, ch)

	return nil
}

// consume applies the channel's event stream in arrival order until the
// connection closes. One event batch is one atomic store transaction.
func (m *Mirror) consume(ctx context.Context, ch *channel) {
	defer m.wg.Done()
	defer m.forget(ch.subID)

	for {
		var msg GrainMessage

		if err := ch.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.log.Error().Err(err).Str("resource", string(ch.rt)).Msg("subscription channel failed")
			} else {
				m.log.Info().Str("resource", string(ch.rt)).Msg("subscription channel closed")
			}

			return
		}

		m.log.Debug().
			Str("subscription", msg.FlowID).
			Int("events", len(msg.Grain.Data)).
			Msg("message received on subscription channel")

		batch, err := batchFromGrain(msg.Grain)
		if err != nil {
			m.log.Error().Err(err).Str("resource", string(ch.rt)).Msg("discarding malformed grain")
			continue
		}

		if err := m.store.Apply(ctx, ch.rt, batch); err != nil {
			// Persistence failures are transient; the next event for
			// each affected UID re-converges the table.
			m.log.Error().Err(err).Str("resource", string(ch.rt)).Msg("failed to apply event batch")
		}
	}
}

func (m *Mirror) forget(subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.channels, subID)
}

// Close tears down every open channel and waits for their consumers.
func (m *Mirror) Close() {
	m.mu.Lock()
	for _, ch := range m.channels {
		_ = ch.conn.Close()
	}
	m.mu.Unlock()

	m.wg.Wait()
}
