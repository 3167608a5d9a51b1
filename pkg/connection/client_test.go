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

package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
)

type allowProber struct{ ok bool }

func (p allowProber) TestConnection(netutil.Socket) bool { return p.ok }

// deviceServer fakes one device's IS-05 Connection API with a single
// sender and a single receiver.
type deviceServer struct {
	mux *http.ServeMux
	srv *httptest.Server

	// patched collects the body of every staged PATCH, keyed by path.
	patched map[string]map[string]interface{}
	// bulk collects the entries of every bulk POST, keyed by path.
	bulk map[string][]models.BulkEntry
}

func newDeviceServer(t *testing.T) *deviceServer {
	t.Helper()

	ds := &deviceServer{
		mux:     http.NewServeMux(),
		patched: map[string]map[string]interface{}{},
		bulk:    map[string][]models.BulkEntry{},
	}

	ds.mux.HandleFunc("/x-nmos/connection/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x-nmos/connection/" {
			http.NotFound(w, r)
			return
		}

		_ = json.NewEncoder(w).Encode([]string{"v1.1/"})
	})
	ds.mux.HandleFunc("/x-nmos/connection/v1.1/single/senders/", ds.dispatch)
	ds.mux.HandleFunc("/x-nmos/connection/v1.1/single/receivers/", ds.dispatch)
	ds.mux.HandleFunc("/x-nmos/connection/v1.1/bulk/", ds.dispatchBulk)

	ds.srv = httptest.NewServer(ds.mux)
	t.Cleanup(ds.srv.Close)

	return ds
}

func (ds *deviceServer) dispatch(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/x-nmos/connection/v1.1/single/senders/":
		_ = json.NewEncoder(w).Encode([]string{"sender-1/"})
	case r.URL.Path == "/x-nmos/connection/v1.1/single/receivers/":
		_ = json.NewEncoder(w).Encode([]string{"receiver-1/"})
	case r.Method == http.MethodPatch:
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		ds.patched[r.URL.Path] = body
		_ = json.NewEncoder(w).Encode(body)
	case r.URL.Path == "/x-nmos/connection/v1.1/single/senders/sender-1/active":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"master_enable": true,
			"transport_params": []interface{}{
				map[string]interface{}{"destination_ip": "239.1.1.1", "destination_port": 5004},
			},
		})
	case r.URL.Path == "/x-nmos/connection/v1.1/single/senders/sender-1/transportfile":
		http.Error(w, "no transport file", http.StatusNotFound)
	default:
		http.NotFound(w, r)
	}
}

func (ds *deviceServer) dispatchBulk(w http.ResponseWriter, r *http.Request) {
	var entries []models.BulkEntry
	_ = json.NewDecoder(r.Body).Decode(&entries)
	ds.bulk[r.URL.Path] = entries
	_ = json.NewEncoder(w).Encode([]interface{}{})
}

func (ds *deviceServer) client(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(context.Background(), ds.srv.URL, "", allowProber{ok: true}, logger.NewTestLogger())
	require.NoError(t, err)

	return c
}

func TestNewClientUnreachable(t *testing.T) {
	ds := newDeviceServer(t)

	_, err := NewClient(context.Background(), ds.srv.URL, "", allowProber{ok: false}, logger.NewTestLogger())
	require.ErrorIs(t, err, netutil.ErrUnreachable)
}

func TestIDLists(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	senders, err := c.SenderIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sender-1"}, senders)

	receivers, err := c.ReceiverIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"receiver-1"}, receivers)
}

func TestGetActiveProjection(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	active, err := c.GetActive(context.Background(), "sender-1", "transport_params")
	require.NoError(t, err)
	assert.Contains(t, active, "transport_params")
	assert.NotContains(t, active, "master_enable")
}

func TestTransportFileNotFound(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	_, err := c.TransportFile(context.Background(), "sender-1")
	require.ErrorIs(t, err, ErrNoTransportFile)
}

func TestStageReceiverAppliesStrippedPayload(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	red := ReceiverLeg{MulticastIP: "239.1.1.1", DestinationPort: 5004, RTPEnabled: true}

	_, err := c.StageReceiver(context.Background(), "receiver-1", "sender-uid", red, ReceiverLeg{}, "", DefaultStageOptions())
	require.NoError(t, err)

	body := ds.patched["/x-nmos/connection/v1.1/single/receivers/receiver-1/staged"]
	require.NotNil(t, body)
	assert.Equal(t, "sender-uid", body["sender_id"])

	legs, ok := body["transport_params"].([]interface{})
	require.True(t, ok)
	// the empty second leg is stripped away entirely
	require.Len(t, legs, 1)

	leg, ok := legs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "239.1.1.1", leg["multicast_ip"])
	assert.NotContains(t, leg, "interface_ip")
	assert.NotContains(t, leg, "source_ip")
}

func TestStageReceiverBuildOnly(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	opts := DefaultStageOptions()
	opts.Apply = false

	red := ReceiverLeg{MulticastIP: "239.1.1.1", DestinationPort: 5004, RTPEnabled: true}

	payload, err := c.StageReceiver(context.Background(), "receiver-1", "sender-uid", red, ReceiverLeg{}, "", opts)
	require.NoError(t, err)
	assert.Equal(t, "sender-uid", payload["sender_id"])

	// nothing was transmitted
	assert.Empty(t, ds.patched)
}

func TestStageReceiverRejectsBadAddress(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	red := ReceiverLeg{MulticastIP: "not-an-ip"}

	_, err := c.StageReceiver(context.Background(), "receiver-1", "s", red, ReceiverLeg{}, "", DefaultStageOptions())
	require.ErrorIs(t, err, netutil.ErrInvalidIP)
	assert.Empty(t, ds.patched)
}

func TestStageReceiverWithInlineSDP(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	sdp := "v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns=stream\r\n"

	_, err := c.StageReceiver(context.Background(), "receiver-1", "sender-uid", ReceiverLeg{}, ReceiverLeg{}, sdp, DefaultStageOptions())
	require.NoError(t, err)

	body := ds.patched["/x-nmos/connection/v1.1/single/receivers/receiver-1/staged"]
	require.NotNil(t, body)

	tf, ok := body["transport_file"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, sdp, tf["data"])
	assert.Equal(t, "application/sdp", tf["type"])
	assert.NotContains(t, body, "transport_params")
}

func TestSetMasterEnableUnknownID(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	err := c.SetMasterEnable(context.Background(), "no-such-uid", true)
	require.ErrorIs(t, err, ErrResourceNotFound)
}

func TestSetMasterEnable(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	require.NoError(t, c.SetMasterEnable(context.Background(), "receiver-1", true))

	body := ds.patched["/x-nmos/connection/v1.1/single/receivers/receiver-1/staged"]
	require.NotNil(t, body)
	assert.Equal(t, map[string]interface{}{"master_enable": true}, body)
}

func TestDisconnectReceiverTransmitsNulls(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	opts := DefaultStageOptions()
	opts.Activate = true

	_, err := c.DisconnectReceiver(context.Background(), "receiver-1", opts)
	require.NoError(t, err)

	body := ds.patched["/x-nmos/connection/v1.1/single/receivers/receiver-1/staged"]
	require.NotNil(t, body)

	require.Contains(t, body, "sender_id")
	assert.Nil(t, body["sender_id"])

	tf, ok := body["transport_file"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, tf, "data")
	assert.Nil(t, tf["data"])

	legs, ok := body["transport_params"].([]interface{})
	require.True(t, ok)
	require.Len(t, legs, 2)

	leg, ok := legs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "auto", leg["destination_port"])
	require.Contains(t, leg, "multicast_ip")
	assert.Nil(t, leg["multicast_ip"])
}

func TestBulkStage(t *testing.T) {
	ds := newDeviceServer(t)
	c := ds.client(t)

	payloads := map[string]models.StagePayload{
		"receiver-1": {"activation": map[string]interface{}{"mode": models.ActivateImmediate}},
		"receiver-2": {"activation": map[string]interface{}{"mode": models.ActivateImmediate}},
	}

	require.NoError(t, c.BulkStage(context.Background(), models.KindReceivers, payloads))

	entries := ds.bulk["/x-nmos/connection/v1.1/bulk/receivers"]
	require.Len(t, entries, 2)

	ids := []string{entries[0].ID, entries[1].ID}
	assert.ElementsMatch(t, []string{"receiver-1", "receiver-2"}, ids)
}
