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

// queryServer fakes the parts of an IS-04 Query API the client touches.
type queryServer struct {
	mux       *http.ServeMux
	srv       *httptest.Server
	lastQuery map[string]string
}

func newQueryServer(t *testing.T) *queryServer {
	t.Helper()

	qs := &queryServer{mux: http.NewServeMux(), lastQuery: map[string]string{}}

	qs.mux.HandleFunc("/x-nmos/query/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x-nmos/query/" {
			http.NotFound(w, r)
			return
		}

		_ = json.NewEncoder(w).Encode([]string{"v1.2/", "v1.3/"})
	})
	qs.mux.HandleFunc("/x-nmos/query/v1.3/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x-nmos/query/v1.3/" {
			http.NotFound(w, r)
			return
		}

		_ = json.NewEncoder(w).Encode([]string{"nodes/", "devices/", "senders/", "receivers/"})
	})

	qs.srv = httptest.NewServer(qs.mux)
	t.Cleanup(qs.srv.Close)

	return qs
}

func (qs *queryServer) handleJSON(path string, payload func(r *http.Request) interface{}) {
	qs.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				qs.lastQuery[k] = v[0]
			}
		}

		_ = json.NewEncoder(w).Encode(payload(r))
	})
}

func (qs *queryServer) client(t *testing.T) *Client {
	t.Helper()

	sock, err := SocketFromHref(qs.srv.URL)
	require.NoError(t, err)

	c, err := NewClient(context.Background(), sock, "", 0, logger.NewTestLogger())
	require.NoError(t, err)

	return c
}

func TestNewClientCachesBase(t *testing.T) {
	qs := newQueryServer(t)
	c := qs.client(t)

	assert.Equal(t, "v1.3", c.Version())
	assert.Contains(t, c.Base(), "senders")
	assert.Contains(t, c.Base(), "nodes")
}

func TestResourcesTranslatesFilterKey(t *testing.T) {
	qs := newQueryServer(t)
	qs.handleJSON("/x-nmos/query/v1.3/subscriptions", func(*http.Request) interface{} {
		return []interface{}{map[string]interface{}{"id": "sub-1"}}
	})

	c := qs.client(t)

	_, err := c.Resources(context.Background(), models.ResourceSubscriptions, &Filter{Key: "params__label", Value: "cam"})
	require.NoError(t, err)

	// double underscore becomes a dotted path on the wire
	assert.Equal(t, "cam", qs.lastQuery["params.label"])
}

func TestResourcesEmptyIsError(t *testing.T) {
	qs := newQueryServer(t)
	qs.handleJSON("/x-nmos/query/v1.3/senders", func(*http.Request) interface{} {
		return []interface{}{}
	})

	c := qs.client(t)

	_, err := c.Resources(context.Background(), models.ResourceSenders, nil)
	require.ErrorIs(t, err, ErrNoResults)
}

func TestGetID(t *testing.T) {
	qs := newQueryServer(t)
	qs.handleJSON("/x-nmos/query/v1.3/receivers", func(r *http.Request) interface{} {
		if r.URL.Query().Get("label") == "monitor-1" {
			return []interface{}{map[string]interface{}{"id": "r-42", "label": "monitor-1"}}
		}

		return []interface{}{}
	})

	c := qs.client(t)

	id, err := c.GetID(context.Background(), models.ResourceReceivers, "monitor-1")
	require.NoError(t, err)
	assert.Equal(t, "r-42", id)

	_, err = c.GetID(context.Background(), "mixers", "monitor-1")
	require.ErrorIs(t, err, ErrUnknownResource)
}

func TestConnectionHrefFromDevicePicksHighestVersion(t *testing.T) {
	device := models.Resource{
		"id": "d1",
		"controls": []interface{}{
			map[string]interface{}{
				"type": "urn:x-nmos:control:sr-ctrl/v1.0",
				"href": "http://node/x-nmos/connection/v1.0/",
			},
			map[string]interface{}{
				"type": "urn:x-nmos:control:sr-ctrl/v1.1",
				"href": "http://node/x-nmos/connection/v1.1/",
			},
			map[string]interface{}{
				"type": "urn:x-nmos:control:other/v9.9",
				"href": "http://node/other/",
			},
		},
	}

	href, err := ConnectionHrefFromDevice(device)
	require.NoError(t, err)
	assert.Equal(t, "http://node/x-nmos/connection/v1.1/", href)
}

func TestConnectionHrefFromDeviceNoControl(t *testing.T) {
	device := models.Resource{"id": "d1", "controls": []interface{}{}}

	_, err := ConnectionHrefFromDevice(device)
	require.ErrorIs(t, err, ErrNoConnectionHref)
}

func TestManifest(t *testing.T) {
	qs := newQueryServer(t)

	manifest := "v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns=stream\r\n"

	qs.mux.HandleFunc("/manifest.sdp", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(manifest))
	})
	qs.handleJSON("/x-nmos/query/v1.3/senders", func(*http.Request) interface{} {
		return []interface{}{map[string]interface{}{
			"id":            "s1",
			"manifest_href": qs.srv.URL + "/manifest.sdp",
		}}
	})

	c := qs.client(t)

	text, err := c.Manifest(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, manifest, text)
}

func TestManifestUnavailable(t *testing.T) {
	qs := newQueryServer(t)
	qs.handleJSON("/x-nmos/query/v1.3/senders", func(*http.Request) interface{} {
		return []interface{}{map[string]interface{}{"id": "s1", "manifest_href": ""}}
	})

	c := qs.client(t)

	_, err := c.Manifest(context.Background(), "s1")
	require.ErrorIs(t, err, ErrManifestUnavailable)
}

func TestCreateSubscription(t *testing.T) {
	qs := newQueryServer(t)

	qs.mux.HandleFunc("/x-nmos/query/v1.3/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/senders", body["resource_path"])
		assert.Equal(t, float64(100), body["max_update_rate_ms"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "sub-9",
			"resource_path": "/senders",
			"ws_href":       "ws://registry/ws/sub-9",
		})
	})

	c := qs.client(t)

	sub, err := c.CreateSubscription(context.Background(), models.ResourceSenders, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "sub-9", sub.ID)
	assert.Equal(t, "/senders", sub.ResourcePath)
	assert.Equal(t, "ws://registry/ws/sub-9", sub.WebsocketHref)
}

func TestSocketFromHref(t *testing.T) {
	sock, err := SocketFromHref("http://10.0.0.1:8080/x-nmos/connection/v1.1/")
	require.NoError(t, err)
	assert.Equal(t, 8080, sock.Port)

	// missing port defaults to 80
	sock, err = SocketFromHref("http://10.0.0.1/x-nmos/node/v1.3/")
	require.NoError(t, err)
	assert.Equal(t, 80, sock.Port)

	_, err = SocketFromHref("http://node.local/x-nmos/")
	require.ErrorIs(t, err, netutil.ErrInvalidIP)
}
