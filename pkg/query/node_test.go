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

type allowProber struct{ ok bool }

func (p allowProber) TestConnection(netutil.Socket) bool { return p.ok }

func newNodeServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/x-nmos/node/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x-nmos/node/" {
			http.NotFound(w, r)
			return
		}

		_ = json.NewEncoder(w).Encode([]string{"v1.3/"})
	})
	mux.HandleFunc("/x-nmos/node/v1.3/self", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "n1", "label": "gateway-1"})
	})
	mux.HandleFunc("/x-nmos/node/v1.3/senders", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]interface{}{
			map[string]interface{}{"id": "s1"},
			map[string]interface{}{"id": "s2"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestNewNodeClient(t *testing.T) {
	srv := newNodeServer(t)

	n, err := NewNodeClient(context.Background(), srv.URL, "", allowProber{ok: true}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "gateway-1", n.Label)

	senders, err := n.Resources(context.Background(), models.ResourceSenders)
	require.NoError(t, err)
	assert.Len(t, senders, 2)
}

func TestNewNodeClientUnreachable(t *testing.T) {
	srv := newNodeServer(t)

	_, err := NewNodeClient(context.Background(), srv.URL, "", allowProber{ok: false}, logger.NewTestLogger())
	require.ErrorIs(t, err, netutil.ErrUnreachable)
}
