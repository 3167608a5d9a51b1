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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemnet/nmosctl/pkg/models"
)

func TestStripEmptyRemovesUnsetValues(t *testing.T) {
	data := map[string]interface{}{
		"keep_string": "x",
		"keep_int":    5004,
		"keep_true":   true,
		"drop_empty":  "",
		"drop_zero":   0,
		"drop_false":  false,
		"drop_nil":    nil,
		"drop_map":    map[string]interface{}{"inner": ""},
		"drop_list":   []interface{}{"", 0},
		"keep_nested": map[string]interface{}{"inner": "y", "gone": 0},
	}

	out := stripEmpty(data)

	assert.Equal(t, "x", out["keep_string"])
	assert.Equal(t, 5004, out["keep_int"])
	assert.Equal(t, true, out["keep_true"])
	assert.NotContains(t, out, "drop_empty")
	assert.NotContains(t, out, "drop_zero")
	assert.NotContains(t, out, "drop_false")
	assert.NotContains(t, out, "drop_nil")
	assert.NotContains(t, out, "drop_map")
	assert.NotContains(t, out, "drop_list")
	assert.Equal(t, map[string]interface{}{"inner": "y"}, out["keep_nested"])
}

func TestFormatStagedDropsSecondLegBeforeStripping(t *testing.T) {
	data := models.StagePayload{
		"transport_params": []interface{}{
			map[string]interface{}{"multicast_ip": "239.0.0.1", "destination_port": 5004},
			map[string]interface{}{"multicast_ip": "239.0.0.2", "destination_port": 5004},
		},
	}

	opts := DefaultStageOptions()
	opts.ST20227 = false

	out := formatStaged(data, opts, true)

	legs, ok := out["transport_params"].([]interface{})
	require.True(t, ok)
	require.Len(t, legs, 1)

	leg, ok := legs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "239.0.0.1", leg["multicast_ip"])
}

func TestFormatStagedAttachesActivation(t *testing.T) {
	ts := "1700000000:0"

	opts := DefaultStageOptions()
	opts.Activate = true
	opts.ActivationMode = models.ActivateScheduledAbsolute
	opts.RequestedTime = &ts
	opts.Enable = true

	out := formatStaged(models.StagePayload{"sender_id": "s1"}, opts, true)

	activation, ok := out["activation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, models.ActivateScheduledAbsolute, activation["mode"])
	assert.Equal(t, &ts, activation["requested_time"])
	assert.Equal(t, true, out["master_enable"])
}

func TestFormatStagedWithoutStripKeepsNulls(t *testing.T) {
	data := models.StagePayload{
		"sender_id": nil,
		"transport_params": []interface{}{
			map[string]interface{}{"destination_port": "auto", "multicast_ip": nil},
		},
	}

	out := formatStaged(data, DefaultStageOptions(), false)

	require.Contains(t, out, "sender_id")
	assert.Nil(t, out["sender_id"])

	legs, ok := out["transport_params"].([]interface{})
	require.True(t, ok)

	leg, ok := legs[0].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, leg, "multicast_ip")
	assert.Nil(t, leg["multicast_ip"])
	assert.Equal(t, "auto", leg["destination_port"])
}

func TestLegPayloads(t *testing.T) {
	s := SenderLeg{DestinationIP: "239.0.0.1", DestinationPort: 5004, SourceIP: "10.0.0.1", SourcePort: 5004, RTPEnabled: true}
	sp := s.payload()
	assert.Equal(t, "239.0.0.1", sp["destination_ip"])
	assert.Equal(t, true, sp["rtp_enabled"])

	r := ReceiverLeg{MulticastIP: "239.0.0.1", DestinationPort: 5004, InterfaceIP: "10.0.0.2"}
	rp := r.payload()
	assert.Equal(t, "239.0.0.1", rp["multicast_ip"])
	assert.Equal(t, "10.0.0.2", rp["interface_ip"])
}
