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
	"github.com/yemnet/nmosctl/pkg/models"
)

// SenderLeg holds the RTP transport parameters for one leg of a sender.
type SenderLeg struct {
	DestinationIP   string
	DestinationPort int
	SourceIP        string
	SourcePort      int
	RTPEnabled      bool
}

// ReceiverLeg holds the RTP transport parameters for one leg of a
// receiver. SourceIP is only needed for source-specific multicast.
type ReceiverLeg struct {
	MulticastIP     string
	DestinationPort int
	InterfaceIP     string
	SourceIP        string
	RTPEnabled      bool
}

// StageOptions are the flags common to every staging call.
type StageOptions struct {
	// ST20227 keeps the secondary leg; when false it is omitted
	// entirely from the payload.
	ST20227 bool
	// Apply transmits the payload. When false the built payload is
	// returned untransmitted, for assembling bulk batches.
	Apply bool
	// Activate attaches an activation descriptor.
	Activate       bool
	ActivationMode string
	RequestedTime  *string
	// Enable attaches master_enable.
	Enable bool
}

// DefaultStageOptions mirror the common case: both legs, applied
// immediately on activation if requested.
func DefaultStageOptions() StageOptions {
	return StageOptions{
		ST20227:        true,
		Apply:          true,
		ActivationMode: models.ActivateImmediate,
	}
}

func (l SenderLeg) payload() map[string]interface{} {
	return map[string]interface{}{
		"destination_ip":   l.DestinationIP,
		"destination_port": l.DestinationPort,
		"source_ip":        l.SourceIP,
		"source_port":      l.SourcePort,
		"rtp_enabled":      l.RTPEnabled,
	}
}

func (l ReceiverLeg) payload() map[string]interface{} {
	return map[string]interface{}{
		"multicast_ip":     l.MulticastIP,
		"destination_port": l.DestinationPort,
		"interface_ip":     l.InterfaceIP,
		"source_ip":        l.SourceIP,
		"rtp_enabled":      l.RTPEnabled,
	}
}

// formatStaged finalizes a staged payload: optionally strips unset
// fields, attaches the activation descriptor and the master-enable flag.
// The secondary leg is dropped before stripping when the resource is not
// part of an ST 2022-7 pair.
func formatStaged(data models.StagePayload, opts StageOptions, strip bool) models.StagePayload {
	if !opts.ST20227 {
		if legs, ok := data["transport_params"].([]interface{}); ok && len(legs) == 2 {
			data["transport_params"] = legs[:1]
		}
	}

	if strip {
		data = stripEmpty(map[string]interface{}(data))
	}

	if opts.Activate {
		data["activation"] = map[string]interface{}{
			"mode":           opts.ActivationMode,
			"requested_time": opts.RequestedTime,
		}
	}

	if opts.Enable {
		data["master_enable"] = true
	}

	return data
}

// stripEmpty removes unset values so a field the caller never supplied is
// never transmitted: empty strings, zero numbers, false, nil, and empty
// maps or sequences, applied recursively bottom-up.
func stripEmpty(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))

	for k, v := range data {
		if kept, ok := stripValue(v); ok {
			out[k] = kept
		}
	}

	return out
}

func stripList(data []interface{}) []interface{} {
	out := make([]interface{}, 0, len(data))

	for _, v := range data {
		if kept, ok := stripValue(v); ok {
			out = append(out, kept)
		}
	}

	return out
}

func stripValue(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		m := stripEmpty(t)
		return m, len(m) > 0
	case models.StagePayload:
		m := stripEmpty(map[string]interface{}(t))
		return m, len(m) > 0
	case []interface{}:
		l := stripList(t)
		return l, len(l) > 0
	case string:
		return t, t != ""
	case int:
		return t, t != 0
	case float64:
		return t, t != 0
	case bool:
		return t, t
	case nil:
		return nil, false
	default:
		return t, true
	}
}
