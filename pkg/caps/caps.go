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

// Package caps checks a sender's declared format against a receiver's
// capability constraint sets (BCP-004-01 style URN-keyed constraints).
package caps

import (
	"encoding/json"
	"fmt"

	"github.com/pion/sdp/v3"

	"github.com/yemnet/nmosctl/pkg/models"
)

const (
	FormatAudio = "urn:x-nmos:format:audio"
	FormatVideo = "urn:x-nmos:format:video"

	capChannelCount = "urn:x-nmos:cap:format:channel_count"
	capSampleDepth  = "urn:x-nmos:cap:format:sample_depth"
	capSampleRate   = "urn:x-nmos:cap:format:sample_rate"
	capPacketTime   = "urn:x-nmos:cap:transport:packet_time"
)

// Packet-time verification is switched off: some virtual nodes declare a
// packet_time constraint on their receivers that their own senders do not
// satisfy, which made the check reject working routes. Left in place so
// it can be re-enabled when the interoperability picture improves.
const packetTimeCheckEnabled = false

// SenderDescription collects what capability checks need from the sender
// side. SDP is optional; its absence never fails a check by itself.
type SenderDescription struct {
	Flow   models.Resource
	Source models.Resource
	SDP    *sdp.SessionDescription
}

// ParseSDP parses a session description text, e.g. a sender's transport
// file.
func ParseSDP(text string) (*sdp.SessionDescription, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(text)); err != nil {
		return nil, fmt.Errorf("parsing session description: %w", err)
	}

	return &desc, nil
}

// Verify checks the receiver's capabilities against the sender's format.
//
// The media-type check always runs, even when the receiver declares no
// constraint sets. When constraint sets are present only the first is
// evaluated; the OR-combination across sets the data model allows is not
// implemented.
func Verify(sender SenderDescription, receiver models.Resource) error {
	rcaps, _ := receiver["caps"].(map[string]interface{})

	if err := verifyMediaType(sender.Flow, rcaps); err != nil {
		return err
	}

	constraints := firstConstraintSet(rcaps)
	if constraints == nil {
		return nil
	}

	switch receiver.String("format") {
	case FormatAudio:
		return verifyAudio(sender, constraints)
	case FormatVideo:
		return verifyVideo(sender, constraints)
	}

	return nil
}

func verifyMediaType(flow models.Resource, rcaps map[string]interface{}) error {
	mediaTypes, _ := rcaps["media_types"].([]interface{})
	flowType := flow.String("media_type")

	for _, mt := range mediaTypes {
		if s, ok := mt.(string); ok && s == flowType {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrMediaType, flowType)
}

func firstConstraintSet(rcaps map[string]interface{}) map[string]interface{} {
	sets, _ := rcaps["constraint_sets"].([]interface{})
	if len(sets) == 0 {
		return nil
	}

	first, _ := sets[0].(map[string]interface{})

	return first
}

func verifyAudio(sender SenderDescription, constraints map[string]interface{}) error {
	if c, ok := constraints[capChannelCount].(map[string]interface{}); ok {
		channels, _ := sender.Source["channels"].([]interface{})

		min, _ := c["minimum"].(float64)
		max, _ := c["maximum"].(float64)

		count := float64(len(channels))
		if count < min || count > max {
			return fmt.Errorf("%w: %d channels", ErrChannelCount, len(channels))
		}
	}

	if c, ok := constraints[capSampleDepth].(map[string]interface{}); ok {
		if !enumContains(c, sender.Flow["bit_depth"]) {
			return fmt.Errorf("%w: %v", ErrSampleDepth, sender.Flow["bit_depth"])
		}
	}

	if c, ok := constraints[capSampleRate].(map[string]interface{}); ok {
		if !enumContains(c, sender.Flow["sample_rate"]) {
			return fmt.Errorf("%w: %v", ErrSampleRate, sender.Flow["sample_rate"])
		}
	}

	if packetTimeCheckEnabled && sender.SDP != nil {
		if c, ok := constraints[capPacketTime].(map[string]interface{}); ok {
			if !enumContains(c, senderPacketTime(sender.SDP)) {
				return ErrPacketTime
			}
		}
	}

	return nil
}

// verifyVideo is a placeholder: video constraint checking is not yet
// implemented and every video sender passes.
func verifyVideo(_ SenderDescription, _ map[string]interface{}) error {
	return nil
}

// senderPacketTime reads the ptime attribute of the first media section.
func senderPacketTime(desc *sdp.SessionDescription) interface{} {
	if len(desc.MediaDescriptions) == 0 {
		return nil
	}

	for _, attr := range desc.MediaDescriptions[0].Attributes {
		if attr.Key == "ptime" {
			return attr.Value
		}
	}

	return nil
}

// enumContains reports whether the constraint's enumerated values include
// v, comparing by canonical JSON so rational-number objects and plain
// numbers both work.
func enumContains(constraint map[string]interface{}, v interface{}) bool {
	enum, _ := constraint["enum"].([]interface{})

	want, err := json.Marshal(v)
	if err != nil {
		return false
	}

	for _, allowed := range enum {
		got, err := json.Marshal(allowed)
		if err != nil {
			continue
		}

		if string(want) == string(got) {
			return true
		}
	}

	return false
}
