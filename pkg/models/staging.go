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

package models

// ResourceKind selects the sender or receiver half of a Connection API.
type ResourceKind string

const (
	KindSenders   ResourceKind = "senders"
	KindReceivers ResourceKind = "receivers"
)

// Activation modes defined by IS-05.
const (
	ActivateImmediate         = "activate_immediate"
	ActivateScheduledAbsolute = "activate_scheduled_absolute"
	ActivateScheduledRelative = "activate_scheduled_relative"
)

// Activation asks a device to promote its staged parameters to active.
// RequestedTime is a TAI timestamp for the scheduled modes and nil for
// immediate activation.
type Activation struct {
	Mode          string  `json:"mode"`
	RequestedTime *string `json:"requested_time"`
}

// StagePayload is the JSON body PATCHed to a staged endpoint or carried
// inside a bulk POST. Payloads are built field by field and, except for a
// disconnect, stripped of unset values before transmission.
type StagePayload map[string]interface{}

// BulkEntry pairs one resource UID with its staged parameters inside a
// bulk request.
type BulkEntry struct {
	ID     string       `json:"id"`
	Params StagePayload `json:"params"`
}
