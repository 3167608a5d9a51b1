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

// Package models holds the shared data model for the NMOS controller:
// IS-04 resource records, registry descriptors and IS-05 staging types.
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ResourceType enumerates the IS-04 base resources. Dispatch on resource
// type always goes through this enumeration, never through constructed
// names.
type ResourceType string

const (
	ResourceNodes         ResourceType = "nodes"
	ResourceDevices       ResourceType = "devices"
	ResourceSources       ResourceType = "sources"
	ResourceFlows         ResourceType = "flows"
	ResourceSenders       ResourceType = "senders"
	ResourceReceivers     ResourceType = "receivers"
	ResourceSubscriptions ResourceType = "subscriptions"
)

// BaseResources lists every resource type exposed by a Query API.
func BaseResources() []ResourceType {
	return []ResourceType{
		ResourceNodes,
		ResourceDevices,
		ResourceSources,
		ResourceFlows,
		ResourceSenders,
		ResourceReceivers,
		ResourceSubscriptions,
	}
}

// MirroredResources lists the resource types the local mirror subscribes
// to. The subscriptions resource itself is never mirrored.
func MirroredResources() []ResourceType {
	return []ResourceType{
		ResourceNodes,
		ResourceDevices,
		ResourceSources,
		ResourceFlows,
		ResourceSenders,
		ResourceReceivers,
	}
}

// ValidResourceType reports whether rt names a known base resource.
func ValidResourceType(rt ResourceType) bool {
	for _, t := range BaseResources() {
		if t == rt {
			return true
		}
	}

	return false
}

// Resource is one semi-structured IS-04 record (node, device, sender,
// receiver, source or flow). Records are immutable snapshots; an update
// replaces the record wholesale.
type Resource map[string]interface{}

// ID returns the record's UID, or the empty string when absent.
func (r Resource) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Label returns the record's label, or the empty string when absent.
func (r Resource) Label() string {
	label, _ := r["label"].(string)
	return label
}

// String returns a string-typed field, or the empty string when the field
// is absent or not a string.
func (r Resource) String(key string) string {
	v, _ := r[key].(string)
	return v
}

// ValidUID reports whether s is a well-formed NMOS resource UID (a
// UUID).
func ValidUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// DecodeResource unmarshals a raw JSON record.
func DecodeResource(data []byte) (Resource, error) {
	var r Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	return r, nil
}
