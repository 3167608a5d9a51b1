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

package mirror

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yemnet/nmosctl/pkg/models"
)

// GrainMessage is one inbound notification from a subscription channel.
// The topic names the resource path; the data carries the changed
// records.
type GrainMessage struct {
	GrainRate interface{} `json:"grain_rate,omitempty"`
	FlowID    string      `json:"flow_id"`
	SourceID  string      `json:"source_id"`
	Grain     Grain       `json:"grain"`
}

type Grain struct {
	Type  string         `json:"type"`
	Topic string         `json:"topic"`
	Data  []ChangeRecord `json:"data"`
}

// ChangeRecord carries the pre and post images of one changed resource.
// The combination present determines the change kind.
type ChangeRecord struct {
	Pre  models.Resource `json:"pre,omitempty"`
	Post models.Resource `json:"post,omitempty"`
}

// ChangeKind classifies a change record.
type ChangeKind int

const (
	// ChangeCreate has only a post image: a new record.
	ChangeCreate ChangeKind = iota
	// ChangeDelete has only a pre image: the record is gone.
	ChangeDelete
	// ChangeSync has identical pre and post images: initial-state replay.
	ChangeSync
	// ChangeModify has differing pre and post images: the record was
	// replaced. UID is stable across a modify.
	ChangeModify
)

// Kind returns the change classification for this record.
func (r ChangeRecord) Kind() ChangeKind {
	switch {
	case r.Pre == nil:
		return ChangeCreate
	case r.Post == nil:
		return ChangeDelete
	case equalRecords(r.Pre, r.Post):
		return ChangeSync
	default:
		return ChangeModify
	}
}

// topicResource maps a grain topic like "/senders/" to its resource type.
func topicResource(topic string) (models.ResourceType, error) {
	rt := models.ResourceType(strings.Trim(topic, "/"))
	if !models.ValidResourceType(rt) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	return rt, nil
}

// batchFromGrain folds a grain's change records into one atomic store
// batch. Deletes run first, so a modify becomes an atomic replace.
func batchFromGrain(grain Grain) (Batch, error) {
	var batch Batch

	for _, change := range grain.Data {
		switch change.Kind() {
		case ChangeCreate, ChangeSync:
			if change.Post.ID() == "" {
				return Batch{}, ErrRecordMissingID
			}

			batch.Upserts = append(batch.Upserts, change.Post)
		case ChangeDelete:
			if change.Pre.ID() == "" {
				return Batch{}, ErrRecordMissingID
			}

			batch.Deletes = append(batch.Deletes, change.Pre.ID())
		case ChangeModify:
			if change.Pre.ID() == "" || change.Post.ID() == "" {
				return Batch{}, ErrRecordMissingID
			}

			batch.Deletes = append(batch.Deletes, change.Pre.ID())
			batch.Upserts = append(batch.Upserts, change.Post)
		}
	}

	return batch, nil
}

// equalRecords compares two records structurally. Map keys marshal in
// sorted order, so a marshal comparison is adequate for these small
// documents.
func equalRecords(a, b models.Resource) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)

	if errA != nil || errB != nil {
		return false
	}

	return bytes.Equal(aj, bj)
}
