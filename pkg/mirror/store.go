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
	"context"
	"sync"

	"github.com/yemnet/nmosctl/pkg/models"
)

// Batch is one atomic unit of table mutation: every delete and upsert in
// a batch becomes visible together or not at all.
type Batch struct {
	Deletes []string
	Upserts []models.Resource
}

// Store is the persistence boundary behind the local mirror: one table
// per resource type, keyed by UID, holding the latest record snapshot.
type Store interface {
	// Reset drops any existing table for rt and recreates it empty.
	Reset(ctx context.Context, rt models.ResourceType) error
	// Apply applies one batch atomically. Deletes run before upserts,
	// so a modify is expressed as delete(pre) + upsert(post).
	Apply(ctx context.Context, rt models.ResourceType, batch Batch) error
	// Exists reports whether a UID is present in rt's table.
	Exists(ctx context.Context, rt models.ResourceType, id string) (bool, error)
	// Resources reads a table, optionally filtered by equality on one
	// top-level JSON field. Empty field means the whole table.
	Resources(ctx context.Context, rt models.ResourceType, field, value string) ([]models.Resource, error)
	// Close releases the store's backing resources.
	Close()
}

// MemoryStore keeps the mirror tables in process memory. Tables are
// independent; each carries its own lock so one subscription's writer
// never blocks another's.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[models.ResourceType]*memoryTable
}

type memoryTable struct {
	mu      sync.RWMutex
	records map[string]models.Resource
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[models.ResourceType]*memoryTable)}
}

func (s *MemoryStore) Reset(_ context.Context, rt models.ResourceType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[rt] = &memoryTable{records: make(map[string]models.Resource)}

	return nil
}

func (s *MemoryStore) table(rt models.ResourceType) (*memoryTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[rt]
	if !ok {
		return nil, ErrUnknownTable
	}

	return t, nil
}

func (s *MemoryStore) Apply(_ context.Context, rt models.ResourceType, batch Batch) error {
	t, err := s.table(rt)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range batch.Deletes {
		delete(t.records, id)
	}

	for _, record := range batch.Upserts {
		id := record.ID()
		if id == "" {
			return ErrRecordMissingID
		}

		t.records[id] = record
	}

	return nil
}

func (s *MemoryStore) Exists(_ context.Context, rt models.ResourceType, id string) (bool, error) {
	t, err := s.table(rt)
	if err != nil {
		return false, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.records[id]

	return ok, nil
}

func (s *MemoryStore) Resources(_ context.Context, rt models.ResourceType, field, value string) ([]models.Resource, error) {
	t, err := s.table(rt)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Resource, 0, len(t.records))

	for _, record := range t.records {
		if field != "" && record.String(field) != value {
			continue
		}

		out = append(out, record)
	}

	return out, nil
}

func (*MemoryStore) Close() {}
