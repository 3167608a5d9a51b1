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
	"fmt"

	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/query"
)

// StoreReader adapts a Store to the query.Reader interface, so mirrored
// tables can stand in for live registry queries.
type StoreReader struct {
	store Store
}

func NewStoreReader(store Store) *StoreReader {
	return &StoreReader{store: store}
}

// Resources implements query.Reader. Like the live client, an empty
// result is an error rather than an empty sequence.
func (r *StoreReader) Resources(ctx context.Context, rt models.ResourceType, filter *query.Filter) ([]models.Resource, error) {
	field, value := "", ""
	if filter != nil {
		field, value = filter.Key, filter.Value
	}

	records, err := r.store.Resources(ctx, rt, field, value)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", query.ErrNoResults, rt)
	}

	return records, nil
}

// ResourceField reads one projected field from the single record matching
// the filter, the mirror-side equivalent of a filtered projection query.
func (r *StoreReader) ResourceField(ctx context.Context, rt models.ResourceType, filter *query.Filter, key string) (string, error) {
	records, err := r.Resources(ctx, rt, filter)
	if err != nil {
		return "", err
	}

	values := query.ProjectStrings(records, key)
	if len(values) == 0 {
		return "", fmt.Errorf("%w: key %q in %s", query.ErrNoResults, key, rt)
	}

	return values[0], nil
}
