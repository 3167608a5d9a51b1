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
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemnet/nmosctl/pkg/models"
)

func TestBackupWritesAllTables(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, models.ResourceSenders)

	err := store.Apply(ctx, models.ResourceSenders, Batch{
		Upserts: []models.Resource{{"id": "s1", "label": "cam"}},
	})
	require.NoError(t, err)

	path, err := Backup(ctx, store, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var dump map[models.ResourceType][]models.Resource
	require.NoError(t, json.Unmarshal(data, &dump))

	require.Len(t, dump[models.ResourceSenders], 1)
	assert.Equal(t, "s1", dump[models.ResourceSenders][0].ID())

	// unopened tables dump as empty, not as an error
	assert.Contains(t, dump, models.ResourceNodes)
	assert.Empty(t, dump[models.ResourceNodes])
}
