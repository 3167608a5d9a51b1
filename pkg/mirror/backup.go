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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yemnet/nmosctl/pkg/models"
)

// Backup dumps every mirrored table to a timestamped JSON file under dir
// and returns the written path. Tables that were never opened are
// recorded as empty rather than failing the dump.
func Backup(ctx context.Context, store Store, dir string) (string, error) {
	dump := make(map[models.ResourceType][]models.Resource)

	for _, rt := range models.MirroredResources() {
		records, err := store.Resources(ctx, rt, "", "")
		if err != nil {
			records = nil
		}

		dump[rt] = records
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("registry-backup-%s.json", time.Now().UTC().Format("20060102T150405Z")))

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	return path, nil
}
