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

package query

import "github.com/yemnet/nmosctl/pkg/models"

// Project reduces each record to the requested keys, taking the first
// occurrence of each key anywhere in the record's nested structure.
// Records contributing none of the keys are dropped. With no keys the
// records are returned unmodified, so Project(Project(r)) == Project(r).
func Project(records []models.Resource, keys ...string) []models.Resource {
	if len(keys) == 0 {
		return records
	}

	projected := make([]models.Resource, 0, len(records))

	for _, record := range records {
		out := models.Resource{}

		for _, key := range keys {
			if v, ok := findKey(map[string]interface{}(record), key); ok {
				out[key] = v
			}
		}

		if len(out) > 0 {
			projected = append(projected, out)
		}
	}

	return projected
}

// ProjectValues extracts the first occurrence of a single key from each
// record, dropping records that do not contain it.
func ProjectValues(records []models.Resource, key string) []interface{} {
	values := make([]interface{}, 0, len(records))

	for _, record := range records {
		if v, ok := findKey(map[string]interface{}(record), key); ok {
			values = append(values, v)
		}
	}

	return values
}

// ProjectStrings is ProjectValues for string-typed fields; non-string
// matches are skipped.
func ProjectStrings(records []models.Resource, key string) []string {
	values := make([]string, 0, len(records))

	for _, v := range ProjectValues(records, key) {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}

	return values
}

// findKey performs a depth-first search for the first occurrence of key
// in a nested structure of objects and sequences. Direct hits win over
// nested ones.
func findKey(v interface{}, key string) (interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		if hit, ok := t[key]; ok {
			return hit, true
		}

		for _, child := range t {
			if hit, ok := findKey(child, key); ok {
				return hit, true
			}
		}
	case models.Resource:
		return findKey(map[string]interface{}(t), key)
	case []interface{}:
		for _, child := range t {
			if hit, ok := findKey(child, key); ok {
				return hit, true
			}
		}
	}

	return nil, false
}
