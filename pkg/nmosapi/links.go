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

package nmosapi

import (
	"net/http"
	"strings"
)

// parseLinks extracts rel -> URL pairs from RFC 8288 Link headers, as used
// by IS-04 query pagination (next/prev/first/last).
func parseLinks(header http.Header) map[string]string {
	links := make(map[string]string)

	for _, value := range header.Values("Link") {
		for _, entry := range strings.Split(value, ",") {
			parts := strings.Split(entry, ";")
			if len(parts) < 2 {
				continue
			}

			url := strings.Trim(strings.TrimSpace(parts[0]), "<>")

			for _, param := range parts[1:] {
				param = strings.TrimSpace(param)
				if !strings.HasPrefix(param, "rel=") {
					continue
				}

				rel := strings.Trim(strings.TrimPrefix(param, "rel="), `"`)
				links[rel] = url
			}
		}
	}

	return links
}
