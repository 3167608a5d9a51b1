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

import "fmt"

// RegistryDescriptor identifies one discovered or statically configured
// NMOS registry. Identity is the (IP, port) socket; a lower Priority value
// wins during selection.
type RegistryDescriptor struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Priority  int    `json:"priority"`
	Auth      bool   `json:"auth"`
}

// SameSocket reports whether two descriptors refer to the same endpoint.
func (r *RegistryDescriptor) SameSocket(other *RegistryDescriptor) bool {
	return r.IP == other.IP && r.Port == other.Port
}

// Addr returns the host:port form of the descriptor's socket.
func (r *RegistryDescriptor) Addr() string {
	return fmt.Sprintf("%s:%d", r.IP, r.Port)
}

// Subscription describes one Query API notification channel, scoped to a
// single resource path with an optional filter. Its lifetime is tied to
// the registry connection that created it.
type Subscription struct {
	ID              string            `json:"id"`
	ResourcePath    string            `json:"resource_path"`
	WebsocketHref   string            `json:"ws_href"`
	MaxUpdateRateMS int               `json:"max_update_rate_ms"`
	Params          map[string]string `json:"params"`
	Persist         bool              `json:"persist"`
	Secure          bool              `json:"secure"`
}
