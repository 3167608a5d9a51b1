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

// Package config loads controller configuration from local JSON files.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yemnet/nmosctl/pkg/logger"
)

// ControllerConfig is the top-level configuration for the nmosctl
// controller process.
type ControllerConfig struct {
	// SearchDomain is the DNS-SD search domain for registry discovery.
	SearchDomain string `json:"search_domain"`
	// Nameservers are consulted for DNS-SD queries, host:port or bare IP.
	Nameservers []string `json:"nameservers"`
	// Static is used when DNS-SD is disabled or yields no candidates.
	Static *StaticRegistry `json:"static,omitempty"`
	// DisableDNSSD forces the static path.
	DisableDNSSD bool `json:"disable_dns_sd"`
	// PagingLimit for Query API requests; zero uses the server default.
	PagingLimit int `json:"paging_limit"`
	// Database configures the mirror's relational store. When nil the
	// mirror keeps its tables in memory.
	Database *Database     `json:"database,omitempty"`
	Logging  logger.Config `json:"logging"`
}

// StaticRegistry is a statically configured registry socket.
type StaticRegistry struct {
	Transport string `json:"transport"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
}

// Database holds connection settings for the mirror's Postgres store.
type Database struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password" sensitive:"true"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int32  `json:"max_conns"`
}

// FileConfigLoader loads configuration from a local JSON file.
type FileConfigLoader struct{}

// Load implements ConfigLoader by reading and unmarshaling a JSON file.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	err = json.Unmarshal(data, dst)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}
