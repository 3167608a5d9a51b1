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

// Package controller orchestrates the other components: it discovers and
// ranks registries, maintains a live mirror of the active one, builds
// node and connection clients for the mirrored topology, and stages and
// activates routes between senders and receivers.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yemnet/nmosctl/pkg/config"
	"github.com/yemnet/nmosctl/pkg/discovery"
	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/mirror"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
	"github.com/yemnet/nmosctl/pkg/query"
)

// defaultSettle is how long a freshly opened registry connection is given
// for initial sync grains to land before the topology is read back.
const defaultSettle = 5 * time.Second

// Controller is the orchestration root. All mutating operations take its
// mutex, so registry lists, the client maps and the pending set only ever
// see one writer at a time.
type Controller struct {
	mu  sync.Mutex
	log logger.Logger
	cfg config.ControllerConfig

	sd     *discovery.ServiceDiscovery
	prober netutil.Prober

	store  mirror.Store
	mirror *mirror.Mirror
	db     MirrorReader

	// rds is the live Query API client for the active registry, nil when
	// no registry connection is open.
	rds RegistryAPI

	nodes map[string]*query.NodeClient
	conns map[string]ConnectionAPI

	known  []models.RegistryDescriptor
	live   []models.RegistryDescriptor
	active *models.RegistryDescriptor

	// pending holds receiver UIDs staged but not yet bulk-activated.
	pending []string

	settle time.Duration
}

// New builds a controller from configuration: it wires the discovery,
// probing and mirror machinery, runs registry discovery (or the static
// fallback) and selects the best registry as active. It does not open a
// registry connection; call OpenRegistryConnection for that.
func New(ctx context.Context, cfg config.ControllerConfig, log logger.Logger) (*Controller, error) {
	prober := netutil.NewHTTPProber(log)
	resolver := discovery.NewUnicastResolver(cfg.Nameservers, log)
	sd := discovery.New(resolver, prober, log)

	var store mirror.Store
	if cfg.Database != nil {
		pg, err := mirror.NewPostgresStore(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("opening mirror store: %w", err)
		}

		store = pg
	} else {
		store = mirror.NewMemoryStore()
	}

	c := &Controller{
		log:    log.WithComponent("controller"),
		cfg:    cfg,
		sd:     sd,
		prober: prober,
		store:  store,
		mirror: mirror.New(store, log),
		db:     mirror.NewStoreReader(store),
		nodes:  make(map[string]*query.NodeClient),
		conns:  make(map[string]ConnectionAPI),
		settle: defaultSettle,
	}

	if err := c.bootstrapRegistries(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return c, nil
}

// bootstrapRegistries populates the known and live lists from DNS-SD or
// static configuration and picks the initial active registry.
func (c *Controller) bootstrapRegistries(ctx context.Context) error {
	regs, err := c.discoverRegistries(ctx)
	if err != nil {
		return err
	}

	for i := range regs {
		if err := c.AddRegistry(regs[i]); err != nil {
			c.log.Warn().Err(err).Str("registry", regs[i].Name).Msg("skipping registry")
		}
	}

	c.mu.Lock()
	live := append([]models.RegistryDescriptor(nil), c.live...)
	c.mu.Unlock()

	best, err := c.sd.SelectBest(live)
	if err != nil {
		return fmt.Errorf("selecting registry: %w", err)
	}

	return c.SetActiveRegistry(best)
}

func (c *Controller) discoverRegistries(ctx context.Context) ([]models.RegistryDescriptor, error) {
	if !c.cfg.DisableDNSSD {
		regs, err := c.sd.DiscoverRegistries(ctx, c.cfg.SearchDomain)
		if err == nil {
			return regs, nil
		}

		c.log.Warn().Err(err).Str("domain", c.cfg.SearchDomain).Msg("discovery failed, falling back to static registry")
	}

	if c.cfg.Static == nil {
		return nil, fmt.Errorf("%w: no static registry configured", discovery.ErrNoCandidates)
	}

	reg, err := c.sd.Static(c.cfg.Static.Transport, c.cfg.Static.IP, c.cfg.Static.Port)
	if err != nil {
		return nil, err
	}

	return []models.RegistryDescriptor{reg}, nil
}

// Registries returns copies of the known and live lists and the active
// registry, if any.
func (c *Controller) Registries() (known, live []models.RegistryDescriptor, active *models.RegistryDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	known = append([]models.RegistryDescriptor(nil), c.known...)
	live = append([]models.RegistryDescriptor(nil), c.live...)

	if c.active != nil {
		cp := *c.active
		active = &cp
	}

	return known, live, active
}

// Reader exposes the mirror-backed read path, e.g. for an HTTP frontend.
func (c *Controller) Reader() MirrorReader { return c.db }

// BackupMirror dumps the mirrored registry tables to a timestamped file
// under dir and returns the written path.
func (c *Controller) BackupMirror(ctx context.Context, dir string) (string, error) {
	path, err := mirror.Backup(ctx, c.store, dir)
	if err != nil {
		return "", fmt.Errorf("backing up mirror: %w", err)
	}

	c.log.Info().Str("path", path).Msg("mirror backup written")

	return path, nil
}

// Close tears down the registry connection and the mirror store.
func (c *Controller) Close() {
	c.CloseRegistryConnection()
	c.store.Close()
}
