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

package controller

import (
	"fmt"

	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
)

// AddRegistry records a registry in the known list and, if it answers a
// probe, in the live list too. Two registries with the same socket are
// the same registry: a duplicate is rejected outright.
func (c *Controller) AddRegistry(reg models.RegistryDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.known {
		if c.known[i].SameSocket(&reg) {
			return fmt.Errorf("%w: %s", ErrRegistryExists, reg.Addr())
		}
	}

	c.known = append(c.known, reg)
	c.addLiveLocked(reg)

	return nil
}

// RemoveRegistry forgets a registry by name. The active registry cannot
// be removed; demote it first with SetActiveRegistry.
func (c *Controller) RemoveRegistry(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.Name == name {
		return fmt.Errorf("%w: %s", ErrRegistryIsActive, name)
	}

	found := false

	c.known = removeByName(c.known, name, &found)
	c.live = removeByName(c.live, name, nil)

	if !found {
		return fmt.Errorf("%w: %s", ErrRegistryUnknown, name)
	}

	return nil
}

// SetActiveRegistry promotes a registry to active. The registry must
// already be live, or become live now by answering a probe.
func (c *Controller) SetActiveRegistry(reg models.RegistryDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLiveLocked()

	if !c.isLiveLocked(&reg) && !c.addLiveLocked(reg) {
		return fmt.Errorf("%w: %s", ErrRegistryNotLive, reg.Addr())
	}

	c.active = &reg
	c.log.Info().Str("registry", reg.Name).Str("addr", reg.Addr()).Msg("active registry set")

	return nil
}

// UpdateLiveRegistries re-probes every live registry and drops the ones
// that stopped answering.
func (c *Controller) UpdateLiveRegistries() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLiveLocked()
}

// addLiveLocked appends reg to the live list when it probes healthy and
// is not already present. Callers hold the mutex.
func (c *Controller) addLiveLocked(reg models.RegistryDescriptor) bool {
	if c.isLiveLocked(&reg) {
		return true
	}

	if !c.probe(&reg) {
		c.log.Warn().Str("registry", reg.Name).Str("addr", reg.Addr()).Msg("registry not reachable")
		return false
	}

	c.live = append(c.live, reg)

	return true
}

// refreshLiveLocked rebuilds the live list from a probe pass over a copy,
// never mutating the slice being walked.
func (c *Controller) refreshLiveLocked() {
	kept := make([]models.RegistryDescriptor, 0, len(c.live))

	for i := range c.live {
		if c.probe(&c.live[i]) {
			kept = append(kept, c.live[i])
			continue
		}

		c.log.Warn().Str("registry", c.live[i].Name).Msg("registry dropped from live list")
	}

	c.live = kept
}

func (c *Controller) isLiveLocked(reg *models.RegistryDescriptor) bool {
	for i := range c.live {
		if c.live[i].SameSocket(reg) {
			return true
		}
	}

	return false
}

func (c *Controller) probe(reg *models.RegistryDescriptor) bool {
	socket, err := netutil.NewSocket(reg.Transport, reg.IP, reg.Port)
	if err != nil {
		return false
	}

	return c.prober.TestConnection(socket)
}

func removeByName(regs []models.RegistryDescriptor, name string, found *bool) []models.RegistryDescriptor {
	kept := regs[:0]

	for i := range regs {
		if regs[i].Name == name {
			if found != nil {
				*found = true
			}

			continue
		}

		kept = append(kept, regs[i])
	}

	return kept
}
