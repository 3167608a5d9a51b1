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

// Package discovery locates NMOS query registries via DNS-SD and selects
// the best reachable candidate.
//
// The record layout follows BCP-003 style DNS-SD deployments:
//
//	_nmos-query._tcp.<domain>  PTR  qry-api-1._nmos-query._tcp.<domain>
//	qry-api-1...               SRV  0 10 80 nmosreg.<domain>
//	qry-api-1...               TXT  "api_ver=v1.3" "api_proto=http" "pri=100" "api_auth=false"
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
)

const queryService = "_nmos-query._tcp"

// txtKeys are the TXT record keys a candidate must carry.
var txtKeys = []string{"pri", "api_proto", "api_auth"}

// ServiceDiscovery resolves candidate registries and ranks them by
// priority and reachability.
type ServiceDiscovery struct {
	resolver Resolver
	prober   netutil.Prober
	log      logger.Logger
}

func New(resolver Resolver, prober netutil.Prober, log logger.Logger) *ServiceDiscovery {
	return &ServiceDiscovery{
		resolver: resolver,
		prober:   prober,
		log:      log.WithComponent("discovery"),
	}
}

// DiscoverRegistries walks PTR -> SRV/TXT -> A for the query service under
// the search domain. A candidate missing its SRV, TXT or A record is
// dropped with a warning rather than failing the whole discovery.
func (sd *ServiceDiscovery) DiscoverRegistries(ctx context.Context, domain string) ([]models.RegistryDescriptor, error) {
	service := queryService
	if domain != "" {
		service = fmt.Sprintf("%s.%s", queryService, domain)
	}

	sd.log.Info().Str("service", service).Msg("attempting DNS-SD discovery")

	ptrs, err := sd.resolver.Lookup(ctx, service, dns.TypePTR)
	if err != nil {
		return nil, fmt.Errorf("PTR lookup for %s: %w", service, err)
	}

	if len(ptrs) == 0 {
		sd.log.Error().Str("service", service).Msg("no PTR records found")
		return nil, ErrNoCandidates
	}

	var registries []models.RegistryDescriptor

	for _, rr := range ptrs {
		ptr, ok := rr.(*dns.PTR)
		if !ok {
			continue
		}

		sd.log.Info().Str("target", ptr.Ptr).Msg("found service instance")

		reg, err := sd.resolveCandidate(ctx, ptr.Ptr)
		if err != nil {
			sd.log.Warn().Err(err).Str("target", ptr.Ptr).Msg("dropping candidate")
			continue
		}

		registries = append(registries, reg)
	}

	if len(registries) == 0 {
		sd.log.Error().Msg("no usable candidate registries via DNS-SD")
		return nil, ErrNoCandidates
	}

	return registries, nil
}

// resolveCandidate fetches the SRV and TXT records for one service
// instance and resolves the SRV target to an address.
func (sd *ServiceDiscovery) resolveCandidate(ctx context.Context, target string) (models.RegistryDescriptor, error) {
	srvs, err := sd.resolver.Lookup(ctx, target, dns.TypeSRV)
	if err != nil {
		return models.RegistryDescriptor{}, fmt.Errorf("SRV lookup: %w", err)
	}

	txts, err := sd.resolver.Lookup(ctx, target, dns.TypeTXT)
	if err != nil {
		return models.RegistryDescriptor{}, fmt.Errorf("TXT lookup: %w", err)
	}

	srv := firstSRV(srvs)
	if srv == nil {
		return models.RegistryDescriptor{}, fmt.Errorf("no SRV record for %s", target)
	}

	attrs, err := extractFromTXT(txts, txtKeys)
	if err != nil {
		return models.RegistryDescriptor{}, err
	}

	ip, err := sd.resolveName(ctx, srv.Target)
	if err != nil {
		return models.RegistryDescriptor{}, err
	}

	pri, err := strconv.Atoi(attrs["pri"])
	if err != nil {
		return models.RegistryDescriptor{}, fmt.Errorf("bad pri value %q in TXT record: %w", attrs["pri"], err)
	}

	return models.RegistryDescriptor{
		Name:      strings.TrimSuffix(srv.Target, "."),
		Transport: attrs["api_proto"],
		IP:        ip,
		Port:      int(srv.Port),
		Priority:  pri,
		Auth:      attrs["api_auth"] == "true",
	}, nil
}

// resolveName resolves a hostname to its first A record address.
func (sd *ServiceDiscovery) resolveName(ctx context.Context, name string) (string, error) {
	answers, err := sd.resolver.Lookup(ctx, name, dns.TypeA)
	if err != nil {
		return "", fmt.Errorf("A lookup for %s: %w", name, err)
	}

	for _, rr := range answers {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}

	return "", fmt.Errorf("unable to resolve address for %s", name)
}

// SelectBest probes candidates in ascending priority order and returns the
// first reachable one. The input slice is not mutated; selection consumes
// a sorted copy by index.
func (sd *ServiceDiscovery) SelectBest(candidates []models.RegistryDescriptor) (models.RegistryDescriptor, error) {
	queue := make([]models.RegistryDescriptor, len(candidates))
	copy(queue, candidates)
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Priority < queue[j].Priority })

	for _, reg := range queue {
		sock, err := netutil.NewSocket(reg.Transport, reg.IP, reg.Port)
		if err != nil {
			sd.log.Warn().Err(err).Str("registry", reg.Name).Msg("candidate failed socket validation")
			continue
		}

		if sd.prober.TestConnection(sock) {
			return reg, nil
		}

		sd.log.Warn().Str("registry", reg.Name).Msg("couldn't form a connection, trying next discovered server")
	}

	return models.RegistryDescriptor{}, ErrNoViableRegistry
}

// Static validates a statically configured socket and probes it directly,
// with no priority negotiation. Used when DNS-SD is disabled or exhausted.
func (sd *ServiceDiscovery) Static(transport, ip string, port int) (models.RegistryDescriptor, error) {
	sd.log.Info().Str("transport", transport).Str("ip", ip).Int("port", port).Msg("building static registry")

	sock, err := netutil.NewSocket(transport, ip, port)
	if err != nil {
		return models.RegistryDescriptor{}, err
	}

	if !sd.prober.TestConnection(sock) {
		sd.log.Error().Str("addr", sock.BaseURL()).Msg("unable to connect to statically declared registry")
		return models.RegistryDescriptor{}, ErrStaticUnreachable
	}

	return models.RegistryDescriptor{
		Name:      fmt.Sprintf("%s:%d", ip, port),
		Transport: transport,
		IP:        ip,
		Port:      port,
		Priority:  0,
	}, nil
}

func firstSRV(rrs []dns.RR) *dns.SRV {
	for _, rr := range rrs {
		if srv, ok := rr.(*dns.SRV); ok {
			return srv
		}
	}

	return nil
}

// extractFromTXT pulls key=value pairs out of TXT record strings. Every
// requested key must be present.
func extractFromTXT(rrs []dns.RR, keys []string) (map[string]string, error) {
	found := make(map[string]string)

	for _, rr := range rrs {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}

		for _, s := range txt.Txt {
			for _, key := range keys {
				if strings.HasPrefix(s, key+"=") {
					found[key] = strings.TrimPrefix(s, key+"=")
				}
			}
		}
	}

	for _, key := range keys {
		if _, ok := found[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingTXTKey, key)
		}
	}

	return found, nil
}
