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

package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/yemnet/nmosctl/pkg/logger"
)

// Resolver answers a single DNS question. Implementations return the
// answer section only; an empty slice means the record does not exist.
type Resolver interface {
	Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error)
}

// UnicastResolver queries an explicit list of nameservers in order,
// returning the first answer it receives. Relying on host resolver
// configuration has proven inconsistent across platforms, so nameservers
// are always explicit here.
type UnicastResolver struct {
	client      *dns.Client
	nameservers []string
	log         logger.Logger
}

// NewUnicastResolver builds a resolver over the given nameservers. A bare
// IP is normalized to IP:53.
func NewUnicastResolver(nameservers []string, log logger.Logger) *UnicastResolver {
	normalized := make([]string, 0, len(nameservers))

	for _, ns := range nameservers {
		if _, _, err := net.SplitHostPort(ns); err != nil {
			ns = net.JoinHostPort(ns, "53")
		}

		normalized = append(normalized, ns)
	}

	return &UnicastResolver{
		client:      &dns.Client{Timeout: 5 * time.Second},
		nameservers: normalized,
		log:         log,
	}
}

// Lookup implements Resolver.
func (r *UnicastResolver) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error

	for _, ns := range r.nameservers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, ns)
		if err != nil {
			r.log.Warn().Err(err).Str("nameserver", ns).Str("name", name).Msg("nameserver query failed")
			lastErr = err

			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp.Answer, nil
		case dns.RcodeNameError:
			r.log.Debug().Str("name", name).Msg("name does not exist on nameserver")
			return nil, nil
		default:
			lastErr = fmt.Errorf("nameserver %s returned rcode %d for %s", ns, resp.Rcode, name)
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return nil, nil
}
