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

// Package netutil validates (protocol, address, port) triples and probes
// the reachability of NMOS API endpoints.
package netutil

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yemnet/nmosctl/pkg/logger"
)

// SupportedProtocols lists the transports the controller can speak to a
// registry or node. TLS fronting is expected to terminate upstream.
var SupportedProtocols = []string{"http"}

const probeTimeout = 3 * time.Second

// Socket is a validated (protocol, address, port) triple.
type Socket struct {
	Transport string
	IP        string
	Port      int
}

// NewSocket validates the triple and returns a Socket, or a validation
// error before any network traffic is attempted.
func NewSocket(transport, ip string, port int) (Socket, error) {
	if err := VerifyProtocol(transport); err != nil {
		return Socket{}, err
	}

	if err := VerifyIP(ip); err != nil {
		return Socket{}, err
	}

	if err := VerifyPort(port); err != nil {
		return Socket{}, err
	}

	return Socket{Transport: transport, IP: ip, Port: port}, nil
}

// BaseURL returns the socket's NMOS API root, e.g. http://10.0.0.1:80/x-nmos/.
func (s Socket) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d/x-nmos/", s.Transport, s.IP, s.Port)
}

// VerifyProtocol checks the transport against SupportedProtocols.
func VerifyProtocol(protocol string) error {
	for _, p := range SupportedProtocols {
		if p == protocol {
			return nil
		}
	}

	return fmt.Errorf("%w: got %q, supported %v", ErrInvalidProtocol, protocol, SupportedProtocols)
}

// VerifyIP checks that addr parses as an IPv4 or IPv6 address.
func VerifyIP(addr string) error {
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidIP, addr)
	}

	return nil
}

// VerifyPort checks the 1-65535 range.
func VerifyPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, port)
	}

	return nil
}

// Prober tests whether an NMOS endpoint answers on its API root.
type Prober interface {
	TestConnection(s Socket) bool
}

// HTTPProber probes reachability with a short-timeout GET against the
// /x-nmos/ root. A 200 means reachable; anything else, including refused
// connections and timeouts, means unreachable.
type HTTPProber struct {
	client *http.Client
	log    logger.Logger
}

// NewHTTPProber builds a prober with a bounded probe timeout. Retries are
// left to the caller's candidate-failover logic, so the underlying
// retryable client is pinned to a single attempt.
func NewHTTPProber(log logger.Logger) *HTTPProber {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient.Timeout = probeTimeout
	rc.Logger = nil

	return &HTTPProber{client: rc.StandardClient(), log: log}
}

// TestConnection implements Prober.
func (p *HTTPProber) TestConnection(s Socket) bool {
	url := s.BaseURL()
	p.log.Debug().Str("url", url).Msg("testing connection")

	resp, err := p.client.Get(url)
	if err != nil {
		p.log.Warn().Err(err).Str("url", url).Msg("unable to reach endpoint")
		return false
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("unexpected status from endpoint")
		return false
	}

	p.log.Debug().Str("url", url).Msg("connection successful")

	return true
}
