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
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/netutil"
)

type fakeResolver struct {
	answers map[uint16]map[string][]dns.RR
}

func (f *fakeResolver) Lookup(_ context.Context, name string, qtype uint16) ([]dns.RR, error) {
	return f.answers[qtype][name], nil
}

type fakeProber struct {
	// unreachable lists sockets that refuse the probe, keyed by ip:port.
	unreachable map[string]bool
	probed      []string
}

func (f *fakeProber) TestConnection(s netutil.Socket) bool {
	addr := s.IP
	f.probed = append(f.probed, addr)

	return !f.unreachable[addr]
}

func ptrRecord(target string) dns.RR {
	return &dns.PTR{Hdr: dns.RR_Header{Rrtype: dns.TypePTR}, Ptr: target}
}

func srvRecord(target string, port uint16) dns.RR {
	return &dns.SRV{Hdr: dns.RR_Header{Rrtype: dns.TypeSRV}, Target: target, Port: port}
}

func txtRecord(values ...string) dns.RR {
	return &dns.TXT{Hdr: dns.RR_Header{Rrtype: dns.TypeTXT}, Txt: values}
}

func aRecord(ip string) dns.RR {
	return &dns.A{Hdr: dns.RR_Header{Rrtype: dns.TypeA}, A: net.ParseIP(ip)}
}

func testResolver() *fakeResolver {
	return &fakeResolver{answers: map[uint16]map[string][]dns.RR{
		dns.TypePTR: {
			"_nmos-query._tcp.broadcast.example": {
				ptrRecord("qry-1._nmos-query._tcp.broadcast.example"),
				ptrRecord("qry-2._nmos-query._tcp.broadcast.example"),
			},
		},
		dns.TypeSRV: {
			"qry-1._nmos-query._tcp.broadcast.example": {srvRecord("reg-1.broadcast.example.", 8080)},
			"qry-2._nmos-query._tcp.broadcast.example": {srvRecord("reg-2.broadcast.example.", 80)},
		},
		dns.TypeTXT: {
			"qry-1._nmos-query._tcp.broadcast.example": {txtRecord("pri=10", "api_proto=http", "api_auth=false")},
			"qry-2._nmos-query._tcp.broadcast.example": {txtRecord("pri=20", "api_proto=http", "api_auth=false")},
		},
		dns.TypeA: {
			"reg-1.broadcast.example.": {aRecord("10.0.0.1")},
			"reg-2.broadcast.example.": {aRecord("10.0.0.2")},
		},
	}}
}

func TestDiscoverRegistries(t *testing.T) {
	sd := New(testResolver(), &fakeProber{}, logger.NewTestLogger())

	regs, err := sd.DiscoverRegistries(context.Background(), "broadcast.example")
	require.NoError(t, err)
	require.Len(t, regs, 2)

	assert.Equal(t, "reg-1.broadcast.example", regs[0].Name)
	assert.Equal(t, "10.0.0.1", regs[0].IP)
	assert.Equal(t, 8080, regs[0].Port)
	assert.Equal(t, 10, regs[0].Priority)
	assert.False(t, regs[0].Auth)
}

func TestDiscoverRegistriesDropsIncompleteCandidate(t *testing.T) {
	resolver := testResolver()
	// qry-2 loses its pri key; it must be dropped, not fail discovery.
	resolver.answers[dns.TypeTXT]["qry-2._nmos-query._tcp.broadcast.example"] = []dns.RR{
		txtRecord("api_proto=http", "api_auth=false"),
	}

	sd := New(resolver, &fakeProber{}, logger.NewTestLogger())

	regs, err := sd.DiscoverRegistries(context.Background(), "broadcast.example")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "10.0.0.1", regs[0].IP)
}

func TestDiscoverRegistriesNoCandidates(t *testing.T) {
	sd := New(&fakeResolver{answers: map[uint16]map[string][]dns.RR{}}, &fakeProber{}, logger.NewTestLogger())

	_, err := sd.DiscoverRegistries(context.Background(), "broadcast.example")
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestSelectBestPrefersLowestPriority(t *testing.T) {
	candidates := []models.RegistryDescriptor{
		{Name: "b", Transport: "http", IP: "10.0.0.2", Port: 80, Priority: 10},
		{Name: "a", Transport: "http", IP: "10.0.0.1", Port: 80, Priority: 5},
		{Name: "c", Transport: "http", IP: "10.0.0.3", Port: 80, Priority: 20},
	}

	sd := New(&fakeResolver{}, &fakeProber{}, logger.NewTestLogger())

	best, err := sd.SelectBest(candidates)
	require.NoError(t, err)
	assert.Equal(t, "a", best.Name)

	// The input order must survive selection.
	assert.Equal(t, "b", candidates[0].Name)
	assert.Equal(t, "a", candidates[1].Name)
	assert.Equal(t, "c", candidates[2].Name)
}

func TestSelectBestFailsOverToNextCandidate(t *testing.T) {
	candidates := []models.RegistryDescriptor{
		{Name: "b", Transport: "http", IP: "10.0.0.2", Port: 80, Priority: 10},
		{Name: "a", Transport: "http", IP: "10.0.0.1", Port: 80, Priority: 5},
	}

	prober := &fakeProber{unreachable: map[string]bool{"10.0.0.1": true}}
	sd := New(&fakeResolver{}, prober, logger.NewTestLogger())

	best, err := sd.SelectBest(candidates)
	require.NoError(t, err)
	assert.Equal(t, "b", best.Name)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, prober.probed)
}

func TestSelectBestAllUnreachable(t *testing.T) {
	candidates := []models.RegistryDescriptor{
		{Name: "a", Transport: "http", IP: "10.0.0.1", Port: 80, Priority: 5},
	}

	prober := &fakeProber{unreachable: map[string]bool{"10.0.0.1": true}}
	sd := New(&fakeResolver{}, prober, logger.NewTestLogger())

	_, err := sd.SelectBest(candidates)
	require.ErrorIs(t, err, ErrNoViableRegistry)
}

func TestStatic(t *testing.T) {
	sd := New(&fakeResolver{}, &fakeProber{}, logger.NewTestLogger())

	reg, err := sd.Static("http", "10.1.1.1", 8080)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1:8080", reg.Name)
	assert.Equal(t, 0, reg.Priority)
}

func TestStaticUnreachable(t *testing.T) {
	prober := &fakeProber{unreachable: map[string]bool{"10.1.1.1": true}}
	sd := New(&fakeResolver{}, prober, logger.NewTestLogger())

	_, err := sd.Static("http", "10.1.1.1", 8080)
	require.ErrorIs(t, err, ErrStaticUnreachable)
}

func TestExtractFromTXT(t *testing.T) {
	rrs := []dns.RR{txtRecord("pri=100", "api_proto=http", "api_auth=true", "api_ver=v1.3")}

	attrs, err := extractFromTXT(rrs, txtKeys)
	require.NoError(t, err)
	assert.Equal(t, "100", attrs["pri"])
	assert.Equal(t, "true", attrs["api_auth"])

	_, err = extractFromTXT([]dns.RR{txtRecord("pri=100")}, txtKeys)
	require.ErrorIs(t, err, ErrMissingTXTKey)
}
