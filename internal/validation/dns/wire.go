package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// ErrNoRecords marks an authoritative negative answer (NXDOMAIN or NODATA).
var ErrNoRecords = errors.New("no address records")

// wireLookuper sends real DNS queries with miekg/dns, rotating through the
// configured nameservers.
type wireLookuper struct {
	servers     []string
	recordTypes []uint16
	udpClient   *mdns.Client
	tcpClient   *mdns.Client
	logger      *logrus.Logger
	mu          sync.Mutex
	rotateIndex int
}

func newWireLookuper(servers []string, recordTypes []uint16, timeout time.Duration, logger *logrus.Logger) *wireLookuper {
	if len(servers) == 0 {
		servers = getSystemResolvers()
	}
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	if len(recordTypes) == 0 {
		recordTypes = []uint16{mdns.TypeA}
	}

	return &wireLookuper{
		servers:     normalized,
		recordTypes: recordTypes,
		udpClient: &mdns.Client{
			Net:     "udp",
			Timeout: timeout,
			UDPSize: 1232,
		},
		tcpClient: &mdns.Client{
			Net:     "tcp",
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Lookup queries every configured record type for host and returns the
// union of the addresses found.
func (w *wireLookuper) Lookup(ctx context.Context, host string) ([]string, error) {
	var (
		addrs   []string
		lastErr error
	)
	for _, rt := range w.recordTypes {
		got, err := w.query(ctx, host, rt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		addrs = append(addrs, got...)
	}
	if len(addrs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return addrs, nil
}

func (w *wireLookuper) query(ctx context.Context, host string, recordType uint16) ([]string, error) {
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(host), recordType)
	msg.RecursionDesired = true
	msg.SetEdns0(1232, false)

	server := w.selectServer()
	resp, _, err := w.udpClient.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("query %s via %s: %w", host, server, err)
	}
	if resp != nil && resp.Truncated {
		resp, _, err = w.tcpClient.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, fmt.Errorf("TCP query %s via %s: %w", host, server, err)
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("nil DNS response")
	}

	switch resp.Rcode {
	case mdns.RcodeSuccess:
	case mdns.RcodeNameError:
		return nil, ErrNoRecords
	default:
		return nil, fmt.Errorf("DNS error: %s", mdns.RcodeToString[resp.Rcode])
	}

	return parseAddresses(resp.Answer, recordType), nil
}

func parseAddresses(rrs []mdns.RR, recordType uint16) []string {
	out := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		switch rr := rr.(type) {
		case *mdns.A:
			if recordType == mdns.TypeA {
				out = append(out, rr.A.String())
			}
		case *mdns.AAAA:
			if recordType == mdns.TypeAAAA {
				out = append(out, rr.AAAA.String())
			}
		}
	}
	return out
}

func (w *wireLookuper) selectServer() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	server := w.servers[w.rotateIndex%len(w.servers)]
	w.rotateIndex = (w.rotateIndex + 1) % len(w.servers)
	return server
}

func getSystemResolvers() []string {
	cfg, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || cfg == nil || len(cfg.Servers) == 0 {
		return []string{
			"1.1.1.1:53",
			"8.8.8.8:53",
			"9.9.9.9:53",
			"208.67.222.222:53",
		}
	}
	port := cfg.Port
	if port == "" {
		port = "53"
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, port))
	}
	return servers
}

func parseRecordTypes(names []string) ([]uint16, error) {
	var out []uint16
	for _, n := range names {
		switch strings.ToUpper(strings.TrimSpace(n)) {
		case "A":
			out = append(out, mdns.TypeA)
		case "AAAA":
			out = append(out, mdns.TypeAAAA)
		default:
			return nil, fmt.Errorf("unsupported record type %q", n)
		}
	}
	if len(out) == 0 {
		out = []uint16{mdns.TypeA}
	}
	return out, nil
}
