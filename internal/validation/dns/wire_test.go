package dns

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/testutil"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
)

func TestResolveAgainstLocalServer(t *testing.T) {
	addr := testutil.StartDNSServer(t, map[string][]string{
		"www.example.com": {"192.0.2.10", "192.0.2.11"},
		"api.example.com": {"192.0.2.20", "2001:db8::20"},
	})

	r, err := NewResolver(models.DNSConfig{
		Nameservers: []string{addr},
		RecordTypes: []string{"A", "AAAA"},
		Timeout:     2 * time.Second,
		Concurrency: 4,
	}, utils.NopLogger(), nil)
	testutil.AssertNoError(t, err, "new resolver")

	out, err := r.ResolveAll(context.Background(), slices.Values([]string{
		"www.example.com", "api.example.com", "nonexistent123xyz.example.com",
	}))
	testutil.AssertNoError(t, err, "resolve")
	models.SortResolved(out.Hosts)

	testutil.AssertLen(t, out.Hosts, 2, "hosts")
	testutil.AssertEqual(t, out.Hosts[0].Host, "api.example.com", "first host")
	testutil.AssertSameElements(t, out.Hosts[0].Addresses, []string{"192.0.2.20", "2001:db8::20"}, "api addresses")
	testutil.AssertSameElements(t, out.Hosts[1].Addresses, []string{"192.0.2.10", "192.0.2.11"}, "www addresses")
}

func TestWireLookuperNXDOMAIN(t *testing.T) {
	addr := testutil.StartDNSServer(t, map[string][]string{})
	w := newWireLookuper([]string{addr}, nil, time.Second, utils.NopLogger())

	addrs, err := w.Lookup(context.Background(), "missing.example.com")
	testutil.AssertTrue(t, err == ErrNoRecords, "NXDOMAIN maps to ErrNoRecords")
	testutil.AssertLen(t, addrs, 0, "addresses")
}

func TestWireLookuperServerRotation(t *testing.T) {
	w := newWireLookuper([]string{"10.0.0.1", "10.0.0.2:5353", " "}, nil, time.Second, utils.NopLogger())
	testutil.AssertEqual(t, w.selectServer(), "10.0.0.1:53", "first")
	testutil.AssertEqual(t, w.selectServer(), "10.0.0.2:5353", "second")
	testutil.AssertEqual(t, w.selectServer(), "10.0.0.1:53", "wraps")
}
