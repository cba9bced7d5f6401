//go:build linux

package rtnl

import (
	"net"
	"os"
	"testing"

	"github.com/m-lab/rtnl/iface"
	"github.com/m-lab/rtnl/ipaddr"
	"github.com/m-lab/rtnl/nsutil"
	"github.com/m-lab/rtnl/route"
	"github.com/m-lab/rtnl/rtnlerr"
)

// requireRoot skips a test that mutates live kernel network state unless
// run as root. CI runs these in an already-isolated network namespace;
// unshare(CLONE_NEWNET) cannot be done here because it must happen
// before any goroutine/thread fans out.
func requireRoot(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping root-requiring test in -short mode")
	}
	if os.Geteuid() != 0 {
		t.Skip("must be run as root")
	}
}

func u32(v uint32) *uint32 { return &v }
func boolp(v bool) *bool   { return &v }

// TestDummyLifecycle exercises scenario 1: add, rename, delete.
func TestDummyLifecycle(t *testing.T) {
	requireRoot(t)
	h := NewHandle()
	defer h.Close()

	err := h.LinkAdd(&iface.Link{Kind: iface.Dummy, Attrs: iface.Attrs{Name: "foo"}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := h.LinkGet(iface.Attrs{Name: "foo"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != iface.Dummy || got.Attrs.Name != "foo" || got.Attrs.Index == 0 {
		t.Fatalf("got %+v, want dummy foo with nonzero index", got)
	}

	got.Attrs.Name = "bar"
	if err := h.LinkModify(got); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LinkGet(iface.Attrs{Name: "bar"}); err != nil {
		t.Fatal(err)
	}

	if err := h.LinkDel(got); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LinkGet(iface.Attrs{Name: "bar"}); err == nil {
		t.Fatal("expected NotFound after delete")
	} else if _, ok := err.(*rtnlerr.NotFound); !ok {
		t.Fatalf("got %v (%T), want *rtnlerr.NotFound", err, err)
	}
}

// TestBridgeKindData exercises scenario 2: kernel-default fields
// alongside caller-set ones.
func TestBridgeKindData(t *testing.T) {
	requireRoot(t)
	h := NewHandle()
	defer h.Close()

	err := h.LinkAdd(&iface.Link{
		Kind:  iface.Bridge,
		Attrs: iface.Attrs{Name: "foo"},
		BridgeData: &iface.BridgeData{
			AgeingTime:    u32(30102),
			VlanFiltering: boolp(true),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.LinkDel(&iface.Link{Attrs: iface.Attrs{Name: "foo"}})

	got, err := h.LinkGet(iface.Attrs{Name: "foo"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != iface.Bridge || got.BridgeData == nil {
		t.Fatalf("got %+v, want bridge kind-data", got)
	}
	if *got.BridgeData.HelloTime != 200 {
		t.Errorf("HelloTime = %d, want kernel default 200", *got.BridgeData.HelloTime)
	}
	if *got.BridgeData.AgeingTime != 30102 {
		t.Errorf("AgeingTime = %d, want 30102", *got.BridgeData.AgeingTime)
	}
	if !*got.BridgeData.MulticastSnooping {
		t.Error("MulticastSnooping = false, want kernel default true")
	}
	if !*got.BridgeData.VlanFiltering {
		t.Error("VlanFiltering = false, want true")
	}
}

// TestVethPair exercises scenario 3.
func TestVethPair(t *testing.T) {
	requireRoot(t)
	h := NewHandle()
	defer h.Close()

	err := h.LinkAdd(&iface.Link{
		Kind: iface.Veth,
		Attrs: iface.Attrs{
			Name:        "foo",
			MTU:         1400,
			TxQueueLen:  100,
			NumTxQueues: 4,
			NumRxQueues: 8,
		},
		VethData: &iface.VethData{PeerName: "bar"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.LinkDel(&iface.Link{Attrs: iface.Attrs{Name: "foo"}})

	for _, name := range []string{"foo", "bar"} {
		got, err := h.LinkGet(iface.Attrs{Name: name})
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind != iface.Veth {
			t.Fatalf("%s: Kind = %v, want Veth", name, got.Kind)
		}
		if got.Attrs.MTU != 1400 || got.Attrs.TxQueueLen != 100 ||
			got.Attrs.NumTxQueues != 4 || got.Attrs.NumRxQueues != 8 {
			t.Errorf("%s: attrs = %+v, want mtu=1400 txqlen=100 numtx=4 numrx=8", name, got.Attrs)
		}
	}
}

// TestAddrAddShowDel exercises scenario 4 against loopback.
func TestAddrAddShowDel(t *testing.T) {
	requireRoot(t)
	h := NewHandle()
	defer h.Close()

	lo, err := h.LinkGet(iface.Attrs{Name: "lo"})
	if err != nil {
		t.Fatal(err)
	}

	ip1 := mustCIDRTest(t, "127.0.0.2/24")
	err = h.AddrHandle(AddrAdd, lo, &ipaddr.Address{IP: ip1})
	if err != nil {
		t.Fatal(err)
	}
	defer h.AddrHandle(AddrDel, lo, &ipaddr.Address{IP: ip1})

	addrs, err := h.AddrShow(lo)
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 || addrs[0].IP.String() != "127.0.0.2/24" {
		t.Fatalf("got %+v, want exactly 127.0.0.2/24", addrs)
	}

	ip2 := mustCIDRTest(t, "127.0.0.3/24")
	if err := h.AddrHandle(AddrReplace, lo, &ipaddr.Address{IP: ip2}); err != nil {
		t.Fatal(err)
	}
	addrs, err = h.AddrShow(lo)
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 2 {
		t.Fatalf("got %d addresses after Replace, want 2", len(addrs))
	}

	if err := h.AddrHandle(AddrDel, lo, &ipaddr.Address{IP: ip2}); err != nil {
		t.Fatal(err)
	}
	addrs, err = h.AddrShow(lo)
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 {
		t.Fatalf("got %d addresses after Del, want 1", len(addrs))
	}
}

// TestRouteRoundTrip exercises scenario 5.
func TestRouteRoundTrip(t *testing.T) {
	requireRoot(t)
	h := NewHandle()
	defer h.Close()

	lo, err := h.LinkGet(iface.Attrs{Name: "lo"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.LinkSetup(lo); err != nil {
		t.Fatal(err)
	}
	if err := h.AddrHandle(AddrAdd, lo, &ipaddr.Address{IP: mustCIDRTest(t, "127.0.0.2/24")}); err != nil {
		t.Fatal(err)
	}
	defer h.AddrHandle(AddrDel, lo, &ipaddr.Address{IP: mustCIDRTest(t, "127.0.0.2/24")})

	r := &route.Route{
		OutIndex: lo.Attrs.Index,
		Dst:      mustCIDRTest(t, "192.168.0.0/24"),
		Src:      net.ParseIP("127.0.0.2"),
	}
	if err := h.RouteHandle(RouteAdd, r); err != nil {
		t.Fatal(err)
	}

	got, err := h.RouteGet(net.ParseIP("192.168.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d routes, want 1", len(got))
	}
	if got[0].OutIndex != lo.Attrs.Index {
		t.Errorf("OutIndex = %d, want %d", got[0].OutIndex, lo.Attrs.Index)
	}
	if got[0].Dst.String() != "192.168.0.0/24" {
		t.Errorf("Dst = %v, want 192.168.0.0/24", got[0].Dst)
	}

	if err := h.RouteHandle(RouteDel, r); err != nil {
		t.Fatal(err)
	}
	if _, err := h.RouteGet(net.ParseIP("192.168.0.0")); err == nil {
		t.Fatal("expected NotFound after route delete")
	}
}

// TestVethPeerNamespace creates a veth pair whose peer is placed by
// namespace descriptor. The descriptor points at our own namespace, so
// both ends stay visible for verification.
func TestVethPeerNamespace(t *testing.T) {
	requireRoot(t)
	h := NewHandle()
	defer h.Close()

	ns, err := PeerNSByPath("/proc/self/ns/net")
	if err != nil {
		t.Fatal(err)
	}
	defer nsutil.Close(int(ns.Fd))

	err = h.LinkAdd(&iface.Link{
		Kind:     iface.Veth,
		Attrs:    iface.Attrs{Name: "foo"},
		VethData: &iface.VethData{PeerName: "bar", PeerNS: ns},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.LinkDel(&iface.Link{Attrs: iface.Attrs{Name: "foo"}})

	for _, name := range []string{"foo", "bar"} {
		got, err := h.LinkGet(iface.Attrs{Name: name})
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind != iface.Veth {
			t.Errorf("%s: Kind = %v, want Veth", name, got.Kind)
		}
	}
}

func TestPeerNSByPid(t *testing.T) {
	ns := PeerNSByPid(1234)
	if ns.UseFd || ns.Pid != 1234 {
		t.Errorf("got %+v, want pid 1234 without fd", ns)
	}
}

func TestPeerNSByNameMissingNamespace(t *testing.T) {
	if _, err := PeerNSByName("ThisNamespaceShouldNotExist"); err == nil {
		t.Error("expected an error resolving a nonexistent namespace")
	}
}

// mustCIDRTest parses s keeping the host part (ParseCIDR alone would
// return the masked network address).
func mustCIDRTest(t *testing.T, s string) *net.IPNet {
	t.Helper()
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatal(err)
	}
	n.IP = ip
	return n
}
