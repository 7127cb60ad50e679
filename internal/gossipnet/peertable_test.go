package gossipnet

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

func mustAddr(t *testing.T, s string) multiaddr.Multiaddr {
	t.Helper()
	a, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		t.Fatalf("parsing %s: %v", s, err)
	}
	return a
}

func TestPeerTableAddDeduplicates(t *testing.T) {
	pt := newPeerTable()
	id := peer.ID("peer-1")
	a1 := mustAddr(t, "/ip4/10.0.0.1/tcp/4001")

	if !pt.add(id, []multiaddr.Multiaddr{a1}, time.Now()) {
		t.Fatal("expected first add to report a change")
	}
	if pt.add(id, []multiaddr.Multiaddr{a1}, time.Now()) {
		t.Fatal("expected duplicate add to report no change")
	}

	addr, ok := pt.firstAddr(id)
	if !ok || !addr.Equal(a1) {
		t.Fatalf("firstAddr = %v, %v", addr, ok)
	}
}

func TestPeerTableAddMergesNewAddresses(t *testing.T) {
	pt := newPeerTable()
	id := peer.ID("peer-1")
	a1 := mustAddr(t, "/ip4/10.0.0.1/tcp/4001")
	a2 := mustAddr(t, "/ip4/10.0.0.2/tcp/4002")

	pt.add(id, []multiaddr.Multiaddr{a1}, time.Now())
	if !pt.add(id, []multiaddr.Multiaddr{a2}, time.Now()) {
		t.Fatal("expected a new address to report a change")
	}
}

func TestPeerTableRemove(t *testing.T) {
	pt := newPeerTable()
	id := peer.ID("peer-1")
	pt.add(id, []multiaddr.Multiaddr{mustAddr(t, "/ip4/10.0.0.1/tcp/4001")}, time.Now())
	pt.remove(id)
	if _, ok := pt.firstAddr(id); ok {
		t.Fatal("expected peer to be gone after remove")
	}
}

func TestPeerTableStaleReportsOnlyOldEntries(t *testing.T) {
	pt := newPeerTable()
	fresh, stale := peer.ID("fresh"), peer.ID("stale")
	now := time.Now()

	pt.add(fresh, []multiaddr.Multiaddr{mustAddr(t, "/ip4/10.0.0.1/tcp/4001")}, now)
	pt.add(stale, []multiaddr.Multiaddr{mustAddr(t, "/ip4/10.0.0.2/tcp/4002")}, now.Add(-time.Hour))

	ids := pt.stale(now.Add(-time.Minute))
	if len(ids) != 1 || ids[0] != stale {
		t.Fatalf("stale() = %v, want only %v", ids, stale)
	}
}
