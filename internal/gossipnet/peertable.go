package gossipnet

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// peerEntry is one discovered peer's known addresses plus the last time
// mDNS re-announced it, backing the silence-based eviction performed by
// Service.expireStalePeers.
type peerEntry struct {
	addrs    []multiaddr.Multiaddr
	lastSeen time.Time
}

// peerTable is the "PeerId→[Multiaddr]" table spec.md §3's GossipService
// state describes, populated by mDNS discovery and deduplicated on insert.
type peerTable struct {
	mu      sync.RWMutex
	entries map[peer.ID]*peerEntry
}

func newPeerTable() *peerTable {
	return &peerTable{entries: make(map[peer.ID]*peerEntry)}
}

// add records addr for id, returning true if it wasn't already known.
func (t *peerTable) add(id peer.ID, addrs []multiaddr.Multiaddr, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		t.entries[id] = &peerEntry{addrs: append([]multiaddr.Multiaddr(nil), addrs...), lastSeen: now}
		return true
	}
	e.lastSeen = now
	added := false
	for _, a := range addrs {
		if !containsAddr(e.addrs, a) {
			e.addrs = append(e.addrs, a)
			added = true
		}
	}
	return added
}

func containsAddr(addrs []multiaddr.Multiaddr, candidate multiaddr.Multiaddr) bool {
	for _, a := range addrs {
		if a.Equal(candidate) {
			return true
		}
	}
	return false
}

func (t *peerTable) remove(id peer.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// firstAddr returns id's first known address, per the Dial operation's
// "first known address" rule (spec.md §4.8).
func (t *peerTable) firstAddr(id peer.ID) (multiaddr.Multiaddr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok || len(e.addrs) == 0 {
		return nil, false
	}
	return e.addrs[0], true
}

// stale returns every peer ID whose lastSeen precedes the cutoff.
func (t *peerTable) stale(cutoff time.Time) []peer.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []peer.ID
	for id, e := range t.entries {
		if e.lastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
