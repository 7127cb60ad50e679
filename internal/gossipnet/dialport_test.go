package gossipnet

import (
	"testing"

	"github.com/multiformats/go-multiaddr"
)

func TestRewriteTCPPortReplacesPort(t *testing.T) {
	addr := mustAddr(t, "/ip4/10.0.0.1/tcp/4001")
	rewritten, err := rewriteTCPPort(addr, 9000)
	if err != nil {
		t.Fatalf("rewriteTCPPort: %v", err)
	}
	want := mustAddr(t, "/ip4/10.0.0.1/tcp/9000")
	if !rewritten.Equal(want) {
		t.Fatalf("got %s, want %s", rewritten, want)
	}
}

func TestRewriteTCPPortRejectsAddressWithoutTCP(t *testing.T) {
	addr, err := multiaddr.NewMultiaddr("/ip4/10.0.0.1/udp/4001/quic")
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if _, err := rewriteTCPPort(addr, 9000); err == nil {
		t.Fatal("expected an error for an address with no /tcp component")
	}
}
