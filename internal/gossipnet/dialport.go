package gossipnet

import (
	"fmt"
	"strings"

	"github.com/multiformats/go-multiaddr"
)

// rewriteTCPPort replaces addr's /tcp/<port> component with port, per
// spec.md §4.8's Dial operation: "for each dial_port, replace the trailing
// TCP port component of the first known address and dial." Rewriting is
// done on the address's textual form rather than its component list, since
// that's the stable, well-documented part of go-multiaddr's API surface.
func rewriteTCPPort(addr multiaddr.Multiaddr, port int) (multiaddr.Multiaddr, error) {
	oldPort, err := addr.ValueForProtocol(multiaddr.P_TCP)
	if err != nil {
		return nil, fmt.Errorf("gossipnet: address %s has no /tcp component: %w", addr, err)
	}
	rewritten := strings.Replace(addr.String(), "/tcp/"+oldPort, fmt.Sprintf("/tcp/%d", port), 1)
	out, err := multiaddr.NewMultiaddr(rewritten)
	if err != nil {
		return nil, fmt.Errorf("gossipnet: rewriting port on %s: %w", addr, err)
	}
	return out, nil
}
