package gossipnet

import (
	"fmt"

	"laplace/internal/wire"
)

// OpError pairs one of the stable ErrorKinds spec.md §4.8 requires with the
// MessageOut action that failed, so a guest sees structured failures instead
// of free-form strings.
type OpError struct {
	Kind wire.GossipErrorKind
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("gossipnet: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func publishError(err error) (wire.GossipErrorKind, string) {
	return wire.GossipErrGossipsubPublish, (&OpError{Kind: wire.GossipErrGossipsubPublish, Op: "publish", Err: err}).Error()
}

func parsePeerIDError(err error) (wire.GossipErrorKind, string) {
	return wire.GossipErrParsePeerID, (&OpError{Kind: wire.GossipErrParsePeerID, Op: "parse_peer_id", Err: err}).Error()
}

func dialError(err error) (wire.GossipErrorKind, string) {
	return wire.GossipErrDial, (&OpError{Kind: wire.GossipErrDial, Op: "dial", Err: err}).Error()
}

func wrongMultiaddrError(err error) (wire.GossipErrorKind, string) {
	return wire.GossipErrWrongMultiaddr, (&OpError{Kind: wire.GossipErrWrongMultiaddr, Op: "multiaddr", Err: err}).Error()
}

func otherError(op string, err error) (wire.GossipErrorKind, string) {
	return wire.GossipErrOther, (&OpError{Kind: wire.GossipErrOther, Op: op, Err: err}).Error()
}
