package wire

// GossipInKind tags the MessageIn union (spec.md §4.8) delivered into a
// guest's route_gossipsub.
type GossipInKind uint8

const (
	GossipInText     GossipInKind = iota // a subscribed-topic message from a peer
	GossipInResponse                     // the result of a prior MessageOut
)

// EncodeGossipInText builds the MessageIn::Text{peer_id_base58, msg} payload
// handed to route_gossipsub for an inbound gossipsub delivery.
func EncodeGossipInText(peerIDBase58, msg string) []byte {
	w := NewWriter()
	w.U8(uint8(GossipInText))
	w.PutString(peerIDBase58)
	w.PutString(msg)
	return w.Bytes()
}

// EncodeGossipInResponse builds the MessageIn::Response{id, result} payload
// correlating a prior guest MessageOut (by its opaque id) with its outcome.
// isErr selects between a success result (ignored, present for symmetry)
// and a structured ErrorKind/message pair.
func EncodeGossipInResponse(id string, isErr bool, errKind GossipErrorKind, errMsg string) []byte {
	w := NewWriter()
	w.U8(uint8(GossipInResponse))
	w.PutString(id)
	w.Bool(isErr)
	if isErr {
		w.U8(uint8(errKind))
		w.PutString(errMsg)
	}
	return w.Bytes()
}

// GossipErrorKind is the stable ErrorKind enum spec.md §4.8 requires every
// gossip failure be mapped to before reaching the guest.
type GossipErrorKind uint8

const (
	GossipErrNone GossipErrorKind = iota
	GossipErrGossipsubPublish
	GossipErrParsePeerID
	GossipErrDial
	GossipErrWrongMultiaddr
	GossipErrOther
)

// DecodeGossipIn parses a MessageIn payload's discriminant, for tests and
// any host-side introspection; guests are expected to do their own
// decoding, matching route_ws/route_gossipsub's "host writes, guest reads"
// contract (spec.md §4.6).
func DecodeGossipIn(buf []byte) (kind GossipInKind, peerID, msg, id string, isErr bool, errKind GossipErrorKind, errMsg string, err error) {
	r := NewReader(buf)
	kindByte, err := r.U8()
	if err != nil {
		return 0, "", "", "", false, 0, "", err
	}
	kind = GossipInKind(kindByte)
	switch kind {
	case GossipInText:
		peerID, err = r.String()
		if err != nil {
			return kind, "", "", "", false, 0, "", err
		}
		msg, err = r.String()
		return kind, peerID, msg, "", false, 0, "", err
	case GossipInResponse:
		id, err = r.String()
		if err != nil {
			return kind, "", "", "", false, 0, "", err
		}
		isErr, err = r.Bool()
		if err != nil {
			return kind, "", "", id, false, 0, "", err
		}
		if !isErr {
			return kind, "", "", id, false, 0, "", nil
		}
		kindB, err := r.U8()
		if err != nil {
			return kind, "", "", id, true, 0, "", err
		}
		errKind = GossipErrorKind(kindB)
		errMsg, err = r.String()
		return kind, "", "", id, true, errKind, errMsg, err
	default:
		return kind, "", "", "", false, 0, "", ErrUnexpectedEOF
	}
}
