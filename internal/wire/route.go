package wire

import "fmt"

// RouteKind tags the Route union (spec.md §3).
type RouteKind uint8

const (
	RouteHTTP RouteKind = iota
	RouteWebsocket
	RouteGossipsub
)

// WSFrameKind tags the Websocket route payload.
type WSFrameKind uint8

const (
	WSText WSFrameKind = iota
	WSBinary
	WSClose
)

// GossipOp tags a RouteGossipsub route's guest-requested operation
// (spec.md §4.8's MessageOut union).
type GossipOp uint8

const (
	GossipOpText       GossipOp = iota // publish GossipMsg to the topic
	GossipOpDial                       // dial the peer named in GossipMsg
	GossipOpAddAddress                 // parse+dial the multiaddr in GossipMsg
	GossipOpClose                      // terminate the gossip event loop
)

// Route is a declarative outbound action emitted by a guest in response to
// an inbound WS/gossip event.
type Route struct {
	Kind RouteKind

	HTTP *Request // RouteHTTP

	WSFrame WSFrameKind // RouteWebsocket
	WSData  []byte      // RouteWebsocket

	GossipOp  GossipOp // RouteGossipsub
	GossipID  string   // RouteGossipsub: opaque id correlating a MessageIn::Response
	GossipMsg []byte   // RouteGossipsub: text/peer-id/multiaddr depending on GossipOp
}

func encodeRoute(w *Writer, route Route) {
	w.U8(uint8(route.Kind))
	switch route.Kind {
	case RouteHTTP:
		w.PutBytes(EncodeRequest(route.HTTP))
	case RouteWebsocket:
		w.U8(uint8(route.WSFrame))
		w.PutBytes(route.WSData)
	case RouteGossipsub:
		w.U8(uint8(route.GossipOp))
		w.PutString(route.GossipID)
		w.PutBytes(route.GossipMsg)
	}
}

func decodeRoute(r *Reader) (Route, error) {
	kindByte, err := r.U8()
	if err != nil {
		return Route{}, err
	}
	kind := RouteKind(kindByte)
	switch kind {
	case RouteHTTP:
		raw, err := r.Bytes()
		if err != nil {
			return Route{}, err
		}
		req, err := DecodeRequest(raw)
		if err != nil {
			return Route{}, err
		}
		return Route{Kind: RouteHTTP, HTTP: req}, nil
	case RouteWebsocket:
		frameByte, err := r.U8()
		if err != nil {
			return Route{}, err
		}
		data, err := r.Bytes()
		if err != nil {
			return Route{}, err
		}
		return Route{Kind: RouteWebsocket, WSFrame: WSFrameKind(frameByte), WSData: append([]byte(nil), data...)}, nil
	case RouteGossipsub:
		opByte, err := r.U8()
		if err != nil {
			return Route{}, err
		}
		id, err := r.String()
		if err != nil {
			return Route{}, err
		}
		msg, err := r.Bytes()
		if err != nil {
			return Route{}, err
		}
		return Route{Kind: RouteGossipsub, GossipOp: GossipOp(opByte), GossipID: id, GossipMsg: append([]byte(nil), msg...)}, nil
	default:
		return Route{}, fmt.Errorf("wire: unknown route kind %d", kindByte)
	}
}

// EncodeRoutes serializes a []Route, the value every route_* guest export
// returns.
func EncodeRoutes(routes []Route) []byte {
	w := NewWriter()
	w.U32(uint32(len(routes)))
	for _, route := range routes {
		encodeRoute(w, route)
	}
	return w.Bytes()
}

// DecodeRoutes parses a wire-encoded []Route.
func DecodeRoutes(buf []byte) ([]Route, error) {
	r := NewReader(buf)
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	routes := make([]Route, 0, n)
	for i := uint32(0); i < n; i++ {
		route, err := decodeRoute(r)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}
