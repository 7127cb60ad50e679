package lapp

import (
	"context"
	"sync"

	"laplace/internal/logging"
	"laplace/internal/wire"
)

// WSSink delivers outbound WebSocket frames produced by a guest's
// route_ws to whatever transport holds the live connection.
type WSSink interface {
	SendText(data []byte) error
	SendBinary(data []byte) error
	Close() error
}

// GossipSink carries a guest's route_gossipsub MessageOut actions
// (spec.md §4.8) to the lapp's C8 gossip service. Each method returns the
// GossipErrorKind the spec requires every gossip failure be mapped to,
// alongside a human-readable message, for relay back into the guest as a
// MessageIn::Response.
type GossipSink interface {
	Publish(data []byte) (wire.GossipErrorKind, string)
	Dial(peerID string) (wire.GossipErrorKind, string)
	AddAddress(multiaddr string) (wire.GossipErrorKind, string)
	Close() (wire.GossipErrorKind, string)
}

// routable is the narrow slice of *Instance a ServiceActor drives — kept
// as an interface so tests can exercise the event loop's dispatch and
// termination logic against a fake instead of a real wazero guest.
type routable interface {
	RouteWS(ctx context.Context, msg []byte) ([]wire.Route, error)
	RouteGossipsub(ctx context.Context, msg []byte) ([]wire.Route, error)
}

type stopMsg struct{}
type newWebSocketMsg struct{ sink WSSink }
type webSocketMsg struct{ data []byte }
type newGossipSubMsg struct{ sink GossipSink }
type gossipSubMsg struct{ data []byte }

// ServiceActor is the Lapp Service Actor (C6): one per loaded-and-active
// lapp, serially dispatching WS/gossip events into the guest and fanning
// the resulting routes back out. Its mailbox is unbounded — Send never
// blocks the producer — backed by a growable slice guarded by a mutex and
// condition variable rather than a fixed-capacity channel.
type ServiceActor struct {
	lappName string
	instance routable

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool

	wsSink     WSSink
	gossipSink GossipSink

	depthGauge func(int) // optional: reports mailbox depth after each change
}

// newServiceActor constructs and starts a ServiceActor's event loop.
func newServiceActor(ctx context.Context, lappName string, instance routable) *ServiceActor {
	a := &ServiceActor{lappName: lappName, instance: instance}
	a.cond = sync.NewCond(&a.mu)
	go a.run(ctx)
	return a
}

// SetMailboxGauge wires fn to be called with the mailbox's current length
// after every enqueue/dequeue, backing the laplace_lapp_mailbox_depth gauge.
func (a *ServiceActor) SetMailboxGauge(fn func(int)) {
	a.mu.Lock()
	a.depthGauge = fn
	a.mu.Unlock()
}

func (a *ServiceActor) reportDepthLocked() {
	if a.depthGauge != nil {
		a.depthGauge(len(a.queue))
	}
}

func (a *ServiceActor) enqueue(msg any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.queue = append(a.queue, msg)
	a.reportDepthLocked()
	a.cond.Signal()
}

// Stop terminates the actor's event loop once its current message (if
// any) finishes processing. Its sinks are dropped, signalling EOF
// downstream.
func (a *ServiceActor) Stop() { a.enqueue(stopMsg{}) }

// NewWebSocket attaches sink as the actor's outbound WS destination.
func (a *ServiceActor) NewWebSocket(sink WSSink) { a.enqueue(newWebSocketMsg{sink: sink}) }

// WebSocket delivers an inbound WS frame's payload for routing.
func (a *ServiceActor) WebSocket(data []byte) { a.enqueue(webSocketMsg{data: data}) }

// NewGossipSub attaches sink as the actor's outbound gossip destination.
func (a *ServiceActor) NewGossipSub(sink GossipSink) { a.enqueue(newGossipSubMsg{sink: sink}) }

// GossipSub delivers an inbound gossip message for routing.
func (a *ServiceActor) GossipSub(data []byte) { a.enqueue(gossipSubMsg{data: data}) }

// dequeue blocks until a message is available or the actor is closed.
func (a *ServiceActor) dequeue() (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.queue) == 0 && !a.closed {
		a.cond.Wait()
	}
	if len(a.queue) == 0 {
		return nil, false
	}
	msg := a.queue[0]
	a.queue = a.queue[1:]
	a.reportDepthLocked()
	return msg, true
}

// run is the serial consumer loop: one message at a time, each guest call
// made while implicitly holding exclusive use of the instance (the
// Manager never lets two actors share one lapp), guaranteeing total order
// of guest entries per lapp.
func (a *ServiceActor) run(ctx context.Context) {
	for {
		msg, ok := a.dequeue()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case stopMsg:
			a.mu.Lock()
			a.closed = true
			a.wsSink = nil
			a.gossipSink = nil
			a.mu.Unlock()
			return
		case newWebSocketMsg:
			a.mu.Lock()
			a.wsSink = m.sink
			a.mu.Unlock()
		case newGossipSubMsg:
			a.mu.Lock()
			a.gossipSink = m.sink
			a.mu.Unlock()
		case webSocketMsg:
			routes, err := a.instance.RouteWS(ctx, m.data)
			if err != nil {
				logging.WithLapp(a.lappName, logging.LevelError, "route_ws failed: %v", err)
				continue
			}
			a.dispatchRoutes(routes)
		case gossipSubMsg:
			routes, err := a.instance.RouteGossipsub(ctx, m.data)
			if err != nil {
				logging.WithLapp(a.lappName, logging.LevelError, "route_gossipsub failed: %v", err)
				continue
			}
			a.dispatchRoutes(routes)
		}
	}
}

// dispatchRoutes fans a guest's outbound routes to the attached sinks. An
// Http route is unexpected here (spec.md §4.6) and only logged; a missing
// sink drops the route with a log line instead of blocking.
func (a *ServiceActor) dispatchRoutes(routes []wire.Route) {
	a.mu.Lock()
	wsSink, gossipSink := a.wsSink, a.gossipSink
	a.mu.Unlock()

	for _, route := range routes {
		switch route.Kind {
		case wire.RouteHTTP:
			logging.WithLapp(a.lappName, logging.LevelError, "route_* returned an unexpected Http route")
		case wire.RouteWebsocket:
			if wsSink == nil {
				logging.WithLapp(a.lappName, logging.LevelWarn, "dropping outbound WS frame: no sink attached")
				continue
			}
			if err := sendWSFrame(wsSink, route); err != nil {
				logging.WithLapp(a.lappName, logging.LevelWarn, "WS sink send failed: %v", err)
			}
		case wire.RouteGossipsub:
			if gossipSink == nil {
				logging.WithLapp(a.lappName, logging.LevelWarn, "dropping outbound gossip message: no sink attached")
				continue
			}
			a.runGossipOp(gossipSink, route)
		}
	}
}

// runGossipOp performs route's MessageOut action against sink and, unless
// it's a Close, relays the result back to the guest as a MessageIn::Response
// correlated by route.GossipID (spec.md §4.8).
func (a *ServiceActor) runGossipOp(sink GossipSink, route wire.Route) {
	var kind wire.GossipErrorKind
	var msg string
	switch route.GossipOp {
	case wire.GossipOpText:
		kind, msg = sink.Publish(route.GossipMsg)
	case wire.GossipOpDial:
		kind, msg = sink.Dial(string(route.GossipMsg))
	case wire.GossipOpAddAddress:
		kind, msg = sink.AddAddress(string(route.GossipMsg))
	case wire.GossipOpClose:
		kind, msg = sink.Close()
		return
	default:
		return
	}
	isErr := kind != wire.GossipErrNone
	if isErr {
		logging.WithLapp(a.lappName, logging.LevelWarn, "gossip op %d failed: %s", route.GossipOp, msg)
	}
	a.GossipSub(wire.EncodeGossipInResponse(route.GossipID, isErr, kind, msg))
}

func sendWSFrame(sink WSSink, route wire.Route) error {
	switch route.WSFrame {
	case wire.WSText:
		return sink.SendText(route.WSData)
	case wire.WSBinary:
		return sink.SendBinary(route.WSData)
	case wire.WSClose:
		return sink.Close()
	default:
		return nil
	}
}
