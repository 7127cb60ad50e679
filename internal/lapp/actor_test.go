package lapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"laplace/internal/wire"
)

type fakeInstance struct {
	mu          sync.Mutex
	wsRoutes    []wire.Route
	gossipCalls int
	wsCalls     int
}

func (f *fakeInstance) RouteWS(ctx context.Context, msg []byte) ([]wire.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wsCalls++
	return f.wsRoutes, nil
}

func (f *fakeInstance) RouteGossipsub(ctx context.Context, msg []byte) ([]wire.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gossipCalls++
	return nil, nil
}

type fakeWSSink struct {
	mu     sync.Mutex
	texts  [][]byte
	closed bool
}

func (s *fakeWSSink) SendText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, data)
	return nil
}
func (s *fakeWSSink) SendBinary(data []byte) error { return nil }
func (s *fakeWSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeGossipSink struct {
	mu        sync.Mutex
	published [][]byte
}

func (s *fakeGossipSink) Publish(data []byte) (wire.GossipErrorKind, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, data)
	return wire.GossipErrNone, ""
}
func (s *fakeGossipSink) Dial(peerID string) (wire.GossipErrorKind, string)          { return wire.GossipErrNone, "" }
func (s *fakeGossipSink) AddAddress(multiaddr string) (wire.GossipErrorKind, string) { return wire.GossipErrNone, "" }
func (s *fakeGossipSink) Close() (wire.GossipErrorKind, string)                      { return wire.GossipErrNone, "" }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestServiceActorRoutesWebSocketFrameToSink(t *testing.T) {
	inst := &fakeInstance{wsRoutes: []wire.Route{{Kind: wire.RouteWebsocket, WSFrame: wire.WSText, WSData: []byte("pong")}}}
	actor := newServiceActor(context.Background(), "demo", inst)
	defer actor.Stop()

	sink := &fakeWSSink{}
	actor.NewWebSocket(sink)
	actor.WebSocket([]byte("ping"))

	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.texts) == 1
	})
	if string(sink.texts[0]) != "pong" {
		t.Fatalf("unexpected frame: %q", sink.texts[0])
	}
}

func TestServiceActorDropsFrameWithoutSink(t *testing.T) {
	inst := &fakeInstance{wsRoutes: []wire.Route{{Kind: wire.RouteWebsocket, WSFrame: wire.WSText, WSData: []byte("pong")}}}
	actor := newServiceActor(context.Background(), "demo", inst)
	defer actor.Stop()

	actor.WebSocket([]byte("ping"))
	waitFor(t, time.Second, func() bool {
		inst.mu.Lock()
		defer inst.mu.Unlock()
		return inst.wsCalls == 1
	})
	// No assertion beyond "it didn't panic or block" — dropping without a
	// sink is the documented behavior.
}

func TestServiceActorRoutesGossipToSink(t *testing.T) {
	inst := &fakeInstance{}
	actor := newServiceActor(context.Background(), "demo", inst)
	defer actor.Stop()

	sink := &fakeGossipSink{}
	actor.NewGossipSub(sink)
	actor.GossipSub([]byte("hello"))

	waitFor(t, time.Second, func() bool {
		inst.mu.Lock()
		defer inst.mu.Unlock()
		return inst.gossipCalls == 1
	})
}

func TestServiceActorStopTerminatesLoop(t *testing.T) {
	inst := &fakeInstance{}
	actor := newServiceActor(context.Background(), "demo", inst)
	actor.Stop()

	waitFor(t, time.Second, func() bool {
		actor.mu.Lock()
		defer actor.mu.Unlock()
		return actor.closed
	})

	// Messages sent after Stop must not panic or be processed.
	actor.WebSocket([]byte("ignored"))
	time.Sleep(10 * time.Millisecond)
	inst.mu.Lock()
	calls := inst.wsCalls
	inst.mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no calls after stop, got %d", calls)
	}
}
