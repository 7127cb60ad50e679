// Package gossipnet implements the Gossip Service (C8): a per-lapp libp2p
// swarm running gossipsub plus mDNS peer discovery, driven by an event loop
// that mirrors REPRAM's gossip Protocol goroutine-per-concern shape
// collapsed into the single select loop spec.md §4.8 describes.
package gossipnet

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsub_pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"

	"laplace/internal/logging"
	"laplace/internal/wire"
)

// mdnsExpiryFactor sets the silence window before a discovered peer is
// evicted, relative to mdns's own rediscovery interval. go-libp2p's mDNS
// implementation has no "Expired" callback of its own (unlike the
// PING-based failure counting in REPRAM's gossip.Protocol), so expiry here
// is inferred from how long a peer has gone unseen.
const mdnsExpiryFactor = 3

// InboundSink is the owning Lapp Service Actor: every swarm-originated
// event (a subscribed-topic message, or the outcome of a guest MessageOut)
// is delivered into the guest via its single GossipSub mailbox method.
type InboundSink interface {
	GossipSub(data []byte)
}

// Config is a lapp's parsed network.gossipsub settings.
type Config struct {
	ListenAddr string // multiaddr the swarm listens on
	Topic      string // defaults to "test-net" per spec.md §4.8
	DialPorts  []int
}

// Service owns one lapp's libp2p swarm, gossipsub topic/subscription, mDNS
// discovery, and peer table — spec.md §3's GossipService state.
type Service struct {
	lappName string
	cfg      Config
	sink     InboundSink

	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	mdns  mdns.Service
	peers *peerTable

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewService builds and starts a Service: creates the libp2p host,
// configures gossipsub with strict signature validation and a 5s
// heartbeat, joins cfg.Topic, and starts mDNS discovery plus the inbound
// message loop.
func NewService(parent context.Context, lappName string, cfg Config, sink InboundSink) (*Service, error) {
	if cfg.Topic == "" {
		cfg.Topic = "test-net"
	}
	ctx, cancel := context.WithCancel(parent)

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gossipnet: creating host: %w", err)
	}

	pubsub.GossipSubHeartbeatInterval = 5 * time.Second
	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageIdFn(hashMessageID),
		pubsub.WithStrictSignatureVerification(true),
	)
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("gossipnet: creating gossipsub: %w", err)
	}

	topic, err := ps.Join(cfg.Topic)
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("gossipnet: joining topic %s: %w", cfg.Topic, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		topic.Close()
		h.Close()
		return nil, fmt.Errorf("gossipnet: subscribing to topic %s: %w", cfg.Topic, err)
	}

	s := &Service{
		lappName: lappName,
		cfg:      cfg,
		sink:     sink,
		host:     h,
		ps:       ps,
		topic:    topic,
		sub:      sub,
		peers:    newPeerTable(),
		ctx:      ctx,
		cancel:   cancel,
	}

	mdnsSvc := mdns.NewMdnsService(h, cfg.Topic, &discoveryNotifee{svc: s})
	if err := mdnsSvc.Start(); err != nil {
		cancel()
		sub.Cancel()
		topic.Close()
		h.Close()
		return nil, fmt.Errorf("gossipnet: starting mdns: %w", err)
	}
	s.mdns = mdnsSvc

	s.wg.Add(2)
	go s.readLoop()
	go s.expiryLoop()

	logging.WithLapp(lappName, logging.LevelInfo, "gossip service started on %s, topic %q", cfg.ListenAddr, cfg.Topic)
	return s, nil
}

// hashMessageID derives a gossipsub message ID from a SHA-256 hash of the
// body, per spec.md §4.8's "message-id = hash(body)".
func hashMessageID(m *pubsub_pb.Message) string {
	sum := sha256.Sum256(m.GetData())
	return string(sum[:])
}

// readLoop is the "Gossipsub Message on subscribed topic" arm of the event
// loop: decode UTF-8 lossily and deliver MessageIn::Text to the actor.
func (s *Service) readLoop() {
	defer s.wg.Done()
	for {
		msg, err := s.sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logging.WithLapp(s.lappName, logging.LevelWarn, "gossipsub read failed: %v", err)
			continue
		}
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}
		s.sink.GossipSub(wire.EncodeGossipInText(msg.ReceivedFrom.String(), string(msg.Data)))
	}
}

// expiryLoop is the silence-based stand-in for mDNS's Expired event: a peer
// not re-announced within mdnsExpiryFactor heartbeats is dropped, mirroring
// REPRAM gossip.Protocol's ping-failure eviction in spirit.
func (s *Service) expiryLoop() {
	defer s.wg.Done()
	interval := pubsub.GossipSubHeartbeatInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			cutoff := now.Add(-mdnsExpiryFactor * interval)
			for _, id := range s.peers.stale(cutoff) {
				s.peers.remove(id)
				logging.WithLapp(s.lappName, logging.LevelInfo, "gossip peer %s expired", id)
			}
		}
	}
}

// discoveryNotifee wires mDNS Discovered events to the swarm + peer table.
type discoveryNotifee struct {
	svc *Service
}

// HandlePeerFound is mdns.Notifee's sole callback: add the explicit peer to
// gossipsub's connection set and append its addresses to the peer table,
// deduplicated (spec.md §4.8).
func (n *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n.svc.peers.add(pi.ID, pi.Addrs, time.Now())
	ctx, cancel := context.WithTimeout(n.svc.ctx, 10*time.Second)
	defer cancel()
	if err := n.svc.host.Connect(ctx, pi); err != nil {
		logging.WithLapp(n.svc.lappName, logging.LevelWarn, "connecting to discovered peer %s: %v", pi.ID, err)
	}
}

// Publish implements lapp.GossipSink's Text op: publish to the topic.
func (s *Service) Publish(data []byte) (wire.GossipErrorKind, string) {
	if err := s.topic.Publish(s.ctx, data); err != nil {
		return publishError(err)
	}
	return wire.GossipErrNone, ""
}

// Dial implements lapp.GossipSink's Dial op: look peerID up in the table
// and, for each configured dial port, rewrite the first known address's
// TCP port and connect.
func (s *Service) Dial(peerIDStr string) (wire.GossipErrorKind, string) {
	id, err := peer.Decode(peerIDStr)
	if err != nil {
		return parsePeerIDError(err)
	}
	addr, ok := s.peers.firstAddr(id)
	if !ok {
		return dialError(fmt.Errorf("no known address for peer %s", id))
	}

	ports := s.cfg.DialPorts
	if len(ports) == 0 {
		return s.dialAddr(id, addr)
	}
	var lastErr error
	for _, port := range ports {
		rewritten, err := rewriteTCPPort(addr, port)
		if err != nil {
			lastErr = err
			continue
		}
		if _, _, err := s.dialAddrErr(id, rewritten); err != nil {
			lastErr = err
			continue
		}
		return wire.GossipErrNone, ""
	}
	return dialError(lastErr)
}

func (s *Service) dialAddr(id peer.ID, addr multiaddr.Multiaddr) (wire.GossipErrorKind, string) {
	kind, msg, err := s.dialAddrErr(id, addr)
	if err != nil {
		return kind, msg
	}
	return wire.GossipErrNone, ""
}

func (s *Service) dialAddrErr(id peer.ID, addr multiaddr.Multiaddr) (wire.GossipErrorKind, string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	info := peer.AddrInfo{ID: id, Addrs: []multiaddr.Multiaddr{addr}}
	if err := s.host.Connect(ctx, info); err != nil {
		kind, msg := dialError(err)
		return kind, msg, err
	}
	return wire.GossipErrNone, "", nil
}

// AddAddress implements lapp.GossipSink's AddAddress op: parse addrStr and
// dial it directly.
func (s *Service) AddAddress(addrStr string) (wire.GossipErrorKind, string) {
	addr, err := multiaddr.NewMultiaddr(addrStr)
	if err != nil {
		return wrongMultiaddrError(err)
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return wrongMultiaddrError(err)
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := s.host.Connect(ctx, *info); err != nil {
		return dialError(err)
	}
	s.peers.add(info.ID, info.Addrs, time.Now())
	return wire.GossipErrNone, ""
}

// Close implements lapp.GossipSink's Close op: break the event loop. Unlike
// Publish/Dial/AddAddress it never sends a MessageIn::Response — the actor
// dispatch loop returns immediately after calling it (see ServiceActor.
// runGossipOp).
func (s *Service) Close() (wire.GossipErrorKind, string) {
	if err := s.Stop(); err != nil {
		return otherError("close", err)
	}
	return wire.GossipErrNone, ""
}

// Stop tears the service down: cancels the event loop, stops mDNS, and
// closes the topic/subscription/host. Safe to call more than once.
func (s *Service) Stop() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.sub.Cancel()
		if closeErr := s.topic.Close(); closeErr != nil {
			err = closeErr
		}
		if mdnsErr := s.mdns.Close(); mdnsErr != nil && err == nil {
			err = mdnsErr
		}
		s.wg.Wait()
		if hostErr := s.host.Close(); hostErr != nil && err == nil {
			err = hostErr
		}
		logging.WithLapp(s.lappName, logging.LevelInfo, "gossip service stopped")
	})
	return err
}
