package httpapi

import (
	"context"

	"laplace/internal/gossipnet"
	"laplace/internal/lapp"
)

// NewGossipFactory returns a lapp.GossipFactory backed by a real
// internal/gossipnet.Service. internal/lapp never imports internal/gossipnet
// directly (so its tests don't need a libp2p swarm); this adapter is the
// one place that wires the two together, at process start-up.
func NewGossipFactory() lapp.GossipFactory {
	return func(ctx context.Context, lappName string, cfg lapp.GossipConfig, sink lapp.InboundGossipSink) (lapp.ServiceGossipSink, error) {
		svc, err := gossipnet.NewService(ctx, lappName, gossipnet.Config{
			ListenAddr: cfg.ListenAddr,
			Topic:      cfg.Topic,
			DialPorts:  cfg.DialPorts,
		}, sink)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}
