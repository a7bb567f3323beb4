// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"

	"github.com/bureau-foundation/gossip/gossip"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

// Transport is the broadcast layer a Session runs on.
type Transport interface {
	// Subscribe joins topic. With bootstrap peers it must not return
	// until at least one answered or ctx ended.
	Subscribe(ctx context.Context, topic ticket.TopicID, bootstrap []ticket.PeerAddress) (Subscription, error)

	// Address is this participant's address as others should dial it.
	Address() ticket.PeerAddress
}

// Subscription is one joined topic. Notifications must report an
// unrecoverable failure with a gossip.Failed notification, distinctly
// from peer churn.
type Subscription interface {
	Publish(ctx context.Context, payload []byte) error
	Notifications() <-chan gossip.Notification
	Close() error
}

var _ Subscription = (*gossip.Subscription)(nil)

// GossipTransport runs sessions on a gossip node. The caller owns the
// node and serves it.
type GossipTransport struct {
	node *gossip.Node
}

var _ Transport = (*GossipTransport)(nil)

// NewGossipTransport adapts node.
func NewGossipTransport(node *gossip.Node) *GossipTransport {
	return &GossipTransport{node: node}
}

func (g *GossipTransport) Subscribe(ctx context.Context, topic ticket.TopicID, bootstrap []ticket.PeerAddress) (Subscription, error) {
	addresses := make([]string, len(bootstrap))
	for i, peer := range bootstrap {
		addresses[i] = string(peer)
	}
	subscription, err := g.node.Subscribe(ctx, topic, addresses)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (g *GossipTransport) Address() ticket.PeerAddress {
	return ticket.PeerAddress(g.node.Address())
}
