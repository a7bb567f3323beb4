// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/gossip/lib/ticket"
	"github.com/bureau-foundation/gossip/transport"
)

const waitTimeout = 5 * time.Second

// startNode creates a node listening at address on network and serves
// it until the test ends.
func startNode(t *testing.T, network *transport.MemoryNetwork, address string, adjust ...func(*Config)) *Node {
	t.Helper()
	listener, err := network.Listen(address)
	if err != nil {
		t.Fatalf("Listen(%q): %v", address, err)
	}
	config := Config{
		Listener:         listener,
		Dialer:           network,
		RetryInterval:    20 * time.Millisecond,
		HandshakeTimeout: 2 * time.Second,
	}
	for _, fn := range adjust {
		fn(&config)
	}
	node, err := NewNode(config)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- node.Serve(context.Background()) }()
	t.Cleanup(func() {
		node.Close()
		if err := <-served; err != nil {
			t.Errorf("Serve(%s): %v", address, err)
		}
	})
	return node
}

// subscribe joins topic and closes the subscription when the test ends.
func subscribe(t *testing.T, node *Node, topic ticket.TopicID, bootstrap ...string) *Subscription {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	subscription, err := node.Subscribe(ctx, topic, bootstrap)
	if err != nil {
		t.Fatalf("%s Subscribe(%v): %v", node.Address(), bootstrap, err)
	}
	t.Cleanup(func() { subscription.Close() })
	return subscription
}

// waitFor reads notifications until one of kind arrives, skipping others.
func waitFor(t *testing.T, subscription *Subscription, kind NotificationKind) Notification {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case notification, ok := <-subscription.Notifications():
			if !ok {
				t.Fatalf("notifications closed while waiting for %s", kind)
			}
			if notification.Kind == kind {
				return notification
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// waitForPeer waits for a notification of kind about peer.
func waitForPeer(t *testing.T, subscription *Subscription, kind NotificationKind, peer string) {
	t.Helper()
	for {
		if waitFor(t, subscription, kind).Peer == peer {
			return
		}
	}
}

// eventually polls condition until it holds or the wait times out.
func eventually(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func publish(t *testing.T, subscription *Subscription, payload string) {
	t.Helper()
	if err := subscription.Publish(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("Publish(%q): %v", payload, err)
	}
}
