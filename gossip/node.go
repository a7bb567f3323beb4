// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/gossip/lib/codec"
	"github.com/bureau-foundation/gossip/lib/netutil"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

// Node is a gossip endpoint: one listener, one dialer, any number of
// subscribed topics. Call Serve to accept neighbors and Close to shut
// everything down.
type Node struct {
	config Config
	logger *slog.Logger

	// ctx bounds background work (mesh dials); cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	topics  map[ticket.TopicID]*topic
	pending map[net.Conn]struct{} // inbound streams still in handshake
	closed  bool

	closeOnce sync.Once
	waitGroup sync.WaitGroup
}

// NewNode creates a node. It does not accept neighbors until Serve.
func NewNode(config Config) (*Node, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		config:  config,
		logger:  config.Logger.With("node", config.Advertise),
		ctx:     ctx,
		cancel:  cancel,
		topics:  make(map[ticket.TopicID]*topic),
		pending: make(map[net.Conn]struct{}),
	}, nil
}

// Address returns the address this node advertises to neighbors.
func (n *Node) Address() string {
	return n.config.Advertise
}

// Serve accepts neighbor streams until ctx is cancelled or Close is
// called, both of which return nil. If the listener fails, every
// subscription receives a Failed notification carrying the error, the
// node closes, and Serve returns the error.
func (n *Node) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { n.Close() })
	defer stop()

	for {
		conn, err := n.config.Listener.Accept()
		if err != nil {
			if n.isClosed() {
				return nil
			}
			err = fmt.Errorf("accepting neighbors: %w", err)
			n.logger.Error("listener failed", "error", err)
			n.shutdown(err)
			return err
		}

		track := func() { n.pending[conn] = struct{}{} }
		if !n.spawnWith(track, func() { n.handleInbound(conn) }) {
			conn.Close()
			return nil
		}
	}
}

// Close shuts the node down: the listener and every stream close, and
// every subscription receives Failed with ErrNodeClosed. Close waits
// for the node's goroutines to exit. It is safe to call more than once.
func (n *Node) Close() error {
	n.shutdown(ErrNodeClosed)
	return nil
}

func (n *Node) shutdown(cause error) {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		topics := make([]*topic, 0, len(n.topics))
		for _, t := range n.topics {
			topics = append(topics, t)
		}
		clear(n.topics)
		pending := make([]net.Conn, 0, len(n.pending))
		for conn := range n.pending {
			pending = append(pending, conn)
		}
		clear(n.pending)
		n.mu.Unlock()

		n.cancel()
		n.config.Listener.Close()
		for _, conn := range pending {
			conn.Close()
		}
		for _, t := range topics {
			t.shutdown(&Notification{Kind: Failed, Err: cause})
		}
		n.waitGroup.Wait()
	})
}

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// spawn runs fn on a tracked goroutine unless the node is closed.
func (n *Node) spawn(fn func()) bool {
	return n.spawnWith(nil, fn)
}

// spawnWith is spawn with a hook run under the node lock before the
// goroutine starts.
func (n *Node) spawnWith(locked func(), fn func()) bool {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return false
	}
	if locked != nil {
		locked()
	}
	n.waitGroup.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.waitGroup.Done()
		fn()
	}()
	return true
}

// Subscribe joins topic. With no bootstrap peers (after dropping
// blanks and this node's own address) it returns at once. Otherwise it
// dials the bootstrap peers in order, round after round every
// RetryInterval, until one handshake succeeds; when ctx ends first the
// error wraps ErrNoPeersReachable and the last dial error. The other
// bootstrap peers are then dialed in the background.
func (n *Node) Subscribe(ctx context.Context, id ticket.TopicID, bootstrap []string) (*Subscription, error) {
	t, err := n.addTopic(id)
	if err != nil {
		return nil, err
	}
	subscription := &Subscription{node: n, topic: t}

	candidates := n.bootstrapCandidates(bootstrap)
	if len(candidates) == 0 {
		return subscription, nil
	}
	for _, address := range candidates {
		t.known.Add(address)
	}

	// Close cancels bootstrap dials in progress.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(n.ctx, cancel)
	defer stop()

	timer := time.NewTimer(0)
	defer timer.Stop()
	var lastErr error
	for {
		select {
		case <-timer.C:
		case <-ctx.Done():
			subscription.Close()
			if n.ctx.Err() != nil {
				return nil, ErrNodeClosed
			}
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrNoPeersReachable, lastErr)
		}

		for index, address := range candidates {
			err := n.connect(ctx, t, address)
			if err == nil {
				for _, other := range candidates[index+1:] {
					t.maybeDial(other)
				}
				return subscription, nil
			}
			if len(t.neighborAddresses()) > 0 {
				// The peer kept its own stream to us instead, or
				// another peer dialed in meanwhile.
				return subscription, nil
			}
			if ctx.Err() != nil {
				break
			}
			lastErr = err
			t.logger.Debug("bootstrap attempt failed", "peer", address, "error", err)
		}
		timer.Reset(n.config.RetryInterval)
	}
}

// bootstrapCandidates drops blanks, duplicates and our own address,
// keeping order.
func (n *Node) bootstrapCandidates(bootstrap []string) []string {
	var candidates []string
	seen := make(map[string]bool, len(bootstrap))
	for _, address := range bootstrap {
		if address == "" || address == n.config.Advertise || seen[address] {
			continue
		}
		seen[address] = true
		candidates = append(candidates, address)
	}
	return candidates
}

func (n *Node) addTopic(id ticket.TopicID) (*topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}
	if _, exists := n.topics[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, id.Short())
	}
	t, err := newTopic(n, id)
	if err != nil {
		return nil, err
	}
	n.topics[id] = t
	return t, nil
}

func (n *Node) removeTopic(t *topic) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if current, ok := n.topics[t.id]; ok && current == t {
		delete(n.topics, t.id)
	}
}

func (n *Node) lookupTopic(id ticket.TopicID) *topic {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.topics[id]
}

// handshakeDone removes conn from the pending set, reporting false if
// the node closed meanwhile (and closed conn with it).
func (n *Node) handshakeDone(conn net.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, conn)
	return !n.closed
}

// handleInbound runs the acceptor side of the handshake.
func (n *Node) handleInbound(conn net.Conn) {
	conn.SetDeadline(time.Now().Add(n.config.HandshakeTimeout))
	encoder := codec.NewEncoder(conn)
	decoder := codec.NewDecoder(conn)

	reject := func(reason string, args ...any) {
		n.handshakeDone(conn)
		conn.Close()
		n.logger.Debug("inbound stream rejected", append([]any{"reason", reason, "remote", conn.RemoteAddr().String()}, args...)...)
	}

	var hello frame
	if err := decoder.Decode(&hello); err != nil {
		reject("no hello", "error", err)
		return
	}
	if hello.Kind != frameHello || len(hello.Topic) != ticket.TopicIDSize || hello.Origin == "" {
		reject("malformed hello", "kind", hello.Kind)
		return
	}
	if hello.Origin == n.config.Advertise {
		reject("hello from own address")
		return
	}

	var id ticket.TopicID
	copy(id[:], hello.Topic)
	t := n.lookupTopic(id)
	if t == nil {
		reject("not subscribed", "topic", id.Short())
		return
	}

	candidate := newNeighbor(hello.Origin, hello.Origin, conn, encoder, decoder)
	if !t.wouldAccept(candidate) {
		reject("duplicate stream", "peer", hello.Origin)
		return
	}

	welcome := frame{Kind: frameWelcome, Origin: n.config.Advertise, Peers: t.knownAddresses()}
	if err := encoder.Encode(welcome); err != nil {
		reject("writing welcome", "error", err)
		return
	}
	conn.SetDeadline(time.Time{})
	if !n.handshakeDone(conn) {
		conn.Close()
		return
	}

	if t.attach(candidate) {
		for _, address := range hello.Peers {
			t.learn(address)
		}
	}
}

// connect dials address and runs the dialer side of the handshake for
// t. A peer that already holds a preferred stream to us closes this one
// unanswered, which surfaces as errTopicRejected.
func (n *Node) connect(ctx context.Context, t *topic, address string) error {
	ctx, cancel := context.WithTimeout(ctx, n.config.HandshakeTimeout)
	defer cancel()

	conn, err := n.config.Dialer.DialContext(ctx, address)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", address, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	conn.SetDeadline(time.Now().Add(n.config.HandshakeTimeout))
	encoder := codec.NewEncoder(conn)
	decoder := codec.NewDecoder(conn)

	hello := frame{Kind: frameHello, Topic: t.id[:], Origin: n.config.Advertise, Peers: t.knownAddresses()}
	if err := encoder.Encode(hello); err != nil {
		conn.Close()
		return fmt.Errorf("handshake with %s: %w", address, err)
	}

	var welcome frame
	if err := decoder.Decode(&welcome); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return fmt.Errorf("handshake with %s: %w", address, ctx.Err())
		}
		if errors.Is(err, io.EOF) || netutil.IsExpectedCloseError(err) {
			return fmt.Errorf("handshake with %s: %w", address, errTopicRejected)
		}
		return fmt.Errorf("handshake with %s: %w", address, err)
	}
	if !stop() {
		conn.Close()
		return fmt.Errorf("handshake with %s: %w", address, ctx.Err())
	}
	if welcome.Kind != frameWelcome || welcome.Origin == "" {
		conn.Close()
		return fmt.Errorf("handshake with %s: unexpected %s frame", address, welcome.Kind)
	}
	if welcome.Origin == n.config.Advertise {
		conn.Close()
		return fmt.Errorf("handshake with %s: address is our own", address)
	}
	conn.SetDeadline(time.Time{})

	candidate := newNeighbor(welcome.Origin, n.config.Advertise, conn, encoder, decoder)
	if !t.attach(candidate) && t.isClosed() {
		return ErrSubscriptionClosed
	}
	for _, peer := range welcome.Peers {
		t.learn(peer)
	}
	return nil
}
