// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/bureau-foundation/gossip/lib/netutil"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

// messageIDSize is the length of a UUID message ID.
const messageIDSize = 16

// topic is one subscribed topic's mesh state.
type topic struct {
	id       ticket.TopicID
	node     *Node
	self     string
	logger   *slog.Logger
	notifier *notifier

	// seen holds recent message IDs; known holds every address heard
	// of; dialing holds addresses with a background dial in flight.
	// All three are safe for concurrent use on their own.
	seen    *lru.Cache
	known   mapset.Set[string]
	dialing mapset.Set[string]

	mu        sync.Mutex
	neighbors map[string]*neighbor // keyed by advertised address
	closed    bool
}

func newTopic(node *Node, id ticket.TopicID) (*topic, error) {
	seen, err := lru.New(node.config.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating seen cache: %w", err)
	}
	return &topic{
		id:        id,
		node:      node,
		self:      node.config.Advertise,
		logger:    node.logger.With("topic", id.Short()),
		notifier:  newNotifier(),
		seen:      seen,
		known:     mapset.NewSet[string](),
		dialing:   mapset.NewSet[string](),
		neighbors: make(map[string]*neighbor),
	}, nil
}

// replaces reports whether candidate should take the place of existing,
// a stream to the same peer. Of two streams dialed by different sides,
// the one dialed by the lexicographically smaller address wins; a new
// stream dialed by the same side as the old one is a reconnect and wins.
func replaces(self string, candidate, existing *neighbor) bool {
	if candidate.dialer == existing.dialer {
		return true
	}
	return candidate.dialer == min(self, candidate.address)
}

// wouldAccept reports whether attach would currently keep candidate.
func (t *topic) wouldAccept(candidate *neighbor) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	existing, ok := t.neighbors[candidate.address]
	return !ok || replaces(t.self, candidate, existing)
}

// attach registers a handshaken stream and starts its goroutines. It
// reports false, closing the stream, when the topic is closed or a
// preferred stream to the same peer exists.
func (t *topic) attach(candidate *neighbor) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		candidate.close()
		return false
	}
	existing, hadExisting := t.neighbors[candidate.address]
	if hadExisting && !replaces(t.self, candidate, existing) {
		t.mu.Unlock()
		candidate.close()
		return false
	}
	t.neighbors[candidate.address] = candidate
	others := t.neighborsExceptLocked(candidate)
	t.mu.Unlock()

	if !t.node.spawn(candidate.writeLoop) || !t.node.spawn(func() { t.run(candidate) }) {
		candidate.close()
		t.detach(candidate, ErrNodeClosed)
		return false
	}

	t.known.Add(candidate.address)
	if hadExisting {
		// Same peer, new stream: no membership change to report.
		existing.close()
		t.logger.Debug("replaced duplicate stream", "peer", candidate.address, "dialer", candidate.dialer)
		return true
	}

	t.logger.Info("neighbor up", "peer", candidate.address)
	t.notifier.push(Notification{Kind: NeighborUp, Peer: candidate.address})
	announce := frame{Kind: framePeers, Peers: []string{candidate.address}}
	for _, other := range others {
		other.send(announce)
	}
	return true
}

// run is the reader goroutine of one neighbor.
func (t *topic) run(n *neighbor) {
	err := n.readLoop(t.handle)
	t.detach(n, err)
}

// detach removes n if it is still the current stream for its peer and
// reports the peer gone.
func (t *topic) detach(n *neighbor, cause error) {
	n.close()

	t.mu.Lock()
	current, ok := t.neighbors[n.address]
	removed := ok && current == n
	if removed {
		delete(t.neighbors, n.address)
	}
	closed := t.closed
	t.mu.Unlock()

	if !removed || closed {
		return
	}
	if cause == nil || netutil.IsExpectedCloseError(cause) {
		t.logger.Info("neighbor down", "peer", n.address)
	} else {
		t.logger.Warn("neighbor down", "peer", n.address, "error", cause)
	}
	t.notifier.push(Notification{Kind: NeighborDown, Peer: n.address})
}

// handle processes one post-handshake frame from n.
func (t *topic) handle(n *neighbor, received frame) {
	switch received.Kind {
	case frameMessage:
		t.receive(n, received)
	case framePeers:
		for _, address := range received.Peers {
			t.learn(address)
		}
	default:
		t.logger.Warn("protocol violation, dropping neighbor", "peer", n.address, "frame", received.Kind)
		n.close()
	}
}

// receive delivers a message once and floods it to every other neighbor.
// Dedupe and delivery share the topic lock, so messages from one origin
// are delivered in the order any single path carries them.
func (t *topic) receive(from *neighbor, message frame) {
	if len(message.ID) != messageIDSize {
		t.logger.Debug("dropping message with bad id", "peer", from.address, "length", len(message.ID))
		return
	}
	key := string(message.ID)
	if t.seen.Contains(key) {
		return
	}

	payload, err := decompress(message.Payload, message.Compression, message.Size)
	if err != nil {
		t.logger.Warn("dropping undecodable message", "peer", from.address, "origin", message.Origin, "error", err)
		return
	}

	t.mu.Lock()
	if duplicate, _ := t.seen.ContainsOrAdd(key, struct{}{}); duplicate || t.closed {
		t.mu.Unlock()
		return
	}
	others := t.neighborsExceptLocked(from)
	t.notifier.push(Notification{Kind: Message, Peer: message.Origin, Via: from.address, Payload: payload})
	t.mu.Unlock()

	for _, other := range others {
		other.send(message)
	}
}

// learn records an address heard from a neighbor and dials it if it is
// not already connected.
func (t *topic) learn(address string) {
	if address == "" || address == t.self {
		return
	}
	if t.known.Add(address) {
		t.notifier.push(Notification{Kind: PeerDiscovered, Peer: address})
	}
	t.maybeDial(address)
}

// maybeDial connects to address in the background unless a stream to
// it exists or a dial is already in flight.
func (t *topic) maybeDial(address string) {
	t.mu.Lock()
	_, connected := t.neighbors[address]
	closed := t.closed
	t.mu.Unlock()
	if connected || closed || !t.dialing.Add(address) {
		return
	}

	started := t.node.spawn(func() {
		defer t.dialing.Remove(address)
		if err := t.node.connect(t.node.ctx, t, address); err != nil {
			t.logger.Debug("mesh dial failed", "peer", address, "error", err)
		}
	})
	if !started {
		t.dialing.Remove(address)
	}
}

func (t *topic) neighborsExceptLocked(skip *neighbor) []*neighbor {
	others := make([]*neighbor, 0, len(t.neighbors))
	for _, n := range t.neighbors {
		if n != skip {
			others = append(others, n)
		}
	}
	return others
}

// knownAddresses returns every known address, sorted, for handshakes.
func (t *topic) knownAddresses() []string {
	addresses := t.known.ToSlice()
	slices.Sort(addresses)
	return addresses
}

func (t *topic) neighborAddresses() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	addresses := make([]string, 0, len(t.neighbors))
	for address := range t.neighbors {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)
	return addresses
}

func (t *topic) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// shutdown closes every stream. With final set, queued notifications
// are still delivered and final is the last; without, delivery stops.
func (t *topic) shutdown(final *Notification) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if final == nil {
			t.notifier.abandon()
		}
		return
	}
	t.closed = true
	streams := make([]*neighbor, 0, len(t.neighbors))
	for _, n := range t.neighbors {
		streams = append(streams, n)
	}
	clear(t.neighbors)
	t.mu.Unlock()

	for _, n := range streams {
		n.close()
	}
	if final != nil {
		t.notifier.finish(final)
	} else {
		t.notifier.abandon()
	}
}
