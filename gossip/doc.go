// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gossip implements a flood-gossip topic mesh over
// [transport] byte streams.
//
// A [Node] owns one Listener and one Dialer and carries any number of
// topics. [Node.Subscribe] joins a topic: with no bootstrap peers the
// node simply waits for neighbors to arrive (the room creator); with
// bootstrap peers it dials them until at least one handshake succeeds
// or the context ends, returning [ErrNoPeersReachable].
//
// Every stream carries deterministic CBOR frames (lib/codec). The
// dialer sends hello{topic, origin, peers}; the acceptor replies
// welcome{origin, peers}, or closes the stream if it has no
// subscription for the topic. After the handshake, neighbors exchange
// message frames, each with a random UUID, and peers frames announcing
// newly connected neighbors. A message is forwarded to every neighbor
// except the one it came from, and message IDs are remembered in an
// LRU so each message is delivered and forwarded once per node.
// Addresses learned from handshakes and peers frames are dialed in the
// background, so a room converges toward a full mesh and survives the
// loss of its creator.
//
// Two nodes that dial each other at the same moment keep the stream
// dialed by the lexicographically smaller address and drop the other.
//
// Payloads above a size threshold are compressed with LZ4 or zstd;
// frames carry the algorithm tag and the uncompressed size, and
// incompressible payloads travel raw.
//
// Each [Subscription] delivers [Notification] values in order through
// an unbounded queue, so a slow consumer never stalls the mesh. A
// Failed notification, sent when the node closes or its listener
// fails, is always the last one before the channel closes.
package gossip
