// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the byte streams the gossip mesh runs on.
//
// The package defines two interfaces: [Listener] accepts inbound
// streams from neighbors (Accept, Address, Close), and [Dialer] opens
// outbound streams to a neighbor's advertised address (DialContext).
// The gossip layer only ever sees net.Conn values, so the mesh protocol
// is identical over every transport.
//
// [TCPListener] and [TCPDialer] are the direct-reachability transport:
// the address in a room ticket is a "host:port" someone can dial.
//
// [WebRTCTransport] uses pion/webrtc data channels with ICE for NAT
// traversal. Each pair of peers shares a single PeerConnection; each
// dialed stream is its own ordered, reliable data channel, detached
// from pion's message API and wrapped as a [DataChannelConn]. The
// transport implements both Listener and Dialer on one instance, and
// its address is the node's name rather than a network address.
//
// Signaling is abstracted behind the [Signaler] interface, which
// publishes and polls SDP offers and answers in vanilla ICE mode (all
// candidates gathered before signaling, so one round-trip per peer).
// [DirectorySignaler] exchanges them as CBOR files in a shared
// directory, which is enough for processes on one host or on machines
// sharing a filesystem. [MemorySignaler] is the in-process
// implementation for tests.
//
// When both peers attempt to connect simultaneously, a deterministic
// tie-breaking rule resolves the conflict: the peer whose name is
// lexicographically smaller becomes the offerer, and the other peer
// drops its redundant PeerConnection.
//
// [MemoryNetwork] is an in-process Listener/Dialer pair over net.Pipe,
// used by gossip and room tests to run many nodes in one process
// without sockets.
package transport
