// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import "errors"

var (
	// ErrNoPeersReachable is returned by Subscribe when no bootstrap
	// peer completed a handshake before the context ended. It is
	// joined with the last dial or handshake error.
	ErrNoPeersReachable = errors.New("no bootstrap peer reachable")

	// ErrNodeClosed is returned by operations on a closed node, and is
	// the error carried by the Failed notification sent when a node
	// shuts down.
	ErrNodeClosed = errors.New("gossip node closed")

	// ErrAlreadySubscribed is returned by Subscribe for a topic the
	// node already carries.
	ErrAlreadySubscribed = errors.New("topic already subscribed")

	// ErrSubscriptionClosed is returned by Publish after Close.
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrPayloadTooLarge is returned by Publish for payloads over
	// MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// errTopicRejected means the acceptor closed the stream instead of
	// answering hello: it has no subscription for the topic, or already
	// has a preferred stream to us.
	errTopicRejected = errors.New("peer rejected topic handshake")

	// errIncompressible is returned by compress when the output would
	// not be smaller than the input.
	errIncompressible = errors.New("data is incompressible")
)
