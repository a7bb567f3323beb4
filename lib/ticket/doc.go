// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticket encodes and decodes room tickets: the text tokens
// participants paste to each other to join a room.
//
// A [Ticket] names a gossip topic ([TopicID]) and the ordered list of
// bootstrap peers ([PeerAddress]) a joiner should contact first. The
// text form is
//
//	"room" + base32(version || CBOR payload)
//
// using the lowercase RFC 4648 alphabet without padding, so a ticket is
// one printable ASCII word that survives chat clients, terminals, and
// double-click selection. The version byte comes first so a future
// encoding is distinguishable from this one without parsing the
// payload.
//
// [Decode] never panics. Every failure is a [*Error] whose Kind says
// whether the text was garbage ([KindMalformed]) or a newer format
// ([KindUnsupportedVersion]); both match their sentinels with
// errors.Is.
//
// This package depends only on lib/codec.
package ticket
