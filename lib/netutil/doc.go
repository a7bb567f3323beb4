// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides connection helpers shared by the transport
// and gossip layers.
//
// IsExpectedCloseError classifies errors that occur during normal
// connection teardown, so read loops can exit quietly when a neighbor
// hangs up instead of logging a failure.
//
// AdvertiseAddress turns a listen address such as ":7891" into an
// address another machine can dial, for embedding in room tickets.
package netutil
