// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used by every binary
// format in gossip: ticket payloads, gossip wire frames, and WebRTC
// signaling files.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces the same bytes. This matters for
// tickets: a room's ticket text is stable across runs given the same
// topic and bootstrap list, which keeps copy-pasted tickets comparable.
//
// Structs in this codebase use integer map keys (`cbor:"1,keyasint"`)
// for wire types. Integer keys keep frames and tickets compact, and
// adding a field never renames an existing one.
//
// Consumers import this package rather than fxamacker/cbor directly.
// [Encoder] and [Decoder] are aliases so stream users (the gossip
// connection reader and writer) share the configured modes.
package codec
