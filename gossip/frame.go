// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import "fmt"

// frameKind tags a frame on the wire.
type frameKind uint8

const (
	frameHello   frameKind = 1
	frameWelcome frameKind = 2
	frameMessage frameKind = 3
	framePeers   frameKind = 4
)

func (kind frameKind) String() string {
	switch kind {
	case frameHello:
		return "hello"
	case frameWelcome:
		return "welcome"
	case frameMessage:
		return "message"
	case framePeers:
		return "peers"
	default:
		return fmt.Sprintf("frameKind(%d)", uint8(kind))
	}
}

// frame is the single envelope for every message on a neighbor stream.
// Which fields are set depends on Kind:
//
//	hello:   Topic, Origin, Peers
//	welcome: Origin, Peers
//	message: ID, Origin, Compression, Size, Payload
//	peers:   Peers
type frame struct {
	Kind        frameKind   `cbor:"1,keyasint"`
	Topic       []byte      `cbor:"2,keyasint,omitempty"`
	Origin      string      `cbor:"3,keyasint,omitempty"`
	Peers       []string    `cbor:"4,keyasint,omitempty"`
	ID          []byte      `cbor:"5,keyasint,omitempty"`
	Compression Compression `cbor:"6,keyasint,omitempty"`
	Size        int         `cbor:"7,keyasint,omitempty"`
	Payload     []byte      `cbor:"8,keyasint,omitempty"`
}
