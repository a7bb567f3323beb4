// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// TopicIDSize is the length of a TopicID in bytes.
const TopicIDSize = 32

// topicNameContext is the BLAKE3 key-derivation context for
// TopicFromName. Changing it moves every named room to a new topic.
const topicNameContext = "gossip 2026-01 room topic from name v1"

// TopicID identifies a room's gossip topic. All participants subscribed
// to the same TopicID receive each other's messages.
type TopicID [TopicIDSize]byte

// NewTopicID returns a TopicID filled from crypto/rand.
func NewTopicID() (TopicID, error) {
	var topic TopicID
	if _, err := rand.Read(topic[:]); err != nil {
		return TopicID{}, fmt.Errorf("generating topic id: %w", err)
	}
	return topic, nil
}

// TopicFromName derives a TopicID from a human-readable room name.
// Everyone who opens the same name lands in the same topic, which is
// convenient for standing rooms and for tests, at the cost of being
// guessable.
func TopicFromName(name string) TopicID {
	var topic TopicID
	blake3.DeriveKey(topicNameContext, []byte(name), topic[:])
	return topic
}

// ParseTopicID parses the lowercase hex form produced by String.
func ParseTopicID(text string) (TopicID, error) {
	var topic TopicID
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return TopicID{}, fmt.Errorf("parsing topic id: %w", err)
	}
	if len(decoded) != TopicIDSize {
		return TopicID{}, fmt.Errorf("parsing topic id: got %d bytes, want %d", len(decoded), TopicIDSize)
	}
	copy(topic[:], decoded)
	return topic, nil
}

// String returns the topic as lowercase hex.
func (topic TopicID) String() string {
	return hex.EncodeToString(topic[:])
}

// Short returns the first eight hex characters, for log lines and the
// chat banner.
func (topic TopicID) Short() string {
	return topic.String()[:8]
}

// IsZero reports whether every byte of the topic is zero.
func (topic TopicID) IsZero() bool {
	return topic == TopicID{}
}
