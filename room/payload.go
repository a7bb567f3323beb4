// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"fmt"

	"github.com/bureau-foundation/gossip/lib/codec"
)

// chatMessage is the payload of every published chat message. Integer
// keys keep it compact; unknown keys are ignored so later versions can
// add fields.
type chatMessage struct {
	Text string `cbor:"1,keyasint"`
}

func encodeChat(text string) ([]byte, error) {
	data, err := codec.Marshal(chatMessage{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encoding chat message: %w", err)
	}
	return data, nil
}

func decodeChat(data []byte) (string, error) {
	var message chatMessage
	if err := codec.Unmarshal(data, &message); err != nil {
		return "", fmt.Errorf("decoding chat message: %w", err)
	}
	return message.Text, nil
}
