// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/gossip/lib/ticket"
)

// Subscription is a node's membership in one topic. Publish and
// Neighbors are safe for concurrent use.
type Subscription struct {
	node      *Node
	topic     *topic
	closeOnce sync.Once
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() ticket.TopicID {
	return s.topic.id
}

// Notifications returns the subscription's event stream. It closes
// after a Failed notification, or after Close.
func (s *Subscription) Notifications() <-chan Notification {
	return s.topic.notifier.output
}

// Neighbors returns the addresses of current neighbors, sorted.
func (s *Subscription) Neighbors() []string {
	return s.topic.neighborAddresses()
}

// Publish floods payload to the topic. It returns once the message is
// queued for every current neighbor; with no neighbors the message
// reaches nobody, which is not an error. The local node does not
// receive its own messages.
func (s *Subscription) Publish(ctx context.Context, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	config := s.node.config
	body, tag, err := encodePayload(payload, config.Compression, config.CompressionThreshold)
	if err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if tag == CompressionNone {
		body = bytes.Clone(body)
	}

	id := uuid.New()
	message := frame{
		Kind:        frameMessage,
		ID:          id[:],
		Origin:      config.Advertise,
		Compression: tag,
		Size:        len(payload),
		Payload:     body,
	}

	t := s.topic
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrSubscriptionClosed
	}
	t.seen.Add(string(message.ID), struct{}{})
	targets := t.neighborsExceptLocked(nil)
	t.mu.Unlock()

	for _, target := range targets {
		target.send(message)
	}
	return nil
}

// Close leaves the topic: streams close, undelivered notifications are
// dropped, and the notification channel closes. It is safe to call
// more than once, including after the node has closed.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.node.removeTopic(s.topic)
		s.topic.shutdown(nil)
	})
	return nil
}
