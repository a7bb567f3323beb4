// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/gossip/transport"
)

// Defaults applied by NewNode to zero Config fields.
const (
	DefaultCompressionThreshold = 512
	DefaultSeenCacheSize        = 4096
	DefaultRetryInterval        = 500 * time.Millisecond
	DefaultHandshakeTimeout     = 10 * time.Second
)

// MaxPayloadSize bounds a published payload.
const MaxPayloadSize = 1 << 20

// Config configures a Node.
type Config struct {
	// Listener accepts neighbor streams. Required.
	Listener transport.Listener

	// Dialer opens neighbor streams. Required.
	Dialer transport.Dialer

	// Advertise is the address this node announces in handshakes and
	// tickets. Defaults to Listener.Address().
	Advertise string

	// Compression is applied to payloads of at least
	// CompressionThreshold bytes.
	Compression Compression

	// CompressionThreshold is the smallest payload that is compressed.
	// Zero means DefaultCompressionThreshold.
	CompressionThreshold int

	// SeenCacheSize is how many message IDs are remembered per topic
	// for duplicate suppression. Zero means DefaultSeenCacheSize.
	SeenCacheSize int

	// RetryInterval is the pause between rounds of bootstrap dials.
	// Zero means DefaultRetryInterval.
	RetryInterval time.Duration

	// HandshakeTimeout bounds the hello/welcome exchange on each new
	// stream. Zero means DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Logger receives mesh diagnostics. Nil discards them.
	Logger *slog.Logger
}

// withDefaults returns a copy of c with zero fields defaulted, or an
// error if a required field is missing.
func (c Config) withDefaults() (Config, error) {
	var errs []error
	if c.Listener == nil {
		errs = append(errs, errors.New("gossip: Config.Listener is required"))
	}
	if c.Dialer == nil {
		errs = append(errs, errors.New("gossip: Config.Dialer is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if c.Advertise == "" {
		c.Advertise = c.Listener.Address()
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = DefaultCompressionThreshold
	}
	if c.SeenCacheSize <= 0 {
		c.SeenCacheSize = DefaultSeenCacheSize
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}
