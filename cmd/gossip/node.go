// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/gossip/gossip"
	"github.com/bureau-foundation/gossip/lib/config"
	"github.com/bureau-foundation/gossip/lib/netutil"
	"github.com/bureau-foundation/gossip/transport"
)

// dialTimeout bounds a single TCP connection attempt.
const dialTimeout = 5 * time.Second

// startNode builds the configured transport and a gossip node on it.
// The caller serves and closes the node, which closes the transport.
func startNode(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gossip.Node, error) {
	var (
		listener transport.Listener
		dialer   transport.Dialer
	)
	switch cfg.Node.Transport {
	case config.TransportTCP:
		tcpListener, err := transport.NewTCPListener(cfg.Node.ListenAddress)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", cfg.Node.ListenAddress, err)
		}
		advertise := cfg.Node.AdvertiseAddress
		if advertise == "" {
			advertise, err = netutil.AdvertiseAddress(tcpListener.Address())
			if err != nil {
				tcpListener.Close()
				return nil, fmt.Errorf("choosing advertise address: %w", err)
			}
		}
		tcpListener.SetAdvertiseAddress(advertise)
		listener, dialer = tcpListener, &transport.TCPDialer{Timeout: dialTimeout}

	case config.TransportWebRTC:
		signaler, err := transport.NewDirectorySignaler(cfg.Node.SignalingDir)
		if err != nil {
			return nil, fmt.Errorf("opening signaling directory: %w", err)
		}
		iceConfig := transport.ICEConfigFromURLs(cfg.Node.ICEServers, "", "")
		webrtcTransport, err := transport.NewWebRTCTransport(signaler, cfg.Node.Name, iceConfig, logger.With("component", "webrtc"))
		if err != nil {
			return nil, err
		}
		webrtcTransport.Start(ctx)
		listener, dialer = webrtcTransport, webrtcTransport

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Node.Transport)
	}

	compression, err := gossip.ParseCompression(cfg.Gossip.Compression)
	if err != nil {
		listener.Close()
		return nil, err
	}
	node, err := gossip.NewNode(gossip.Config{
		Listener:             listener,
		Dialer:               dialer,
		Compression:          compression,
		CompressionThreshold: cfg.Gossip.CompressionThreshold,
		SeenCacheSize:        cfg.Gossip.SeenCacheSize,
		RetryInterval:        cfg.Gossip.RetryInterval,
		Logger:               logger.With("component", "gossip"),
	})
	if err != nil {
		listener.Close()
		return nil, err
	}
	return node, nil
}
