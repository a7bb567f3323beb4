// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface checks.
var (
	_ Listener = (*WebRTCTransport)(nil)
	_ Dialer   = (*WebRTCTransport)(nil)
)

// signalingPollInterval is how often the transport polls for inbound
// signaling offers.
const signalingPollInterval = 500 * time.Millisecond

// iceGatherTimeout is the maximum time to wait for ICE candidate gathering
// to complete before publishing the SDP.
const iceGatherTimeout = 15 * time.Second

// answerPollInterval is how often the dialer polls for an SDP answer after
// publishing an offer.
const answerPollInterval = 200 * time.Millisecond

// answerTimeout is the maximum time to wait for an SDP answer before giving up.
const answerTimeout = 30 * time.Second

// dataChannelOpenTimeout bounds how long a new data channel may take to open.
const dataChannelOpenTimeout = 10 * time.Second

// initChannelLabel names the data channel created only so the offer
// carries an SCTP section. Neither side uses it.
const initChannelLabel = "init"

// WebRTCTransport carries gossip streams over WebRTC data channels. It
// implements both Listener and Dialer because both directions share the
// same pool of PeerConnections.
//
// Each peer gets one PeerConnection with potentially many data channels.
// Each DialContext call opens a new data channel on the existing
// PeerConnection (or establishes a new PeerConnection if none exists).
// Data channels opened by remote peers are delivered through Accept.
//
// Nothing is accepted until Start has launched the signaling poller.
type WebRTCTransport struct {
	signaler Signaler
	name     string
	logger   *slog.Logger

	configMu  sync.RWMutex
	iceConfig ICEConfig

	// peers maps peer name to peerState. answers holds SDP answers
	// collected by any waiter, keyed by answerer, until the waiter for
	// that peer takes them.
	mu      sync.Mutex
	peers   map[string]*peerState
	answers map[string]string

	inboundConnections chan net.Conn

	startOnce sync.Once

	closed    chan struct{}
	closeOnce sync.Once

	channelCounter atomic.Uint64
}

// peerState tracks the PeerConnection to a single remote peer. Protected
// by WebRTCTransport.mu.
type peerState struct {
	connection  *webrtc.PeerConnection
	name        string
	established chan struct{} // closed when ICE reaches Connected/Completed
}

// NewWebRTCTransport creates a WebRTC transport. name identifies this
// node in signaling and is what peers dial; it must not contain "|".
func NewWebRTCTransport(signaler Signaler, name string, iceConfig ICEConfig, logger *slog.Logger) (*WebRTCTransport, error) {
	if name == "" || strings.Contains(name, signalingSeparator) {
		return nil, fmt.Errorf("invalid WebRTC node name %q", name)
	}
	return &WebRTCTransport{
		signaler:           signaler,
		name:               name,
		iceConfig:          iceConfig,
		logger:             logger,
		peers:              make(map[string]*peerState),
		answers:            make(map[string]string),
		inboundConnections: make(chan net.Conn, 64),
		closed:             make(chan struct{}),
	}, nil
}

// Start launches the signaling poller, which answers inbound offers
// until ctx is cancelled or Close is called. Calling Start more than
// once has no further effect.
func (wt *WebRTCTransport) Start(ctx context.Context) {
	wt.startOnce.Do(func() {
		go wt.signalingPoller(ctx)
	})
}

// Accept returns the next data channel opened by a remote peer.
func (wt *WebRTCTransport) Accept() (net.Conn, error) {
	select {
	case conn := <-wt.inboundConnections:
		return conn, nil
	case <-wt.closed:
		return nil, net.ErrClosed
	}
}

// Address returns the node name. Peers put it in tickets and dial it.
func (wt *WebRTCTransport) Address() string {
	return wt.name
}

// Close shuts down all PeerConnections and stops the signaling poller.
func (wt *WebRTCTransport) Close() error {
	wt.closeOnce.Do(func() {
		close(wt.closed)
	})

	wt.mu.Lock()
	defer wt.mu.Unlock()

	for name, peer := range wt.peers {
		peer.connection.Close()
		delete(wt.peers, name)
	}
	return nil
}

// UpdateICEConfig replaces the ICE configuration for new PeerConnections.
func (wt *WebRTCTransport) UpdateICEConfig(config ICEConfig) {
	wt.configMu.Lock()
	defer wt.configMu.Unlock()
	wt.iceConfig = config
}

// DialContext opens a data channel to the peer named address. If no
// PeerConnection exists to that peer, it creates one by publishing an
// SDP offer and waiting for the answer.
func (wt *WebRTCTransport) DialContext(ctx context.Context, address string) (net.Conn, error) {
	select {
	case <-wt.closed:
		return nil, net.ErrClosed
	default:
	}
	if address == wt.name {
		return nil, fmt.Errorf("dialing %s: refusing to dial self", address)
	}

	peer, err := wt.getOrCreatePeer(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("establishing peer connection to %s: %w", address, err)
	}

	select {
	case <-peer.established:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wt.closed:
		return nil, net.ErrClosed
	}

	return wt.openDataChannel(ctx, peer)
}

// getOrCreatePeer returns the peerState for the named peer, creating
// and signaling a new PeerConnection if necessary. Concurrent callers
// for the same peer share one establishment attempt.
func (wt *WebRTCTransport) getOrCreatePeer(ctx context.Context, peerName string) (*peerState, error) {
	wt.mu.Lock()

	if peer, ok := wt.peers[peerName]; ok {
		if usable(peer.connection.ICEConnectionState()) {
			wt.mu.Unlock()
			return peer, nil
		}
		peer.connection.Close()
		delete(wt.peers, peerName)
	}

	pc, err := wt.newPeerConnection()
	if err != nil {
		wt.mu.Unlock()
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}

	peer := &peerState{
		connection:  pc,
		name:        peerName,
		established: make(chan struct{}),
	}
	wt.peers[peerName] = peer
	delete(wt.answers, peerName)
	wt.mu.Unlock()

	if err := wt.establishOutbound(ctx, peer); err != nil {
		wt.dropPeer(peer)
		return nil, err
	}
	return peer, nil
}

// usable reports whether a PeerConnection in state can still carry
// data channels, or may yet be able to.
func usable(state webrtc.ICEConnectionState) bool {
	return state != webrtc.ICEConnectionStateFailed && state != webrtc.ICEConnectionStateClosed
}

// dropPeer closes peer and removes it from the map if it is still the
// current entry for its name.
func (wt *WebRTCTransport) dropPeer(peer *peerState) {
	wt.mu.Lock()
	if current, ok := wt.peers[peer.name]; ok && current == peer {
		delete(wt.peers, peer.name)
	}
	wt.mu.Unlock()
	peer.connection.Close()
}

// watch registers the data channel and ICE handlers shared by both
// directions.
func (wt *WebRTCTransport) watch(peer *peerState) {
	peer.connection.OnDataChannel(func(dc *webrtc.DataChannel) {
		wt.handleInboundDataChannel(dc, peer.name)
	})
	peer.connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		wt.handleICEStateChange(peer, state)
	})
}

// gather sets description as the local description and waits for ICE
// gathering to finish, returning the complete SDP.
func (wt *WebRTCTransport) gather(ctx context.Context, pc *webrtc.PeerConnection, description webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(description); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}

	timer := time.NewTimer(iceGatherTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
		return pc.LocalDescription().SDP, nil
	case <-timer.C:
		return "", fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-wt.closed:
		return "", net.ErrClosed
	}
}

// establishOutbound performs SDP signaling for a PeerConnection already
// registered in the peers map. On success peer.established will be
// closed by the ICE state handler.
func (wt *WebRTCTransport) establishOutbound(ctx context.Context, peer *peerState) error {
	pc := peer.connection
	wt.watch(peer)

	if _, err := pc.CreateDataChannel(initChannelLabel, nil); err != nil {
		return fmt.Errorf("creating init data channel: %w", err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP offer: %w", err)
	}
	completeSDP, err := wt.gather(ctx, pc, offer)
	if err != nil {
		return err
	}

	if err := wt.signaler.PublishOffer(ctx, wt.name, peer.name, completeSDP); err != nil {
		return fmt.Errorf("publishing SDP offer: %w", err)
	}
	wt.logger.Debug("WebRTC offer published", "peer", peer.name)

	answerSDP, err := wt.waitForAnswer(ctx, peer.name)
	if err != nil {
		return fmt.Errorf("waiting for SDP answer from %s: %w", peer.name, err)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	wt.logger.Debug("WebRTC outbound connection signaled", "peer", peer.name)
	return nil
}

// waitForAnswer polls the signaler until an answer from peerName
// arrives. Answers for other peers found along the way are parked in
// wt.answers for their own waiters.
func (wt *WebRTCTransport) waitForAnswer(ctx context.Context, peerName string) (string, error) {
	deadline := time.NewTimer(answerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(answerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return "", fmt.Errorf("timed out after %s", answerTimeout)
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wt.closed:
			return "", net.ErrClosed
		case <-ticker.C:
			answers, err := wt.signaler.PollAnswers(ctx, wt.name)
			if err != nil {
				wt.logger.Warn("polling for SDP answer failed", "error", err)
				continue
			}

			wt.mu.Lock()
			for _, answer := range answers {
				wt.answers[answer.Peer] = answer.SDP
			}
			sdp, found := wt.answers[peerName]
			if found {
				delete(wt.answers, peerName)
			}
			wt.mu.Unlock()

			if found {
				return sdp, nil
			}
		}
	}
}

// signalingPoller answers inbound offers until shutdown.
func (wt *WebRTCTransport) signalingPoller(ctx context.Context) {
	ticker := time.NewTicker(signalingPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wt.closed:
			return
		case <-ticker.C:
			wt.processInboundOffers(ctx)
		}
	}
}

// processInboundOffers checks for new SDP offers and answers them.
func (wt *WebRTCTransport) processInboundOffers(ctx context.Context) {
	offers, err := wt.signaler.PollOffers(ctx, wt.name)
	if err != nil {
		wt.logger.Warn("polling for SDP offers failed", "error", err)
		return
	}

	for _, offer := range offers {
		wt.mu.Lock()
		existing, hasExisting := wt.peers[offer.Peer]
		wt.mu.Unlock()

		if hasExisting {
			// Signaling race: both sides dialed. The lexicographically
			// smaller name is the canonical offerer.
			if usable(existing.connection.ICEConnectionState()) && offer.Peer > wt.name {
				continue
			}
			wt.dropPeer(existing)
		}

		if err := wt.answerOffer(ctx, offer); err != nil {
			wt.logger.Warn("answering WebRTC offer failed",
				"peer", offer.Peer,
				"error", err,
			)
		}
	}
}

// answerOffer creates a PeerConnection in response to an incoming SDP offer.
func (wt *WebRTCTransport) answerOffer(ctx context.Context, offer SignalMessage) error {
	pc, err := wt.newPeerConnection()
	if err != nil {
		return fmt.Errorf("creating PeerConnection: %w", err)
	}

	peer := &peerState{
		connection:  pc,
		name:        offer.Peer,
		established: make(chan struct{}),
	}
	wt.watch(peer)

	remoteOffer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := pc.SetRemoteDescription(remoteOffer); err != nil {
		pc.Close()
		return fmt.Errorf("setting remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("creating SDP answer: %w", err)
	}
	completeSDP, err := wt.gather(ctx, pc, answer)
	if err != nil {
		pc.Close()
		return err
	}

	if err := wt.signaler.PublishAnswer(ctx, offer.Peer, wt.name, completeSDP); err != nil {
		pc.Close()
		return fmt.Errorf("publishing SDP answer: %w", err)
	}

	wt.mu.Lock()
	wt.peers[offer.Peer] = peer
	wt.mu.Unlock()

	wt.logger.Debug("WebRTC inbound connection answered", "peer", offer.Peer)
	return nil
}

// handleInboundDataChannel wraps an incoming data channel as a net.Conn
// and queues it for Accept.
func (wt *WebRTCTransport) handleInboundDataChannel(dc *webrtc.DataChannel, peerName string) {
	// Holding a blocked reader on the unused init channel costs a
	// goroutine per peer and contends with real streams inside SCTP.
	if dc.Label() == initChannelLabel {
		dc.OnOpen(func() {
			dc.Close()
		})
		return
	}

	dc.OnOpen(func() {
		rawChannel, err := dc.Detach()
		if err != nil {
			wt.logger.Warn("detaching inbound data channel failed",
				"peer", peerName,
				"label", dc.Label(),
				"error", err,
			)
			return
		}

		conn := NewDataChannelConn(
			rawChannel,
			wt.name+"/"+dc.Label(),
			peerName+"/"+dc.Label(),
		)

		select {
		case wt.inboundConnections <- conn:
		case <-wt.closed:
			conn.Close()
		}
	})
}

// handleICEStateChange tracks PeerConnection state and manages the
// established signal.
func (wt *WebRTCTransport) handleICEStateChange(peer *peerState, state webrtc.ICEConnectionState) {
	wt.logger.Debug("ICE state change",
		"peer", peer.name,
		"state", state.String(),
	)

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		wt.mu.Lock()
		select {
		case <-peer.established:
		default:
			close(peer.established)
		}
		wt.mu.Unlock()

	case webrtc.ICEConnectionStateFailed:
		// getOrCreatePeer sees the state and re-establishes on next dial.
		wt.logger.Warn("WebRTC connection failed", "peer", peer.name)

	case webrtc.ICEConnectionStateClosed:
		wt.mu.Lock()
		if current, ok := wt.peers[peer.name]; ok && current == peer {
			delete(wt.peers, peer.name)
		}
		wt.mu.Unlock()
	}
}

// openDataChannel creates a new ordered, reliable data channel on the
// peer's PeerConnection and returns it as a net.Conn.
func (wt *WebRTCTransport) openDataChannel(ctx context.Context, peer *peerState) (net.Conn, error) {
	label := fmt.Sprintf("gossip-%d", wt.channelCounter.Add(1))

	ordered := true
	dc, err := peer.connection.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("creating data channel %s: %w", label, err)
	}

	opened := make(chan struct{})
	dc.OnOpen(func() {
		close(opened)
	})

	timer := time.NewTimer(dataChannelOpenTimeout)
	defer timer.Stop()
	select {
	case <-opened:
	case <-timer.C:
		dc.Close()
		return nil, fmt.Errorf("data channel %s did not open within %s", label, dataChannelOpenTimeout)
	case <-ctx.Done():
		dc.Close()
		return nil, ctx.Err()
	case <-wt.closed:
		dc.Close()
		return nil, net.ErrClosed
	}

	rawChannel, err := dc.Detach()
	if err != nil {
		dc.Close()
		return nil, fmt.Errorf("detaching data channel %s: %w", label, err)
	}

	return NewDataChannelConn(
		rawChannel,
		wt.name+"/"+label,
		peer.name+"/"+label,
	), nil
}

// newPeerConnection creates a pion PeerConnection with the current ICE
// config. Detached data channels give stream access; loopback candidates
// make same-host rooms and tests work.
func (wt *WebRTCTransport) newPeerConnection() (*webrtc.PeerConnection, error) {
	wt.configMu.RLock()
	config := webrtc.Configuration{
		ICEServers: wt.iceConfig.Servers,
	}
	wt.configMu.RUnlock()

	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(config)
}
