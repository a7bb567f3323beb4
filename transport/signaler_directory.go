// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/gossip/lib/codec"
)

// Compile-time interface check.
var _ Signaler = (*DirectorySignaler)(nil)

// DirectorySignaler exchanges signals as files in a shared directory.
// Each offer or answer is one CBOR file named
//
//	<kind>.<hex offerer>.<hex target>.cbor
//
// written atomically (temporary file, then rename), so a reader never
// sees a partial signal. Names are hex-encoded so any node name is a
// safe file name. Old signals are overwritten by newer ones for the
// same pair; nothing is ever deleted, so a stale offer from a crashed
// peer is answered once and then ignored by timestamp.
type DirectorySignaler struct {
	directory string

	mu       sync.Mutex
	lastSeen seenTracker
}

// signalFile is the CBOR body of a signal file.
type signalFile struct {
	SDP       string `cbor:"1,keyasint"`
	Timestamp int64  `cbor:"2,keyasint"` // Unix nanoseconds
}

const (
	offerKind  = "offer"
	answerKind = "answer"
)

// NewDirectorySignaler returns a signaler rooted at directory, creating
// it if needed.
func NewDirectorySignaler(directory string) (*DirectorySignaler, error) {
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return nil, fmt.Errorf("creating signaling directory: %w", err)
	}
	return &DirectorySignaler{directory: directory, lastSeen: make(seenTracker)}, nil
}

func (s *DirectorySignaler) PublishOffer(_ context.Context, offerer, target, sdp string) error {
	return s.publish(offerKind, offerer, target, sdp)
}

func (s *DirectorySignaler) PublishAnswer(_ context.Context, offerer, answerer, sdp string) error {
	return s.publish(answerKind, offerer, answerer, sdp)
}

func (s *DirectorySignaler) PollOffers(ctx context.Context, name string) ([]SignalMessage, error) {
	return s.poll(ctx, offerKind, name, matchOfferKey)
}

func (s *DirectorySignaler) PollAnswers(ctx context.Context, name string) ([]SignalMessage, error) {
	return s.poll(ctx, answerKind, name, matchAnswerKey)
}

func signalFileName(kind, offerer, target string) string {
	return kind + "." + hex.EncodeToString([]byte(offerer)) + "." + hex.EncodeToString([]byte(target)) + ".cbor"
}

// parseSignalFileName inverts signalFileName, returning the signal key
// ("offerer|target").
func parseSignalFileName(kind, fileName string) (string, bool) {
	rest, ok := strings.CutPrefix(fileName, kind+".")
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, ".cbor")
	if !ok {
		return "", false
	}
	offererHex, targetHex, found := strings.Cut(rest, ".")
	if !found {
		return "", false
	}
	offerer, err := hex.DecodeString(offererHex)
	if err != nil {
		return "", false
	}
	target, err := hex.DecodeString(targetHex)
	if err != nil {
		return "", false
	}
	return signalKey(string(offerer), string(target)), true
}

func (s *DirectorySignaler) publish(kind, offerer, target, sdp string) error {
	data, err := codec.Marshal(signalFile{SDP: sdp, Timestamp: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", kind, err)
	}

	temporary, err := os.CreateTemp(s.directory, ".signal-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", kind, err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporary.Name())
		return fmt.Errorf("writing %s: %w", kind, err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporary.Name())
		return fmt.Errorf("writing %s: %w", kind, err)
	}

	final := filepath.Join(s.directory, signalFileName(kind, offerer, target))
	if err := os.Rename(temporary.Name(), final); err != nil {
		os.Remove(temporary.Name())
		return fmt.Errorf("publishing %s: %w", kind, err)
	}
	return nil
}

func (s *DirectorySignaler) poll(ctx context.Context, kind, name string, match signalKeyMatcher) ([]SignalMessage, error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("reading signaling directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []SignalMessage
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		if entry.IsDir() {
			continue
		}
		key, ok := parseSignalFileName(kind, entry.Name())
		if !ok {
			continue
		}
		peer, ok := match(key, name)
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.directory, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return messages, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var body signalFile
		if err := codec.Unmarshal(data, &body); err != nil {
			// Written by something else; ignore rather than wedge polling.
			continue
		}

		timestamp := time.Unix(0, body.Timestamp)
		if !s.lastSeen.fresh(kind+":"+name+":"+key, timestamp) {
			continue
		}
		messages = append(messages, SignalMessage{Peer: peer, SDP: body.SDP, Timestamp: timestamp})
	}
	return messages, nil
}
