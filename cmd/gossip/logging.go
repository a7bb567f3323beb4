// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/gossip/lib/config"
)

// newLogger builds the process logger. A configured file receives JSON.
// Otherwise the terminal UI discards logs, since it owns the screen, and
// line mode writes to stderr: text on a terminal, JSON when redirected.
func newLogger(logConfig config.LogConfig, interactive bool) (*slog.Logger, func(), error) {
	handlerOptions := &slog.HandlerOptions{Level: logConfig.SlogLevel()}

	if logConfig.File != "" {
		file, err := os.OpenFile(logConfig.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return slog.New(slog.NewJSONHandler(file, handlerOptions)), func() { file.Close() }, nil
	}

	if interactive {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	return streamLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), handlerOptions), func() {}, nil
}

func streamLogger(w io.Writer, terminal bool, handlerOptions *slog.HandlerOptions) *slog.Logger {
	if terminal {
		return slog.New(slog.NewTextHandler(w, handlerOptions))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOptions))
}
