// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/gossip/lib/codec"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

// describeTicket prints a ticket's topic, bootstrap peers, and raw
// payload in CBOR diagnostic notation.
func describeTicket(w io.Writer, text string) error {
	decoded, err := ticket.Decode(text)
	if err != nil {
		return err
	}
	versionByte, payload, err := ticket.Payload(text)
	if err != nil {
		return err
	}
	diagnostic, err := codec.Diagnose(payload)
	if err != nil {
		return fmt.Errorf("rendering ticket payload: %w", err)
	}

	fmt.Fprintf(w, "version    %d\n", versionByte)
	fmt.Fprintf(w, "topic      %s\n", decoded.Topic)
	if len(decoded.Bootstrap) == 0 {
		fmt.Fprintln(w, "bootstrap  (none)")
	}
	for _, peer := range decoded.Bootstrap {
		fmt.Fprintf(w, "bootstrap  %s\n", peer)
	}
	fmt.Fprintf(w, "payload    %s\n", diagnostic)
	return nil
}
