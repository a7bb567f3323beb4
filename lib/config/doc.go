// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads gossip chat configuration.
//
// Configuration comes from a single file named by the --config flag
// (via [LoadFile]) or the GOSSIP_CONFIG environment variable (via
// [Load]). When neither names a file, [Load] returns [Default]: a chat
// client must start with zero setup. There is no ~/.config discovery
// and no per-field environment override.
//
// Files are YAML. A file ending in .json or .jsonc is accepted too:
// comments and trailing commas are stripped before decoding, and the
// resulting JSON is read by the YAML decoder. Unknown keys are errors.
//
// Variable expansion is performed on path and address fields after
// loading: ${HOME}, ${XDG_RUNTIME_DIR} and ${VAR:-default} patterns.
//
// [Config.Validate] checks struct-tag rules with go-playground/validator
// plus a few cross-field rules, and reports every problem at once with
// errors.Join.
//
// Key exports:
//
//   - [Config] -- master struct with Node, Session, Gossip, Log
//   - [Default] -- a Config that runs a TCP node on an ephemeral port
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other gossip packages.
package config
