// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "GOSSIP_CONFIG"

// Transport names accepted by NodeConfig.Transport.
const (
	TransportTCP    = "tcp"
	TransportWebRTC = "webrtc"
)

// Config is the master configuration for the gossip chat binary.
type Config struct {
	// Node configures how this process reaches and is reached by peers.
	Node NodeConfig `yaml:"node"`

	// Session configures the room-session engine.
	Session SessionConfig `yaml:"session"`

	// Gossip configures the broadcast mesh.
	Gossip GossipConfig `yaml:"gossip"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// NodeConfig configures the transport.
type NodeConfig struct {
	// Transport is "tcp" (direct reachability) or "webrtc" (NAT
	// traversal through ICE, signaled through SignalingDir).
	// Default: tcp
	Transport string `yaml:"transport" validate:"oneof=tcp webrtc"`

	// ListenAddress is the TCP address to accept neighbors on.
	// Default: :0 (ephemeral port, any interface)
	ListenAddress string `yaml:"listen_address" validate:"required_if=Transport tcp"`

	// AdvertiseAddress is the address put in tickets. When empty it is
	// derived from the bound listener.
	AdvertiseAddress string `yaml:"advertise_address"`

	// Name is this node's WebRTC identity, written into tickets as its
	// address. Required for the webrtc transport.
	Name string `yaml:"name" validate:"required_if=Transport webrtc,max=128,excludesall=/\\"`

	// SignalingDir is the shared directory where WebRTC offers and
	// answers are exchanged.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/gossip-signaling
	SignalingDir string `yaml:"signaling_dir" validate:"required_if=Transport webrtc"`

	// ICEServers lists STUN/TURN URLs. Empty means host candidates only,
	// which is enough on a single host or LAN.
	ICEServers []string `yaml:"ice_servers" validate:"dive,startswith=stun:|startswith=turn:|startswith=turns:"`
}

// SessionConfig configures the room-session engine.
type SessionConfig struct {
	// CommandCapacity bounds the inbound command queue.
	// Default: 32
	CommandCapacity int `yaml:"command_capacity" validate:"min=1,max=65536"`

	// JoinTimeout bounds how long a join tries to reach a bootstrap peer.
	// Default: 10s
	JoinTimeout time.Duration `yaml:"join_timeout" validate:"gt=0"`

	// DrainTimeout bounds how long queued sends are flushed at shutdown.
	// Default: 2s
	DrainTimeout time.Duration `yaml:"drain_timeout" validate:"gte=0"`
}

// GossipConfig configures the broadcast mesh.
type GossipConfig struct {
	// Compression is the payload compression for large messages: none,
	// lz4 or zstd.
	// Default: lz4
	Compression string `yaml:"compression" validate:"oneof=none lz4 zstd"`

	// CompressionThreshold is the payload size in bytes below which
	// messages are sent uncompressed.
	// Default: 512
	CompressionThreshold int `yaml:"compression_threshold" validate:"gte=0"`

	// SeenCacheSize is how many recent message IDs are remembered for
	// duplicate suppression.
	// Default: 4096
	SeenCacheSize int `yaml:"seen_cache_size" validate:"min=16"`

	// RetryInterval is the pause between rounds of bootstrap dials.
	// Default: 500ms
	RetryInterval time.Duration `yaml:"retry_interval" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// File receives log output while the terminal UI owns the screen.
	// Empty discards logs in UI mode.
	File string `yaml:"file"`
}

// Default returns the default configuration. Every field is set, so a
// file only needs to name what it changes.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Transport:     TransportTCP,
			ListenAddress: ":0",
			SignalingDir:  "${XDG_RUNTIME_DIR:-/tmp}/gossip-signaling",
		},
		Session: SessionConfig{
			CommandCapacity: 32,
			JoinTimeout:     10 * time.Second,
			DrainTimeout:    2 * time.Second,
		},
		Gossip: GossipConfig{
			Compression:          "lz4",
			CompressionThreshold: 512,
			SeenCacheSize:        4096,
			RetryInterval:        500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the file named by GOSSIP_CONFIG, or returns the expanded
// defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, layered over
// Default. The result is not validated; call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// loadFile decodes one file into c, overwriting only the keys it names.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		// An empty file decodes to nothing, which leaves the defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// and address fields.
func (c *Config) expandVariables() {
	c.Node.ListenAddress = expandVars(c.Node.ListenAddress)
	c.Node.AdvertiseAddress = expandVars(c.Node.AdvertiseAddress)
	c.Node.SignalingDir = expandVars(c.Node.SignalingDir)
	c.Log.File = expandVars(c.Log.File)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator, configured to report
// fields by their YAML key.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if err := structValidator().Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fieldError := range fieldErrors {
			errs = append(errs, describeFieldError(fieldError))
		}
	}

	if c.Node.Transport == TransportTCP && c.Node.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(c.Node.ListenAddress); err != nil {
			errs = append(errs, fmt.Errorf("node.listen_address: %w", err))
		}
	}
	if c.Node.AdvertiseAddress != "" && c.Node.Transport == TransportTCP {
		if _, _, err := net.SplitHostPort(c.Node.AdvertiseAddress); err != nil {
			errs = append(errs, fmt.Errorf("node.advertise_address: %w", err))
		}
	}

	return errors.Join(errs...)
}

// describeFieldError renders a validator failure with the YAML path
// of the field ("session.join_timeout") instead of the Go one.
func describeFieldError(fieldError validator.FieldError) error {
	path := fieldError.Namespace()
	if _, rest, found := strings.Cut(path, "."); found {
		path = rest
	}

	switch fieldError.Tag() {
	case "oneof":
		return fmt.Errorf("%s must be one of: %s (got %v)", path, fieldError.Param(), fieldError.Value())
	case "required_if":
		return fmt.Errorf("%s is required when %s", path, strings.Replace(fieldError.Param(), " ", " is ", 1))
	case "min", "gte":
		return fmt.Errorf("%s must be at least %s (got %v)", path, fieldError.Param(), fieldError.Value())
	case "max":
		return fmt.Errorf("%s must be at most %s (got %v)", path, fieldError.Param(), fieldError.Value())
	case "gt":
		return fmt.Errorf("%s must be greater than %s (got %v)", path, fieldError.Param(), fieldError.Value())
	default:
		return fmt.Errorf("%s fails %q validation (got %v)", path, fieldError.ActualTag(), fieldError.Value())
	}
}

// SlogLevel returns the configured level as a slog.Level. Validate
// guarantees Level is one of the known names.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
