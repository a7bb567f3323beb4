// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a message payload.
// Tags travel in message frames; changing them breaks the wire format.
type Compression uint8

const (
	// CompressionNone sends payloads raw.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression: fast, modest ratio.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level: better ratio for
	// text, more CPU.
	CompressionZstd Compression = 2
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name ("none", "lz4", "zstd").
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll/DecodeAll, so one of each serves every node.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("gossip: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayloadSize))
	if err != nil {
		panic("gossip: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns data compressed with algorithm. It returns
// errIncompressible when the result would not be smaller.
func compress(data []byte, algorithm Compression) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unsupported compression %s", algorithm)
	}
}

// decompress inverts compress. size is the uncompressed length carried
// in the frame and must match exactly.
func decompress(data []byte, algorithm Compression, size int) ([]byte, error) {
	if size < 0 || size > MaxPayloadSize {
		return nil, fmt.Errorf("uncompressed size %d out of range", size)
	}

	switch algorithm {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("raw payload is %d bytes, frame says %d", len(data), size)
		}
		return data, nil

	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(data, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil

	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(decoded) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(decoded), size)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("unsupported compression %s", algorithm)
	}
}

// encodePayload compresses payload when it is at least threshold bytes
// long and compression helps, returning the bytes to send and the tag
// that describes them.
func encodePayload(payload []byte, algorithm Compression, threshold int) ([]byte, Compression, error) {
	if algorithm == CompressionNone || len(payload) < threshold {
		return payload, CompressionNone, nil
	}
	compressed, err := compress(payload, algorithm)
	if errors.Is(err, errIncompressible) {
		return payload, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, algorithm, nil
}
