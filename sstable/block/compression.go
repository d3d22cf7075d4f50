// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/minio/minlz"
)

// Compression is the per-block compression algorithm to use.
type Compression int

// The available compression types.
const (
	DefaultCompression Compression = iota
	NoCompression
	SnappyCompression
	ZstdCompression
	MinlzCompression
	NCompression
)

// String implements fmt.Stringer, returning a human-readable name for the
// compression algorithm.
func (c Compression) String() string {
	switch c {
	case DefaultCompression:
		return "Default"
	case NoCompression:
		return "NoCompression"
	case SnappyCompression:
		return "Snappy"
	case ZstdCompression:
		return "ZSTD"
	case MinlzCompression:
		return "Minlz"
	default:
		return "Unknown"
	}
}

// CompressionFromString returns a Compression from its string representation.
// Inverse of c.String() above.
func CompressionFromString(s string) Compression {
	switch s {
	case "Default":
		return DefaultCompression
	case "NoCompression":
		return NoCompression
	case "Snappy":
		return SnappyCompression
	case "ZSTD":
		return ZstdCompression
	case "Minlz":
		return MinlzCompression
	default:
		return DefaultCompression
	}
}

// CompressionIndicator is the byte stored physically within the block.Trailer
// to indicate the compression type.
type CompressionIndicator byte

// The block type gives the per-block compression format.
// These constants are part of the file format and should not be changed.
// They are different from the Compression constants because the latter
// are designed so that the zero value of the Compression type means to
// use the default compression (which is snappy).
const (
	NoCompressionIndicator     CompressionIndicator = 0
	SnappyCompressionIndicator CompressionIndicator = 1
	ZstdCompressionIndicator   CompressionIndicator = 7
	MinlzCompressionIndicator  CompressionIndicator = 8
)

// String implements fmt.Stringer.
func (i CompressionIndicator) String() string {
	switch i {
	case NoCompressionIndicator:
		return "none"
	case SnappyCompressionIndicator:
		return "snappy"
	case ZstdCompressionIndicator:
		return "zstd"
	case MinlzCompressionIndicator:
		return "minlz"
	default:
		return "unknown"
	}
}

// Compress compresses src with the given algorithm, appending to dst[:0]. If
// the compressed payload is not at least 12.5% smaller than src it is
// discarded and src is stored as is, to avoid unnecessary decompression
// overhead at read time.
func Compress(c Compression, dst, src []byte) (CompressionIndicator, []byte) {
	var ci CompressionIndicator
	switch c {
	case NoCompression:
		return NoCompressionIndicator, append(dst[:0], src...)
	case DefaultCompression, SnappyCompression:
		ci, dst = SnappyCompressionIndicator, snappy.Encode(dst[:cap(dst):cap(dst)], src)
	case ZstdCompression:
		// The payload is prefixed with a varint encoding the length of the
		// decompressed block.
		dst = append(dst[:0], make([]byte, binary.MaxVarintLen64)...)
		varIntLen := binary.PutUvarint(dst, uint64(len(src)))
		ci, dst = ZstdCompressionIndicator, encodeZstd(dst, varIntLen, src)
	case MinlzCompression:
		// MinLZ cannot encode blocks greater than 8MB. Fall back to Snappy in
		// those cases; MinLZ can decode the Snappy compressed block.
		if len(src) > minlz.MaxBlockSize {
			return Compress(SnappyCompression, dst, src)
		}
		compressed, err := minlz.Encode(dst[:cap(dst):cap(dst)], src, minlz.LevelBalanced)
		if err != nil {
			panic(errors.Wrap(err, "minlz compression"))
		}
		ci, dst = MinlzCompressionIndicator, compressed
	default:
		panic(errors.AssertionFailedf("unknown compression %d", c))
	}
	if len(dst) >= len(src)-len(src)/8 {
		return NoCompressionIndicator, append(dst[:0], src...)
	}
	return ci, dst
}

// MaxDecompressedLen is the largest decompressed payload a block may declare.
// Blocks address their entries with uint32 offsets.
const MaxDecompressedLen = min(math.MaxUint32, math.MaxInt)

// DecompressedLen returns the length of the provided block once decompressed,
// allowing the caller to allocate a buffer exactly sized to the decompressed
// payload. Declared lengths above MaxDecompressedLen are reported as
// corruption.
func DecompressedLen(ci CompressionIndicator, b []byte) (int, error) {
	switch ci {
	case NoCompressionIndicator:
		return len(b), nil
	case SnappyCompressionIndicator:
		n, err := snappy.DecodedLen(b)
		if err != nil {
			return 0, base.MarkCorruptionError(err)
		}
		return checkDecompressedLen(uint64(n))
	case ZstdCompressionIndicator:
		decodedLenU64, varIntLen := binary.Uvarint(b)
		if varIntLen <= 0 {
			return 0, base.CorruptionErrorf("hummock: compression block has invalid length")
		}
		return checkDecompressedLen(decodedLenU64)
	case MinlzCompressionIndicator:
		n, err := minlz.DecodedLen(b)
		if err != nil {
			return 0, base.MarkCorruptionError(err)
		}
		return checkDecompressedLen(uint64(n))
	default:
		return 0, base.CorruptionErrorf("hummock: unknown block compression: %d", errors.Safe(ci))
	}
}

func checkDecompressedLen(n uint64) (int, error) {
	if n > MaxDecompressedLen {
		return 0, base.CorruptionErrorf("hummock: decompressed length %d exceeds %d",
			errors.Safe(n), errors.Safe(uint64(MaxDecompressedLen)))
	}
	return int(n), nil
}

// DecompressInto decompresses compressed into buf. The buf slice must have the
// exact size as the decompressed value. Callers may use DecompressedLen to
// determine the correct size.
func DecompressInto(ci CompressionIndicator, compressed []byte, buf []byte) error {
	var result []byte
	var err error
	switch ci {
	case NoCompressionIndicator:
		result = buf[:copy(buf, compressed)]
	case SnappyCompressionIndicator:
		result, err = snappy.Decode(buf, compressed)
	case ZstdCompressionIndicator:
		_, prefixLen := binary.Uvarint(compressed)
		result, err = decodeZstd(buf, compressed[prefixLen:])
	case MinlzCompressionIndicator:
		result, err = minlz.Decode(buf, compressed)
	default:
		return base.CorruptionErrorf("hummock: unknown block compression: %d", errors.Safe(ci))
	}
	if err != nil {
		return base.MarkCorruptionError(err)
	}
	if len(result) != len(buf) || (len(result) > 0 && &result[0] != &buf[0]) {
		return base.CorruptionErrorf("hummock: decompressed into unexpected buffer: %d != %d bytes",
			errors.Safe(len(result)), errors.Safe(len(buf)))
	}
	return nil
}
