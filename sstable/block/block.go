// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package block implements the physical envelope of sstable blocks: the
// trailer carrying the compression indicator and checksum, compression and
// decompression, and the buffers that loaded blocks live in.
package block

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
)

// TrailerLen is the length of the trailer at the end of a block.
const TrailerLen = 5

// Trailer is the trailer at the end of a block, encoding the block type
// (compression) and a checksum.
type Trailer = [TrailerLen]byte

// MakeTrailer constructs a trailer from a block type and a checksum.
func MakeTrailer(blockType byte, checksum uint32) (t Trailer) {
	t[0] = blockType
	binary.LittleEndian.PutUint32(t[1:5], checksum)
	return t
}

// ChecksumType specifies the checksum used for blocks.
type ChecksumType byte

// The available checksum types. These values are part of the durable format and
// should not be changed.
const (
	ChecksumTypeNone     ChecksumType = 0
	ChecksumTypeCRC32c   ChecksumType = 1
	ChecksumTypeXXHash64 ChecksumType = 3
)

// String implements fmt.Stringer.
func (t ChecksumType) String() string {
	switch t {
	case ChecksumTypeCRC32c:
		return "crc32c"
	case ChecksumTypeNone:
		return "none"
	case ChecksumTypeXXHash64:
		return "xxhash64"
	default:
		panic(errors.Newf("hummock: unknown checksum type: %d", t))
	}
}

// ChecksumTypeFromString parses the String form of a checksum type.
func ChecksumTypeFromString(s string) (ChecksumType, error) {
	switch s {
	case "none":
		return ChecksumTypeNone, nil
	case "crc32c":
		return ChecksumTypeCRC32c, nil
	case "xxhash64":
		return ChecksumTypeXXHash64, nil
	}
	return 0, errors.Newf("unknown checksum type %q", s)
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// A Checksummer calculates checksums for blocks.
type Checksummer struct {
	Type         ChecksumType
	xxHasher     *xxhash.Digest
	blockTypeBuf [1]byte
}

// Init sets the checksum type.
func (c *Checksummer) Init(typ ChecksumType) {
	c.Type = typ
}

// Checksum computes a checksum over the provided block and block type.
func (c *Checksummer) Checksum(block []byte, blockType byte) (checksum uint32) {
	c.blockTypeBuf[0] = blockType
	switch c.Type {
	case ChecksumTypeNone:
		return 0
	case ChecksumTypeCRC32c:
		checksum = crc32.Update(crc32.Checksum(block, crc32cTable), crc32cTable, c.blockTypeBuf[:])
	case ChecksumTypeXXHash64:
		if c.xxHasher == nil {
			c.xxHasher = xxhash.New()
		} else {
			c.xxHasher.Reset()
		}
		_, _ = c.xxHasher.Write(block)
		_, _ = c.xxHasher.Write(c.blockTypeBuf[:])
		checksum = uint32(c.xxHasher.Sum64())
	default:
		panic(errors.Newf("unsupported checksum type: %d", c.Type))
	}
	return checksum
}

// ValidateChecksum validates the checksum of a physical block. b holds the
// block payload followed by its trailer.
func ValidateChecksum(checksumType ChecksumType, b []byte) error {
	if len(b) < TrailerLen {
		return base.CorruptionErrorf("hummock: block of %d bytes is shorter than its trailer",
			errors.Safe(len(b)))
	}
	n := len(b) - TrailerLen
	expectedChecksum := binary.LittleEndian.Uint32(b[n+1:])
	var computedChecksum uint32
	switch checksumType {
	case ChecksumTypeNone:
		return nil
	case ChecksumTypeCRC32c:
		computedChecksum = crc32.Checksum(b[:n+1], crc32cTable)
	case ChecksumTypeXXHash64:
		computedChecksum = uint32(xxhash.Sum64(b[:n+1]))
	default:
		return errors.Errorf("unsupported checksum type: %d", checksumType)
	}
	if expectedChecksum != computedChecksum {
		return base.CorruptionErrorf("hummock: block of %d bytes: %s checksum mismatch %x != %x",
			errors.Safe(n), checksumType, errors.Safe(expectedChecksum), errors.Safe(computedChecksum))
	}
	return nil
}
