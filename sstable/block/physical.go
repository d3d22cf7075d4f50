// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
)

// PhysicalBlock is a block (possibly compressed) as it is stored physically,
// including its trailer.
type PhysicalBlock struct {
	// data contains the possibly compressed block data.
	data    []byte
	trailer Trailer
}

// NewPhysicalBlock returns a PhysicalBlock over the provided bytes. The
// trailer is read from the last TrailerLen bytes.
func NewPhysicalBlock(dataWithTrailer []byte) (PhysicalBlock, error) {
	if len(dataWithTrailer) < TrailerLen {
		return PhysicalBlock{}, base.CorruptionErrorf(
			"hummock: block of %d bytes is shorter than its trailer", errors.Safe(len(dataWithTrailer)))
	}
	n := len(dataWithTrailer) - TrailerLen
	return PhysicalBlock{data: dataWithTrailer[:n:n], trailer: Trailer(dataWithTrailer[n:])}, nil
}

// CompressionIndicator returns the compression recorded in the trailer.
func (b PhysicalBlock) CompressionIndicator() CompressionIndicator {
	return CompressionIndicator(b.trailer[0])
}

// Data returns the possibly compressed payload, excluding the trailer.
func (b PhysicalBlock) Data() []byte {
	return b.data
}

// LengthWithTrailer returns the length of the data block, including the trailer.
func (b PhysicalBlock) LengthWithTrailer() int {
	return len(b.data) + TrailerLen
}

// LengthWithoutTrailer returns the length of the data block, excluding the trailer.
func (b PhysicalBlock) LengthWithoutTrailer() int {
	return len(b.data)
}

// PhysicalBlockMaker is used to create physical blocks from logical block data.
// It takes care of compression, checksum calculation, and trailer encoding.
//
// It is not thread-safe and should not be used concurrently.
type PhysicalBlockMaker struct {
	Compression Compression
	Checksummer Checksummer
	buf         []byte
}

// Init the physical block maker.
func (p *PhysicalBlockMaker) Init(compression Compression, checksumType ChecksumType) {
	p.Compression = compression
	p.Checksummer.Init(checksumType)
}

// Make compresses and checksums the provided uncompressed block data, and
// appends the payload and its trailer to dst.
func (p *PhysicalBlockMaker) Make(dst, uncompressedData []byte) []byte {
	var ci CompressionIndicator
	ci, p.buf = Compress(p.Compression, p.buf, uncompressedData)
	checksum := p.Checksummer.Checksum(p.buf, byte(ci))
	trailer := MakeTrailer(byte(ci), checksum)
	dst = append(dst, p.buf...)
	return append(dst, trailer[:]...)
}

// Decode validates the checksum of a physical block and decompresses its
// payload into a buffer allocated from pool. The caller owns the returned
// handle and must release it. Uncompressed payloads are copied too, so the
// returned handle never aliases the input.
func Decode(dataWithTrailer []byte, checksumType ChecksumType, pool *BufferPool) (BufferHandle, error) {
	pb, err := NewPhysicalBlock(dataWithTrailer)
	if err != nil {
		return BufferHandle{}, err
	}
	if err := ValidateChecksum(checksumType, dataWithTrailer); err != nil {
		return BufferHandle{}, err
	}
	if pool == nil {
		pool = DefaultBufferPool
	}
	ci := pb.CompressionIndicator()
	n, err := DecompressedLen(ci, pb.Data())
	if err != nil {
		return BufferHandle{}, err
	}
	h := pool.Alloc(n)
	if err := DecompressInto(ci, pb.Data(), h.BlockData()); err != nil {
		h.Release()
		return BufferHandle{}, errors.Wrapf(err, "decompressing %s block", ci)
	}
	return h, nil
}
