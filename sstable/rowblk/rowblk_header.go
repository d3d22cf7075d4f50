// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rowblk

import (
	"encoding/binary"

	"github.com/hummockdb/hummock/internal/base"
)

// HeaderLen is the encoded size of a Header.
const HeaderLen = 4

// Header is the fixed-size prefix of every block entry. A key is stored as
// the first Overlap bytes of the block's base key followed by Diff explicit
// bytes that immediately follow the header. The value occupies the rest of
// the entry.
type Header struct {
	Overlap uint16
	Diff    uint16
}

// Encode appends the encoded header to dst.
func (h Header) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, h.Overlap)
	return binary.LittleEndian.AppendUint16(dst, h.Diff)
}

// DecodeHeader decodes the header at the start of buf and returns it along
// with the bytes that follow it (the key suffix followed by the value).
//
// DecodeHeader panics with a corruption error if buf is too short to hold the
// header or the key suffix it describes.
func DecodeHeader(buf []byte) (Header, []byte) {
	if len(buf) < HeaderLen {
		panic(base.CorruptionErrorf("hummock/rowblk: entry of %d bytes is too short for a header", len(buf)))
	}
	h := Header{
		Overlap: binary.LittleEndian.Uint16(buf),
		Diff:    binary.LittleEndian.Uint16(buf[2:]),
	}
	rest := buf[HeaderLen:]
	if int(h.Diff) > len(rest) {
		panic(base.CorruptionErrorf("hummock/rowblk: key suffix of %d bytes overruns entry of %d bytes",
			h.Diff, len(buf)))
	}
	return h, rest
}
