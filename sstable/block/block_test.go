// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/hummockdb/hummock/internal/base"
	"github.com/stretchr/testify/require"
)

func TestChecksumTypeString(t *testing.T) {
	for _, typ := range []ChecksumType{ChecksumTypeNone, ChecksumTypeCRC32c, ChecksumTypeXXHash64} {
		got, err := ChecksumTypeFromString(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, got)
	}
	_, err := ChecksumTypeFromString("md5")
	require.Error(t, err)
}

func TestPhysicalBlockRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("key_test_0val_0"), 100)
	for _, c := range []Compression{NoCompression, SnappyCompression, ZstdCompression, MinlzCompression} {
		for _, typ := range []ChecksumType{ChecksumTypeNone, ChecksumTypeCRC32c, ChecksumTypeXXHash64} {
			t.Run(fmt.Sprintf("%s/%s", c, typ), func(t *testing.T) {
				var m PhysicalBlockMaker
				m.Init(c, typ)
				physical := m.Make(nil, data)

				pb, err := NewPhysicalBlock(physical)
				require.NoError(t, err)
				require.Equal(t, len(physical), pb.LengthWithTrailer())
				require.Equal(t, len(physical)-TrailerLen, pb.LengthWithoutTrailer())
				require.NoError(t, ValidateChecksum(typ, physical))

				h, err := Decode(physical, typ, nil)
				require.NoError(t, err)
				require.Equal(t, data, h.BlockData())
				h.Release()
			})
		}
	}
}

func TestChecksumMismatch(t *testing.T) {
	for _, typ := range []ChecksumType{ChecksumTypeCRC32c, ChecksumTypeXXHash64} {
		t.Run(typ.String(), func(t *testing.T) {
			var m PhysicalBlockMaker
			m.Init(NoCompression, typ)
			physical := m.Make(nil, []byte("hello world"))
			physical[3] ^= 0x10

			err := ValidateChecksum(typ, physical)
			require.Error(t, err)
			require.True(t, base.IsCorruptionError(err))
			require.Contains(t, err.Error(), "checksum mismatch")

			_, err = Decode(physical, typ, nil)
			require.True(t, base.IsCorruptionError(err))
		})
	}
}

func TestShortPhysicalBlock(t *testing.T) {
	_, err := NewPhysicalBlock([]byte{1, 2})
	require.True(t, base.IsCorruptionError(err))
	_, err = Decode([]byte{1, 2}, ChecksumTypeXXHash64, nil)
	require.True(t, base.IsCorruptionError(err))
}

func TestMakeAppendsToDst(t *testing.T) {
	var m PhysicalBlockMaker
	m.Init(NoCompression, ChecksumTypeCRC32c)
	out := m.Make([]byte("hdr"), []byte("payload"))
	require.Equal(t, "hdr", string(out[:3]))
	pb, err := NewPhysicalBlock(out[3:])
	require.NoError(t, err)
	require.Equal(t, NoCompressionIndicator, pb.CompressionIndicator())
	require.Equal(t, "payload", string(pb.Data()))
}
