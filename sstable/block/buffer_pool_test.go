// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPool(t *testing.T) {
	p := NewBufferPool(1 << 10)

	h := p.Alloc(100)
	require.True(t, h.Valid())
	require.Len(t, h.BlockData(), 100)
	h.Release()

	// Reuse is best-effort with sync.Pool; only the length contract holds.
	h = p.Alloc(50)
	require.Len(t, h.BlockData(), 50)
	h.Release()

	big := p.Alloc(4 << 10)
	require.Len(t, big.BlockData(), 4<<10)
	big.Release()
}

func TestUnpooledBufferHandle(t *testing.T) {
	var zero BufferHandle
	require.False(t, zero.Valid())
	zero.Release()

	b := []byte("abc")
	h := MakeBufferHandle(b)
	require.True(t, h.Valid())
	h.Release()
	// Unpooled memory is never mangled or recycled.
	require.Equal(t, "abc", string(h.BlockData()))
}
