// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Compare returns -1, 0, or +1 depending on whether a is 'less than', 'equal
// to' or 'greater than' b.
type Compare func(a, b []byte) int

// FormatKey returns a formatter for the user key.
type FormatKey func(key []byte) fmt.Formatter

// Split returns the length of the user key portion of a versioned key. The
// remaining bytes are the epoch suffix.
//
// Keys shorter than EpochLen have no room for a user key; the whole key is
// treated as suffix.
func Split(key []byte) int {
	if n := len(key) - EpochLen; n > 0 {
		return n
	}
	return 0
}

// CompareVersionedKeys orders versioned keys: by user key first and, for equal
// user keys, by the raw epoch suffix. Since the suffix stores the complement
// of the epoch, newer versions of a user key sort before older ones.
//
// The result is a total order over arbitrary byte strings, including keys
// shorter than EpochLen.
func CompareVersionedKeys(a, b []byte) int {
	an, bn := Split(a), Split(b)
	if c := bytes.Compare(a[:an], b[:bn]); c != 0 {
		return c
	}
	return bytes.Compare(a[an:], b[bn:])
}

// Comparer carries the key ordering together with its presentation. Blocks
// are only ever written and read with VersionedComparer; the type exists so
// that options and tools can pass the ordering around by name.
type Comparer struct {
	Compare   Compare
	FormatKey FormatKey
	// Name is recorded by tools and checked on load.
	Name string
}

// VersionedComparer is the comparer for versioned keys.
var VersionedComparer = &Comparer{
	Compare: CompareVersionedKeys,
	FormatKey: func(key []byte) fmt.Formatter {
		return FormatVersionedKey(key)
	},
	Name: "hummock.VersionedComparator",
}

// FormatBytes formats a byte slice using hexadecimal escapes for non-ASCII
// data.
type FormatBytes []byte

const lowerhex = "0123456789abcdef"

// Format implements the fmt.Formatter interface.
func (p FormatBytes) Format(s fmt.State, c rune) {
	buf := make([]byte, 0, len(p))
	for _, b := range p {
		if b < utf8.RuneSelf && strconv.IsPrint(rune(b)) {
			buf = append(buf, b)
			continue
		}
		buf = append(buf, `\x`...)
		buf = append(buf, lowerhex[b>>4])
		buf = append(buf, lowerhex[b&0xF])
	}
	s.Write(buf)
}

// FormatVersionedKey formats an encoded versioned key as "user@epoch". Keys
// too short to carry an epoch are formatted as escaped bytes.
type FormatVersionedKey []byte

// Format implements the fmt.Formatter interface.
func (k FormatVersionedKey) Format(s fmt.State, c rune) {
	if len(k) < EpochLen {
		FormatBytes(k).Format(s, c)
		return
	}
	vk := DecodeVersionedKey(k)
	fmt.Fprintf(s, "%s@%s", FormatBytes(vk.UserKey), vk.Epoch)
}
