// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/redact"
)

// Epoch is the version component of a versioned key. Writes committed in a
// later epoch shadow writes of the same user key committed earlier.
type Epoch uint64

const (
	// EpochLen is the number of bytes an epoch occupies at the end of an
	// encoded versioned key.
	EpochLen = 8
	// EpochMax is the largest epoch. A seek key built with EpochMax sorts
	// before every stored version of its user key.
	EpochMax Epoch = math.MaxUint64
)

func (e Epoch) String() string {
	if e == EpochMax {
		return "max"
	}
	return strconv.FormatUint(uint64(e), 10)
}

// SafeFormat implements redact.SafeFormatter.
func (e Epoch) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(e.String()))
}

// encodeEpoch writes the complemented big-endian form of e into dst, which
// must have room for EpochLen bytes.
func encodeEpoch(dst []byte, e Epoch) {
	binary.BigEndian.PutUint64(dst, ^uint64(e))
}

// decodeEpoch is the inverse of encodeEpoch.
func decodeEpoch(src []byte) Epoch {
	return Epoch(^binary.BigEndian.Uint64(src))
}

// VersionedKey is the decoded form of a key as stored in a block.
type VersionedKey struct {
	UserKey []byte
	Epoch   Epoch
}

// MakeVersionedKey constructs a VersionedKey from a user key and an epoch.
func MakeVersionedKey(userKey []byte, epoch Epoch) VersionedKey {
	return VersionedKey{UserKey: userKey, Epoch: epoch}
}

// MakeSearchKey returns the encoded key that a forward seek should use to find
// the newest version of userKey visible at epoch.
func MakeSearchKey(userKey []byte, epoch Epoch) []byte {
	return MakeVersionedKey(userKey, epoch).Encode(nil)
}

// DecodeVersionedKey decodes an encoded versioned key. The returned UserKey
// aliases the input. Keys shorter than EpochLen decode with a nil UserKey and
// a zero epoch.
func DecodeVersionedKey(encoded []byte) VersionedKey {
	n := len(encoded) - EpochLen
	if n < 0 {
		return VersionedKey{}
	}
	return VersionedKey{UserKey: encoded[:n:n], Epoch: decodeEpoch(encoded[n:])}
}

// SplitVersionedKey returns the user key and the raw epoch suffix of an
// encoded key, using the same split point as CompareVersionedKeys.
func SplitVersionedKey(encoded []byte) (userKey, suffix []byte) {
	n := Split(encoded)
	return encoded[:n:n], encoded[n:]
}

// Size returns the encoded size of the key.
func (k VersionedKey) Size() int {
	return len(k.UserKey) + EpochLen
}

// Encode appends the encoded key to dst and returns the extended buffer.
func (k VersionedKey) Encode(dst []byte) []byte {
	n := len(dst)
	dst = append(dst, k.UserKey...)
	dst = append(dst, make([]byte, EpochLen)...)
	encodeEpoch(dst[n+len(k.UserKey):], k.Epoch)
	return dst
}

// Compare compares k with other under the versioned key ordering, agreeing
// with CompareVersionedKeys on the encoded keys.
func (k VersionedKey) Compare(other VersionedKey) int {
	if c := bytes.Compare(k.UserKey, other.UserKey); c != 0 {
		return c
	}
	return cmp.Compare(other.Epoch, k.Epoch)
}

// Clone returns a copy of k that does not alias any other memory.
func (k VersionedKey) Clone() VersionedKey {
	if k.UserKey == nil {
		return k
	}
	return VersionedKey{UserKey: append([]byte(nil), k.UserKey...), Epoch: k.Epoch}
}

// String returns a string representation of the key.
func (k VersionedKey) String() string {
	return fmt.Sprintf("%s@%s", FormatBytes(k.UserKey), k.Epoch)
}

// SafeFormat implements redact.SafeFormatter. The user key is considered
// unsafe; the epoch is not.
func (k VersionedKey) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s@%s", redact.Unsafe(string(k.UserKey)), k.Epoch)
}
