// Copyright 2022 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ValueKind is the tag byte that prefixes every value stored in a block.
type ValueKind uint8

// These constants are part of the file format, and should not be changed.
const (
	ValueKindPut    ValueKind = 0
	ValueKindDelete ValueKind = 1
)

func (k ValueKind) String() string {
	switch k {
	case ValueKindPut:
		return "PUT"
	case ValueKindDelete:
		return "DEL"
	}
	return "INVALID"
}

// Value is a decoded block value: either a put carrying bytes or a deletion
// tombstone.
type Value struct {
	Kind ValueKind
	// Data is nil for deletes. It aliases the encoded buffer it was decoded
	// from.
	Data []byte
}

// PutValue returns a put of data.
func PutValue(data []byte) Value {
	return Value{Kind: ValueKindPut, Data: data}
}

// DeleteValue returns a tombstone.
func DeleteValue() Value {
	return Value{Kind: ValueKindDelete}
}

// IsDelete returns true for tombstones.
func (v Value) IsDelete() bool {
	return v.Kind == ValueKindDelete
}

// EncodedLen returns the length of the encoded value.
func (v Value) EncodedLen() int {
	if v.Kind == ValueKindDelete {
		return 1
	}
	return 1 + len(v.Data)
}

// Encode appends the encoded value to dst.
func (v Value) Encode(dst []byte) []byte {
	dst = append(dst, byte(v.Kind))
	if v.Kind == ValueKindPut {
		dst = append(dst, v.Data...)
	}
	return dst
}

// DecodeValue decodes a raw value as returned by a block iterator.
func DecodeValue(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Value{}, CorruptionErrorf("hummock: empty value")
	}
	switch k := ValueKind(raw[0]); k {
	case ValueKindPut:
		return Value{Kind: k, Data: raw[1:]}, nil
	case ValueKindDelete:
		if len(raw) != 1 {
			return Value{}, CorruptionErrorf("hummock: delete value carries %d payload bytes",
				errors.Safe(len(raw)-1))
		}
		return Value{Kind: k}, nil
	default:
		return Value{}, CorruptionErrorf("hummock: unknown value kind %d", errors.Safe(raw[0]))
	}
}
