// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseEpoch parses the string representation of an epoch. "max" parses as
// EpochMax.
func ParseEpoch(s string) Epoch {
	e, err := TryParseEpoch(s)
	if err != nil {
		panic(err)
	}
	return e
}

// TryParseEpoch is like ParseEpoch but returns an error instead of panicking.
func TryParseEpoch(s string) (Epoch, error) {
	if s == "max" {
		return EpochMax, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %q as epoch", s)
	}
	return Epoch(n), nil
}

// ParseVersionedKey parses the "user@epoch" representation of a versioned
// key. The last '@' separates the epoch, so user keys may contain '@'.
func ParseVersionedKey(s string) VersionedKey {
	k, err := TryParseVersionedKey(s)
	if err != nil {
		panic(fmt.Sprintf("invalid versioned key %q: %s", s, err))
	}
	return k
}

// TryParseVersionedKey is like ParseVersionedKey but returns an error instead
// of panicking.
func TryParseVersionedKey(s string) (VersionedKey, error) {
	sep := strings.LastIndexByte(s, '@')
	if sep == -1 {
		return VersionedKey{}, errors.Newf("missing '@' in versioned key %q", s)
	}
	epoch, err := TryParseEpoch(s[sep+1:])
	if err != nil {
		return VersionedKey{}, err
	}
	return MakeVersionedKey([]byte(s[:sep]), epoch), nil
}

// ParseValue parses a value in the notation used by tests and tools: "DEL"
// is a tombstone and anything else is a put of the literal bytes.
func ParseValue(s string) Value {
	if s == "DEL" {
		return DeleteValue()
	}
	return PutValue([]byte(s))
}
