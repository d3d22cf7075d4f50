// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across Hummock's storage read
// path: versioned keys and their ordering, the tagged value encoding, the
// corruption error marker and the logging interface.
//
// # Versioned keys
//
// Every key stored in a block is a user key followed by an 8-byte epoch
// suffix. The suffix holds the bitwise complement of the epoch in big-endian
// order, so a plain bytewise comparison of two suffixes orders newer epochs
// before older ones. [CompareVersionedKeys] is the single ordering used by the
// block writer, the block iterator and the tools. A reader positioned with
// Seek(MakeVersionedKey(k, e)) lands on the newest version of k whose epoch is
// at most e.
package base
