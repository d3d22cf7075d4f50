// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"fmt"
	"slices"
)

// maxFlushBoundaries bounds the number of size classes below the target that
// are considered as flush points.
const maxFlushBoundaries = 4

// FlushGovernor decides when a block under construction should be finished.
// It is immutable and can be copied by value.
//
// A block always accepts another entry while it stays under the low
// watermark, and never grows past the high watermark. Between the two, the
// governor flushes at a size class boundary when crossing it would leave more
// of the allocation unused than stopping short of it.
type FlushGovernor struct {
	lowWatermark  int
	highWatermark int
	numBoundaries int
	boundaries    [maxFlushBoundaries]int
}

// MakeFlushGovernor returns a governor for blocks of targetBlockSize bytes.
//
// Without usable size classes (none given, or the target lies outside them),
// blocks are flushed right before exceeding the target, unless they would be
// smaller than thresholdPct percent of it.
//
// With size classes, the high watermark becomes the smallest class holding
// the target, and classes no smaller than classAwarePct percent of the target
// become candidate flush points.
func MakeFlushGovernor(
	targetBlockSize, thresholdPct, classAwarePct int, sizeClasses []int,
) FlushGovernor {
	var fg FlushGovernor
	upper, _ := slices.BinarySearch(sizeClasses, targetBlockSize)
	if upper == 0 || upper == len(sizeClasses) {
		fg.lowWatermark = percentOf(targetBlockSize, thresholdPct)
		fg.highWatermark = targetBlockSize
		return fg
	}
	fg.highWatermark = sizeClasses[upper]
	fg.lowWatermark = min(percentOf(targetBlockSize, classAwarePct), fg.highWatermark)
	for _, c := range sizeClasses[max(0, upper-maxFlushBoundaries):upper] {
		if c < fg.lowWatermark {
			continue
		}
		fg.boundaries[fg.numBoundaries] = c
		fg.numBoundaries++
	}
	return fg
}

func percentOf(n, pct int) int {
	return (n*pct + 99) / 100
}

// LowWatermark returns the smallest block size that ShouldFlush may accept
// for flushing.
func (fg *FlushGovernor) LowWatermark() int {
	return fg.lowWatermark
}

// ShouldFlush returns true if a block of sizeBefore bytes should be finished
// instead of growing to sizeAfter bytes.
func (fg *FlushGovernor) ShouldFlush(sizeBefore, sizeAfter int) bool {
	switch {
	case sizeBefore >= sizeAfter:
		return false
	case sizeBefore < fg.lowWatermark:
		return false
	case sizeAfter > fg.highWatermark:
		return true
	}
	return fg.wastedSpace(sizeBefore) < fg.wastedSpace(sizeAfter)
}

// wastedSpace returns the bytes left unused in the size class a block of the
// given size is allocated from.
func (fg *FlushGovernor) wastedSpace(size int) int {
	for _, b := range fg.boundaries[:fg.numBoundaries] {
		if b >= size {
			return b - size
		}
	}
	return fg.highWatermark - size
}

func (fg FlushGovernor) String() string {
	return fmt.Sprintf("low watermark: %d\nhigh watermark: %d\nboundaries: %v\n",
		fg.lowWatermark, fg.highWatermark, fg.boundaries[:fg.numBoundaries])
}

// JemallocSizeClasses are the jemalloc size classes between 16 KiB and
// 320 KiB, suitable for WriterOptions.AllocatorSizeClasses.
var JemallocSizeClasses = []int{
	16 * 1024,
	20 * 1024, 24 * 1024, 28 * 1024, 32 * 1024,
	40 * 1024, 48 * 1024, 56 * 1024, 64 * 1024,
	80 * 1024, 96 * 1024, 112 * 1024, 128 * 1024,
	160 * 1024, 192 * 1024, 224 * 1024, 256 * 1024,
	320 * 1024,
}
