// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReadMetrics holds the metrics recorded while loading physical blocks. A nil
// *ReadMetrics records nothing.
type ReadMetrics struct {
	// BlocksLoaded counts blocks successfully loaded.
	BlocksLoaded prometheus.Counter
	// BytesLoaded counts physical bytes (including trailers) of loaded blocks.
	BytesLoaded prometheus.Counter
	// CorruptBlocks counts blocks rejected as corrupt, by checksum mismatch
	// or by a malformed layout.
	CorruptBlocks prometheus.Counter
	// DecodeLatency observes the time spent validating and decompressing a
	// block, in nanoseconds.
	DecodeLatency prometheus.Histogram
}

// NewReadMetrics constructs ReadMetrics with metric names in the given
// namespace. The metrics are not registered; see Register.
func NewReadMetrics(namespace string) *ReadMetrics {
	return &ReadMetrics{
		BlocksLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_loaded_total",
			Help:      "Number of sstable blocks loaded.",
		}),
		BytesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_bytes_loaded_total",
			Help:      "Physical bytes of sstable blocks loaded.",
		}),
		CorruptBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrupt_blocks_total",
			Help:      "Number of sstable blocks rejected as corrupt.",
		}),
		DecodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_decode_latency_ns",
			Help:      "Time spent validating and decompressing sstable blocks.",
			Buckets:   []float64{1e3, 1e4, 1e5, 1e6, 1e7, 1e8},
		}),
	}
}

// Register registers all metrics with reg.
func (m *ReadMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.BlocksLoaded, m.BytesLoaded, m.CorruptBlocks, m.DecodeLatency} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoad records a successfully loaded block.
func (m *ReadMetrics) RecordLoad(physicalBytes int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BlocksLoaded.Inc()
	m.BytesLoaded.Add(float64(physicalBytes))
	m.DecodeLatency.Observe(float64(elapsed.Nanoseconds()))
}

// RecordCorruption records a block rejected as corrupt.
func (m *ReadMetrics) RecordCorruption() {
	if m == nil {
		return
	}
	m.CorruptBlocks.Inc()
}
