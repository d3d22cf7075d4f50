// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/sstable"
	"github.com/hummockdb/hummock/sstable/block"
	"github.com/hummockdb/hummock/sstable/rowblk"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

const (
	minLatency = 10 * time.Nanosecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

// namedHistogram collects latencies from any number of workers.
type namedHistogram struct {
	name string
	mu   struct {
		sync.Mutex
		hist *hdrhistogram.Histogram
	}
}

func newNamedHistogram(name string) *namedHistogram {
	w := &namedHistogram{name: name}
	w.mu.hist = newHistogram()
	return w
}

// Merge folds a worker-local histogram into w.
func (w *namedHistogram) Merge(h *hdrhistogram.Histogram) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mu.hist.Merge(h)
}

func record(h *hdrhistogram.Histogram, name string, elapsed time.Duration) {
	elapsed = min(max(elapsed, minLatency), maxLatency)
	if err := h.RecordValue(elapsed.Nanoseconds()); err != nil {
		// Values are clamped to the histogram's range, so this never happens.
		panic(fmt.Sprintf(`%s: recording value: %s`, name, err))
	}
}

type benchConfig struct {
	keys        int
	versions    int
	valueSize   int
	concurrency int
	ops         int
	seed        uint64
}

func (c *benchConfig) registerFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(
		&c.keys, "keys", 1000, "number of distinct user keys in the block")
	cmd.Flags().IntVar(
		&c.versions, "versions", 3, "number of versions per user key")
	cmd.Flags().IntVar(
		&c.valueSize, "value-size", 32, "size of each value")
	cmd.Flags().IntVarP(
		&c.concurrency, "concurrency", "c", 4, "number of concurrent workers")
	cmd.Flags().IntVarP(
		&c.ops, "ops", "n", 100000, "total number of seeks across all workers")
	cmd.Flags().Uint64Var(
		&c.seed, "seed", 1, "random seed for key generation")
}

func benchUserKey(i int) []byte {
	return []byte(fmt.Sprintf("user%08d", i))
}

// buildBenchBlock writes a synthetic physical block.
func buildBenchBlock(c benchConfig, o sstable.WriterOptions, rng *rand.Rand) ([]byte, error) {
	w, err := sstable.NewBlockWriter(o)
	if err != nil {
		return nil, err
	}
	value := make([]byte, c.valueSize)
	for i := 0; i < c.keys; i++ {
		for v := c.versions; v > 0; v-- {
			rng.Read(value)
			if err := w.Add(base.MakeVersionedKey(benchUserKey(i), base.Epoch(v)), base.PutValue(value)); err != nil {
				return nil, err
			}
		}
	}
	return w.Finish(nil), nil
}

func (b *blockT) runBench(cmd *cobra.Command, args []string) {
	c := b.bench
	if c.keys <= 0 || c.versions <= 0 || c.concurrency <= 0 || c.ops <= 0 {
		fmt.Fprintf(stderr, "--keys, --versions, --concurrency and --ops must be positive\n")
		return
	}
	wo, err := b.writerOptions()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	ro, err := b.readerOptions()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}

	rng := rand.New(rand.NewSource(c.seed))
	physical, err := buildBenchBlock(c, wo, rng)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}

	reg := prometheus.NewRegistry()
	ro.Metrics = block.NewReadMetrics("hummock")
	if err := ro.Metrics.Register(reg); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	blk, err := sstable.ReadBlock(physical, ro)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	defer blk.Unref()

	seeks := newNamedHistogram("seek")
	seekLEs := newNamedHistogram("seek-le")
	var g errgroup.Group
	start := time.Now()
	for w := 0; w < c.concurrency; w++ {
		n := c.ops / c.concurrency
		if w < c.ops%c.concurrency {
			n++
		}
		workerSeed := c.seed + uint64(w) + 1
		g.Go(func() error {
			return benchWorker(blk, c, n, workerSeed, seeks, seekLEs)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	elapsed := time.Since(start)

	fmt.Fprintf(stdout, "block: %d entries, %s physical, %s logical\n", blk.Len(),
		crhumanize.Bytes(int64(len(physical)), crhumanize.Compact, crhumanize.OmitI),
		crhumanize.Bytes(int64(blk.Size()), crhumanize.Compact, crhumanize.OmitI))

	tbl := tablewriter.NewWriter(stdout)
	tbl.SetHeader([]string{"op", "count", "p50(ns)", "p95(ns)", "p99(ns)", "max(ns)"})
	tbl.SetAutoFormatHeaders(false)
	for _, h := range []*namedHistogram{seeks, seekLEs} {
		h.mu.Lock()
		hist := h.mu.hist
		tbl.Append([]string{
			h.name,
			fmt.Sprint(hist.TotalCount()),
			fmt.Sprint(hist.ValueAtQuantile(50)),
			fmt.Sprint(hist.ValueAtQuantile(95)),
			fmt.Sprint(hist.ValueAtQuantile(99)),
			fmt.Sprint(hist.Max()),
		})
		h.mu.Unlock()
	}
	tbl.Render()
	fmt.Fprintf(stdout, "%d ops in %s (%s ops/sec)\n", c.ops, elapsed.Round(time.Millisecond),
		crhumanize.Count(int64(float64(c.ops)/elapsed.Seconds()), crhumanize.Compact))

	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(stdout, "%s %g\n", mf.GetName(), m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(stdout, "%s_count %d\n", mf.GetName(), m.GetHistogram().GetSampleCount())
			}
		}
	}
}

// benchWorker runs n seeks over a shared block with its own iterator,
// alternating between Seek and SeekLE.
func benchWorker(
	blk *rowblk.Block, c benchConfig, n int, seed uint64, seeks, seekLEs *namedHistogram,
) error {
	rng := rand.New(rand.NewSource(seed))
	iter := rowblk.NewIter(blk)
	defer iter.Close()
	seekHist, seekLEHist := newHistogram(), newHistogram()

	var searchKey []byte
	for i := 0; i < n; i++ {
		userKey := benchUserKey(rng.Intn(c.keys))
		epoch := base.Epoch(rng.Intn(c.versions + 1))
		searchKey = base.MakeVersionedKey(userKey, epoch).Encode(searchKey[:0])

		start := time.Now()
		if i%2 == 0 {
			iter.Seek(searchKey, rowblk.SeekOrigin)
			record(seekHist, seeks.name, time.Since(start))
		} else {
			iter.SeekLE(searchKey, rowblk.SeekOrigin)
			record(seekLEHist, seekLEs.name, time.Since(start))
		}
	}
	seeks.Merge(seekHist)
	seekLEs.Merge(seekLEHist)
	return nil
}
