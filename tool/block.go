// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/sstable"
	"github.com/hummockdb/hummock/sstable/block"
	"github.com/hummockdb/hummock/sstable/rowblk"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// blockT implements block-level tools, including both configuration state
// and the commands themselves.
type blockT struct {
	Root  *cobra.Command
	Build *cobra.Command
	Check *cobra.Command
	Scan  *cobra.Command
	Seek  *cobra.Command
	Bench *cobra.Command

	// Configuration and state.
	opts *options

	// Flags.
	compression string
	checksum    string
	blockSize   int
	sizeClasses bool
	fmtKey      formatter
	fmtValue    formatter
	start       key
	end         key
	reverse     bool
	le          bool
	bench       benchConfig
}

func newBlock(opts *options) *blockT {
	b := &blockT{opts: opts}
	b.fmtKey.mustSet("pretty")
	b.fmtValue.mustSet("pretty")

	b.Root = &cobra.Command{
		Use:   "block",
		Short: "data block introspection tools",
	}
	b.Build = &cobra.Command{
		Use:   "build <input> <output>",
		Short: "build a block from a text file",
		Long: `
Build a physical block from a text file holding one "user@epoch value" pair
per line. A value of DEL writes a deletion tombstone. Blank lines and lines
starting with '#' are ignored. Input lines may appear in any order.
`,
		Args: cobra.ExactArgs(2),
		Run:  b.runBuild,
	}
	b.Check = &cobra.Command{
		Use:   "check <blocks>",
		Short: "verify checksums, layout and key order",
		Args:  cobra.MinimumNArgs(1),
		Run:   b.runCheck,
	}
	b.Scan = &cobra.Command{
		Use:   "scan <block>",
		Short: "print block records",
		Long: `
Print the records in the block, optionally bounded by --start (inclusive) and
--end (exclusive).
`,
		Args: cobra.ExactArgs(1),
		Run:  b.runScan,
	}
	b.Seek = &cobra.Command{
		Use:   "seek <block> <key>",
		Short: "position an iterator at a key",
		Long: `
Print the first record with a key greater than or equal to the given key, or
with --le the last record with a key less than or equal to it.
`,
		Args: cobra.ExactArgs(2),
		Run:  b.runSeek,
	}
	b.Bench = &cobra.Command{
		Use:   "bench",
		Short: "benchmark concurrent seeks over a synthetic block",
		Args:  cobra.NoArgs,
		Run:   b.runBench,
	}

	b.Root.AddCommand(b.Build, b.Check, b.Scan, b.Seek, b.Bench)
	for _, cmd := range []*cobra.Command{b.Build, b.Bench} {
		cmd.Flags().StringVar(
			&b.compression, "compression", "Snappy", "block compression (NoCompression, Snappy, ZSTD, Minlz)")
		cmd.Flags().IntVar(
			&b.blockSize, "block-size", sstable.DefaultBlockSize, "target uncompressed block size")
	}
	b.Build.Flags().BoolVar(
		&b.sizeClasses, "size-classes", false, "size blocks to jemalloc size classes")
	for _, cmd := range []*cobra.Command{b.Build, b.Check, b.Scan, b.Seek, b.Bench} {
		cmd.Flags().StringVar(
			&b.checksum, "checksum", "xxhash64", "block checksum (crc32c, xxhash64)")
	}
	for _, cmd := range []*cobra.Command{b.Scan, b.Seek} {
		cmd.Flags().Var(
			&b.fmtKey, "key", "key formatter")
		cmd.Flags().Var(
			&b.fmtValue, "value", "value formatter")
	}
	b.Scan.Flags().Var(
		&b.start, "start", "start key for the scan")
	b.Scan.Flags().Var(
		&b.end, "end", "end key for the scan")
	b.Scan.Flags().BoolVarP(
		&b.reverse, "reverse", "r", false, "scan in reverse")
	b.Seek.Flags().BoolVar(
		&b.le, "le", false, "seek to the last key less than or equal to the key")
	b.bench.registerFlags(b.Bench)

	return b
}

// checksumType parses the --checksum flag. Blocks always carry a checksum.
func (b *blockT) checksumType() (block.ChecksumType, error) {
	ct, err := block.ChecksumTypeFromString(b.checksum)
	if err != nil {
		return 0, err
	}
	if ct == block.ChecksumTypeNone {
		return 0, errors.Newf("unsupported checksum type: %q", b.checksum)
	}
	return ct, nil
}

func (b *blockT) readerOptions() (sstable.ReaderOptions, error) {
	o := b.opts.reader
	ct, err := b.checksumType()
	if err != nil {
		return o, err
	}
	o.Checksum = ct
	return o, nil
}

func (b *blockT) writerOptions() (sstable.WriterOptions, error) {
	o := b.opts.writer
	o.BlockSize = b.blockSize
	if b.sizeClasses {
		o.AllocatorSizeClasses = block.JemallocSizeClasses
	}
	o.Compression = block.CompressionFromString(b.compression)
	if o.Compression == block.DefaultCompression && b.compression != block.DefaultCompression.String() {
		return o, errors.Newf("unknown compression: %q", b.compression)
	}
	ct, err := b.checksumType()
	if err != nil {
		return o, err
	}
	o.Checksum = ct
	return o, nil
}

func (b *blockT) openBlock(path string) (*rowblk.Block, error) {
	o, err := b.readerOptions()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return sstable.ReadBlock(data, o)
}

func parseKVs(data []byte) ([]sstable.KV, error) {
	var kvs []sstable.KV
	s := bufio.NewScanner(bytes.NewReader(data))
	for lineNum := 1; s.Scan(); lineNum++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, _ := strings.Cut(line, " ")
		vk, err := base.TryParseVersionedKey(k)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", errors.Safe(lineNum))
		}
		kvs = append(kvs, sstable.KV{Key: vk, Value: base.ParseValue(strings.TrimSpace(v))})
	}
	return kvs, s.Err()
}

func (b *blockT) runBuild(cmd *cobra.Command, args []string) {
	o, err := b.writerOptions()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	kvs, err := parseKVs(data)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", args[0], err)
		return
	}
	sstable.SortKVs(kvs)

	w, err := sstable.NewBlockWriter(o)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	warned := false
	for i, kv := range kvs {
		if !warned && w.ShouldFlush(kv.Key, kv.Value) {
			b.opts.reader.Logger.Infof("block exceeds the target block size of %s at entry %d (%s)",
				crhumanize.Bytes(int64(o.BlockSize), crhumanize.Compact, crhumanize.OmitI), i, kv.Key)
			warned = true
		}
		if err := w.Add(kv.Key, kv.Value); err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", args[0], err)
			return
		}
	}
	logical := w.EstimatedSize()
	physical := w.Finish(nil)
	if err := os.WriteFile(args[1], physical, 0644); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(stdout, "%s: %d entries, %s (%s uncompressed)\n", args[1], len(kvs),
		crhumanize.Bytes(int64(len(physical)), crhumanize.Compact, crhumanize.OmitI),
		crhumanize.Bytes(int64(logical), crhumanize.Compact, crhumanize.OmitI))
}

func (b *blockT) runCheck(cmd *cobra.Command, args []string) {
	failed := false
	for _, arg := range args {
		fmt.Fprintf(stdout, "%s\n", arg)
		if err := b.check(arg); err != nil {
			fmt.Fprintf(stdout, "%s\n", err)
			failed = true
		}
	}
	if failed {
		osExit(1)
	}
}

func (b *blockT) check(path string) (err error) {
	blk, err := b.openBlock(path)
	if err != nil {
		return err
	}
	defer blk.Unref()

	// Corruption that slips past the checksum surfaces as a panic from the
	// iterator.
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok || !base.IsCorruptionError(e) {
				panic(r)
			}
			err = e
		}
	}()

	var puts, dels int
	var prev []byte
	iter := rowblk.NewIter(blk)
	defer iter.Close()
	for k, v := range iter.All() {
		if prev != nil && base.CompareVersionedKeys(prev, k) >= 0 {
			return base.CorruptionErrorf("%s: out of order keys: %s, %s",
				iter, base.FormatVersionedKey(prev), base.FormatVersionedKey(k))
		}
		prev = append(prev[:0], k...)
		val, err := base.DecodeValue(v)
		if err != nil {
			return errors.Wrapf(err, "%s key %s", iter, base.FormatVersionedKey(k))
		}
		if val.IsDelete() {
			dels++
		} else {
			puts++
		}
	}

	tbl := tablewriter.NewWriter(stdout)
	tbl.SetHeader([]string{"entries", "puts", "deletes", "size", "first key", "last key"})
	tbl.SetAutoFormatHeaders(false)
	row := []string{
		fmt.Sprint(blk.Len()), fmt.Sprint(puts), fmt.Sprint(dels),
		string(crhumanize.Bytes(int64(blk.Size()), crhumanize.Compact, crhumanize.OmitI)),
		fmt.Sprint(base.FormatVersionedKey(blk.BaseKey())),
		fmt.Sprint(base.FormatVersionedKey(prev)),
	}
	tbl.Append(row)
	tbl.Render()
	return nil
}

func (b *blockT) runScan(cmd *cobra.Command, args []string) {
	blk, err := b.openBlock(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	defer blk.Unref()
	iter := rowblk.NewIter(blk)
	defer iter.Close()

	if blk.Len() == 0 {
		return
	}
	if !b.reverse {
		var ok bool
		if b.start != nil {
			ok = iter.Seek(b.start, rowblk.SeekOrigin)
		} else {
			ok = iter.SeekToFirst()
		}
		for ; ok; ok = iter.Next() {
			if b.end != nil && base.CompareVersionedKeys(iter.Key(), b.end) >= 0 {
				break
			}
			formatKeyValue(stdout, b.fmtKey, b.fmtValue, iter.Key(), iter.Value())
		}
		return
	}

	var ok bool
	if b.end != nil {
		ok = iter.SeekLE(b.end, rowblk.SeekOrigin)
		if ok && base.CompareVersionedKeys(iter.Key(), b.end) == 0 {
			ok = iter.Prev()
		}
	} else {
		ok = iter.SeekToLast()
	}
	for ; ok; ok = iter.Prev() {
		if b.start != nil && base.CompareVersionedKeys(iter.Key(), b.start) < 0 {
			break
		}
		formatKeyValue(stdout, b.fmtKey, b.fmtValue, iter.Key(), iter.Value())
	}
}

func (b *blockT) runSeek(cmd *cobra.Command, args []string) {
	var k key
	if err := k.Set(args[1]); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	blk, err := b.openBlock(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	defer blk.Unref()
	iter := rowblk.NewIter(blk)
	defer iter.Close()

	var ok bool
	if b.le {
		ok = iter.SeekLE(k, rowblk.SeekOrigin)
	} else {
		ok = iter.Seek(k, rowblk.SeekOrigin)
	}
	if !ok {
		fmt.Fprintf(stdout, "%d: .\n", iter.Index())
		return
	}
	fmt.Fprintf(stdout, "%d: ", iter.Index())
	formatKeyValue(stdout, b.fmtKey, b.fmtValue, iter.Key(), iter.Value())
}
