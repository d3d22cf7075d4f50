// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rowblk

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// testBlock maps the keys "apple", "apricot" and "banana" to empty values.
var testBlock = []byte(
	"\x00\x00\x05\x00apple" +
		"\x02\x00\x05\x00ricot" +
		"\x00\x00\x06\x00banana" +
		"\x00\x00\x00\x00\x09\x00\x00\x00\x12\x00\x00\x00\x03\x00\x00\x00")

func TestBlockIter(t *testing.T) {
	b, err := ParseBlock(testBlock)
	require.NoError(t, err)
	require.Equal(t, 3, b.Len())
	require.Equal(t, "apple", string(b.BaseKey()))

	// Every search key is shorter than an epoch, so the comparator orders
	// them bytewise.
	var testcases = []struct {
		index int
		key   string
	}{
		{0, ""},
		{0, "a"},
		{0, "app"},
		{0, "apple"},
		{1, "applf"},
		{1, "apricos"},
		{1, "apricot"},
		{2, "azzzzzz"},
		{2, "b"},
		{2, "banan"},
		{2, "banana"},
		{3, "banana\x00"},
		{3, "c"},
	}
	for _, tc := range testcases {
		i := NewIter(b)
		i.Seek([]byte(tc.key), SeekOrigin)
		for j, keyWant := range []string{"apple", "apricot", "banana"}[tc.index:] {
			if !i.Valid() {
				t.Fatalf("key=%q, index=%d, j=%d: Valid got false, keyWant true", tc.key, tc.index, j)
			}
			if keyGot := string(i.Key()); keyGot != keyWant {
				t.Fatalf("key=%q, index=%d, j=%d: got %q, keyWant %q", tc.key, tc.index, j, keyGot, keyWant)
			}
			require.Empty(t, i.Value())
			i.Next()
		}
		if i.Valid() {
			t.Fatalf("key=%q, index=%d: Valid got true, keyWant false", tc.key, tc.index)
		}
		if err := i.Close(); err != nil {
			t.Fatalf("key=%q, index=%d: got err=%v", tc.key, tc.index, err)
		}
	}

	{
		i := NewIter(b)
		i.SeekToLast()
		for j, keyWant := range []string{"banana", "apricot", "apple"} {
			if !i.Valid() {
				t.Fatalf("j=%d: Valid got false, want true", j)
			}
			if keyGot := string(i.Key()); keyGot != keyWant {
				t.Fatalf("j=%d: got %q, want %q", j, keyGot, keyWant)
			}
			i.Prev()
		}
		if i.Valid() {
			t.Fatalf("Valid got true, want false")
		}
		require.NoError(t, i.Close())
	}
	b.Unref()
}

func formatIterPos(i *Iter) string {
	k, v, ok := i.Data()
	if !ok {
		return "."
	}
	val, err := base.DecodeValue(v)
	if err != nil {
		return fmt.Sprintf("%s:<%v>", base.FormatVersionedKey(k), err)
	}
	if val.IsDelete() {
		return fmt.Sprintf("%s:DEL", base.FormatVersionedKey(k))
	}
	return fmt.Sprintf("%s:%s", base.FormatVersionedKey(k), val.Data)
}

func runIterCmd(t *testing.T, td *datadriven.TestData, i *Iter) string {
	var buf strings.Builder
	for _, line := range crstrings.Lines(td.Input) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		whence := SeekOrigin
		if len(fields) == 3 && fields[2] == "current" {
			whence = SeekCurrent
		}
		switch fields[0] {
		case "first":
			i.SeekToFirst()
		case "last":
			i.SeekToLast()
		case "next":
			i.Next()
		case "prev":
			i.Prev()
		case "seek":
			i.Seek(base.MakeSearchKey(parseSearchKey(t, fields[1])), whence)
		case "seek-le":
			i.SeekLE(base.MakeSearchKey(parseSearchKey(t, fields[1])), whence)
		case "set-idx":
			idx, err := strconv.Atoi(fields[1])
			require.NoError(t, err)
			i.setIdx(idx)
		case "index":
			fmt.Fprintf(&buf, "%d\n", i.Index())
			continue
		case "is-last":
			fmt.Fprintf(&buf, "%t\n", i.IsLast())
			continue
		default:
			t.Fatalf("unknown op: %s", fields[0])
		}
		fmt.Fprintln(&buf, formatIterPos(i))
	}
	return buf.String()
}

func parseSearchKey(t *testing.T, s string) ([]byte, base.Epoch) {
	k, err := base.TryParseVersionedKey(s)
	require.NoError(t, err)
	return k.UserKey, k.Epoch
}

func TestIterDataDriven(t *testing.T) {
	var blk *Block
	defer func() {
		if blk != nil {
			blk.Unref()
		}
	}()
	w := &Writer{}
	datadriven.RunTest(t, "testdata/iter", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "build":
			w.Reset()
			for _, line := range crstrings.Lines(td.Input) {
				if strings.TrimSpace(line) == "" {
					continue
				}
				key, value, _ := strings.Cut(line, " ")
				if err := w.AddVersioned(base.ParseVersionedKey(key), base.ParseValue(value)); err != nil {
					return err.Error()
				}
			}
			b, err := ParseBlock(slices.Clone(w.Finish()))
			if err != nil {
				return err.Error()
			}
			if blk != nil {
				blk.Unref()
			}
			blk = b
			return ""

		case "iter":
			i := NewIter(blk)
			defer func() { require.NoError(t, i.Close()) }()
			return runIterCmd(t, td, i)

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

func buildTestBlock(t testing.TB, keys [][]byte, values [][]byte) *Block {
	w := &Writer{}
	for j := range keys {
		require.NoError(t, w.Add(keys[j], values[j]))
	}
	b, err := ParseBlock(slices.Clone(w.Finish()))
	require.NoError(t, err)
	return b
}

func TestIterKeyTestScenario(t *testing.T) {
	var keys, values [][]byte
	for j := 0; j < 10; j++ {
		keys = append(keys, []byte(fmt.Sprintf("key_test_%d", j)))
		values = append(values, base.PutValue([]byte(fmt.Sprintf("val_%d", j))).Encode(nil))
	}
	b := buildTestBlock(t, keys, values)
	defer b.Unref()

	i := NewIter(b)
	defer i.Close()

	checkKV := func(wantKey, wantValue string) {
		t.Helper()
		k, v, ok := i.Data()
		require.True(t, ok)
		require.Equal(t, wantKey, string(k))
		val, err := base.DecodeValue(v)
		require.NoError(t, err)
		require.Equal(t, base.PutValue([]byte(wantValue)), val)
	}

	require.True(t, i.Seek([]byte("key_test_4"), SeekOrigin))
	checkKV("key_test_4", "val_4")

	require.True(t, i.Seek([]byte("key_test"), SeekOrigin))
	checkKV("key_test_0", "val_0")

	require.False(t, i.Seek([]byte("key_test_99"), SeekOrigin))
	_, _, ok := i.Data()
	require.False(t, ok)
	require.Nil(t, i.Key())
	require.Nil(t, i.Value())

	require.True(t, i.setIdx(3))
	require.True(t, i.Seek([]byte("key_test_0"), SeekCurrent))
	checkKV("key_test_3", "val_3")
	require.Equal(t, 3, i.Index())
}

// randomBlock returns a block of n distinct versioned keys in sorted order,
// with their encoded keys and values.
func randomBlock(t testing.TB, rng *rand.Rand, n int) (*Block, [][]byte, [][]byte) {
	seen := make(map[string]bool)
	var keys [][]byte
	for len(keys) < n {
		userKey := make([]byte, 1+rng.Intn(12))
		for j := range userKey {
			userKey[j] = "abcde"[rng.Intn(5)]
		}
		k := base.MakeSearchKey(userKey, base.Epoch(rng.Intn(20)))
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		keys = append(keys, k)
	}
	slices.SortFunc(keys, base.CompareVersionedKeys)
	values := make([][]byte, n)
	for j := range values {
		values[j] = base.PutValue([]byte(fmt.Sprintf("v%d", j))).Encode(nil)
	}
	return buildTestBlock(t, keys, values), keys, values
}

// randomSeekKey returns either a stored key or a key that is likely absent.
func randomSeekKey(rng *rand.Rand, keys [][]byte) []byte {
	if len(keys) > 0 && rng.Intn(2) == 0 {
		return keys[rng.Intn(len(keys))]
	}
	userKey := make([]byte, rng.Intn(13))
	for j := range userKey {
		userKey[j] = "abcdef"[rng.Intn(6)]
	}
	return base.MakeSearchKey(userKey, base.Epoch(rng.Intn(25)))
}

func lowerBound(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(j int) bool {
		return base.CompareVersionedKeys(keys[j], key) >= 0
	})
}

func upperBound(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(j int) bool {
		return base.CompareVersionedKeys(keys[j], key) > 0
	})
}

func requireAt(t *testing.T, i *Iter, keys, values [][]byte, idx int) {
	t.Helper()
	require.Equal(t, idx, i.Index())
	if idx < 0 || idx >= len(keys) {
		require.False(t, i.Valid())
		return
	}
	k, v, ok := i.Data()
	require.True(t, ok)
	require.Equal(t, keys[idx], k)
	require.Equal(t, values[idx], v)
	require.Equal(t, idx == len(keys)-1, i.IsLast())
}

func TestIterTraversal(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(1)))
	for _, n := range []int{1, 2, 7, 100, 500} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			b, keys, values := randomBlock(t, rng, n)
			defer b.Unref()
			i := NewIter(b)
			defer i.Close()

			require.True(t, i.SeekToFirst())
			for j := 0; j < n; j++ {
				requireAt(t, i, keys, values, j)
				require.Equal(t, j < n-1, i.Next())
			}
			require.Equal(t, n, i.Index())
			require.False(t, i.Next())
			require.Equal(t, n, i.Index())

			require.True(t, i.SeekToLast())
			for j := n - 1; j >= 0; j-- {
				requireAt(t, i, keys, values, j)
				require.Equal(t, j > 0, i.Prev())
			}
			require.Equal(t, -1, i.Index())
			require.False(t, i.Prev())
			require.Equal(t, -1, i.Index())

			var got [][]byte
			for k := range i.All() {
				got = append(got, slices.Clone(k))
			}
			require.Equal(t, keys, got)
		})
	}
}

func TestIterSeek(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(2)))
	b, keys, values := randomBlock(t, rng, 300)
	defer b.Unref()
	i := NewIter(b)
	defer i.Close()

	for _, k := range keys {
		require.True(t, i.Seek(k, SeekOrigin))
		require.Equal(t, k, i.Key())
		require.True(t, i.SeekLE(k, SeekOrigin))
		require.Equal(t, k, i.Key())
	}

	for j := 0; j < 2000; j++ {
		target := randomSeekKey(rng, keys)
		i.Seek(target, SeekOrigin)
		requireAt(t, i, keys, values, lowerBound(keys, target))
		i.SeekLE(target, SeekOrigin)
		requireAt(t, i, keys, values, upperBound(keys, target)-1)
	}

	require.True(t, i.Seek(base.MakeSearchKey(nil, base.EpochMax), SeekOrigin))
	requireAt(t, i, keys, values, 0)
	require.False(t, i.SeekLE(base.MakeSearchKey(nil, base.EpochMax), SeekOrigin))
	require.Equal(t, -1, i.Index())
	require.False(t, i.Seek(base.MakeSearchKey([]byte("zzz"), 0), SeekOrigin))
	require.Equal(t, len(keys), i.Index())
	require.True(t, i.SeekLE(base.MakeSearchKey([]byte("zzz"), 0), SeekOrigin))
	requireAt(t, i, keys, values, len(keys)-1)
}

func TestIterSeekCurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(3)))
	b, keys, values := randomBlock(t, rng, 200)
	defer b.Unref()
	i := NewIter(b)
	defer i.Close()

	for j := 0; j < 2000; j++ {
		target := randomSeekKey(rng, keys)
		pos := rng.Intn(len(keys)+2) - 1
		i.setIdx(pos)
		i.Seek(target, SeekCurrent)
		requireAt(t, i, keys, values, max(pos, 0, lowerBound(keys, target)))

		i.setIdx(pos)
		i.SeekLE(target, SeekCurrent)
		want := upperBound(keys, target) - 1
		if pos < len(keys) {
			want = min(want, pos)
		}
		requireAt(t, i, keys, values, want)
	}
}

// TestIterIndependence drives two iterators over one block through unrelated
// operations and checks neither observes the other nor modifies the block.
func TestIterIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(4)))
	b, keys, values := randomBlock(t, rng, 150)
	defer b.Unref()
	before := slices.Clone(b.RawEntry(0))

	iters := []*Iter{NewIter(b), NewIter(b)}
	require.Equal(t, int32(3), b.Refs())
	positions := []int{-1, -1}
	for j := 0; j < 3000; j++ {
		w := rng.Intn(2)
		i := iters[w]
		switch rng.Intn(6) {
		case 0:
			i.SeekToFirst()
		case 1:
			i.SeekToLast()
		case 2:
			i.Next()
		case 3:
			i.Prev()
		case 4:
			i.Seek(randomSeekKey(rng, keys), SeekOrigin)
		case 5:
			i.SeekLE(randomSeekKey(rng, keys), SeekOrigin)
		}
		positions[w] = i.Index()
		for x := range iters {
			requireAt(t, iters[x], keys, values, positions[x])
		}
	}
	if diff := pretty.Diff(before, b.RawEntry(0)); len(diff) > 0 {
		t.Fatalf("block modified:\n%s", strings.Join(diff, "\n"))
	}
	for _, i := range iters {
		require.NoError(t, i.Close())
	}
	require.Equal(t, int32(1), b.Refs())
}

func TestIterSetBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(5)))
	b1, keys1, values1 := randomBlock(t, rng, 20)
	b2, keys2, values2 := randomBlock(t, rng, 30)

	i := NewIter(b1)
	require.True(t, i.SeekToLast())
	requireAt(t, i, keys1, values1, 19)
	require.Equal(t, "rowblk.Iter(entry 19 of 20)", i.String())

	i.SetBlock(b2)
	require.Equal(t, int32(1), b1.Refs())
	require.Equal(t, int32(2), b2.Refs())
	require.Equal(t, -1, i.Index())
	require.False(t, i.Valid())
	require.Equal(t, "rowblk.Iter(entry -1 of 30)", i.String())
	require.True(t, i.Next())
	requireAt(t, i, keys2, values2, 0)

	require.NoError(t, i.Close())
	require.Equal(t, "rowblk.Iter(unbound)", i.String())
	require.Equal(t, int32(1), b2.Refs())
	b1.Unref()
	b2.Unref()
}

func TestIterSeekToLastEmpty(t *testing.T) {
	b, err := ParseBlock((&Writer{}).Finish())
	require.NoError(t, err)
	i := NewIter(b)
	defer i.Close()
	require.False(t, i.SeekToFirst())
	require.Panics(t, func() { i.SeekToLast() })
}

func requireCorruptionPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, base.ErrCorruption), "%v", err)
	}()
	fn()
}

func TestIterCorruptEntry(t *testing.T) {
	data := bytes.Clone(testBlock)
	b, err := ParseBlock(data)
	require.NoError(t, err)
	i := NewIter(b)
	defer i.Close()
	require.True(t, i.SeekToFirst())

	// Corrupt the overlap of "apricot" after the block has been loaded.
	data[9] = 0x40
	requireCorruptionPanic(t, func() { i.Next() })

	// A suffix length that runs past the entry.
	data[9], data[11] = 0x02, 0x40
	requireCorruptionPanic(t, func() { i.setIdx(1) })
}

func BenchmarkIterSeek(b *testing.B) {
	rng := rand.New(rand.NewSource(uint64(6)))
	blk, keys, _ := randomBlock(b, rng, 1000)
	defer blk.Unref()
	i := NewIter(blk)
	defer i.Close()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		i.Seek(keys[n%len(keys)], SeekOrigin)
	}
}

func BenchmarkIterNext(b *testing.B) {
	rng := rand.New(rand.NewSource(uint64(7)))
	blk, _, _ := randomBlock(b, rng, 1000)
	defer blk.Unref()
	i := NewIter(blk)
	defer i.Close()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if !i.Next() {
			i.SeekToFirst()
		}
	}
}
