// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/sstable"
	"github.com/spf13/cobra"
)

// Logger exports the base.Logger type.
type Logger = base.Logger

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command
	block    *blockT
	opts     options
}

type options struct {
	reader sstable.ReaderOptions
	writer sstable.WriterOptions
}

// Option configures the introspection tools.
type Option func(*T)

// WithLogger configures the logger that receives warnings and corruption
// reports.
func WithLogger(logger Logger) Option {
	return func(t *T) {
		t.opts.reader.Logger = logger
	}
}

// New creates a new introspection tool.
func New(opts ...Option) *T {
	t := &T{
		opts: options{
			reader: sstable.ReaderOptions{
				Logger: base.DefaultLogger{},
			},
		},
	}
	for _, opt := range opts {
		opt(t)
	}

	t.block = newBlock(&t.opts)
	t.Commands = []*cobra.Command{
		t.block.Root,
	}
	return t
}
