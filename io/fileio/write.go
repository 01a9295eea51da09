// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fileio contains the sharded file write shared by the file sinks.
//
// A Write describes where and how a PCollection is written: a path prefix and
// suffix, a Sink that formats elements, and the sharding the user asked for.
// Files are named <prefix>-SSSSS-of-NNNNN<suffix>, or <prefix><suffix> when
// sharding is disabled.
package fileio

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slog"
)

// Sink formats elements into the bytes of one file.
type Sink interface {
	// NewWriter returns a ShardWriter emitting to w. Closing the ShardWriter
	// flushes it but does not close w.
	NewWriter(w io.Writer) (ShardWriter, error)
}

// ShardWriter writes the elements of a single output file.
type ShardWriter interface {
	Write(elm any) error
	Close() error
}

// Write is the payload of a WriteFiles transform.
type Write struct {
	Prefix string
	Suffix string
	Sink   Sink

	// NumShards is the exact number of files to write. Zero leaves the
	// choice to the runner.
	NumShards int
	// WithoutSharding writes exactly one file named <prefix><suffix>.
	WithoutSharding bool
}

// WriteOption configures a Write.
type WriteOption func(*Write)

// WithSuffix sets the file suffix.
func WithSuffix(suffix string) WriteOption {
	return func(w *Write) {
		w.Suffix = suffix
	}
}

// WithNumShards sets the exact number of output files.
func WithNumShards(numShards int) WriteOption {
	return func(w *Write) {
		w.NumShards = numShards
	}
}

// WithoutSharding writes a single file with no shard template.
func WithoutSharding() WriteOption {
	return func(w *Write) {
		w.WithoutSharding = true
	}
}

// NewWrite returns a Write with the given options applied.
func NewWrite(prefix, suffix string, sink Sink, opts ...WriteOption) *Write {
	w := &Write{Prefix: prefix, Suffix: suffix, Sink: sink}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ShardingSpecified reports whether the user decided the sharding, either by
// disabling it or by setting a shard count.
func (w *Write) ShardingSpecified() bool {
	return w.WithoutSharding || w.NumShards > 0
}

// ShardCount returns the number of files the write produces, or zero if the
// runner has yet to decide it.
func (w *Write) ShardCount() int {
	if w.WithoutSharding {
		return 1
	}
	return w.NumShards
}

// WithShards returns a copy of w that writes exactly numShards files.
func (w *Write) WithShards(numShards int) *Write {
	cp := *w
	cp.NumShards = numShards
	cp.WithoutSharding = false
	return &cp
}

// FileName returns the name of the given shard.
func (w *Write) FileName(shard int) string {
	if w.WithoutSharding {
		return w.Prefix + w.Suffix
	}
	return FormatShardName(w.Prefix, w.Suffix, shard, w.NumShards)
}

// Validate checks that the write can run.
func (w *Write) Validate() error {
	if w.Sink == nil {
		return errors.InvalidArgumentf("write to %v has no sink", w.Prefix)
	}
	if w.NumShards < 0 {
		return errors.InvalidArgumentf("write to %v has negative shard count %d", w.Prefix, w.NumShards)
	}
	return filesystem.ValidateScheme(w.Prefix)
}

// FormatShardName creates filename: prefix-SSSSS-of-NNNNN.suffix
func FormatShardName(prefix, suffix string, shardNum, numShards int) string {
	width := max(len(fmt.Sprintf("%d", numShards-1)), 5)
	return fmt.Sprintf("%s-%0*d-of-%0*d%s", prefix, width, shardNum, width, numShards, suffix)
}

// WriteShard writes elms to the named file through the sink. An empty elms
// still creates the file.
func (w *Write) WriteShard(ctx context.Context, filename string, elms []any) (err error) {
	fs, err := filesystem.New(ctx, filename)
	if err != nil {
		return err
	}
	defer fs.Close()

	fd, err := fs.OpenWrite(ctx, filename)
	if err != nil {
		return errors.Wrapf(err, "opening %v", filename)
	}
	cw := &countingWriter{w: fd}
	defer func() {
		if cerr := fd.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %v", filename)
		}
		if err == nil {
			slog.Debug("wrote shard", slog.String("file", filename), slog.Int("elements", len(elms)), slog.String("size", humanize.Bytes(cw.n)))
		}
	}()

	sw, err := w.Sink.NewWriter(cw)
	if err != nil {
		return errors.Wrapf(err, "creating writer for %v", filename)
	}
	for _, elm := range elms {
		if err := sw.Write(elm); err != nil {
			sw.Close()
			return errors.Wrapf(err, "writing %v", filename)
		}
	}
	return sw.Close()
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// WriteFiles adds a transform writing in to files as described by w. Its
// output holds the names of the written files.
func WriteFiles(g *graph.Graph, s *graph.Scope, name string, w *Write, in *graph.PCollection) *graph.Transform {
	return g.NewTransform(s, graph.WriteFiles, name, w, in)
}
