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

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
	_ "github.com/apache/beam/localrunner/io/filesystem/gcs"
	_ "github.com/apache/beam/localrunner/io/filesystem/local"
	_ "github.com/apache/beam/localrunner/io/filesystem/memfs"
	_ "github.com/apache/beam/localrunner/io/filesystem/s3"
	"github.com/apache/beam/localrunner/io/fileio"
	"github.com/apache/beam/localrunner/io/textio"
	"github.com/apache/beam/localrunner/runners/local"
	"github.com/spf13/cobra"
)

var (
	streaming  bool
	unbounded  bool
	configPath string
	variant    string
	numShards  int
	input      string
	output     string
)

func addPipelineFlags(c *cobra.Command) {
	c.Flags().BoolVar(&streaming, "streaming", false, "Run in streaming mode even if every source is bounded.")
	c.Flags().BoolVar(&unbounded, "unbounded", false, "Feed the input lines through an unbounded source.")
	c.Flags().StringVar(&configPath, "config", "", "Path of a runner settings file.")
	c.Flags().StringVar(&variant, "variant", "", "Variant of the runner settings file to use. Defaults to the file's default variant.")
	c.Flags().IntVar(&numShards, "shards", 0, "Number of output files. Zero lets the runner decide.")
	c.Flags().StringVar(&input, "input", "", "File of input lines. Defaults to a few built-in lines.")
	c.Flags().StringVar(&output, "output", "", "Output file prefix.")
}

var demoLines = []string{
	"the quick brown fox",
	"jumps over",
	"the lazy dog",
}

func options() (local.Options, error) {
	opts := local.Options{Streaming: streaming, NumShards: numShards}
	if configPath != "" {
		if err := opts.ApplyConfig(configPath, variant); err != nil {
			return opts, err
		}
	} else if variant != "" {
		return opts, errors.InvalidArgumentf("--variant %q requires --config", variant)
	}
	return opts, nil
}

func readLines(ctx context.Context) ([]string, error) {
	if input == "" {
		return demoLines, nil
	}
	fs, err := filesystem.New(ctx, input)
	if err != nil {
		return nil, err
	}
	defer fs.Close()
	data, err := filesystem.Read(ctx, fs, input)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", input)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func upper(e typex.WindowedValue, emit func(typex.WindowedValue)) error {
	emit(typex.TimestampedValue(strings.ToUpper(e.Elm.(string)), e.Timestamp))
	return nil
}

// buildPipeline returns the demo pipeline over lines, and the transform
// writing its output when out is set.
func buildPipeline(lines []string, out string) (*graph.Graph, *graph.PCollection, *graph.Transform) {
	g := graph.New()
	s := g.NewScope(g.Root(), "Demo")

	var in *graph.PCollection
	if unbounded {
		elms := make([]typex.WindowedValue, len(lines))
		for i, l := range lines {
			elms[i] = typex.TimestampedValue(l, mtime.FromMilliseconds(int64(i)))
		}
		in = g.Read(s, "ReadLines", graph.NewListSource(elms...))
	} else {
		vs := make([]any, len(lines))
		for i, l := range lines {
			vs[i] = l
		}
		in = g.Create(s, "CreateLines", vs...)
	}
	up := g.ParDo(s, "Upper", upper, in)

	var write *graph.Transform
	if out != "" {
		write = textio.Write(g, g.Root(), out, up, fileio.WithSuffix(".txt"))
	}
	return g, up, write
}
