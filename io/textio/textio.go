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

// Package textio contains a sink writing elements as lines of text.
package textio

import (
	"bufio"
	"fmt"
	"io"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/io/fileio"
)

// Write writes a PCollection to text files, one element per line. Strings
// and byte slices are written verbatim; other values use their default
// format.
//
// Files are named as: <prefix>-<shard>-of-<numShards><suffix>
func Write(g *graph.Graph, s *graph.Scope, prefix string, col *graph.PCollection, opts ...fileio.WriteOption) *graph.Transform {
	s = g.NewScope(s, "textio.Write")
	return fileio.WriteFiles(g, s, "WriteFiles", fileio.NewWrite(prefix, "", Sink{}, opts...), col)
}

// Sink formats elements as newline-terminated lines.
type Sink struct{}

// NewWriter implements fileio.Sink.
func (Sink) NewWriter(w io.Writer) (fileio.ShardWriter, error) {
	return &writer{w: bufio.NewWriterSize(w, 1<<20)}, nil
}

type writer struct {
	w *bufio.Writer
}

func (w *writer) Write(elm any) error {
	var err error
	switch v := elm.(type) {
	case string:
		_, err = w.w.WriteString(v)
	case []byte:
		_, err = w.w.Write(v)
	default:
		_, err = fmt.Fprint(w.w, v)
	}
	if err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *writer) Close() error {
	return w.w.Flush()
}
