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

// Package avroio contains a sink writing Avro object container files.
package avroio

import (
	"io"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/fileio"
	"github.com/linkedin/goavro/v2"
)

// Write writes a PCollection of JSON strings to AVRO files. Each element must
// be the textual Avro encoding of a record matching schema; the write fails
// if it does not.
//
// Files are named as: <prefix>-<shard>-of-<numShards><suffix>
// Example: output-00000-of-00010.avro
func Write(g *graph.Graph, s *graph.Scope, prefix, schema string, col *graph.PCollection, opts ...fileio.WriteOption) *graph.Transform {
	s = g.NewScope(s, "avroio.Write")
	return fileio.WriteFiles(g, s, "WriteFiles", fileio.NewWrite(prefix, ".avro", &Sink{Schema: schema}, opts...), col)
}

// Sink writes snappy-compressed Avro OCF files.
type Sink struct {
	Schema string
}

// NewWriter implements fileio.Sink.
func (s *Sink) NewWriter(w io.Writer) (fileio.ShardWriter, error) {
	codec, err := goavro.NewCodec(s.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "error creating avro codec")
	}
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		Codec:           codec,
		CompressionName: goavro.CompressionSnappyLabel,
		Schema:          s.Schema,
		W:               w,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating avro writer")
	}
	return &writer{codec: codec, ocfw: ocfw}, nil
}

type writer struct {
	codec *goavro.Codec
	ocfw  *goavro.OCFWriter
}

func (w *writer) Write(elm any) error {
	var text []byte
	switch v := elm.(type) {
	case string:
		text = []byte(v)
	case []byte:
		text = v
	default:
		return errors.InvalidArgumentf("avro element must be a JSON string, got %T", elm)
	}
	native, _, err := w.codec.NativeFromTextual(text)
	if err != nil {
		return errors.Wrap(err, "error reading native avro")
	}
	if err := w.ocfw.Append([]any{native}); err != nil {
		return errors.Wrap(err, "error writing avro")
	}
	return nil
}

// Close is a no-op; every Append writes a complete block.
func (w *writer) Close() error {
	return nil
}
