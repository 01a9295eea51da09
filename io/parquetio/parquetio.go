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

// Package parquetio contains a sink writing parquet files.
package parquetio

import (
	"io"
	"reflect"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/io/fileio"
	"github.com/xitongsys/parquet-go/writer"
)

// Write writes a PCollection of parquet structs to .parquet files. Elements
// must be values of t, a struct type with parquet tags. For example:
//
//	type Student struct {
//	  Name    string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
//	  Age     int32   `parquet:"name=age, type=INT32, encoding=PLAIN"`
//	  Ignored int32   //without parquet tag and won't write
//	}
func Write(g *graph.Graph, s *graph.Scope, prefix string, t reflect.Type, col *graph.PCollection, opts ...fileio.WriteOption) *graph.Transform {
	s = g.NewScope(s, "parquetio.Write")
	return fileio.WriteFiles(g, s, "WriteFiles", fileio.NewWrite(prefix, ".parquet", &Sink{Type: t}, opts...), col)
}

// Sink writes elements of Type as parquet rows.
type Sink struct {
	Type reflect.Type
}

// NewWriter implements fileio.Sink.
func (s *Sink) NewWriter(w io.Writer) (fileio.ShardWriter, error) {
	pw, err := writer.NewParquetWriterFromWriter(w, reflect.New(s.Type).Interface(), 4)
	if err != nil {
		return nil, err
	}
	return &shardWriter{pw: pw}, nil
}

type shardWriter struct {
	pw *writer.ParquetWriter
}

func (w *shardWriter) Write(elm any) error {
	return w.pw.Write(elm)
}

func (w *shardWriter) Close() error {
	return w.pw.WriteStop()
}
