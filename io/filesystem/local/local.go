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

// Package local registers the filesystem of the local machine as the
// default for paths without a scheme.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
)

func init() {
	filesystem.Register("default", New)
}

type fs struct{}

// New returns the local filesystem.
func New(_ context.Context) (filesystem.Interface, error) {
	return fs{}, nil
}

func (fs) Close() error {
	return nil
}

func (fs) List(_ context.Context, glob string) ([]string, error) {
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, errors.InvalidArgumentf("bad glob %q: %v", glob, err)
	}
	sort.Strings(files)
	return files, nil
}

func (fs) OpenRead(_ context.Context, filename string) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %v", filename)
	}
	return f, nil
}

// OpenWrite writes to a temporary file next to filename, which replaces
// filename on Close. Readers never see a partial file.
func (fs) OpenWrite(_ context.Context, filename string) (io.WriteCloser, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %v", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*")
	if err != nil {
		return nil, errors.Wrapf(err, "creating temporary file for %v", filename)
	}
	return &renameOnClose{File: tmp, dest: filename}, nil
}

func (fs) Size(_ context.Context, filename string) (int64, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return -1, errors.Wrapf(err, "statting %v", filename)
	}
	return info.Size(), nil
}

func (fs) Remove(_ context.Context, filename string) error {
	return errors.Wrapf(os.Remove(filename), "removing %v", filename)
}

var _ filesystem.Remover = fs{}

type renameOnClose struct {
	*os.File
	dest string
}

func (w *renameOnClose) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.Name())
		return errors.Wrapf(err, "closing %v", w.dest)
	}
	if err := os.Chmod(w.Name(), 0644); err != nil {
		os.Remove(w.Name())
		return errors.Wrapf(err, "setting mode of %v", w.dest)
	}
	if err := os.Rename(w.Name(), w.dest); err != nil {
		os.Remove(w.Name())
		return errors.Wrapf(err, "renaming to %v", w.dest)
	}
	return nil
}
