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

package filesystem

import (
	"context"
	"io"
	"strings"

	"github.com/apache/beam/localrunner/internal/errors"
)

// Read returns the whole content of filename.
func Read(ctx context.Context, fs Interface, filename string) ([]byte, error) {
	r, err := fs.OpenRead(ctx, filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	return data, errors.Wrapf(err, "reading %v", filename)
}

// Write replaces the content of filename with data.
func Write(ctx context.Context, fs Interface, filename string, data []byte) error {
	w, err := fs.OpenWrite(ctx, filename)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing %v", filename)
	}
	return w.Close()
}

// Remove deletes filename, if fs supports deletion.
func Remove(ctx context.Context, fs Interface, filename string) error {
	r, ok := fs.(Remover)
	if !ok {
		return errors.IllegalStatef("filesystem %T cannot remove %v", fs, filename)
	}
	return r.Remove(ctx, filename)
}

// GlobPrefix returns the literal prefix of glob, up to its first meta
// character. Object stores list by this prefix and match the rest.
func GlobPrefix(glob string) string {
	if i := strings.IndexAny(glob, "*?[\\"); i >= 0 {
		return glob[:i]
	}
	return glob
}
