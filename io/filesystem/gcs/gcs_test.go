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

package gcs

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/google/go-cmp/cmp"
)

const bucket = "localrunnergcsfilesystemtest"

func createFakeGCSServer(tb testing.TB) *fakestorage.Server {
	tb.Helper()

	server := fakestorage.NewServer([]fakestorage.Object{
		{
			ObjectAttrs: fakestorage.ObjectAttrs{
				BucketName: bucket,
				Name:       "stub",
			},
			Content: []byte(""),
		},
	})
	tb.Cleanup(server.Stop)
	return server
}

func TestGCS_direct(t *testing.T) {
	testGCS_direct(t, "")
}

func TestGCS_directSettingBillingProjectID(t *testing.T) {
	testGCS_direct(t, "projectfake")
}

func testGCS_direct(t *testing.T, billingProject string) {
	ctx := context.Background()
	dirPath := "gs://" + bucket
	filePath := dirPath + "/out-00000-of-00001.txt"

	server := createFakeGCSServer(t)
	c := NewFromClient(server.Client(), billingProject)

	wc, err := c.OpenWrite(ctx, filePath)
	if err != nil {
		t.Fatalf("OpenWrite(ctx, %q) == %v, want nil", filePath, err)
	}
	data := []byte("a meaningless sequence of test words")
	n, err := wc.Write(data)
	if got, want := n, len(data); err != nil || got != want {
		t.Fatalf("Write(data) = %v,%v, want %v, nil", got, err, want)
	}
	if err := wc.Close(); err != nil {
		t.Fatalf("Close() = %v, want nil", err)
	}

	listGlob := dirPath + "/*.txt"
	files, err := c.List(ctx, listGlob)
	if err != nil {
		t.Fatalf("List(%q) = %v, want nil", listGlob, err)
	}
	if d := cmp.Diff([]string{filePath}, files); d != "" {
		t.Errorf("List(%v) diff (-want +got):\n%v", listGlob, d)
	}

	size, err := c.Size(ctx, filePath)
	if got, want := size, int64(len(data)); err != nil || got != want {
		t.Errorf("Size(%q) = %v, %v, want %v, nil", filePath, got, err, want)
	}

	rc, err := c.OpenRead(ctx, filePath)
	if err != nil {
		t.Fatalf("OpenRead(ctx, %q) == %v, want nil", filePath, err)
	}
	defer rc.Close()
	buf, err := io.ReadAll(rc)
	if got, want := string(buf), string(data); err != nil || got != want {
		t.Errorf("ReadAll() = %q, %v, want %q, nil", got, err, want)
	}

	if err := c.(filesystem.Remover).Remove(ctx, filePath); err != nil {
		t.Fatalf("Remove(%q) = %v", filePath, err)
	}
	if files, _ := c.List(ctx, listGlob); len(files) != 0 {
		t.Errorf("List(%v) after Remove = %v, want none", listGlob, files)
	}
}

func TestGCS_util(t *testing.T) {
	ctx := context.Background()
	filePath := "gs://" + bucket + "/file.txt"

	server := createFakeGCSServer(t)
	c := NewFromClient(server.Client(), "")

	data := []byte("a meaningless sequence of test words")
	if err := filesystem.Write(ctx, c, filePath, data); err != nil {
		t.Fatalf("filesystem.Write(ctx, %q) == %v, want nil", filePath, err)
	}
	got, err := filesystem.Read(ctx, c, filePath)
	if err != nil || string(got) != string(data) {
		t.Errorf("filesystem.Read(ctx, %q) = %q, %v, want %q, nil", filePath, got, err, data)
	}
}

func TestParseObject(t *testing.T) {
	tests := []struct {
		in      string
		want    object
		wantErr bool
	}{
		{in: "gs://b/o/x.txt", want: object{"b", "o/x.txt"}},
		{in: "gs://b", want: object{"b", ""}},
		{in: "s3://b/o", wantErr: true},
		{in: "gs:///o", wantErr: true},
	}
	for _, test := range tests {
		got, err := parseObject(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("parseObject(%q) error = %v, wantErr %v", test.in, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("parseObject(%q) = %+v, want %+v", test.in, got, test.want)
		}
	}
}

func TestGCS_missingObject(t *testing.T) {
	ctx := context.Background()
	c := NewFromClient(createFakeGCSServer(t).Client(), "")
	if _, err := c.Size(ctx, "gs://"+bucket+"/missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Size(missing) = %v, want os.ErrNotExist", err)
	}
	if _, err := c.OpenRead(ctx, "gs://"+bucket+"/missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("OpenRead(missing) = %v, want os.ErrNotExist", err)
	}
}
