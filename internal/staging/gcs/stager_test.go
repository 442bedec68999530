// Copyright 2024 Syntio Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocation(t *testing.T) {
	got := Location("staging-bucket", "shop/orders/2024/03/01/12/orders_raw-1.avro")
	want := "gs://staging-bucket/shop/orders/2024/03/01/12/orders_raw-1.avro"

	if got != want {
		t.Errorf("Location() = %s, want %s", got, want)
	}
}

// recordingWriter records writes and whether the upload was aborted before Close.
type recordingWriter struct {
	bytes.Buffer
	ctx            context.Context
	closed         bool
	abortedAtClose bool
}

func (w *recordingWriter) Close() error {
	w.closed = true
	w.abortedAtClose = w.ctx.Err() != nil

	return nil
}

type failingReader struct {
	err error
}

func (r failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestWriteObject(t *testing.T) {
	ctx, abort := context.WithCancel(context.Background())
	defer abort()

	w := &recordingWriter{ctx: ctx}

	written, err := writeObject(w, abort, strings.NewReader("container"))
	if err != nil {
		t.Fatal(err)
	}

	if written != int64(len("container")) || w.String() != "container" {
		t.Errorf("writeObject() wrote %d bytes %q", written, w.String())
	}

	if !w.closed || w.abortedAtClose {
		t.Errorf("successful write must close without aborting, closed=%t aborted=%t", w.closed, w.abortedAtClose)
	}
}

func TestWriteObject_AbortsOnReadFailure(t *testing.T) {
	ctx, abort := context.WithCancel(context.Background())
	defer abort()

	w := &recordingWriter{ctx: ctx}
	errRead := errors.New("read failed")

	_, err := writeObject(w, abort, io.MultiReader(strings.NewReader("partial"), failingReader{err: errRead}))
	if !errors.Is(err, errRead) {
		t.Fatalf("writeObject() error = %v, want %v", err, errRead)
	}

	if !w.closed || !w.abortedAtClose {
		t.Errorf("failed write must be aborted before close, closed=%t aborted=%t", w.closed, w.abortedAtClose)
	}
}
