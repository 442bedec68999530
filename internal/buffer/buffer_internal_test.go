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

package buffer

import (
	"errors"
	"testing"
	"time"
)

func TestBuffer_WriteErrorWhenStorageFails(t *testing.T) {
	t.Parallel()

	buf, err := New(WithDir(t.TempDir()), WithBlockLength(1))
	if err != nil {
		t.Fatal(err)
	}

	defer func() { _ = buf.Release() }()

	// simulate storage that no longer accepts writes.
	if err = buf.file.Close(); err != nil {
		t.Fatal(err)
	}

	err = buf.Append([]byte("payload"), time.Now())

	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}

	var stateErr *InvalidStateError
	if err = buf.Seal(); !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError after failed append, got %v", err)
	}
}
