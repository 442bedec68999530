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

package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/dataphos/stageflush/internal/stream"
)

var ErrFakeObjectNotFound = errors.New("staged object not found")

// FakeStager keeps staged objects in memory.
type FakeStager struct {
	Container  string
	Objects    map[string][]byte
	Uploads    int
	ShouldFail func(namespace, objectNameHint string) bool
	mu         sync.Mutex
}

func NewFakeStager(container string) *FakeStager {
	return &FakeStager{Container: container, Objects: map[string][]byte{}}
}

func (s *FakeStager) Upload(ctx context.Context, namespace, objectNameHint string, batch SealedBatch) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Uploads++

	if s.ShouldFail != nil && s.ShouldFail(namespace, objectNameHint) {
		return Handle{}, errors.New("pretend upload failed")
	}

	rc, err := batch.Open()
	if err != nil {
		return Handle{}, errors.Wrap(err, "opening sealed batch")
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Handle{}, errors.Wrap(err, "reading sealed batch")
	}

	object := fmt.Sprintf("%s/%s-%d.avro", namespace, objectNameHint, s.Uploads)
	s.Objects[object] = data

	return Handle{
		Location:  fmt.Sprintf("fake://%s/%s", s.Container, object),
		Container: s.Container,
		Object:    object,
		Bytes:     int64(len(data)),
		Records:   batch.RecordCount(),
	}, nil
}

func (s *FakeStager) Open(_ context.Context, handle Handle) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.Objects[handle.Object]
	if !ok {
		return nil, errors.Wrap(ErrFakeObjectNotFound, handle.Object)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// FakeCommit is one commit call observed by FakeCommitter.
type FakeCommit struct {
	Namespace      string
	ObjectNameHint string
	Table          stream.TableID
	Schema         []stream.Field
	Handle         Handle
}

// FakeCommitter records commits instead of loading anything.
type FakeCommitter struct {
	Commits    []FakeCommit
	Attempts   int
	ShouldFail func(table stream.TableID) bool
	mu         sync.Mutex
}

func (c *FakeCommitter) Commit(ctx context.Context, namespace, objectNameHint string, table stream.TableID, schema []stream.Field, handle Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.Attempts++

	if c.ShouldFail != nil && c.ShouldFail(table) {
		return errors.New("pretend commit failed")
	}

	c.Commits = append(c.Commits, FakeCommit{
		Namespace:      namespace,
		ObjectNameHint: objectNameHint,
		Table:          table,
		Schema:         schema,
		Handle:         handle,
	})

	return nil
}
