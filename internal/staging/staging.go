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

// Package staging contains the transport that moves sealed batches into the staging area and
// commits them from there into destination tables.
package staging

import (
	"context"
	"io"

	"github.com/dataphos/stageflush/internal/stream"
)

// SealedBatch is a finalized batch container ready to be uploaded.
type SealedBatch interface {
	// Open returns a reader over the whole container.
	Open() (io.ReadCloser, error)
	ByteCount() int64
	RecordCount() int
}

// Handle identifies where an uploaded batch resides. It is produced by an upload and
// consumed once by the commit that follows it.
type Handle struct {
	// Location is the complete URI of the staged object, e.g. gs://bucket/path/object.avro.
	Location  string
	Container string
	Object    string
	Bytes     int64
	Records   int
}

// Stager uploads sealed batches to staging storage and reads staged objects back.
type Stager interface {
	Upload(ctx context.Context, namespace, objectNameHint string, batch SealedBatch) (Handle, error)
	Open(ctx context.Context, handle Handle) (io.ReadCloser, error)
}

// Committer loads a staged batch into a destination table.
type Committer interface {
	Commit(ctx context.Context, namespace, objectNameHint string, table stream.TableID, schema []stream.Field, handle Handle) error
}

// Transport is the upload-then-commit boundary used by the flush orchestrator. Every error it
// returns is a *TransportError.
type Transport interface {
	Upload(ctx context.Context, namespace, objectNameHint string, batch SealedBatch) (Handle, error)
	Commit(ctx context.Context, namespace, objectNameHint string, table stream.TableID, schema []stream.Field, handle Handle) error
}

type composedTransport struct {
	stager    Stager
	committer Committer
}

// Compose joins a stager and a committer into a Transport. Failures of either half are
// returned as *TransportError.
func Compose(stager Stager, committer Committer) Transport {
	return &composedTransport{stager: stager, committer: committer}
}

func (t *composedTransport) Upload(ctx context.Context, namespace, objectNameHint string, batch SealedBatch) (Handle, error) {
	handle, err := t.stager.Upload(ctx, namespace, objectNameHint, batch)
	if err != nil {
		return Handle{}, &TransportError{Op: OpUpload, Err: err}
	}

	return handle, nil
}

func (t *composedTransport) Commit(ctx context.Context, namespace, objectNameHint string, table stream.TableID, schema []stream.Field, handle Handle) error {
	if err := t.committer.Commit(ctx, namespace, objectNameHint, table, schema, handle); err != nil {
		return &TransportError{Op: OpCommit, Table: table.String(), Location: handle.Location, Err: err}
	}

	return nil
}
