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

package staging_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataphos/stageflush/internal/buffer"
	"github.com/dataphos/stageflush/internal/config"
	"github.com/dataphos/stageflush/internal/staging"
	"github.com/dataphos/stageflush/internal/stream"
)

func TestNamer_DefaultMask(t *testing.T) {
	t.Parallel()

	namer, err := staging.NewNamer(config.StagingConfig{})
	require.NoError(t, err)

	now := time.Date(2023, 3, 7, 9, 30, 0, 0, time.UTC)
	name := namer.ObjectName("ds1", "orders", now)

	assert.True(t, strings.HasPrefix(name, "ds1/orders/2023/03/07/09/orders-"), name)
	assert.True(t, strings.HasSuffix(name, ".avro"), name)
	assert.NotEqual(t, name, namer.ObjectName("ds1", "orders", now), "object names are unique")
}

func TestNamer_CustomValuesBecomePrefix(t *testing.T) {
	t.Parallel()

	namer, err := staging.NewNamer(config.StagingConfig{
		Mask:         "env/{stream}/day",
		CustomValues: "env: prod",
		Extension:    "avro.deflate",
	})
	require.NoError(t, err)

	name := namer.ObjectName("ds1", "orders", time.Date(2023, 3, 7, 9, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(name, "prod/orders/07/orders-"), name)
	assert.True(t, strings.HasSuffix(name, ".avro.deflate"), name)
}

func TestNamer_InvalidMasks(t *testing.T) {
	t.Parallel()

	for _, mask := range []string{"year//day", "{color}/day", "unknown/day", "{}/day"} {
		_, err := staging.NewNamer(config.StagingConfig{Mask: mask})
		assert.Error(t, err, mask)
	}

	_, err := staging.NewNamer(config.StagingConfig{CustomValues: "novalue"})
	assert.True(t, errors.Is(err, staging.ErrReadingCustomValues))
}

func sealedBatch(t *testing.T, payloads ...string) *buffer.Buffer {
	t.Helper()

	buf, err := buffer.New(buffer.WithDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	for _, payload := range payloads {
		require.NoError(t, buf.Append([]byte(payload), time.Now()))
	}
	require.NoError(t, buf.Seal())

	return buf
}

func TestCompose_UploadThenCommit(t *testing.T) {
	t.Parallel()

	stager := staging.NewFakeStager("bucket")
	committer := &staging.FakeCommitter{}
	transport := staging.Compose(stager, committer)

	batch := sealedBatch(t, "a", "b")
	table := stream.TableID{Dataset: "ds1", Table: "orders_raw"}

	handle, err := transport.Upload(context.Background(), "ds1", "orders", batch)
	require.NoError(t, err)
	assert.Equal(t, batch.ByteCount(), handle.Bytes)
	assert.Equal(t, 2, handle.Records)

	require.NoError(t, transport.Commit(context.Background(), "ds1", "orders", table, stream.RawSchema(), handle))
	require.Len(t, committer.Commits, 1)
	assert.Equal(t, handle, committer.Commits[0].Handle)

	rc, err := stager.Open(context.Background(), handle)
	require.NoError(t, err)
	rows, err := buffer.ReadAll(rc)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Data)
}

func TestCompose_WrapsFailures(t *testing.T) {
	t.Parallel()

	stager := staging.NewFakeStager("bucket")
	committer := &staging.FakeCommitter{ShouldFail: func(stream.TableID) bool { return true }}
	transport := staging.Compose(stager, committer)
	table := stream.TableID{Dataset: "ds1", Table: "orders_raw"}

	handle, err := transport.Upload(context.Background(), "ds1", "orders", sealedBatch(t, "a"))
	require.NoError(t, err)

	err = transport.Commit(context.Background(), "ds1", "orders", table, nil, handle)

	var transportErr *staging.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, staging.OpCommit, transportErr.Op)
	assert.Contains(t, err.Error(), "ds1.orders_raw")

	stager.ShouldFail = func(string, string) bool { return true }
	_, err = transport.Upload(context.Background(), "ds1", "orders", sealedBatch(t, "a"))
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, staging.OpUpload, transportErr.Op)
}
