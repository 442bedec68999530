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

package buffer_test

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hamba/avro/ocf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataphos/stageflush/internal/buffer"
)

// payloadOfSize returns a random hex payload of exactly size bytes.
func payloadOfSize(t *testing.T, size int) []byte {
	t.Helper()

	raw := make([]byte, (size+1)/2)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	return []byte(hex.EncodeToString(raw)[:size])
}

func newBuffer(t *testing.T, opts ...buffer.Option) *buffer.Buffer {
	t.Helper()

	buf, err := buffer.New(append([]buffer.Option{buffer.WithDir(t.TempDir())}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = buf.Release() })

	return buf
}

func readBack(t *testing.T, buf *buffer.Buffer) []buffer.Row {
	t.Helper()

	rc, err := buf.Open()
	require.NoError(t, err)

	defer rc.Close()

	rows, err := buffer.ReadAll(rc)
	require.NoError(t, err)

	return rows
}

func TestBuffer_PreservesOrder(t *testing.T) {
	t.Parallel()

	for _, codec := range []ocf.CodecName{ocf.Null, ocf.Deflate, ocf.Snappy} {
		codec := codec

		t.Run(string(codec), func(t *testing.T) {
			t.Parallel()

			buf := newBuffer(t, buffer.WithCodec(codec), buffer.WithBlockLength(7))
			base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

			const numRecords = 50
			for i := 0; i < numRecords; i++ {
				payload := fmt.Sprintf(`{"n":%d}`, i)
				require.NoError(t, buf.Append([]byte(payload), base.Add(time.Duration(i)*time.Second)))
			}
			require.NoError(t, buf.Seal())

			rows := readBack(t, buf)
			require.Len(t, rows, numRecords)

			ids := map[string]struct{}{}
			for i, row := range rows {
				assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i), row.Data)
				assert.True(t, base.Add(time.Duration(i)*time.Second).Equal(row.EmittedAt), "row %d emitted at %s", i, row.EmittedAt)
				ids[row.ID] = struct{}{}
			}
			assert.Len(t, ids, numRecords, "record ids must be unique")
		})
	}
}

func TestBuffer_ByteCountMonotonic(t *testing.T) {
	t.Parallel()

	buf := newBuffer(t, buffer.WithBlockLength(2))

	previous := buf.ByteCount()
	assert.Zero(t, previous, "nothing reaches the file before the first block")

	for i := 0; i < 20; i++ {
		require.NoError(t, buf.Append(payloadOfSize(t, 64), time.Now()))

		current := buf.ByteCount()
		if (i+1)%2 == 0 {
			assert.Greater(t, current, previous, "block written after append %d", i)
		} else {
			assert.Equal(t, current, previous, "record %d is still pending in the block", i)
		}
		previous = current
	}

	require.NoError(t, buf.Seal())
	sealed := buf.ByteCount()
	assert.GreaterOrEqual(t, sealed, previous)

	_ = readBack(t, buf)
	assert.Equal(t, sealed, buf.ByteCount(), "byte count is stable after seal")

	info, err := os.Stat(buf.Path())
	require.NoError(t, err)
	assert.Equal(t, info.Size(), sealed, "byte count matches the bytes on disk")
}

func TestBuffer_CountsCompressedBytes(t *testing.T) {
	t.Parallel()

	compressed := newBuffer(t, buffer.WithCodec(ocf.Deflate))
	plain := newBuffer(t, buffer.WithCodec(ocf.Null))

	payload := []byte(fmt.Sprintf(`{"text":"%0500d"}`, 0))
	for i := 0; i < 100; i++ {
		require.NoError(t, compressed.Append(payload, time.Now()))
		require.NoError(t, plain.Append(payload, time.Now()))
	}
	require.NoError(t, compressed.Seal())
	require.NoError(t, plain.Seal())

	assert.Less(t, compressed.ByteCount(), plain.ByteCount())
	assert.Less(t, compressed.ByteCount(), int64(100*len(payload)))
}

func TestBuffer_ScenarioSizes(t *testing.T) {
	t.Parallel()

	buf := newBuffer(t)

	for _, size := range []int{100, 200, 50} {
		require.NoError(t, buf.Append(payloadOfSize(t, size), time.Now()))
	}
	require.NoError(t, buf.Seal())

	assert.GreaterOrEqual(t, buf.ByteCount(), int64(350))
	assert.Equal(t, 3, buf.RecordCount())
}

func TestBuffer_Lifecycle(t *testing.T) {
	t.Parallel()

	buf := newBuffer(t)

	_, err := buf.Open()
	var stateErr *buffer.InvalidStateError
	assert.True(t, errors.As(err, &stateErr), "open before seal")

	require.NoError(t, buf.Append([]byte("a"), time.Now()))
	require.NoError(t, buf.Seal())
	assert.True(t, buf.Sealed())

	err = buf.Append([]byte("b"), time.Now())
	assert.True(t, errors.As(err, &stateErr), "append after seal")

	err = buf.Seal()
	assert.True(t, errors.As(err, &stateErr), "double seal")

	require.NoError(t, buf.Release())
	_, statErr := os.Stat(buf.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "release removes the backing file")

	require.NoError(t, buf.Release(), "release is a no-op the second time")

	_, err = buf.Open()
	assert.True(t, errors.As(err, &stateErr), "open after release")
}

func TestBuffer_EmptySeal(t *testing.T) {
	t.Parallel()

	for _, codec := range []ocf.CodecName{ocf.Null, ocf.Deflate, ocf.Snappy} {
		buf := newBuffer(t, buffer.WithCodec(codec))
		require.NoError(t, buf.Seal())

		assert.Positive(t, buf.ByteCount(), "%s: header written on seal", codec)
		assert.Empty(t, readBack(t, buf), codec)
		assert.Equal(t, 0, buf.RecordCount())

		info, err := os.Stat(buf.Path())
		require.NoError(t, err)
		assert.Equal(t, info.Size(), buf.ByteCount())
	}
}

func TestBuffer_CreateFailsInMissingDir(t *testing.T) {
	t.Parallel()

	_, err := buffer.New(buffer.WithDir(t.TempDir() + "/missing/dir"))

	var writeErr *buffer.WriteError
	assert.True(t, errors.As(err, &writeErr))
}
