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

package flush

import (
	"io"
	"time"

	"github.com/hamba/avro/ocf"

	"github.com/dataphos/stageflush/internal/buffer"
	"github.com/dataphos/stageflush/internal/config"
)

// Buffer accumulates the records of one flush. It has to be sealed before it is opened for upload.
type Buffer interface {
	Append(payload []byte, emittedAt time.Time) error
	Seal() error
	ByteCount() int64
	RecordCount() int
	Open() (io.ReadCloser, error)
	Release() error
}

// BufferFactory creates an empty buffer for every flush.
type BufferFactory func() (Buffer, error)

// DiskBuffers creates Avro container buffers as configured for staging.
func DiskBuffers(stagingConfig config.StagingConfig) BufferFactory {
	opts := []buffer.Option{
		buffer.WithCodec(Codec(stagingConfig.Codec)),
		buffer.WithBlockLength(stagingConfig.BlockLength),
	}

	if stagingConfig.TempDir != "" {
		opts = append(opts, buffer.WithDir(stagingConfig.TempDir))
	}

	return func() (Buffer, error) {
		return buffer.New(opts...)
	}
}

// Codec maps a configured codec name to its Avro codec, defaulting to deflate.
func Codec(name string) ocf.CodecName {
	switch name {
	case config.CodecNull:
		return ocf.Null
	case config.CodecSnappy:
		return ocf.Snappy
	default:
		return buffer.DefaultCodec
	}
}
