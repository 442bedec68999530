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

// Package buffer implements the on-disk batch buffer records are accumulated in before they
// are staged.
//
// A Buffer is an Avro object container file written to a temporary file. Records are
// appended to the current Avro block, which is compressed and written out once it holds
// the configured number of records, so memory stays bounded to one block regardless of the
// size of the batch. The container is write-only until it is sealed; after sealing it can
// be read back, in append order, any number of times until it is released.
package buffer

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hamba/avro"
	"github.com/hamba/avro/ocf"
	"github.com/pkg/errors"

	"github.com/dataphos/stageflush/internal/stream"
)

// Schema is the Avro schema of every row in a batch container.
// Column names match the raw destination table columns.
const Schema = `{
	"type": "record",
	"name": "stagedrecord",
	"namespace": "com.syntio.dataphos.stageflush",
	"fields": [
		{"name": "` + stream.RawIDColumn + `", "type": "string"},
		{"name": "` + stream.RawEmittedAtColumn + `", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "` + stream.RawDataColumn + `", "type": "string"}
	]
}`

var (
	containerSchema = avro.MustParse(Schema)
	containerMagic  = [4]byte{'O', 'b', 'j', 1}
)

const (
	DefaultCodec       = ocf.Deflate
	DefaultBlockLength = 1000
	filePattern        = "stageflush-*.avro"
)

// Row is one record as stored in the container.
type Row struct {
	ID        string    `avro:"_raw_id"`
	EmittedAt time.Time `avro:"_emitted_at"`
	Data      string    `avro:"_data"`
}

type state int

const (
	stateOpen state = iota
	stateSealed
	stateFailed
	stateReleased
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateSealed:
		return "sealed"
	case stateFailed:
		return "failed"
	case stateReleased:
		return "released"
	default:
		return "unknown"
	}
}

type settings struct {
	dir         string
	codec       ocf.CodecName
	blockLength int
}

// Option configures a Buffer.
type Option func(*settings)

// WithDir sets the directory the temporary container file is created in.
func WithDir(dir string) Option {
	return func(s *settings) {
		s.dir = dir
	}
}

// WithCodec sets the Avro block compression codec.
func WithCodec(codec ocf.CodecName) Option {
	return func(s *settings) {
		s.codec = codec
	}
}

// WithBlockLength sets how many records are held in memory before a block is written out.
func WithBlockLength(length int) Option {
	return func(s *settings) {
		if length > 0 {
			s.blockLength = length
		}
	}
}

// countingWriter counts the bytes that actually reached the file, after compression.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)

	return n, err
}

// Buffer is a single-use batch container. It is not safe for concurrent use; a Buffer is
// owned by exactly one flush.
type Buffer struct {
	file    *os.File
	path    string
	counter *countingWriter
	encoder *ocf.Encoder
	codec   ocf.CodecName
	records int
	state   state
}

// New creates an empty buffer backed by a new temporary file.
func New(opts ...Option) (*Buffer, error) {
	cfg := settings{
		dir:         os.TempDir(),
		codec:       DefaultCodec,
		blockLength: DefaultBlockLength,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	file, err := os.CreateTemp(cfg.dir, filePattern)
	if err != nil {
		return nil, &WriteError{Op: "create", Err: err}
	}

	counter := &countingWriter{w: file}

	encoder, err := ocf.NewEncoder(Schema, counter, ocf.WithCodec(cfg.codec), ocf.WithBlockLength(cfg.blockLength))
	if err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())

		return nil, &WriteError{Op: "create", Err: errors.Wrap(err, "initializing avro encoder")}
	}

	return &Buffer{
		file:    file,
		path:    file.Name(),
		counter: counter,
		encoder: encoder,
		codec:   cfg.codec,
		state:   stateOpen,
	}, nil
}

// Append adds one record to the open buffer.
func (b *Buffer) Append(payload []byte, emittedAt time.Time) error {
	if b.state != stateOpen {
		return &InvalidStateError{Op: "append", State: b.state.String()}
	}

	row := Row{
		ID:        uuid.NewString(),
		EmittedAt: emittedAt.UTC(),
		Data:      string(payload),
	}

	if err := b.encoder.Encode(row); err != nil {
		b.state = stateFailed

		return &WriteError{Op: "append", Err: err}
	}

	b.records++

	return nil
}

// Seal writes out the pending block and syncs the file. No records can be appended afterwards.
// Sealing twice is an error. An empty buffer is sealed into a header-only container.
func (b *Buffer) Seal() error {
	if b.state != stateOpen {
		return &InvalidStateError{Op: "seal", State: b.state.String()}
	}

	flush := b.encoder.Flush
	if b.records == 0 {
		// The encoder holds its header until the first block, so it never reaches the file.
		flush = b.writeHeader
	}

	if err := flush(); err != nil {
		b.state = stateFailed

		return &WriteError{Op: "seal", Err: err}
	}

	if err := b.file.Sync(); err != nil {
		b.state = stateFailed

		return &WriteError{Op: "seal", Err: errors.Wrap(err, "syncing container file")}
	}

	b.state = stateSealed

	return nil
}

// writeHeader writes a container header with no blocks.
func (b *Buffer) writeHeader() error {
	header, err := avro.Marshal(ocf.HeaderSchema, ocf.Header{
		Magic: containerMagic,
		Meta: map[string][]byte{
			"avro.schema": []byte(containerSchema.String()),
			"avro.codec":  []byte(b.codec),
		},
		Sync: uuid.New(),
	})
	if err != nil {
		return errors.Wrap(err, "encoding container header")
	}

	_, err = b.counter.Write(header)

	return err
}

// ByteCount returns the number of container bytes written to disk so far. The header and the
// records reach the file a block at a time, so the count grows with every written block.
// It never decreases and does not change once the buffer is sealed.
func (b *Buffer) ByteCount() int64 {
	return b.counter.n
}

func (b *Buffer) RecordCount() int {
	return b.records
}

// Sealed reports whether the buffer was sealed and not yet released.
func (b *Buffer) Sealed() bool {
	return b.state == stateSealed
}

// Path returns the location of the backing file.
func (b *Buffer) Path() string {
	return b.path
}

// Open returns a new reader over the whole sealed container, starting from its header.
func (b *Buffer) Open() (io.ReadCloser, error) {
	if b.state != stateSealed {
		return nil, &InvalidStateError{Op: "open", State: b.state.String()}
	}

	file, err := os.Open(b.path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sealed container")
	}

	return file, nil
}

// Release closes and removes the backing file. Releasing an already released buffer is a no-op.
func (b *Buffer) Release() error {
	if b.state == stateReleased {
		return nil
	}

	b.state = stateReleased

	closeErr := b.file.Close()
	removeErr := os.Remove(b.path)

	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return errors.Wrap(removeErr, "removing container file")
	}

	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return errors.Wrap(closeErr, "closing container file")
	}

	return nil
}
