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
	"io"

	"github.com/hamba/avro/ocf"
	"github.com/pkg/errors"
)

// Reader decodes the rows of a sealed container in the order they were appended.
type Reader struct {
	decoder *ocf.Decoder
	row     Row
	err     error
}

func NewReader(r io.Reader) (*Reader, error) {
	decoder, err := ocf.NewDecoder(r)
	if err != nil {
		return nil, errors.Wrap(err, "can't create decoder")
	}

	return &Reader{decoder: decoder}, nil
}

// Next decodes the next row. It returns false once the container is exhausted or decoding failed.
func (r *Reader) Next() bool {
	if r.err != nil || !r.decoder.HasNext() {
		return false
	}

	var row Row
	if err := r.decoder.Decode(&row); err != nil {
		r.err = errors.Wrap(err, "can't decode row")

		return false
	}

	r.row = row

	return true
}

func (r *Reader) Row() Row {
	return r.row
}

// Err returns the first error hit while reading, if any.
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}

	if err := r.decoder.Error(); err != nil {
		return errors.Wrap(err, "reading container")
	}

	return nil
}

// ReadAll decodes every row of a container.
func ReadAll(r io.Reader) ([]Row, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for reader.Next() {
		rows = append(rows, reader.Row())
	}

	return rows, reader.Err()
}
