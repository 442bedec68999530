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
	"context"
	"io"
	"time"
)

// SerializedRecord is one record ready to be written to a batch.
type SerializedRecord struct {
	Payload   []byte
	EmittedAt time.Time
}

// RecordIterator produces the records of one flush. Next returns io.EOF once the sequence is exhausted;
// any other error aborts the flush. Records are consumed exactly once.
type RecordIterator interface {
	Next(ctx context.Context) (SerializedRecord, error)
}

type sliceIterator struct {
	records []SerializedRecord
	next    int
}

// SliceIterator iterates over records already held in memory.
func SliceIterator(records ...SerializedRecord) RecordIterator {
	return &sliceIterator{records: records}
}

func (it *sliceIterator) Next(ctx context.Context) (SerializedRecord, error) {
	if err := ctx.Err(); err != nil {
		return SerializedRecord{}, err
	}

	if it.next >= len(it.records) {
		return SerializedRecord{}, io.EOF
	}

	record := it.records[it.next]
	it.records[it.next] = SerializedRecord{}
	it.next++

	return record, nil
}

// IteratorFunc adapts a function to RecordIterator.
type IteratorFunc func(ctx context.Context) (SerializedRecord, error)

func (f IteratorFunc) Next(ctx context.Context) (SerializedRecord, error) {
	return f(ctx)
}
