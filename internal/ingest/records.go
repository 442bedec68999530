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

package ingest

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/flush"
)

// EmittedAt returns when the message was emitted by its source. The emitted_at attribute is read as
// an RFC 3339 timestamp or as unix milliseconds; without it the broker publish time is used, and the
// ingestion time if the broker has no publish time.
func EmittedAt(msg streamproc.Message) time.Time {
	if raw := attributeString(msg.Attributes, EmittedAtAttribute); raw != "" {
		if emittedAt, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return emittedAt.UTC()
		}

		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.UnixMilli(millis).UTC()
		}
	}

	if !msg.PublishTime.IsZero() {
		return msg.PublishTime.UTC()
	}

	return msg.IngestionTime.UTC()
}

type messageIterator struct {
	messages []streamproc.Message
	next     int
}

// Records iterates over the messages of a group as serialized records.
func Records(messages []streamproc.Message) flush.RecordIterator {
	return &messageIterator{messages: messages}
}

func (it *messageIterator) Next(ctx context.Context) (flush.SerializedRecord, error) {
	if err := ctx.Err(); err != nil {
		return flush.SerializedRecord{}, err
	}

	if it.next >= len(it.messages) {
		return flush.SerializedRecord{}, io.EOF
	}

	msg := it.messages[it.next]
	it.next++

	return flush.SerializedRecord{Payload: msg.Data, EmittedAt: EmittedAt(msg)}, nil
}
