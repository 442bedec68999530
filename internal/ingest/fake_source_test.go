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

package ingest_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dataphos/lib-brokers/pkg/broker"
)

// fakeSource is a subscription fed through a channel that keeps track of acknowledgements.
type fakeSource struct {
	messages  chan broker.Message
	sent      []broker.Message
	sentMutex sync.Mutex
	acked     map[string]struct{}
	nacked    map[string]struct{}
	ackMutex  sync.Mutex
}

func newFakeSource(chanSize int) *fakeSource {
	return &fakeSource{
		messages: make(chan broker.Message, chanSize),
		acked:    map[string]struct{}{},
		nacked:   map[string]struct{}{},
	}
}

func (source *fakeSource) ack(message broker.Message) {
	source.ackMutex.Lock()
	defer source.ackMutex.Unlock()
	source.acked[message.ID] = struct{}{}
}

func (source *fakeSource) nack(message broker.Message) {
	source.ackMutex.Lock()
	defer source.ackMutex.Unlock()
	source.nacked[message.ID] = struct{}{}
}

func (source *fakeSource) ackedIDs() (acked, nacked map[string]struct{}) {
	source.ackMutex.Lock()
	defer source.ackMutex.Unlock()

	acked, nacked = map[string]struct{}{}, map[string]struct{}{}
	for id := range source.acked {
		acked[id] = struct{}{}
	}
	for id := range source.nacked {
		nacked[id] = struct{}{}
	}

	return acked, nacked
}

// publish sends numMsgs messages, assigning them to the given streams in turn.
func (source *fakeSource) publish(ctx context.Context, numMsgs int, streams []string) {
	for i := 0; i < numMsgs; i++ {
		id := strconv.Itoa(i)
		msg := broker.Message{
			ID:            id,
			Data:          []byte(`{"n": ` + id + `}`),
			Attributes:    map[string]interface{}{"stream": streams[i%len(streams)]},
			PublishTime:   time.Now(),
			IngestionTime: time.Now(),
		}
		msg.AckFunc = func() { source.ack(msg) }
		msg.NackFunc = func() { source.nack(msg) }

		select {
		case <-ctx.Done():
			return
		case source.messages <- msg:
			source.sentMutex.Lock()
			source.sent = append(source.sent, msg)
			source.sentMutex.Unlock()
		}
	}
}

func (source *fakeSource) close() {
	close(source.messages)
}

// batchReceiver hands out batches of at most maxBatchSize messages, or whatever arrived before the timeout.
type batchReceiver struct {
	timeout      time.Duration
	messages     chan broker.Message
	maxBatchSize int
}

func (rec *batchReceiver) ReceiveBatch(ctx context.Context, callback func(context.Context, []broker.Message)) error {
	messages := make([]broker.Message, 0, rec.maxBatchSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-rec.messages:
			if !ok {
				if len(messages) > 0 {
					callback(ctx, messages)
				}

				return nil
			}

			messages = append(messages, msg)
			if len(messages) >= rec.maxBatchSize {
				callback(ctx, messages)
				messages = make([]broker.Message, 0, rec.maxBatchSize)
			}
		case <-time.After(rec.timeout):
			if len(messages) > 0 {
				callback(ctx, messages)
				messages = make([]broker.Message, 0, rec.maxBatchSize)
			}
		}
	}
}
