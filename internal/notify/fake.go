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

package notify

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/dataphos/lib-brokers/pkg/broker"
)

// FakeTopic keeps published messages in memory.
type FakeTopic struct {
	Published      []broker.OutboundMessage
	FailedMessages []broker.OutboundMessage
	ShouldFail     func(msg broker.OutboundMessage) bool
	mu             sync.Mutex
}

func (topic *FakeTopic) Publish(ctx context.Context, msg broker.OutboundMessage) error {
	return topic.BatchPublish(ctx, msg)
}

func (topic *FakeTopic) BatchPublish(ctx context.Context, msgs ...broker.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	topic.mu.Lock()
	defer topic.mu.Unlock()

	if len(msgs) > 0 && topic.ShouldFail != nil && topic.ShouldFail(msgs[0]) {
		topic.FailedMessages = append(topic.FailedMessages, msgs...)

		return errors.New("pretend sender failed")
	}

	topic.Published = append(topic.Published, msgs...)

	return nil
}

// Messages returns a copy of the messages published so far.
func (topic *FakeTopic) Messages() []broker.OutboundMessage {
	topic.mu.Lock()
	defer topic.mu.Unlock()

	return append([]broker.OutboundMessage(nil), topic.Published...)
}
