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

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataphos/lib-brokers/pkg/broker"
	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/flush"
	"github.com/dataphos/stageflush/internal/notify"
	"github.com/dataphos/stageflush/internal/stream"
)

func ordersReport() flush.Report {
	return flush.Report{
		Stream:      stream.Identity{Name: "orders", Namespace: "shop"},
		Table:       stream.TableID{Project: "p", Dataset: "ds1", Table: "orders_raw"},
		Location:    "gs://staging/ds1/orders-1.avro",
		Bytes:       4096,
		Records:     3,
		Elapsed:     1500 * time.Millisecond,
		CommittedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishFlushReport(t *testing.T) {
	topic := &notify.FakeTopic{}

	require.NoError(t, notify.PublishFlushReport(context.Background(), topic, ordersReport()))

	messages := topic.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "shop.orders", messages[0].Key)
	assert.Equal(t, "p.ds1.orders_raw", messages[0].Attributes[notify.TableAttribute])

	var published notify.FlushReport
	require.NoError(t, json.Unmarshal(messages[0].Data, &published))
	assert.Equal(t, notify.FlushReport{
		Stream:      "orders",
		Namespace:   "shop",
		Table:       "p.ds1.orders_raw",
		Location:    "gs://staging/ds1/orders-1.avro",
		Bytes:       4096,
		Records:     3,
		ElapsedMs:   1500,
		CommittedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}, published)
}

func TestReporter_PublishFailureIsNotPropagated(t *testing.T) {
	topic := &notify.FakeTopic{ShouldFail: func(broker.OutboundMessage) bool { return true }}
	reporter := &notify.Reporter{Topic: topic}

	reporter.Report(context.Background(), ordersReport())

	assert.Empty(t, topic.Messages())
	assert.Len(t, topic.FailedMessages, 1)
}

func TestSendToDeadLetter(t *testing.T) {
	topic := &notify.FakeTopic{}
	original := map[string]interface{}{"stream": "orders"}
	msgs := []streamproc.Message{
		{ID: "1", Key: "k1", Data: []byte("a"), Attributes: original},
		{ID: "2", Data: []byte("b")},
	}

	err := notify.SendToDeadLetter(context.Background(), "Flush error", notify.DeadLetterSourceStageflush, "boom", topic, msgs...)
	require.NoError(t, err)

	messages := topic.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "orders", messages[0].Attributes["stream"])
	assert.Equal(t, "boom", messages[0].Attributes[notify.DeadLetterReason])
	assert.Equal(t, "Flush error", messages[1].Attributes[notify.DeadLetterReasonCategory])
	assert.Equal(t, notify.DeadLetterSourceStageflush, messages[1].Attributes[notify.DeadLetterSource])

	_, touched := original[notify.DeadLetterReason]
	assert.False(t, touched)
}

func TestSendToDeadLetter_Failure(t *testing.T) {
	topic := &notify.FakeTopic{ShouldFail: func(broker.OutboundMessage) bool { return true }}

	err := notify.SendToDeadLetter(context.Background(), "Flush error", notify.DeadLetterSourceStageflush, "boom", topic, streamproc.Message{ID: "1"})
	assert.Error(t, err)
}
