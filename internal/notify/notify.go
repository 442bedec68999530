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

// Package notify publishes messages about flushed batches: a report of every committed batch and
// the messages of failed batches to the dead letter topic.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/dataphos/lib-brokers/pkg/broker"
	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/flush"
)

const (
	DeadLetterReasonCategory = "deadLetterErrorCategory"
	DeadLetterReason         = "deadLetterErrorReason"
	DeadLetterSource         = "deadLetterSource"

	DeadLetterSourceStageflush = "Dataphos Stageflush"
)

// Attributes set on every flush report.
const (
	StreamAttribute = "stream"
	TableAttribute  = "table"
)

// FlushReport is the message published for every committed batch.
type FlushReport struct {
	Stream      string    `json:"stream"`
	Namespace   string    `json:"namespace,omitempty"`
	Table       string    `json:"table"`
	Location    string    `json:"location"`
	Bytes       int64     `json:"bytes"`
	Records     int       `json:"records"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CommittedAt time.Time `json:"committed_at"`
}

func NewFlushReport(report flush.Report) FlushReport {
	return FlushReport{
		Stream:      report.Stream.Name,
		Namespace:   report.Stream.Namespace,
		Table:       report.Table.String(),
		Location:    report.Location,
		Bytes:       report.Bytes,
		Records:     report.Records,
		ElapsedMs:   report.Elapsed.Milliseconds(),
		CommittedAt: report.CommittedAt,
	}
}

// PublishFlushReport publishes the report of a committed batch.
func PublishFlushReport(ctx context.Context, topic broker.Topic, report flush.Report) error {
	data, err := json.Marshal(NewFlushReport(report))
	if err != nil {
		return errors.Wrap(err, "marshalling flush report")
	}

	err = topic.Publish(ctx, broker.OutboundMessage{
		Key:  report.Stream.String(),
		Data: data,
		Attributes: map[string]interface{}{
			StreamAttribute: report.Stream.String(),
			TableAttribute:  report.Table.String(),
		},
	})
	if err != nil {
		return errors.Wrap(err, "flush report publisher")
	}

	return nil
}

// Reporter publishes a report of every committed batch to a topic. The batch is already committed
// when it runs, so a failed publish is only logged.
type Reporter struct {
	Topic broker.Topic
}

func (r *Reporter) Report(ctx context.Context, report flush.Report) {
	if err := PublishFlushReport(ctx, r.Topic, report); err != nil {
		log.Errorw("Failed to publish flush report", common.SenderPublishError, log.F{
			log.ErrorFieldKey:  err.Error(),
			log.StreamFieldKey: report.Stream.String(),
			log.TableFieldKey:  report.Table.String(),
		})
	}
}

// SendToDeadLetter publishes the messages with the reason they failed attached to their attributes.
func SendToDeadLetter(ctx context.Context, errorCategory, errorSource, errorInfo string, dlTopic broker.Topic, msgs ...streamproc.Message) error {
	outbound := make([]broker.OutboundMessage, 0, len(msgs))

	for _, msg := range msgs {
		attrs := make(map[string]interface{}, len(msg.Attributes)+3)

		// copying the map is necessary because otherwise we have concurrent reads and writes.
		for k, v := range msg.Attributes {
			attrs[k] = v
		}

		attrs[DeadLetterReason] = errorInfo
		attrs[DeadLetterReasonCategory] = errorCategory
		attrs[DeadLetterSource] = errorSource

		outbound = append(outbound, broker.OutboundMessage{
			Key:        msg.Key,
			Data:       msg.Data,
			Attributes: attrs,
		})
	}

	if err := dlTopic.BatchPublish(ctx, outbound...); err != nil {
		return errors.Wrap(err, "dead letter publisher")
	}

	return nil
}
