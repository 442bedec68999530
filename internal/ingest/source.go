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
	"crypto/tls"
	"fmt"

	"github.com/dataphos/lib-brokers/pkg/broker"
	"github.com/dataphos/lib-brokers/pkg/broker/kafka"
	"github.com/dataphos/lib-brokers/pkg/broker/pubsub"
	"github.com/dataphos/lib-brokers/pkg/broker/servicebus"
	"github.com/dataphos/lib-brokers/pkg/brokerutil"
	"github.com/dataphos/stageflush/internal/config"
)

const (
	minBatchMemory       = 1024
	maxConcurrentFetches = 3
	kafkaMinFetchBytes   = 100
)

// sourceLimits is how much a broker source may hold before the handler sees a batch.
type sourceLimits struct {
	messages int
	bytes    int
}

// limitsFor ties the source limits to the batch settings and the flush size hint.
func limitsFor(batchSettings config.BatchSettings, batchMemory int64) sourceLimits {
	if batchMemory < minBatchMemory {
		batchMemory = minBatchMemory
	}

	return sourceLimits{messages: batchSettings.BatchSize, bytes: int(batchMemory)}
}

// handleOneBatchAtATime keeps at most one flush of a stream in flight.
var handleOneBatchAtATime = brokerutil.IntoBatchedReceiverSettings{NumGoroutines: 1}

// NewPubSubReceiver returns a broker.BatchedReceiver pulling from a Pub/Sub subscription.
// Outstanding messages and bytes are raised to at least the source limits so a batch is
// never cut short by flow control.
func NewPubSubReceiver(ctx context.Context, receiverConfig config.PubSubReceiverConfig, batchSettings config.BatchSettings, batchMemory int64) (broker.BatchedReceiver, error) {
	limits := limitsFor(batchSettings, batchMemory)

	settings := pubsub.DefaultReceiveSettings
	if limits.messages > settings.MaxOutstandingMessages {
		settings.MaxOutstandingMessages = limits.messages
	}

	if limits.bytes > settings.MaxOutstandingBytes {
		settings.MaxOutstandingBytes = limits.bytes
	}

	receiver, err := pubsub.NewReceiver(ctx, pubsub.ReceiverConfig{
		ProjectID:      receiverConfig.ProjectID,
		SubscriptionID: receiverConfig.SubID,
	}, settings)
	if err != nil {
		return nil, fmt.Errorf("pubsub receiver initialization: %w", err)
	}

	return brokerutil.ReceiverIntoBatchedReceiver(
		receiver,
		brokerutil.IntoBatchedMessageStreamSettings{
			BatchSize:    batchSettings.BatchSize,
			BatchTimeout: batchSettings.BatchTimeout,
		},
		handleOneBatchAtATime,
	), nil
}

// NewServiceBusReceiver wraps a Service Bus batch iterator into a broker.BatchedReceiver.
func NewServiceBusReceiver(receiverConfig config.ServiceBusReceiverConfig, batchSettings config.BatchSettings) (broker.BatchedReceiver, error) {
	iterator, err := servicebus.NewBatchIterator(
		servicebus.IteratorConfig{
			ConnectionString: receiverConfig.ConnectionString,
			Topic:            receiverConfig.TopicID,
			Subscription:     receiverConfig.SubID,
		},
		servicebus.BatchIteratorSettings{BatchSize: batchSettings.BatchSize},
	)
	if err != nil {
		return nil, fmt.Errorf("service bus iterator initialization: %w", err)
	}

	return brokerutil.BatchedMessageIteratorIntoBatchedReceiver(iterator, handleOneBatchAtATime), nil
}

// NewKafkaIterator returns a batched Kafka iterator fetching at most batchMemory bytes per poll.
func NewKafkaIterator(ctx context.Context, iteratorConfig config.KafkaIteratorConfig, batchSettings config.BatchSettings, batchMemory int64) (broker.BatchedIterator, error) {
	var (
		tlsConfig *tls.Config
		err       error
	)

	tlsSettings := iteratorConfig.TLSConfig
	if tlsConfig, err = config.NewTLSConfig(tlsSettings.Enabled, tlsSettings.CertFile, tlsSettings.KeyFile, tlsSettings.CAFile); err != nil {
		return nil, fmt.Errorf("kafka tls config: %w", err)
	}

	limits := limitsFor(batchSettings, batchMemory)

	iterator, err := kafka.NewBatchIterator(ctx,
		kafka.ConsumerConfig{
			BrokerAddr: iteratorConfig.Address,
			GroupID:    iteratorConfig.GroupID,
			Topic:      iteratorConfig.TopicID,
			TLS:        tlsConfig,
		},
		kafka.BatchConsumerSettings{
			ConsumerSettings: kafka.ConsumerSettings{
				MinBytes:             kafkaMinFetchBytes,
				MaxWait:              batchSettings.BatchTimeout,
				MaxBytes:             limits.bytes,
				MaxConcurrentFetches: maxConcurrentFetches,
			},
			MaxPollRecords: limits.messages,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("kafka iterator initialization: %w", err)
	}

	return iterator, nil
}
