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

package config

import (
	"fmt"
	"strings"

	"github.com/dataphos/stageflush/internal/common/log"
)

func ErrorEmptyString(fieldName string) string {
	return fmt.Sprintf("%s must not be empty.", fieldName)
}

// Validate checks the configuration without contacting any external system and returns every problem found.
func (stageflushConfig *StageflushConfig) Validate() []string {
	var errorList []string

	stageflushConfig.Reader.Validate(&errorList)
	ValidateStaging(&stageflushConfig.Staging, &errorList)
	ValidateDestination(&stageflushConfig.Destination, stageflushConfig.Staging.Type, &errorList)
	ValidateBatchSettings(stageflushConfig.BatchSettings, &errorList)
	ValidateStreams(stageflushConfig.Streams, &errorList)

	if stageflushConfig.NotifyEnabled || stageflushConfig.DeadLetterEnabled {
		stageflushConfig.Sender.Validate(&errorList)
	}

	if stageflushConfig.NotifyEnabled {
		if stageflushConfig.Sender.TopicID == "" {
			errorList = append(errorList, "Notifications are enabled but SENDER_TOPICID is missing")
		}
	} else if stageflushConfig.Sender.TopicID != "" {
		log.Warn("Notifications are not enabled. Ignoring notification topic ID.")

		stageflushConfig.Sender.TopicID = ""
	}

	if stageflushConfig.DeadLetterEnabled {
		if stageflushConfig.Sender.DeadLetterTopic == "" {
			errorList = append(errorList, "Dead letter topic is enabled but SENDER_DEADLETTERTOPIC is missing")
		} else if stageflushConfig.NotifyEnabled && stageflushConfig.Sender.TopicID == stageflushConfig.Sender.DeadLetterTopic {
			errorList = append(errorList, "Dead letter and notification topic id cannot be the same")
		}
	} else {
		if stageflushConfig.Reader.Type == TypeKafka {
			errorList = append(errorList, "Dead letter must exist if kafka is used")
		} else if stageflushConfig.Sender.DeadLetterTopic != "" {
			log.Warn("Dead lettering is not enabled. Ignoring dead letter topic ID.")

			stageflushConfig.Sender.DeadLetterTopic = ""
		}
	}

	return errorList
}

func (c *ReaderConfig) Validate(errorList *[]string) {
	switch c.Type {
	case TypeKafka:
		c.Kafka.Validate(errorList)
	case TypePubSub:
		c.PubSub.Validate(errorList)
	case TypeServiceBus:
		c.ServiceBus.Validate(errorList)
	case "":
		*errorList = append(*errorList, ErrorEmptyString("BrokerType"))
	default:
		*errorList = append(*errorList, fmt.Sprintf("Reader type %s is not recognized", c.Type))
	}
}

func (pubSubRecConfig *PubSubReceiverConfig) Validate(errorList *[]string) {
	if pubSubRecConfig.SubID == "" {
		*errorList = append(*errorList, ErrorEmptyString("SubID"))
	}

	if pubSubRecConfig.ProjectID == "" {
		*errorList = append(*errorList, ErrorEmptyString("ProjectID"))
	}
}

func (sbRecConfig *ServiceBusReceiverConfig) Validate(errorList *[]string) {
	if sbRecConfig.ConnectionString == "" {
		*errorList = append(*errorList, ErrorEmptyString("ConnectionString"))
	}

	if sbRecConfig.TopicID == "" {
		*errorList = append(*errorList, ErrorEmptyString("TopicID"))
	}

	if sbRecConfig.SubID == "" {
		*errorList = append(*errorList, ErrorEmptyString("SubID"))
	}
}

func (kafkaRecConfig *KafkaIteratorConfig) Validate(errorList *[]string) {
	if kafkaRecConfig.Address == "" {
		*errorList = append(*errorList, ErrorEmptyString("Address"))
	}

	if kafkaRecConfig.TopicID == "" {
		*errorList = append(*errorList, ErrorEmptyString("TopicID"))
	}
}

func ValidateStaging(staging *StagingConfig, errorList *[]string) {
	if staging.Destination == "" {
		*errorList = append(*errorList, ErrorEmptyString("Staging.Destination"))
	}

	switch staging.Type {
	case StagingGCS:
	case StagingABS:
		if staging.StorageAccountID == "" {
			*errorList = append(*errorList, ErrorEmptyString("Staging.StorageAccountID"))
		}
	case "":
		*errorList = append(*errorList, ErrorEmptyString("STAGING_TYPE"))
	default:
		*errorList = append(*errorList, fmt.Sprintf("Staging type %s not recognized", staging.Type))
	}

	switch staging.Codec {
	case CodecNull, CodecDeflate, CodecSnappy:
	default:
		*errorList = append(*errorList, fmt.Sprintf("Staging codec %s not recognized", staging.Codec))
	}

	if staging.BlockLength < 1 {
		*errorList = append(*errorList, "Staging block length must be 1 or greater")
	}
}

func ValidateDestination(destination *DestinationConfig, stagingType string, errorList *[]string) {
	switch destination.Type {
	case DestinationBigQuery:
		if destination.ProjectID == "" {
			*errorList = append(*errorList, ErrorEmptyString("Destination.ProjectID"))
		}

		if stagingType != StagingGCS {
			*errorList = append(*errorList, "BigQuery destination can only load batches staged on gcs")
		}
	case DestinationMongo:
		ValidateMongo(&destination.Mongo, errorList)
	case "":
		*errorList = append(*errorList, ErrorEmptyString("DESTINATION_TYPE"))
	default:
		*errorList = append(*errorList, fmt.Sprintf("Destination type %s not recognized", destination.Type))
	}
}

func ValidateMongo(mongoConfig *MongoConfig, errorList *[]string) {
	if mongoConfig.ConnectionString == "" {
		*errorList = append(*errorList, ErrorEmptyString("Mongo.ConnectionString"))
	}

	if mongoConfig.Password != "" && mongoConfig.Username == "" {
		*errorList = append(*errorList, "set password without username")
	}

	if (mongoConfig.SessionTokenName != "" && mongoConfig.SessionTokenVal == "") ||
		(mongoConfig.SessionTokenName == "" && mongoConfig.SessionTokenVal != "") {
		*errorList = append(*errorList, "attempted to set session token, but missing either the token name or token value")
	}
}

func ValidateBatchSettings(settings BatchSettings, errorList *[]string) {
	if settings.BatchSize < 1 {
		*errorList = append(*errorList, "Batch size must be 1 or greater")
	}

	if settings.BatchTimeout < 1 {
		*errorList = append(*errorList, "Batch timeout must be positive")
	}

	if settings.OptimalBatchSizeBytes < 1 {
		*errorList = append(*errorList, "Optimal batch size must be 1 byte or greater")
	}
}

func ValidateStreams(streams []StreamConfig, errorList *[]string) {
	if len(streams) == 0 {
		*errorList = append(*errorList, "At least one stream must be configured")
	}

	for i, stream := range streams {
		if stream.Name == "" {
			*errorList = append(*errorList, ErrorEmptyString(fmt.Sprintf("Streams[%d].Name", i)))
		}

		if stream.Dataset == "" {
			*errorList = append(*errorList, ErrorEmptyString(fmt.Sprintf("Streams[%d].Dataset", i)))
		}

		if stream.Table == "" {
			*errorList = append(*errorList, ErrorEmptyString(fmt.Sprintf("Streams[%d].Table", i)))
		}

		if len(stream.Schema) == 0 {
			continue
		}

		columns := make([]string, len(stream.Schema))

		for j, field := range stream.Schema {
			if field.Name == "" || field.Type == "" {
				*errorList = append(*errorList, fmt.Sprintf("Streams[%d].Schema[%d] must have a name and a type", i, j))
			}

			columns[j] = field.Name
		}

		if missing := MissingRawColumns(columns); len(missing) > 0 {
			*errorList = append(*errorList, fmt.Sprintf("Streams[%d].Schema is missing the staged columns %s", i, strings.Join(missing, ", ")))
		}
	}
}

func (senderConfig *SenderConfig) Validate(errorList *[]string) {
	switch senderConfig.Type {
	case TypeKafka:
		senderConfig.Kafka.Validate(errorList)
	case TypePubSub:
		senderConfig.PubSub.Validate(errorList)
	case TypeServiceBus:
		senderConfig.ServiceBus.Validate(errorList)
	case "":
		*errorList = append(*errorList, ErrorEmptyString("Sender.Type"))
	default:
		*errorList = append(*errorList, fmt.Sprintf("Sender type %s is not recognized", senderConfig.Type))
	}
}

func (pubSubSenderConfig *PubSubSenderConfig) Validate(errorList *[]string) {
	if pubSubSenderConfig.ProjectID == "" {
		*errorList = append(*errorList, ErrorEmptyString("Sender.ProjectID"))
	}
}

func (sbSenderConfig *ServiceBusSenderConfig) Validate(errorList *[]string) {
	if sbSenderConfig.ConnectionString == "" {
		*errorList = append(*errorList, ErrorEmptyString("Sender.ConnectionString"))
	}
}

func (kafkaSenderConfig *KafkaSenderConfig) Validate(errorList *[]string) {
	if kafkaSenderConfig.Address == "" {
		*errorList = append(*errorList, ErrorEmptyString("Sender.Address"))
	}
}
