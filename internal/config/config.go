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

// Package config provides the configuration structs of stageflush and their validation.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
)

const (
	StagingGCS = "gcs"
	StagingABS = "abs"
)

const (
	DestinationBigQuery = "bigquery"
	DestinationMongo    = "mongo"
)

const (
	CodecNull    = "null"
	CodecDeflate = "deflate"
	CodecSnappy  = "snappy"
)

// DefaultOptimalBatchSizeBytes is the batch size the scheduler is asked to aim for. It keeps a
// worker with about 1 GiB of memory from holding more than a few batches per queue at once,
// at the cost of more staging round trips.
const DefaultOptimalBatchSizeBytes int64 = 25 * 1024 * 1024

type BrokerType string

const (
	TypePubSub     BrokerType = "pubsub"
	TypeKafka      BrokerType = "kafka"
	TypeServiceBus BrokerType = "servicebus"
)

type StageflushConfig struct {
	Reader            ReaderConfig
	Staging           StagingConfig
	Destination       DestinationConfig
	BatchSettings     BatchSettings
	NotifyEnabled     bool
	DeadLetterEnabled bool
	Sender            SenderConfig
	Streams           []StreamConfig
}

// StagingConfig describes where sealed batches are uploaded to and how they are encoded.
type StagingConfig struct {
	Type             string
	Destination      string // Destination is the bucket (GCS) or container (ABS) name.
	StorageAccountID string // StorageAccountID used with ABS staging
	CredentialsFile  string
	Mask             string
	CustomValues     string // CustomValues allows user to define mask parameter aside predefined values
	Extension        string
	TempDir          string
	Codec            string `default:"deflate"`
	BlockLength      int    `default:"1000"`
}

// DestinationConfig describes the system staged batches are committed into.
type DestinationConfig struct {
	Type            string
	ProjectID       string
	Location        string
	CredentialsFile string
	Mongo           MongoConfig
}

type MongoConfig struct {
	ConnectionString string
	AuthMechanism    string
	AuthSource       string
	Username         string
	Password         string
	SessionTokenName string
	SessionTokenVal  string
}

func (mongoConfig *MongoConfig) AuthOptionsSet() bool {
	return mongoConfig.AuthMechanism != "" || mongoConfig.Username != ""
}

type ReaderConfig struct {
	Type       BrokerType
	PubSub     PubSubReceiverConfig
	ServiceBus ServiceBusReceiverConfig
	Kafka      KafkaIteratorConfig
}

type SenderConfig struct {
	Type            BrokerType
	TopicID         string // TopicID receives a report of every committed batch when notifications are enabled.
	DeadLetterTopic string
	PubSub          PubSubSenderConfig
	ServiceBus      ServiceBusSenderConfig
	Kafka           KafkaSenderConfig
}

type KafkaSenderConfig struct {
	Address   string
	TLSConfig TLSConfig `fig:"TLS"`
}

type PubSubSenderConfig struct {
	ProjectID string
}

type ServiceBusSenderConfig struct {
	ConnectionString string
}

type PubSubReceiverConfig struct {
	ProjectID string
	SubID     string
}

type KafkaIteratorConfig struct {
	Address   string
	GroupID   string
	TopicID   string
	TLSConfig TLSConfig `fig:"TLS"`
}

type ServiceBusReceiverConfig struct {
	ConnectionString string
	TopicID          string
	SubID            string
}

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// BatchSettings represents the settings for batch processing
type BatchSettings struct {
	// BatchSize maximum number of messages pulled into a single handled batch.
	BatchSize int
	// BatchTimeout maximum amount of time to wait for a batch to fill up to BatchSize before processing it anyway
	BatchTimeout time.Duration
	// OptimalBatchSizeBytes is the flush size hint; receivers stop filling a batch once it holds this many bytes.
	OptimalBatchSizeBytes int64 `default:"26214400"`
}

// StreamConfig is one entry of the write target catalog.
type StreamConfig struct {
	Name             string
	Namespace        string
	StagingNamespace string
	ObjectNameBase   string
	Project          string
	Dataset          string
	Table            string
	Schema           []FieldConfig
}

type FieldConfig struct {
	Name string
	Type string
	Mode string
}

// Columns of every staged row. A stream schema, when given, must declare all of them.
const (
	RawIDColumn        = "_raw_id"
	RawEmittedAtColumn = "_emitted_at"
	RawDataColumn      = "_data"
)

// MissingRawColumns returns the staged row columns that are not among columns.
func MissingRawColumns(columns []string) []string {
	declared := make(map[string]bool, len(columns))
	for _, column := range columns {
		declared[column] = true
	}

	var missing []string

	for _, column := range []string{RawIDColumn, RawEmittedAtColumn, RawDataColumn} {
		if !declared[column] {
			missing = append(missing, column)
		}
	}

	return missing
}

const Redacted = "[redacted]"

// mapFromKeySequence when given a sequence of keys like ["k1, "k2"] will return baseMap["k1"]["k2"] is that value is a map
func mapFromKeySequence(baseMap map[string]interface{}, keys []string) *map[string]interface{} {
	for _, k := range keys {
		val, ok := baseMap[k]
		if !ok {
			return nil
		}

		var isMap bool

		baseMap, isMap = val.(map[string]interface{})
		if !isMap {
			return nil
		}
	}

	return &baseMap
}

// hideSensitiveConfigInfo removes connection strings and passwords from a config map so they don't get logged
func hideSensitiveConfigInfo(configMap *map[string]interface{}) {
	sensitive := [][]string{
		{"Reader", "ServiceBus"},
		{"Sender", "ServiceBus"},
		{"Destination", "Mongo"},
	}

	for _, keys := range sensitive {
		section := mapFromKeySequence(*configMap, keys)
		if section == nil {
			continue
		}

		for _, field := range []string{"ConnectionString", "Password", "SessionTokenVal"} {
			if value, ok := (*section)[field]; ok && value != "" {
				(*section)[field] = Redacted
			}
		}
	}
}

// configToLogFields takes a map obtained from a config structure and returns log.F to be logged in json format
func configToLogFields(configMap *map[string]interface{}) log.F {
	hideSensitiveConfigInfo(configMap)

	configFields := log.F{}

	for key, val := range *configMap {
		configFields[key] = val
	}

	return configFields
}

func configToMap(config any, configMap *map[string]interface{}) error {
	if configBytes, err := json.Marshal(config); err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	} else if err = json.Unmarshal(configBytes, &configMap); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}

	return nil
}

// NewTLSConfig creates and returns a tls.Config if it is not enabled then the function returns nil
func NewTLSConfig(enabled bool, clientCertFile, clientKeyFile, caCertFile string) (*tls.Config, error) {
	if !enabled {
		return nil, nil
	}

	if clientCertFile == "" || clientKeyFile == "" || caCertFile == "" {
		return nil, fmt.Errorf("clientCertFile, clientKeyFile, and caCertFile cannot be empty")
	}

	tlsConfig := tls.Config{MinVersion: tls.VersionTLS13}

	cert, err := tls.LoadX509KeyPair(clientCertFile, clientKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}

	caCert, err := os.ReadFile(caCertFile) // #nosec
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	caCertPool := x509.NewCertPool()
	caCertPool.AppendCertsFromPEM(caCert)
	tlsConfig.RootCAs = caCertPool

	return &tlsConfig, nil
}

// LogFields returns the config as log fields with sensitive values hidden.
func (stageflushConfig *StageflushConfig) LogFields() (log.F, error) {
	configMap := map[string]interface{}{}

	if err := configToMap(stageflushConfig, &configMap); err != nil {
		return nil, err
	}

	return configToLogFields(&configMap), nil
}

// Log prints config to stdout with the help of the log package by setting the log.F fields equal to the config struct fields, and hides sensitive info
func (stageflushConfig *StageflushConfig) Log() {
	fields, err := stageflushConfig.LogFields()
	if err != nil {
		log.Errorw("Error printing stageflush config:", common.ConfigurationError, log.F{log.ErrorFieldKey: err.Error()})

		return
	}

	log.Infow("Stageflush config", fields)
}
