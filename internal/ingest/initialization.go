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

	"github.com/pkg/errors"

	"github.com/dataphos/lib-brokers/pkg/broker"
	bqcommitter "github.com/dataphos/stageflush/internal/committer/bigquery"
	mongocommitter "github.com/dataphos/stageflush/internal/committer/mongo"
	"github.com/dataphos/stageflush/internal/config"
	"github.com/dataphos/stageflush/internal/flush"
	"github.com/dataphos/stageflush/internal/notify"
	"github.com/dataphos/stageflush/internal/staging"
	"github.com/dataphos/stageflush/internal/staging/abs"
	"github.com/dataphos/stageflush/internal/staging/gcs"
	"github.com/dataphos/stageflush/internal/stream"
)

var (
	ErrStagingTypeNotRecognized     = errors.New("staging type not recognized")
	ErrDestinationTypeNotRecognized = errors.New("destination type not recognized")
)

// NewStager connects to the configured staging storage.
func NewStager(ctx context.Context, stagingConfig config.StagingConfig) (staging.Stager, error) {
	namer, err := staging.NewNamer(stagingConfig)
	if err != nil {
		return nil, errors.Wrap(err, "staging object mask")
	}

	switch stagingConfig.Type {
	case config.StagingGCS:
		return gcs.NewStager(ctx, stagingConfig.Destination, stagingConfig.CredentialsFile, namer)
	case config.StagingABS:
		return abs.NewStager(stagingConfig.StorageAccountID, stagingConfig.Destination, namer)
	default:
		return nil, errors.Wrap(ErrStagingTypeNotRecognized, stagingConfig.Type)
	}
}

// NewCommitter connects to the configured destination. Committers that read staged data back do so through stager.
func NewCommitter(ctx context.Context, destinationConfig config.DestinationConfig, stager staging.Stager) (staging.Committer, error) {
	switch destinationConfig.Type {
	case config.DestinationBigQuery:
		return bqcommitter.NewCommitter(ctx, destinationConfig.ProjectID, destinationConfig.Location, destinationConfig.CredentialsFile)
	case config.DestinationMongo:
		store, err := mongocommitter.NewMongoStore(ctx, destinationConfig.Mongo)
		if err != nil {
			return nil, err
		}

		return mongocommitter.NewCommitter(store, stager), nil
	default:
		return nil, errors.Wrap(ErrDestinationTypeNotRecognized, destinationConfig.Type)
	}
}

// NewOrchestrator wires the write target catalog, the staging transport and the reporters into an orchestrator.
func NewOrchestrator(ctx context.Context, stageflushConfig *config.StageflushConfig) (*flush.Orchestrator, error) {
	registry, err := stream.NewRegistryFromConfig(stageflushConfig.Streams)
	if err != nil {
		return nil, err
	}

	stager, err := NewStager(ctx, stageflushConfig.Staging)
	if err != nil {
		return nil, err
	}

	committer, err := NewCommitter(ctx, stageflushConfig.Destination, stager)
	if err != nil {
		return nil, err
	}

	reporters := []flush.Reporter{flush.MetricsReporter{}}

	if stageflushConfig.NotifyEnabled {
		topic, _, err := notify.NewTopic(ctx, stageflushConfig.Sender, stageflushConfig.Sender.TopicID,
			stageflushConfig.BatchSettings.BatchSize, stageflushConfig.BatchSettings.OptimalBatchSizeBytes)
		if err != nil {
			return nil, err
		}

		reporters = append(reporters, &notify.Reporter{Topic: topic})
	}

	return flush.New(
		registry,
		staging.Compose(stager, committer),
		flush.Settings{OptimalBatchSizeBytes: stageflushConfig.BatchSettings.OptimalBatchSizeBytes},
		flush.WithBufferFactory(flush.DiskBuffers(stageflushConfig.Staging)),
		flush.WithReporters(reporters...),
	), nil
}

func InitializeHandler(stageflushConfig *config.StageflushConfig) (*Handler, error) {
	ctx := context.Background()

	orchestrator, err := NewOrchestrator(ctx, stageflushConfig)
	if err != nil {
		return nil, err
	}

	var (
		deadLetterTopic          broker.Topic
		tolerateDeadLetterErrors bool
	)

	if stageflushConfig.DeadLetterEnabled {
		deadLetterTopic, tolerateDeadLetterErrors, err = notify.NewTopic(ctx, stageflushConfig.Sender, stageflushConfig.Sender.DeadLetterTopic,
			stageflushConfig.BatchSettings.BatchSize, orchestrator.OptimalBatchSizeBytes())
		if err != nil {
			return nil, err
		}
	}

	return NewHandler(orchestrator, deadLetterTopic, tolerateDeadLetterErrors), nil
}
