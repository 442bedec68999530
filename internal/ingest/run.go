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
	"fmt"
	"strings"
	"time"

	"github.com/kkyr/fig"
	"github.com/pkg/errors"

	"github.com/dataphos/lib-brokers/pkg/broker"
	"github.com/dataphos/lib-shutdown/pkg/graceful"
	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/config"
)

const (
	stageflushConfigFileName = "config/stageflush.toml"
	configFileEnv            = "STAGEFLUSH_CONFIG_FILE"
	productName              = "stageflush"
)

func Run() {
	stageflushConfig := &config.StageflushConfig{}
	configFile := common.GetEnvVariableOrDefault(configFileEnv, stageflushConfigFileName)
	tomlError := fig.Load(stageflushConfig, fig.File(configFile), fig.UseEnv(""))

	if tomlError != nil {
		log.Errorw("Error reading configuration from file!", common.ConfigurationError, log.F{log.ErrorFieldKey: tomlError.Error()})

		return
	}

	stageflushConfig.Log()

	if errorList := stageflushConfig.Validate(); len(errorList) > 0 {
		log.Error(log.GeneralValidationErrorMessage+": "+strings.Join(errorList, "|"), common.ConfigurationError)

		return
	}

	if errorList := stageflushConfig.ValidateRemote(); len(errorList) > 0 {
		log.Error(log.GeneralValidationErrorMessage+": "+strings.Join(errorList, "|"), common.StorageInvalidConfigError)

		return
	}

	handler, err := InitializeHandler(stageflushConfig)
	if err != nil {
		log.Errorw(log.GeneralInitializationErrorMessage, common.InitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return
	}
	defer handler.Cancel()

	srv := common.RunMetricsServer(productName)

	runCtx := graceful.WithSignalShutdown(context.Background()) // context for streamproc executor, will be canceled when a signal is sent

	go func() {
		// when the context is canceled, wait for handler to clean up any messages still left inside
		<-runCtx.Done()
		handler.End()
	}()

	log.Infow("Stageflush starting...", log.F{"streams": len(stageflushConfig.Streams), "optimal_batch_size_bytes": handler.Flusher.OptimalBatchSizeBytes()})

	// the flush size hint bounds how much the receivers pull into one batch.
	batchMemory := handler.Flusher.OptimalBatchSizeBytes()

	switch stageflushConfig.Reader.Type {
	case config.TypePubSub:
		RunBatchMessageReceiverHandler(runCtx, handler, stageflushConfig.Reader.PubSub, stageflushConfig.BatchSettings, batchMemory)
	case config.TypeServiceBus:
		RunBatchMessageReceiverHandler(runCtx, handler, stageflushConfig.Reader.ServiceBus, stageflushConfig.BatchSettings, batchMemory)
	case config.TypeKafka:
		RunBatchRecordIteratorHandler(runCtx, handler, stageflushConfig.Reader.Kafka, stageflushConfig.BatchSettings, batchMemory)
	}

	handler.Cancel() // to return from the goroutine calling End

	// context used to stop metrics server
	ctx, cancel := context.WithTimeout(context.Background(), common.ServerShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(errors.Wrap(err, "metrics server shutdown failed").Error(), common.MetricsServerError)
	}

	log.Info("Stageflush exiting")
}

func RunBatchMessageReceiverHandler(runCtx context.Context, handler streamproc.BatchHandler, receiverConfig interface{}, batchSettings config.BatchSettings, batchMemory int64) {
	var (
		err      error
		receiver broker.BatchedReceiver
	)

	switch specificReceiverConfig := receiverConfig.(type) {
	case config.PubSubReceiverConfig:
		receiver, err = NewPubSubReceiver(runCtx, specificReceiverConfig, batchSettings, batchMemory)
	case config.ServiceBusReceiverConfig:
		receiver, err = NewServiceBusReceiver(specificReceiverConfig, batchSettings)
	default:
		log.Error("Receiver type unknown", common.BrokerInvalidConfigError)

		return
	}

	if err != nil {
		log.Fatal(err.Error(), common.BrokerInitializationError)
	}

	executor := streamproc.NewBatchedReceiverExecutor(handler)

	err = executor.Run(runCtx, receiver, DefineRunOptions()...)
	if err != nil {
		log.Error(err.Error(), common.ProcessingError)
	}
}

func RunBatchRecordIteratorHandler(runCtx context.Context, handler streamproc.BatchHandler, receiverConfig interface{}, batchSettings config.BatchSettings, batchMemory int64) {
	var (
		iterator broker.BatchedIterator
		err      error
	)

	switch specificReceiverConfig := receiverConfig.(type) {
	case config.KafkaIteratorConfig:
		iterator, err = NewKafkaIterator(runCtx, specificReceiverConfig, batchSettings, batchMemory)
	default:
		log.Error("Receiver type unknown", common.BrokerInvalidConfigError)

		return
	}

	if err != nil {
		log.Fatal(err.Error(), common.BrokerInitializationError)
	}

	executor := streamproc.NewBatchExecutor(handler)

	err = executor.Run(runCtx, iterator, DefineRunOptions()...)
	if err != nil {
		log.Error(err.Error(), common.ProcessingError)
	}
}

// DefineRunOptions specifies what happens for each error type and whether the run should continue.
// Retries are left to the broker redelivering nacked messages, so a failed flush is never repeated in place.
func DefineRunOptions() []streamproc.RunOption {
	return []streamproc.RunOption{
		streamproc.WithErrThreshold(50),
		streamproc.WithErrInterval(1 * time.Minute),
		streamproc.WithNumRetires(0),
		streamproc.OnPullErr(func(err error) streamproc.FlowControl {
			log.Errorw(log.GeneralPullError, common.ProcessingError, log.F{log.ErrorFieldKey: err.Error()})

			return streamproc.FlowControlStop
		}),
		streamproc.OnProcessErr(func(err error) streamproc.FlowControl {
			log.Info(fmt.Sprintf("Error occurred during processing: %v", err.Error()))

			return streamproc.FlowControlContinue
		}),
		streamproc.OnUnrecoverable(func(err error) streamproc.FlowControl {
			log.Errorw("Unrecoverable error encountered", common.ProcessingError, log.F{log.ErrorFieldKey: err.Error()})

			return streamproc.FlowControlStop
		}),
		streamproc.OnThresholdReached(func(err error, count, threshold int64) streamproc.FlowControl {
			log.Info(fmt.Sprintf("Error threshold reached (%d >= %d)", count, threshold))

			return streamproc.FlowControlStop
		}),
	}
}
