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

// Package ingest feeds message batches pulled from a broker into the flush orchestrator.
package ingest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/dataphos/lib-brokers/pkg/broker"
	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/flush"
	"github.com/dataphos/stageflush/internal/notify"
	"github.com/dataphos/stageflush/internal/stream"
)

const (
	FlushErrorCategory         = "Flush error"
	MissingStreamErrorCategory = "Missing stream attribute"
)

var ErrMissingStreamAttribute = errors.New("message has no " + StreamAttribute + " attribute")

// Flusher stages and commits the records of one stream.
type Flusher interface {
	Flush(ctx context.Context, id stream.Identity, records flush.RecordIterator) error
	OptimalBatchSizeBytes() int64
}

type Handler struct {
	Flusher                  Flusher
	HandlerCtx               context.Context
	Cancel                   context.CancelFunc
	DeadLetterActive         bool
	DeadLetterTopic          broker.Topic
	tolerateDeadLetterErrors bool
}

// NewHandler creates a handler. Failed stream groups are dead lettered if deadLetterTopic isn't nil.
func NewHandler(flusher Flusher, deadLetterTopic broker.Topic, tolerateDeadLetterErrors bool) *Handler {
	handler := &Handler{
		Flusher:                  flusher,
		DeadLetterActive:         deadLetterTopic != nil,
		DeadLetterTopic:          deadLetterTopic,
		tolerateDeadLetterErrors: tolerateDeadLetterErrors,
	}
	handler.HandlerCtx, handler.Cancel = context.WithCancel(context.Background())

	return handler
}

func (h *Handler) flushGroup(ctx context.Context, groupPos int, group StreamGroup, wg *sync.WaitGroup, parallelErrors []error) {
	defer wg.Done()

	if group.Unassigned {
		parallelErrors[groupPos] = h.HandleBatchError(ctx, MissingStreamErrorCategory, ErrMissingStreamAttribute,
			"Received messages without a stream", common.ProcessingError, group.Messages...)

		return
	}

	err := h.Flusher.Flush(ctx, group.Stream, Records(group.Messages))
	if err == nil {
		return
	}

	// a stream without a write target needs a configuration change, so its messages stay on the broker.
	if flush.Fatal(err) {
		common.UpdateFailureMetrics(group.Messages...)
		parallelErrors[groupPos] = &common.FatalError{Err: err}

		return
	}

	parallelErrors[groupPos] = h.HandleBatchError(ctx, FlushErrorCategory, err, "Error flushing stream "+group.Stream.String(),
		errorCode(err, common.WriterError), group.Messages...)
}

// HandleBatch is the core of stageflush ingestion.
// Flow:
// Take in a batch of messages -> group them by stream -> flush every stream group concurrently
// -> if a flush fails, send the group to the dead letter topic
// if dead-lettering fails or isn't enabled, return error with the integer positions of failed messages (or just a regular error if they all failed).
// a stream without a write target stops the executor.
func (h *Handler) HandleBatch(_ context.Context, messages []streamproc.Message) error {
	if len(messages) == 0 {
		return nil
	}

	var (
		failedIndices  []int          // accumulates the position of all failed messages.
		processorGroup sync.WaitGroup // wait group to wait for all goroutines to finish.
	)

	ctx := h.HandlerCtx

	groups := GroupByStream(messages)

	parallelErrors := make([]error, len(groups)) // accumulates all errors that occur in the go-routines that flush the groups.

	for i, group := range groups {
		processorGroup.Add(1)

		//nolint:contextcheck // using the handler context here that wasn't inherited from streamproc because we want the batch to finish processing if possible.
		go h.flushGroup(ctx, i, group, &processorGroup, parallelErrors)
	}

	processorGroup.Wait()

	var batchErrors []*common.ProcError
	fatal := false

	for iErr, err := range parallelErrors {
		if err != nil {
			if common.IsFatal(err) {
				fatal = true
			}

			batchErrors = append(batchErrors, common.NewProcessingError(len(groups[iErr].Messages), err, common.ProcessingError))
			failedIndices = append(failedIndices, groups[iErr].Positions...)
		}
	}

	if len(batchErrors) == 0 {
		return nil
	}

	handlerError := &common.MessageBatchError{ErrorList: batchErrors}

	if fatal {
		return &common.FatalError{Err: handlerError}
	}

	if len(batchErrors) < len(groups) {
		// some messages were processed, return failed positions.
		return &streamproc.PartiallyProcessedBatchError{
			Failed: failedIndices,
			Err:    handlerError,
		}
	}

	return handlerError
}

// HandleBatchError sends messages to the dead letter topic or causes them to be handled again later.
func (h *Handler) HandleBatchError(ctx context.Context, errCategory string, err error, errorMessage string, errorCode uint64, failedBatch ...streamproc.Message) error {
	common.UpdateFailureMetrics(failedBatch...)

	if !h.DeadLetterActive {
		return err
	}

	deadLetterErr := notify.SendToDeadLetter(ctx, errCategory, notify.DeadLetterSourceStageflush, err.Error(), h.DeadLetterTopic, failedBatch...)
	if deadLetterErr == nil {
		// sending to dead letter okay and messages will be ack-ed, but log the error that happened.
		log.Errorw(errorMessage, errorCode, log.F{log.ErrorFieldKey: err.Error()})

		return nil
	}

	// no need to log as we are returning the error; it will get logged in executor callbacks.
	batchErr := &common.MessageBatchError{ErrorList: []*common.ProcError{common.NewProcessingError(len(failedBatch), err, common.ProcessingError)}}
	batchErr.AddErr(common.NewProcessingError(len(failedBatch), deadLetterErr, common.SenderDeadLetterError))

	if h.tolerateDeadLetterErrors {
		return batchErr
	}

	return &common.FatalError{Err: batchErr}
}

// errorCode returns the code of the first error in the chain that has one.
func errorCode(err error, fallback uint64) uint64 {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return uint64(coded.Code())
	}

	return fallback
}

func (h *Handler) End() {
	// when pull is canceled, allow handler to process any remaining batches if it has them.
	<-h.HandlerCtx.Done()
}
