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

// Package flush turns a stream's serialized records into a committed batch: it fills an on-disk
// buffer, seals it, uploads it to the staging area and commits it into the stream's table.
//
// A batch is either fully staged and committed or it fails without a commit. The buffer is
// released exactly once whatever the outcome. Flushes of different streams may run concurrently;
// flushes of the same stream must be serialized by the caller.
package flush

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/config"
	"github.com/dataphos/stageflush/internal/staging"
	"github.com/dataphos/stageflush/internal/stream"
)

// Resolver looks up the write target of a stream.
type Resolver interface {
	Resolve(id stream.Identity) (stream.WriteTarget, error)
	Known() []stream.Identity
}

// Settings are the tunables of an Orchestrator.
type Settings struct {
	// OptimalBatchSizeBytes is the batch size the scheduler should aim for.
	OptimalBatchSizeBytes int64
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{OptimalBatchSizeBytes: config.DefaultOptimalBatchSizeBytes}
}

type Option func(*Orchestrator)

// WithBufferFactory sets where buffers come from. Defaults to deflate compressed buffers in the OS temp dir.
func WithBufferFactory(factory BufferFactory) Option {
	return func(o *Orchestrator) {
		o.newBuffer = factory
	}
}

// WithReporters registers reporters notified of every committed batch.
func WithReporters(reporters ...Reporter) Option {
	return func(o *Orchestrator) {
		o.reporters = append(o.reporters, reporters...)
	}
}

// Orchestrator flushes record sequences of any configured stream. It holds no per-flush state and is
// safe for concurrent use.
type Orchestrator struct {
	targets   Resolver
	transport staging.Transport
	settings  Settings
	newBuffer BufferFactory
	reporters []Reporter
	now       func() time.Time
}

func New(targets Resolver, transport staging.Transport, settings Settings, opts ...Option) *Orchestrator {
	if settings.OptimalBatchSizeBytes <= 0 {
		settings.OptimalBatchSizeBytes = config.DefaultOptimalBatchSizeBytes
	}

	o := &Orchestrator{
		targets:   targets,
		transport: transport,
		settings:  settings,
		newBuffer: DiskBuffers(config.StagingConfig{}),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Flush stages and commits every record of the sequence as one batch into the table of the stream.
//
// A stream without a write target yields a *ConfigurationError and nothing is uploaded. A failed
// upload or commit yields a *staging.TransportError naming the destination table; it is not retried.
// An empty sequence still produces a staged and committed (empty) batch.
func (o *Orchestrator) Flush(ctx context.Context, id stream.Identity, records RecordIterator) (err error) {
	start := o.now()

	buf, err := o.newBuffer()
	if err != nil {
		return errors.Wrapf(err, "creating buffer for stream %s", id)
	}

	defer func() {
		if errRelease := buf.Release(); errRelease != nil {
			log.Warnw("Failed to release flush buffer", log.F{log.StreamFieldKey: id.String(), log.ErrorFieldKey: errRelease.Error()})
		}
	}()

	if err = fill(ctx, buf, records); err != nil {
		return errors.Wrapf(err, "filling buffer for stream %s", id)
	}

	if err = buf.Seal(); err != nil {
		return errors.Wrapf(err, "sealing buffer for stream %s", id)
	}

	log.Info(log.GetFlushSealedMessage(id.String(), buf.ByteCount(), buf.RecordCount()))

	target, err := o.targets.Resolve(id)
	if err != nil {
		return &ConfigurationError{Stream: id, Known: o.targets.Known(), Err: err}
	}

	table := target.Table.String()

	handle, err := o.transport.Upload(ctx, target.StagingNamespace, target.ObjectNameBase, buf)
	if err != nil {
		return staging.AsTransportError(staging.OpUpload, err).WithTable(table)
	}

	err = o.transport.Commit(ctx, target.StagingNamespace, target.ObjectNameBase, target.Table, target.TableSchema(), handle)
	if err != nil {
		return staging.AsTransportError(staging.OpCommit, err).WithTable(table)
	}

	log.Info(log.GetFlushCommittedMessage(id.String(), table))

	report := Report{
		Stream:      id,
		Table:       target.Table,
		Location:    handle.Location,
		Bytes:       buf.ByteCount(),
		Records:     buf.RecordCount(),
		Elapsed:     o.now().Sub(start),
		CommittedAt: o.now().UTC(),
	}
	for _, reporter := range o.reporters {
		reporter.Report(ctx, report)
	}

	return nil
}

func fill(ctx context.Context, buf Buffer, records RecordIterator) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := records.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return errors.Wrap(err, "reading next record")
		}

		if err = buf.Append(record.Payload, record.EmittedAt); err != nil {
			return err
		}
	}
}

// OptimalBatchSizeBytes is the batch size the scheduler should aim for when deciding when to flush.
// It does not change over the lifetime of the orchestrator.
func (o *Orchestrator) OptimalBatchSizeBytes() int64 {
	return o.settings.OptimalBatchSizeBytes
}

// Fatal reports whether a flush error should abort the whole sync rather than only the batch.
func Fatal(err error) bool {
	return common.IsFatal(err)
}
