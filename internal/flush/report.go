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

package flush

import (
	"context"
	"time"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/stream"
)

// Report describes a committed batch.
type Report struct {
	Stream      stream.Identity
	Table       stream.TableID
	Location    string
	Bytes       int64
	Records     int
	Elapsed     time.Duration
	CommittedAt time.Time
}

// Reporter is notified of every committed batch. It runs after the commit, so it has no way to fail
// the flush; reporters handle their own errors.
type Reporter interface {
	Report(ctx context.Context, report Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, report Report)

func (f ReporterFunc) Report(ctx context.Context, report Report) {
	f(ctx, report)
}

// MetricsReporter counts committed batches, records and staged bytes per stream.
type MetricsReporter struct{}

func (MetricsReporter) Report(_ context.Context, report Report) {
	common.UpdateFlushMetrics(report.Stream.String(), report.Records, report.Bytes, report.Elapsed)
}
