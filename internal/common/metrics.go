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

package common

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/common/log"
)

const (
	MaxSummaryAge           = 5 * time.Minute
	ServerShutdownTimeout   = 5 * time.Second
	ServerReadHeaderTimeout = 5 * time.Second
	MetricsPort             = ":2112"
)

const streamLabel = "stream"

type trackedPrometheusMetrics struct {
	flushedBatchesProm *prometheus.CounterVec
	flushedRecordsProm *prometheus.CounterVec
	flushedBytesProm   *prometheus.CounterVec
	flushTimesProm     prometheus.Summary

	failedCountProm          prometheus.Counter
	failedBytesProcessedProm prometheus.Counter
}

// trackedMetrics holds all the metrics that we need to update
//
//nolint:gochecknoglobals // accessed by various functions in this file, so it's easier for it to be global.
var trackedMetrics trackedPrometheusMetrics

// metricsInitialized is used in tests to avoid panic when metrics server is not run
//
//nolint:gochecknoglobals // same as above
var metricsInitialized bool

func initMetrics(productName string) {
	//nolint:gomnd // quantiles and their absolute errors.
	timeSummaryObjectives := map[float64]float64{
		0.5:  0.05,
		0.9:  0.01,
		0.99: 0.001,
	}

	trackedMetrics.flushedBatchesProm = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: productName,
		Name:      "committed_batches_total",
		Help:      "The total number of batches committed into destination tables",
	}, []string{streamLabel})
	trackedMetrics.flushedRecordsProm = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: productName,
		Name:      "committed_records_total",
		Help:      "The total number of records committed into destination tables",
	}, []string{streamLabel})
	trackedMetrics.flushedBytesProm = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: productName,
		Name:      "staged_bytes_total",
		Help:      "The total number of sealed container bytes uploaded to staging",
	}, []string{streamLabel})
	trackedMetrics.flushTimesProm = promauto.NewSummary(prometheus.SummaryOpts{
		Namespace:  productName,
		Name:       "flush_times_milliseconds",
		Help:       "Duration of complete flushes (fill, seal, upload and commit) in milliseconds",
		MaxAge:     MaxSummaryAge,
		Objectives: timeSummaryObjectives,
	})

	trackedMetrics.failedCountProm = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: productName,
		Name:      "failed_messages_total",
		Help:      "The total number of messages whose flush failed",
	})
	trackedMetrics.failedBytesProcessedProm = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: productName,
		Name:      "failed_processed_bytes_total",
		Help:      "The total number of bytes of messages whose flush failed",
	})
	metricsInitialized = true
}

// UpdateFlushMetrics records one committed batch.
func UpdateFlushMetrics(stream string, records int, byteCount int64, elapsed time.Duration) {
	if !metricsInitialized {
		return
	}

	trackedMetrics.flushedBatchesProm.WithLabelValues(stream).Inc()
	trackedMetrics.flushedRecordsProm.WithLabelValues(stream).Add(float64(records))
	trackedMetrics.flushedBytesProm.WithLabelValues(stream).Add(float64(byteCount))
	trackedMetrics.flushTimesProm.Observe(float64(elapsed.Milliseconds()))
}

// UpdateFailureMetrics updates Prometheus metrics: failedCountProm and failedBytesProcessedProm.
func UpdateFailureMetrics(messages ...streamproc.Message) {
	if !metricsInitialized {
		return
	}

	trackedMetrics.failedCountProm.Add(float64(len(messages)))
	trackedMetrics.failedBytesProcessedProm.Add(float64(CalculateBatchSize(messages...)))
}

// RunMetricsServer runs an http server on which Prometheus metrics are being exposed.
// All metrics that are registered to default Prometheus Registry are displayed at:
// "localhost:2112/metrics" endpoint.
func RunMetricsServer(productName string) *http.Server {
	initMetrics(productName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: ServerReadHeaderTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Error serving metrics: "+err.Error(), MetricsServerError)
		}
	}()

	log.Info(fmt.Sprintf("exposed metrics at port %s", MetricsPort))

	return srv
}
