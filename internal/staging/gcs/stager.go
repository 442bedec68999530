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

// Package gcs stages sealed batches as objects in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/staging"
)

const (
	// BucketProtocol is the scheme of staged object locations.
	BucketProtocol = "gs://"

	avroContentType = "application/avro"
)

// Stager uploads batches to a single bucket.
type Stager struct {
	client *storage.Client
	bucket string
	namer  *staging.Namer
	now    func() time.Time
}

// NewStager creates a storage client, optionally authenticated with the given service account file.
func NewStager(ctx context.Context, bucket, credentialsFile string, namer *staging.Namer) (*Stager, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		log.Debugw("Failed to initialize the storage client!", common.StorageInitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return nil, fmt.Errorf("GCS client initialization: %w", err)
	}

	return &Stager{
		client: client,
		bucket: bucket,
		namer:  namer,
		now:    time.Now,
	}, nil
}

// Upload streams the sealed container into a new object.
func (s *Stager) Upload(ctx context.Context, namespace, objectNameHint string, batch staging.SealedBatch) (staging.Handle, error) {
	objectName := s.namer.ObjectName(namespace, objectNameHint, s.now())

	rc, err := batch.Open()
	if err != nil {
		return staging.Handle{}, errors.Wrap(err, "opening sealed batch")
	}
	defer rc.Close()

	writeCtx, abort := context.WithCancel(ctx)
	defer abort()

	objectWriter := s.client.Bucket(s.bucket).Object(objectName).NewWriter(writeCtx)
	objectWriter.ContentType = avroContentType

	written, err := writeObject(objectWriter, abort, rc)
	if err != nil {
		return staging.Handle{}, errors.Wrapf(err, "writing object %s", objectName)
	}

	return staging.Handle{
		Location:  Location(s.bucket, objectName),
		Container: s.bucket,
		Object:    objectName,
		Bytes:     written,
		Records:   batch.RecordCount(),
	}, nil
}

// writeObject copies src into w. The object only exists once w is closed without an error, so a
// failed copy calls abort, the cancel func of the writer's context, before closing w.
func writeObject(w io.WriteCloser, abort context.CancelFunc, src io.Reader) (int64, error) {
	written, err := io.Copy(w, src)
	if err != nil {
		abort()
		_ = w.Close()

		return written, err
	}

	if err = w.Close(); err != nil {
		return written, errors.Wrap(err, "error closing writer")
	}

	return written, nil
}

func (s *Stager) Open(ctx context.Context, handle staging.Handle) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(handle.Container).Object(handle.Object).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "reading staged object %s", handle.Location)
	}

	return reader, nil
}

func (s *Stager) Close() error {
	return s.client.Close()
}

// Location renders the gs:// URI of an object.
func Location(bucket, objectName string) string {
	return BucketProtocol + bucket + "/" + objectName
}
