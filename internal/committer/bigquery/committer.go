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

// Package bqcommitter commits staged batches into BigQuery tables with load jobs.
package bqcommitter

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/staging"
	"github.com/dataphos/stageflush/internal/staging/gcs"
	"github.com/dataphos/stageflush/internal/stream"
)

var ErrNotGCSLocation = errors.New("bigquery can only load staged objects from gcs")

// Committer runs one append load job per staged batch.
type Committer struct {
	client    *bigquery.Client
	projectID string
}

func NewCommitter(ctx context.Context, projectID, location, credentialsFile string) (*Committer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		log.Debugw("Failed to initialize the bigquery client!", common.DestinationInitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return nil, fmt.Errorf("bigquery client initialization: %w", err)
	}

	if location != "" {
		client.Location = location
	}

	return &Committer{client: client, projectID: projectID}, nil
}

// Commit loads the staged Avro object into the table, creating the table if it does not exist yet.
// It returns once the load job is done.
func (c *Committer) Commit(ctx context.Context, _, _ string, table stream.TableID, schema []stream.Field, handle staging.Handle) error {
	gcsRef, err := SourceReference(handle, schema)
	if err != nil {
		return err
	}

	project := table.Project
	if project == "" {
		project = c.projectID
	}

	loader := c.client.DatasetInProject(project, table.Dataset).Table(table.Table).LoaderFrom(gcsRef)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return errors.Wrapf(err, "starting load job for %s", handle.Location)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return errors.Wrapf(err, "waiting for load job %s", job.ID())
	}

	if err = status.Err(); err != nil {
		return errors.Wrapf(err, "load job %s", job.ID())
	}

	return nil
}

func (c *Committer) Close() error {
	return c.client.Close()
}

// SourceReference describes a staged object as the source of a load job.
func SourceReference(handle staging.Handle, schema []stream.Field) (*bigquery.GCSReference, error) {
	if !strings.HasPrefix(handle.Location, gcs.BucketProtocol) {
		return nil, errors.Wrap(ErrNotGCSLocation, handle.Location)
	}

	gcsRef := bigquery.NewGCSReference(handle.Location)
	gcsRef.SourceFormat = bigquery.Avro
	gcsRef.AvroOptions = &bigquery.AvroOptions{UseAvroLogicalTypes: true}
	gcsRef.Schema = ToTableSchema(schema)

	return gcsRef, nil
}

func ToTableSchema(fields []stream.Field) bigquery.Schema {
	schema := make(bigquery.Schema, 0, len(fields))

	for _, field := range fields {
		schema = append(schema, &bigquery.FieldSchema{
			Name:     field.Name,
			Type:     bigquery.FieldType(strings.ToUpper(field.Type)),
			Required: field.Mode == stream.ModeRequired,
			Repeated: field.Mode == stream.ModeRepeated,
		})
	}

	return schema
}
