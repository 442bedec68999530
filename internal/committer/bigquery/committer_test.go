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

package bqcommitter_test

import (
	"errors"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bqcommitter "github.com/dataphos/stageflush/internal/committer/bigquery"
	"github.com/dataphos/stageflush/internal/staging"
	"github.com/dataphos/stageflush/internal/stream"
)

func TestToTableSchema(t *testing.T) {
	schema := bqcommitter.ToTableSchema([]stream.Field{
		{Name: "_raw_id", Type: "string", Mode: stream.ModeRequired},
		{Name: "tags", Type: "STRING", Mode: stream.ModeRepeated},
		{Name: "amount", Type: "NUMERIC"},
	})

	require.Len(t, schema, 3)
	assert.Equal(t, bigquery.StringFieldType, schema[0].Type)
	assert.True(t, schema[0].Required)
	assert.False(t, schema[0].Repeated)
	assert.True(t, schema[1].Repeated)
	assert.False(t, schema[1].Required)
	assert.Equal(t, bigquery.NumericFieldType, schema[2].Type)
	assert.False(t, schema[2].Required)
}

func TestSourceReference(t *testing.T) {
	handle := staging.Handle{Location: "gs://staging/orders/orders_raw-1.avro"}

	gcsRef, err := bqcommitter.SourceReference(handle, stream.RawSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{handle.Location}, gcsRef.URIs)
	assert.Equal(t, bigquery.Avro, gcsRef.SourceFormat)
	require.NotNil(t, gcsRef.AvroOptions)
	assert.True(t, gcsRef.AvroOptions.UseAvroLogicalTypes)
	assert.Len(t, gcsRef.Schema, 3)
	assert.Equal(t, bigquery.TimestampFieldType, gcsRef.Schema[1].Type)
}

func TestSourceReference_RejectsOtherStorage(t *testing.T) {
	handle := staging.Handle{Location: "https://account.blob.core.windows.net/staging/orders.avro"}

	_, err := bqcommitter.SourceReference(handle, stream.RawSchema())
	assert.True(t, errors.Is(err, bqcommitter.ErrNotGCSLocation))
}
