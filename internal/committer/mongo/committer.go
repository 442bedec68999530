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

// Package mongocommitter commits staged batches into MongoDB collections.
package mongocommitter

import (
	"context"
	"errors"
	"fmt"

	batchproc "github.com/dataphos/lib-batchproc/pkg/batchproc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dataphos/stageflush/internal/buffer"
	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/config"
	"github.com/dataphos/stageflush/internal/staging"
	"github.com/dataphos/stageflush/internal/stream"
)

// StagedObjectField tags every document with the staged object it was loaded from.
const StagedObjectField = "_staged_object"

// Store writes documents into the collection identified by a table.
type Store interface {
	InsertMany(ctx context.Context, table stream.TableID, documents []interface{}) error
	// DeleteStaged removes every document loaded from the given staged object.
	DeleteStaged(ctx context.Context, table stream.TableID, stagedObject string) error
}

// Committer reads staged batches back through the stager and inserts their rows as documents.
// A commit either inserts every row or leaves no document of the batch behind.
type Committer struct {
	store  Store
	stager staging.Stager
}

func NewCommitter(store Store, stager staging.Stager) *Committer {
	return &Committer{store: store, stager: stager}
}

func (c *Committer) Commit(ctx context.Context, _, _ string, table stream.TableID, _ []stream.Field, handle staging.Handle) error {
	rc, err := c.stager.Open(ctx, handle)
	if err != nil {
		return err
	}
	defer rc.Close()

	rows, err := buffer.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("decoding staged object %s: %w", handle.Location, err)
	}

	if len(rows) == 0 {
		return nil
	}

	documents, err := ToDocuments(ctx, rows, handle.Object)
	if err != nil {
		return err
	}

	errInsert := c.store.InsertMany(ctx, table, documents)
	if errInsert == nil {
		return nil
	}

	// Unordered inserts keep going after a failed document, so part of the batch may already be in.
	if errDelete := c.store.DeleteStaged(context.Background(), table, handle.Object); errDelete != nil { //nolint:contextcheck // cleanup must run even if ctx is done.
		log.Errorw("Failed to remove partially committed documents!", common.StagingCommitError, log.F{
			log.ErrorFieldKey: errDelete.Error(),
			log.TableFieldKey: table.String(),
			"object":          handle.Object,
		})

		return fmt.Errorf("mongo commit: %w (cleanup failed: %s)", errInsert, errDelete.Error())
	}

	return fmt.Errorf("mongo commit: %w", errInsert)
}

// ToDocuments converts rows into documents. Payloads holding a JSON object are stored as
// embedded documents, any other payload is stored as a string.
func ToDocuments(ctx context.Context, rows []buffer.Row, stagedObject string) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("converting rows to documents: %w", err)
	}

	documents := make([]interface{}, len(rows))

	err := batchproc.Parallel(ctx, len(rows), func(ctx context.Context, start, end int) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := start; i < end; i++ {
			documents[i] = ToDocument(rows[i], stagedObject)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("converting rows to documents: %w", err)
	}

	return documents, nil
}

func ToDocument(row buffer.Row, stagedObject string) bson.D {
	var data interface{} = row.Data

	var embedded bson.D
	if err := bson.UnmarshalExtJSON([]byte(row.Data), false, &embedded); err == nil {
		data = embedded
	}

	return bson.D{
		{Key: stream.RawIDColumn, Value: row.ID},
		{Key: stream.RawEmittedAtColumn, Value: row.EmittedAt.UTC()},
		{Key: stream.RawDataColumn, Value: data},
		{Key: StagedObjectField, Value: stagedObject},
	}
}

// MongoStore is the Store of a connected client. Tables map to collections with the dataset as the database name.
type MongoStore struct {
	client *mongo.Client
}

func NewMongoStore(ctx context.Context, mongoConfig config.MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, config.MongoClientOptions(mongoConfig))
	if err != nil {
		log.Debugw("Error while connecting to Mongo!", common.DestinationInitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		log.Debugw("Error while pinging the Mongo database!", common.DestinationInitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoStore{client: client}, nil
}

func (s *MongoStore) collection(table stream.TableID) *mongo.Collection {
	return s.client.Database(table.Dataset).Collection(table.Table)
}

func (s *MongoStore) InsertMany(ctx context.Context, table stream.TableID, documents []interface{}) error {
	_, errWrite := s.collection(table).InsertMany(ctx, documents, options.InsertMany().SetOrdered(false))
	if errWrite == nil {
		return nil
	}

	var errMongo mongo.BulkWriteException
	if ok := errors.As(errWrite, &errMongo); !ok {
		return fmt.Errorf("mongo writer: %w", errWrite)
	}

	return fmt.Errorf("mongo writer: %d of %d documents failed: %w", len(errMongo.WriteErrors), len(documents), errMongo)
}

func (s *MongoStore) DeleteStaged(ctx context.Context, table stream.TableID, stagedObject string) error {
	_, err := s.collection(table).DeleteMany(ctx, bson.D{{Key: StagedObjectField, Value: stagedObject}})
	if err != nil {
		return fmt.Errorf("deleting documents of %s: %w", stagedObject, err)
	}

	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
