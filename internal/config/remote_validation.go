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

package config

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azureStorage "github.com/Azure/azure-sdk-for-go/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/api/option"
)

const remoteValidationTimeout = 30 * time.Second

// ValidateRemote checks that the configured staging bucket or container and the destination exist and are reachable.
func (stageflushConfig *StageflushConfig) ValidateRemote() []string {
	var errorList []string

	ctx, cancel := context.WithTimeout(context.Background(), remoteValidationTimeout)
	defer cancel()

	switch stageflushConfig.Staging.Type {
	case StagingGCS:
		ValidateGCSBucket(ctx, stageflushConfig.Staging.Destination, stageflushConfig.Staging.CredentialsFile, &errorList)
	case StagingABS:
		ValidateABSContainer(ctx, stageflushConfig.Staging.StorageAccountID, stageflushConfig.Staging.Destination, &errorList)
	}

	if stageflushConfig.Destination.Type == DestinationMongo {
		if err := PingMongo(ctx, stageflushConfig.Destination.Mongo); err != nil {
			errorList = append(errorList, err.Error())
		}
	}

	return errorList
}

// ValidateGCSBucket checks does the bucket exist.
func ValidateGCSBucket(ctx context.Context, bucketID, credentialsFile string, errorList *[]string) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	helperClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		*errorList = append(*errorList, fmt.Errorf("failed to get GCS client: %w", err).Error())

		return
	}

	defer func() {
		_ = helperClient.Close()
	}()

	if _, err = helperClient.Bucket(bucketID).Attrs(ctx); err != nil {
		*errorList = append(*errorList, fmt.Sprintf("bucket %s does not exist", bucketID))
	}
}

func ValidateABSContainer(ctx context.Context, storageAccountID, containerID string, errorList *[]string) {
	if !azureStorage.IsValidStorageAccount(storageAccountID) {
		*errorList = append(*errorList, fmt.Sprintf("azure storage account %s isn't valid", storageAccountID))

		return
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		*errorList = append(*errorList, fmt.Sprintf("Unable to create default azure credentials: %s", err.Error()))

		return
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccountID)

	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		*errorList = append(*errorList, fmt.Sprintf("Failed to create Azure storage client for storage account %s", storageAccountID))

		return
	}

	if _, err = client.ServiceClient().NewContainerClient(containerID).GetProperties(ctx, nil); err != nil {
		*errorList = append(*errorList, fmt.Sprintf("Storage container %s does not exist", containerID))
	}
}

// MongoClientOptions builds the client options, including credentials if they were configured.
func MongoClientOptions(mongoConfig MongoConfig) *options.ClientOptions {
	mongoClientOpts := options.Client().ApplyURI(mongoConfig.ConnectionString)

	if mongoConfig.AuthOptionsSet() {
		credentials := options.Credential{
			AuthMechanism: mongoConfig.AuthMechanism,
			AuthSource:    mongoConfig.AuthSource,
			Username:      mongoConfig.Username,
			Password:      mongoConfig.Password,
		}

		// An example would be "AWS_SESSION_TOKEN" as SessionTokenName with the MONGODB-AWS AuthMechanism.
		if mongoConfig.SessionTokenName != "" {
			credentials.AuthMechanismProperties = map[string]string{mongoConfig.SessionTokenName: mongoConfig.SessionTokenVal}
		}

		mongoClientOpts.SetAuth(credentials)
	}

	return mongoClientOpts
}

// PingMongo verifies that a client can connect to the configured deployment.
func PingMongo(ctx context.Context, mongoConfig MongoConfig) error {
	mongoClientOpts := MongoClientOptions(mongoConfig)

	if err := mongoClientOpts.Validate(); err != nil {
		return fmt.Errorf("error while validating mongo connection string: %w", err)
	}

	client, err := mongo.Connect(ctx, mongoClientOpts)
	if err != nil {
		return fmt.Errorf("connecting to mongo: %w", err)
	}

	defer func() {
		_ = client.Disconnect(ctx)
	}()

	if err = client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error while validating the client, can't ping mongo database: %w", err)
	}

	return nil
}
