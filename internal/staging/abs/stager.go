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

// Package abs stages sealed batches as blobs in an Azure Blob Storage container.
package abs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/pkg/errors"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/staging"
)

const (
	// BucketProtocol Protocol used to connect to the azure container.
	BucketProtocol = "https://"

	uploadBlockSize   = 4 * 1024 * 1024
	uploadConcurrency = 4
)

// Stager uploads batches to a single container of a storage account.
type Stager struct {
	client     *azblob.Client
	serviceURL string
	container  string
	namer      *staging.Namer
	now        func() time.Time
}

func NewStager(storageAccountID, container string, namer *staging.Namer) (*Stager, error) {
	serviceURL := ServiceURL(storageAccountID)

	client, err := NewAzblobClient(serviceURL)
	if err != nil {
		return nil, err
	}

	return &Stager{
		client:     client,
		serviceURL: serviceURL,
		container:  container,
		namer:      namer,
		now:        time.Now,
	}, nil
}

// NewAzblobClient constructor for container client which will be using DefaultAzureCredential with environment variables.
// All environment variables must be set in order, for credentials, to be created.
func NewAzblobClient(serviceURL string) (*azblob.Client, error) {
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		log.Debugw("Unable to create default azure credentials.", common.StorageInitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return nil, fmt.Errorf("creating credentials: %w", err)
	}

	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		log.Debugw("Failed to initialize the storage client!", common.StorageInitializationError, log.F{log.ErrorFieldKey: err.Error()})

		return nil, fmt.Errorf("ABS client initialization: %w", err)
	}

	return client, nil
}

// Upload streams the sealed container into a new block blob.
func (s *Stager) Upload(ctx context.Context, namespace, objectNameHint string, batch staging.SealedBatch) (staging.Handle, error) {
	objectName := s.namer.ObjectName(namespace, objectNameHint, s.now())

	rc, err := batch.Open()
	if err != nil {
		return staging.Handle{}, errors.Wrap(err, "opening sealed batch")
	}
	defer rc.Close()

	_, err = s.client.UploadStream(ctx, s.container, objectName, rc, &azblob.UploadStreamOptions{
		BlockSize:   uploadBlockSize,
		Concurrency: uploadConcurrency,
	})
	if err != nil {
		return staging.Handle{}, errors.Wrapf(err, "uploading blob %s", objectName)
	}

	return staging.Handle{
		Location:  s.serviceURL + s.container + "/" + objectName,
		Container: s.container,
		Object:    objectName,
		Bytes:     batch.ByteCount(),
		Records:   batch.RecordCount(),
	}, nil
}

func (s *Stager) Open(ctx context.Context, handle staging.Handle) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, handle.Container, handle.Object, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "downloading staged blob %s", handle.Location)
	}

	return resp.Body, nil
}

func ServiceURL(storageAccountID string) string {
	return fmt.Sprintf("%s%s.blob.core.windows.net/", BucketProtocol, storageAccountID)
}
