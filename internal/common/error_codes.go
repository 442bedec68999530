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

const (
	ConfigurationError  = 100
	InitializationError = 101
	ProcessingError     = 103

	// WriterError Generic error that occurs when a batch cannot be written to the local buffer or to staging.
	WriterError = 110

	// StorageInvalidConfigError
	// Error that occurs when the staging bucket or container or the destination
	// can't be reached during validation.
	StorageInvalidConfigError = 551

	// StorageInitializationError
	// Occurs when the staging storage client fails to initialize.
	StorageInitializationError = 700

	// DestinationInitializationError
	// Occurs when the destination (warehouse or database) client fails to initialize.
	DestinationInitializationError = 701

	// BrokerInvalidConfigError
	// Error that occurs when one of the given values for the broker configuration
	// is invalid.
	BrokerInvalidConfigError = 501

	// BrokerInitializationError
	// Occurs when the broker fails to initialize.
	BrokerInitializationError = 300

	/*
		Flush error codes.
	*/

	// BufferWriteError
	// Local storage could not accept more data while the batch buffer was being filled or sealed.
	BufferWriteError = 950

	// InvalidStateError
	// A buffer operation was called outside of its allowed lifecycle.
	InvalidStateError = 953

	// TargetNotFoundError
	// A stream has no write target in the registry.
	TargetNotFoundError = 954

	// StagingUploadError
	// Uploading a sealed batch to the staging area failed.
	StagingUploadError = 955

	// StagingCommitError
	// Committing a staged batch into the destination table failed.
	StagingCommitError = 956

	SenderPublishError = 302

	SenderDeadLetterError = 303

	// MetricsServerError
	// Occurs when the Prometheus metrics endpoint fails.
	MetricsServerError = 981
)
