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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ProcError is an error that failed a whole group of messages at one step of the processing,
// for example every message of a stream whose flush failed.
type ProcError struct {
	ErrorCode  int
	CauseError error
	NumFailed  int
}

func NewProcessingError(numFailed int, err error, errCode int) *ProcError {
	return &ProcError{NumFailed: numFailed, CauseError: err, ErrorCode: errCode}
}

func (procErr *ProcError) Error() string {
	return fmt.Sprintf("Processing Error | Code: %d | Error: %s | Number of messages failed: %d",
		procErr.ErrorCode, procErr.CauseError.Error(), procErr.NumFailed)
}

func (procErr *ProcError) Unwrap() error {
	return procErr.CauseError
}

// MessageBatchError collects the ProcErrors of every failed stream group of one handled batch.
type MessageBatchError struct {
	ErrorList []*ProcError
}

func (batchErr *MessageBatchError) Error() string {
	errStrings := make([]string, 0, len(batchErr.ErrorList))

	for _, err := range batchErr.ErrorList {
		errStrings = append(errStrings, err.Error())
	}

	return strings.Join(errStrings, "\n")
}

func (batchErr *MessageBatchError) AddErr(procErr *ProcError) {
	batchErr.ErrorList = append(batchErr.ErrorList, procErr)
}

// Is reports whether any of the collected errors matches target.
func (batchErr *MessageBatchError) Is(target error) bool {
	for _, procErr := range batchErr.ErrorList {
		if errors.Is(procErr, target) {
			return true
		}
	}

	return false
}

// As finds the first collected error that matches target.
func (batchErr *MessageBatchError) As(target interface{}) bool {
	for _, procErr := range batchErr.ErrorList {
		if errors.As(procErr, target) {
			return true
		}
	}

	return false
}

// Temporary returns false if the batch error contains an unrecoverable error.
func (batchErr *MessageBatchError) Temporary() bool {
	for _, procErr := range batchErr.ErrorList {
		if IsFatal(procErr.CauseError) {
			return false
		}
	}

	return true
}

// FatalError represents an unrecoverable error. Returned from the batch handler it stops the
// streamproc executor, which aborts the sync while still allowing clean termination.
type FatalError struct {
	Err error
}

func (err *FatalError) Error() string {
	return err.Err.Error()
}

func (err *FatalError) Unwrap() error {
	return err.Err
}

func (*FatalError) Temporary() bool {
	return false
}

// Unrecoverable is implemented by errors that abort the whole sync, not only the failed batch.
type Unrecoverable interface {
	Unrecoverable() bool
}

// IsFatal reports whether err is, or wraps, a FatalError or an Unrecoverable error.
// Errors that only report themselves as not Temporary, like syscall.Errno, are not fatal.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	if errors.As(err, &fatalErr) {
		return true
	}

	var unrecoverable Unrecoverable
	if errors.As(err, &unrecoverable) {
		return unrecoverable.Unrecoverable()
	}

	return false
}
