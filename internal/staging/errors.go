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

package staging

import (
	"errors"
	"fmt"

	"github.com/dataphos/stageflush/internal/common"
)

const (
	OpUpload = "upload"
	OpCommit = "commit"
)

// TransportError is an upload or commit failure. Retrying is left to the underlying clients and
// to whoever decides to flush the records again.
type TransportError struct {
	Op       string
	Table    string
	Location string
	Err      error
}

func (e *TransportError) Error() string {
	msg := "staging " + e.Op
	if e.Table != "" {
		msg += fmt.Sprintf(" into table %s", e.Table)
	}

	if e.Location != "" {
		msg += fmt.Sprintf(" from %s", e.Location)
	}

	return fmt.Sprintf("%s failed: %s", msg, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary is always true, even when the cause is an errno that reports otherwise.
func (*TransportError) Temporary() bool {
	return true
}

func (e *TransportError) Code() int {
	if e.Op == OpCommit {
		return common.StagingCommitError
	}

	return common.StagingUploadError
}

// WithTable returns a copy of the error naming the destination table.
func (e *TransportError) WithTable(table string) *TransportError {
	withTable := *e
	withTable.Table = table

	return &withTable
}

// AsTransportError returns err as a *TransportError, wrapping it if it is not one already.
func AsTransportError(op string, err error) *TransportError {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr
	}

	return &TransportError{Op: op, Err: err}
}
