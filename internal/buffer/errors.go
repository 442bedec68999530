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

package buffer

import (
	"fmt"

	"github.com/dataphos/stageflush/internal/common"
)

// WriteError is returned when the local storage backing a buffer cannot accept more data.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("buffer %s: %s", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Temporary is always true, even when the cause is an errno that reports otherwise.
func (*WriteError) Temporary() bool {
	return true
}

func (*WriteError) Code() int {
	return common.BufferWriteError
}

// InvalidStateError is returned when a buffer operation is called outside of its lifecycle,
// for example appending to a sealed buffer.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("buffer %s: not allowed while buffer is %s", e.Op, e.State)
}

func (*InvalidStateError) Code() int {
	return common.InvalidStateError
}
