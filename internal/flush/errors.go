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

package flush

import (
	"fmt"
	"strings"

	"github.com/dataphos/stageflush/internal/common"
	"github.com/dataphos/stageflush/internal/stream"
)

// ConfigurationError means a stream was flushed that has no write target. Nothing of the batch was
// staged or committed, and the sync can't make progress without a configuration change.
type ConfigurationError struct {
	Stream stream.Identity
	// Known lists the streams that do have a write target.
	Known []stream.Identity
	Err   error
}

func (e *ConfigurationError) Error() string {
	known := make([]string, len(e.Known))
	for i, id := range e.Known {
		known[i] = id.String()
	}

	return fmt.Sprintf("no write target configured for stream %s, known streams: [%s]", e.Stream, strings.Join(known, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (*ConfigurationError) Temporary() bool {
	return false
}

func (*ConfigurationError) Unrecoverable() bool {
	return true
}

func (*ConfigurationError) Code() int {
	return common.TargetNotFoundError
}
