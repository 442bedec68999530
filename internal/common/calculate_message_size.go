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

import "github.com/dataphos/lib-streamproc/pkg/streamproc"

// CalculateMessageSize approximates the size of a message in bytes: the payload plus every
// attribute key, and attribute values only when they are strings or byte slices.
func CalculateMessageSize(data []byte, attributes map[string]interface{}) int {
	messageSize := len(data)

	for key, value := range attributes {
		messageSize += len(key)

		switch v := value.(type) {
		case []byte:
			messageSize += len(v)
		case string:
			messageSize += len(v)
		}
	}

	return messageSize
}

// CalculateBatchSize sums CalculateMessageSize over a group of messages.
func CalculateBatchSize(msgs ...streamproc.Message) int {
	total := 0
	for _, msg := range msgs {
		total += CalculateMessageSize(msg.Data, msg.Attributes)
	}

	return total
}
