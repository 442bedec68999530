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

package ingest

import (
	"fmt"

	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/stream"
)

// Message attributes read by the handler.
const (
	StreamAttribute    = "stream"
	NamespaceAttribute = "namespace"
	EmittedAtAttribute = "emitted_at"
)

// StreamGroup holds the messages of a handled batch that belong to one stream, in the order they were received.
type StreamGroup struct {
	Stream   stream.Identity
	Messages []streamproc.Message
	// Positions holds the position of every message in the handled batch.
	Positions []int
	// Unassigned is set for the group of messages that carry no stream attribute.
	Unassigned bool
}

// GroupByStream splits the messages of a batch by their stream and namespace attributes. Groups are
// returned in the order their first message appears in the batch, so every stream is flushed at most
// once per handled batch.
func GroupByStream(messages []streamproc.Message) []StreamGroup {
	var groups []StreamGroup

	groupOf := map[stream.Identity]int{}
	unassigned := -1

	for msgNum, msg := range messages {
		id, ok := identityFromAttributes(msg.Attributes)

		var groupNum int

		switch existing, found := groupOf[id]; {
		case !ok && unassigned >= 0:
			groupNum = unassigned
		case !ok:
			groups = append(groups, StreamGroup{Unassigned: true})
			groupNum = len(groups) - 1
			unassigned = groupNum
		case found:
			groupNum = existing
		default:
			groups = append(groups, StreamGroup{Stream: id})
			groupNum = len(groups) - 1
			groupOf[id] = groupNum
		}

		groups[groupNum].Messages = append(groups[groupNum].Messages, msg)
		groups[groupNum].Positions = append(groups[groupNum].Positions, msgNum)
	}

	return groups
}

func identityFromAttributes(attributes map[string]interface{}) (stream.Identity, bool) {
	name := attributeString(attributes, StreamAttribute)
	if name == "" {
		return stream.Identity{}, false
	}

	return stream.Identity{Name: name, Namespace: attributeString(attributes, NamespaceAttribute)}, true
}

func attributeString(attributes map[string]interface{}, key string) string {
	value, exists := attributes[key]
	if !exists || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
