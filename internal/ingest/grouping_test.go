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

package ingest_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/dataphos/lib-streamproc/pkg/streamproc"
	"github.com/dataphos/stageflush/internal/ingest"
	"github.com/dataphos/stageflush/internal/stream"
)

func compareGroupsWithExpected(t *testing.T, messages []streamproc.Message, groups []ingest.StreamGroup, expectedPositions [][]int) {
	t.Helper()

	if len(groups) != len(expectedPositions) {
		t.Fatalf("number of groups doesn't match expected: %d!=%d", len(groups), len(expectedPositions))
	}

	seen := map[int]bool{}

	for groupNum, group := range groups {
		if len(group.Positions) != len(group.Messages) {
			t.Errorf("group %d has %d positions for %d messages", groupNum, len(group.Positions), len(group.Messages))
		}

		if fmt.Sprint(group.Positions) != fmt.Sprint(expectedPositions[groupNum]) {
			t.Errorf("group %d holds positions %v, expected %v", groupNum, group.Positions, expectedPositions[groupNum])
		}

		for i, msgNum := range group.Positions {
			if seen[msgNum] {
				t.Errorf("message %d is in more than one group", msgNum)
			}
			seen[msgNum] = true

			if i < len(group.Messages) && group.Messages[i].ID != messages[msgNum].ID {
				t.Errorf("ID doesn't match for message at position %d: %s!=%s", msgNum, group.Messages[i].ID, messages[msgNum].ID)
			}
		}
	}

	if len(seen) != len(messages) {
		t.Errorf("%d of %d messages were grouped", len(seen), len(messages))
	}
}

func TestGroupByStream(t *testing.T) {
	t.Parallel()

	msgs := []streamproc.Message{
		{ID: "0", Attributes: map[string]interface{}{"stream": "orders"}},                        // 0
		{ID: "1", Attributes: map[string]interface{}{"stream": "orders", "irrelevant": "words"}}, // 1
		{ID: "2", Attributes: map[string]interface{}{"stream": "users"}},                         // 2
		{ID: "3", Attributes: map[string]interface{}{"stream": "orders", "namespace": "crm"}},    // 3
		{ID: "4", Attributes: map[string]interface{}{}},                                          // 4
		{ID: "5", Attributes: map[string]interface{}{"stream": "users"}},                         // 5
		{ID: "6"}, // 6
		{ID: "7", Attributes: map[string]interface{}{"stream": "orders"}},                     // 7
		{ID: "8", Attributes: map[string]interface{}{"stream": "orders", "namespace": "crm"}}, // 8
	}

	expectedPositions := [][]int{
		{0, 1, 7},
		{2, 5},
		{3, 8},
		{4, 6},
	}

	groups := ingest.GroupByStream(msgs)

	compareGroupsWithExpected(t, msgs, groups, expectedPositions)

	expectedStreams := []stream.Identity{
		{Name: "orders"},
		{Name: "users"},
		{Name: "orders", Namespace: "crm"},
		{},
	}
	for i, group := range groups {
		if group.Stream != expectedStreams[i] {
			t.Errorf("group %d is for stream %s, expected %s", i, group.Stream, expectedStreams[i])
		}
	}

	if !groups[3].Unassigned {
		t.Error("messages without a stream attribute should be in the unassigned group")
	}
}

func TestGroupByStream_NonStringAttributes(t *testing.T) {
	t.Parallel()

	msgs := []streamproc.Message{
		{ID: "0", Attributes: map[string]interface{}{"stream": 42}},
		{ID: "1", Attributes: map[string]interface{}{"stream": "42"}},
		{ID: "2", Attributes: map[string]interface{}{"stream": nil}},
	}

	groups := ingest.GroupByStream(msgs)

	compareGroupsWithExpected(t, msgs, groups, [][]int{{0, 1}, {2}})
}

func TestEmittedAt(t *testing.T) {
	t.Parallel()

	publishTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ingestionTime := publishTime.Add(time.Minute)

	tests := []struct {
		name     string
		msg      streamproc.Message
		expected time.Time
	}{
		{
			name:     "rfc3339 attribute",
			msg:      streamproc.Message{Attributes: map[string]interface{}{"emitted_at": "2024-02-29T23:59:59.5+01:00"}, PublishTime: publishTime},
			expected: time.Date(2024, 2, 29, 22, 59, 59, 500_000_000, time.UTC),
		},
		{
			name:     "unix millis attribute",
			msg:      streamproc.Message{Attributes: map[string]interface{}{"emitted_at": "1709294400000"}, PublishTime: ingestionTime},
			expected: publishTime,
		},
		{
			name:     "unparsable attribute falls back to publish time",
			msg:      streamproc.Message{Attributes: map[string]interface{}{"emitted_at": "yesterday"}, PublishTime: publishTime},
			expected: publishTime,
		},
		{
			name:     "no publish time",
			msg:      streamproc.Message{IngestionTime: ingestionTime},
			expected: ingestionTime,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ingest.EmittedAt(tt.msg); !got.Equal(tt.expected) {
				t.Errorf("EmittedAt() = %s, expected %s", got, tt.expected)
			}
		})
	}
}
