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

// Package stream holds the identity of the logical data streams and the registry of their
// destination write targets.
package stream

import (
	"fmt"
	"strings"

	"github.com/dataphos/stageflush/internal/config"
)

// Identity identifies one logical data stream. It is comparable and used as a map key.
type Identity struct {
	Name      string `validate:"required"`
	Namespace string
}

func (id Identity) String() string {
	if id.Namespace == "" {
		return id.Name
	}

	return id.Namespace + "." + id.Name
}

// Column modes of a destination table field.
const (
	ModeNullable = "NULLABLE"
	ModeRequired = "REQUIRED"
	ModeRepeated = "REPEATED"
)

// Field is one column of a destination table.
type Field struct {
	Name string `validate:"required"`
	// Type is the destination type name, e.g. STRING, TIMESTAMP, BYTES, INTEGER, JSON.
	Type string `validate:"required"`
	Mode string `validate:"omitempty,oneof=NULLABLE REQUIRED REPEATED"`
}

// TableID identifies a destination table.
type TableID struct {
	Project string
	Dataset string `validate:"required"`
	Table   string `validate:"required"`
}

func (t TableID) String() string {
	parts := make([]string, 0, 3)
	if t.Project != "" {
		parts = append(parts, t.Project)
	}

	return strings.Join(append(parts, t.Dataset, t.Table), ".")
}

// Raw table column names, shared with the columns of the batch container.
const (
	RawIDColumn        = config.RawIDColumn
	RawEmittedAtColumn = config.RawEmittedAtColumn
	RawDataColumn      = config.RawDataColumn
)

// RawSchema returns the schema of a raw destination table: one row per record, with the
// serialized payload kept as a string.
func RawSchema() []Field {
	return []Field{
		{Name: RawIDColumn, Type: "STRING", Mode: ModeRequired},
		{Name: RawEmittedAtColumn, Type: "TIMESTAMP", Mode: ModeRequired},
		{Name: RawDataColumn, Type: "STRING", Mode: ModeNullable},
	}
}

// WriteTarget is the destination configuration of one stream. Targets are created once when
// the sync starts and are never mutated afterwards.
type WriteTarget struct {
	Stream Identity
	// StagingNamespace groups the staged objects of a target, e.g. the dataset id.
	StagingNamespace string `validate:"required"`
	// ObjectNameBase is the hint staged object names are derived from.
	ObjectNameBase string `validate:"required"`
	Table          TableID
	Schema         []Field `validate:"dive"`
}

// TableSchema returns the configured schema, or the raw table schema if none was configured.
func (t WriteTarget) TableSchema() []Field {
	if len(t.Schema) == 0 {
		return RawSchema()
	}

	return t.Schema
}

func (t WriteTarget) String() string {
	return fmt.Sprintf("%s -> %s", t.Stream, t.Table)
}
