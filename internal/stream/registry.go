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

package stream

import (
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/dataphos/stageflush/internal/config"
)

var (
	ErrTargetNotFound  = errors.New("write target not found")
	ErrDuplicateTarget = errors.New("duplicate write target")
	// ErrIncompleteSchema is returned for a schema that can't hold the staged rows.
	ErrIncompleteSchema = errors.New("schema is missing staged columns")
)

// Registry maps stream identities to their write targets.
//
// A Registry is built once and never written to afterwards, so it is shared by pointer across
// concurrent flushes without locking.
type Registry struct {
	targets map[Identity]WriteTarget
	known   []Identity
}

// NewRegistry validates the given targets and builds a registry out of them.
func NewRegistry(targets ...WriteTarget) (*Registry, error) {
	validate := validator.New()

	registry := &Registry{
		targets: make(map[Identity]WriteTarget, len(targets)),
		known:   make([]Identity, 0, len(targets)),
	}

	for _, target := range targets {
		if err := validate.Struct(target); err != nil {
			return nil, errors.Wrapf(err, "invalid write target for stream %s", target.Stream)
		}

		if err := checkStagedColumns(target.Schema); err != nil {
			return nil, errors.Wrapf(err, "invalid write target for stream %s", target.Stream)
		}

		if _, exists := registry.targets[target.Stream]; exists {
			return nil, errors.Wrapf(ErrDuplicateTarget, "stream %s", target.Stream)
		}

		schema := make([]Field, len(target.Schema))
		copy(schema, target.Schema)
		target.Schema = schema

		registry.targets[target.Stream] = target
		registry.known = append(registry.known, target.Stream)
	}

	sort.Slice(registry.known, func(i, j int) bool {
		return registry.known[i].String() < registry.known[j].String()
	})

	return registry, nil
}

func checkStagedColumns(schema []Field) error {
	if len(schema) == 0 {
		return nil
	}

	columns := make([]string, len(schema))
	for i, field := range schema {
		columns[i] = field.Name
	}

	if missing := config.MissingRawColumns(columns); len(missing) > 0 {
		return errors.Wrapf(ErrIncompleteSchema, "%v", missing)
	}

	return nil
}

// NewRegistryFromConfig builds a registry from the streams section of the configuration.
func NewRegistryFromConfig(streams []config.StreamConfig) (*Registry, error) {
	targets := make([]WriteTarget, 0, len(streams))

	for _, streamConfig := range streams {
		targets = append(targets, TargetFromConfig(streamConfig))
	}

	return NewRegistry(targets...)
}

// TargetFromConfig converts one configured stream into a write target. The object name base
// defaults to the stream name and the staging namespace to the destination dataset.
func TargetFromConfig(streamConfig config.StreamConfig) WriteTarget {
	target := WriteTarget{
		Stream:           Identity{Name: streamConfig.Name, Namespace: streamConfig.Namespace},
		StagingNamespace: streamConfig.StagingNamespace,
		ObjectNameBase:   streamConfig.ObjectNameBase,
		Table: TableID{
			Project: streamConfig.Project,
			Dataset: streamConfig.Dataset,
			Table:   streamConfig.Table,
		},
	}

	if target.StagingNamespace == "" {
		target.StagingNamespace = streamConfig.Dataset
	}

	if target.ObjectNameBase == "" {
		target.ObjectNameBase = streamConfig.Name
	}

	for _, field := range streamConfig.Schema {
		target.Schema = append(target.Schema, Field{Name: field.Name, Type: field.Type, Mode: field.Mode})
	}

	return target
}

// Resolve returns the write target of the stream, or ErrTargetNotFound.
func (r *Registry) Resolve(id Identity) (WriteTarget, error) {
	target, ok := r.targets[id]
	if !ok {
		return WriteTarget{}, errors.Wrapf(ErrTargetNotFound, "stream %s", id)
	}

	return target, nil
}

// Known returns the identities of every registered stream, sorted.
func (r *Registry) Known() []Identity {
	known := make([]Identity, len(r.known))
	copy(known, r.known)

	return known
}

func (r *Registry) Len() int {
	return len(r.targets)
}
