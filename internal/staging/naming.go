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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dataphos/stageflush/internal/common/log"
	"github.com/dataphos/stageflush/internal/config"
)

const (
	// LeftPlaceholderSignal and RightPlaceholderSignal stand around placeholders in the object mask, for example: {namespace}/{stream}/day.
	LeftPlaceholderSignal  = '{'
	RightPlaceholderSignal = '}'

	NamespacePlaceholder = "namespace"
	StreamPlaceholder    = "stream"

	DefaultMask      = "{namespace}/{stream}/year/month/day/hour"
	DefaultExtension = "avro"
)

// MaskMember is one slash separated member of the object mask.
type MaskMember struct {
	// Key is the time unit, custom value key or placeholder name.
	Key string
	// Placeholder determines whether the value is taken from the flushed stream instead of the clock.
	Placeholder bool
}

// Namer generates staged object names out of the configured mask.
type Namer struct {
	Mask            []MaskMember
	CustomValuesMap map[string]string
	OptionalPrefix  string
	Extension       string
}

func NewNamer(stagingConfig config.StagingConfig) (*Namer, error) {
	customValuesMap, err := ValidateCustomValues(stagingConfig.CustomValues)
	if err != nil {
		return nil, err
	}

	mask := stagingConfig.Mask
	if mask == "" {
		mask = DefaultMask
	}

	members, err := GenerateMaskValuesFromMaskString(mask)
	if err != nil {
		return nil, err
	}

	namer := &Namer{
		Mask:            members,
		CustomValuesMap: customValuesMap,
		Extension:       stagingConfig.Extension,
	}

	if namer.Extension == "" {
		namer.Extension = DefaultExtension
	}

	if namer.OptionalPrefix, err = namer.GenerateAndValidateOptionalPrefixFromMask(); err != nil {
		return nil, err
	}

	return namer, nil
}

// ObjectName returns a unique object name for a batch of the given namespace and name hint.
func (n *Namer) ObjectName(namespace, objectNameHint string, now time.Time) string {
	now = now.UTC()

	var name strings.Builder

	name.WriteString(n.OptionalPrefix)

	for _, member := range n.Mask {
		name.WriteString(GenerateValueFromMaskParam(member, namespace, objectNameHint, now))
	}

	name.WriteString(fmt.Sprintf("%s-%s.%s", objectNameHint, uuid.NewString(), n.Extension))

	return name.String()
}

func GenerateMaskValuesFromMaskString(mask string) ([]MaskMember, error) {
	params := strings.Split(mask, "/")
	members := make([]MaskMember, 0, len(params))

	for paramNum, param := range params {
		if param == "" {
			return nil, errors.New(log.GetEmptyMaskMemberError(mask, paramNum+1)) //nolint:goerr113 // unnecessary here
		}

		last := len(param) - 1
		if param[0] == LeftPlaceholderSignal && param[last] == RightPlaceholderSignal {
			key := strings.ToLower(param[1:last])
			if key != NamespacePlaceholder && key != StreamPlaceholder {
				return nil, errors.New(log.GetUnknownMaskPlaceholderError(mask, key, paramNum+1)) //nolint:goerr113 // unnecessary here
			}

			members = append(members, MaskMember{Key: key, Placeholder: true})

			continue
		}

		members = append(members, MaskMember{Key: strings.ToLower(param)})
	}

	return members, nil
}

func GenerateValueFromMaskParam(member MaskMember, namespace, objectNameHint string, now time.Time) string {
	if member.Placeholder {
		switch member.Key {
		case NamespacePlaceholder:
			return namespace + "/"
		case StreamPlaceholder:
			return objectNameHint + "/"
		}

		return ""
	}

	switch member.Key {
	case "year":
		return fmt.Sprintf("%02d/", now.Year())
	case "month":
		return fmt.Sprintf("%02d/", now.Month())
	case "day":
		return fmt.Sprintf("%02d/", now.Day())
	case "hour":
		return fmt.Sprintf("%02d/", now.Hour())
	default:
		return ""
	}
}

// GenerateAndValidateOptionalPrefixFromMask collects the custom values used by the mask into the
// prefix every object name starts with.
func (n *Namer) GenerateAndValidateOptionalPrefixFromMask() (optionalPrefix string, err error) {
	for _, member := range n.Mask {
		if member.Placeholder {
			continue
		}

		switch member.Key {
		case "year", "month", "day", "hour":
			continue
		}

		value, ok := n.CustomValuesMap[member.Key]
		if !ok {
			errMsg := log.GetInvalidMaskError(member.Key)
			if strings.ContainsAny(member.Key, "{}") {
				errMsg += ". Value contains } or { characters. Did you mean a {namespace} or {stream} placeholder?"
			}

			return optionalPrefix, fmt.Errorf("staging config: %s", errMsg) //nolint:goerr113 // unnecessary here
		}

		optionalPrefix = fmt.Sprintf("%s%s/", optionalPrefix, value)
	}

	return optionalPrefix, nil
}

var ErrReadingCustomValues = errors.New("reading custom values. Format of custom values should be -> key1:value1,key2:value2 ")

func ValidateCustomValues(customValues string) (map[string]string, error) {
	customValuesMap := make(map[string]string)
	if customValues == "" {
		return customValuesMap, nil
	}

	for _, param := range strings.Split(customValues, ",") {
		pair := strings.Split(param, ":")
		if len(pair) != 2 || strings.TrimSpace(pair[0]) == "" || strings.TrimSpace(pair[1]) == "" {
			return customValuesMap, ErrReadingCustomValues
		}

		customValuesMap[strings.ToLower(strings.TrimSpace(pair[0]))] = strings.TrimSpace(pair[1])
	}

	return customValuesMap, nil
}
