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

package log

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Templates to be used with fmt.Sprintf to ensure consistency in log formation.
const (
	defaultValueUsedMessageTemplate = "Warning in %s configuration: value for '%s' is not set! Using %s as a default."
	invalidMask                     = "value %s is not allowed because it was not found in custom values, check mask. " +
		"custom value should be defined as key:value pairs divided with a comma, e.g. key1:value1,key2:value2. " +
		"Format of the mask is required to be (order of values is user definable): .../key1/{namespace}/{stream}/year/day/hour"
	emptyMaskMember     = "undefined mask format %s: found empty member in position %d. Add the value or remove the extra slash."
	unknownMaskTemplate = "undefined mask format %s: placeholder {%s} in position %d is not supported, use {namespace} or {stream}."
	flushSealedTemplate = "Flushing buffer for stream %s (%s, %d records) to staging"
	flushCommitTemplate = "Committed batch for stream %s into %s"
)

// Common error messages.
const (
	GeneralInitializationErrorMessage = "Failed to initialize stageflush!"
	GeneralValidationErrorMessage     = "Failed to validate stageflush configuration!"
	GeneralPullError                  = "An error occurred during the pull!"
)

// GetUsingDefaultWarningMessage generates a warning about a missing value in the configuration and
// using a default instead.
func GetUsingDefaultWarningMessage(configName string, settingName string, defaultValue string) string {
	return fmt.Sprintf(defaultValueUsedMessageTemplate, configName, settingName, defaultValue)
}

func GetInvalidMaskError(paramValue string) string {
	return fmt.Sprintf(invalidMask, paramValue)
}

func GetEmptyMaskMemberError(mask string, memberPos int) string {
	return fmt.Sprintf(emptyMaskMember, mask, memberPos)
}

func GetUnknownMaskPlaceholderError(mask, placeholder string, memberPos int) string {
	return fmt.Sprintf(unknownMaskTemplate, mask, placeholder, memberPos)
}

// GetFlushSealedMessage describes a sealed buffer about to be staged, with its size in human-readable form.
func GetFlushSealedMessage(stream string, byteCount int64, records int) string {
	if byteCount < 0 {
		byteCount = 0
	}

	return fmt.Sprintf(flushSealedTemplate, stream, humanize.IBytes(uint64(byteCount)), records)
}

func GetFlushCommittedMessage(stream, table string) string {
	return fmt.Sprintf(flushCommitTemplate, stream, table)
}
