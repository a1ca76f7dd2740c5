// Copyright 2025 Jobsift Authors
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


package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentStoreRequired is returned when a runner is created
	// without a document store.
	ErrDocumentStoreRequired = errors.New("document store is required")

	// ErrBusRequired is returned when a runner is created without a bus.
	ErrBusRequired = errors.New("bus is required")

	// ErrStageExists is returned when registering a stage name twice.
	ErrStageExists = errors.New("stage already registered")

	// ErrStageNotFound is returned when looking up an unknown stage.
	ErrStageNotFound = errors.New("stage not found")

	// ErrInvalidBackoffTable is returned for an empty backoff table.
	ErrInvalidBackoffTable = errors.New("backoff table must not be empty")
)

// ConfigError reports a stage definition missing a required field.
type ConfigError struct {
	Stage string
	Field string
}

func (e *ConfigError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("stage %q config: field %s is required", e.Stage, e.Field)
	}
	return fmt.Sprintf("stage config: field %s is required", e.Field)
}

// ProviderNotConfiguredError reports a stage selecting a provider tag
// that the runner has no completer for.
type ProviderNotConfiguredError struct {
	Stage    string
	Provider ProviderTag
}

func (e *ProviderNotConfiguredError) Error() string {
	return fmt.Sprintf("stage %q selects provider %q but no completer is configured for it", e.Stage, e.Provider)
}
