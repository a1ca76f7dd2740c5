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


// Package pipeline binds declarative stage definitions to bus topics and
// runs the read, call, write, forward protocol for each delivered message.
package pipeline

import "encoding/json"

// ProviderTag selects which configured completer a stage uses.
type ProviderTag string

const (
	// ProviderOpenAI selects the OpenAI-compatible completer.
	ProviderOpenAI ProviderTag = "openai"
	// ProviderGemini selects the Gemini completer.
	ProviderGemini ProviderTag = "gemini"
)

// FailurePolicy controls what a stage does when the provider call fails
// after retries, or when the parsed output fails its check.
type FailurePolicy int

const (
	// WriteFallbackAndStop writes the fallback value, acknowledges the
	// message, and does not publish downstream. The default for early
	// extraction stages, which prefer a marked gap over endless retries.
	WriteFallbackAndStop FailurePolicy = iota

	// Rethrow returns the error to the bus so its redelivery policy
	// applies. Used by stages where a silent partial result is worse
	// than a delayed retry.
	Rethrow
)

// Definition describes one pipeline stage as pure data.
// All fields except NextTopic, ParseJSON, OnFailure, and Check are
// mandatory; Validate reports the first missing one.
type Definition struct {
	// Name identifies the stage in logs and status fields.
	Name string

	// Instructions is the system text sent with every provider call.
	Instructions string

	// InputPath is the document field path the stage reads.
	InputPath string

	// OutputPath is the document field path the stage overwrites.
	OutputPath string

	// TriggerTopic is the bus topic whose messages invoke the stage.
	TriggerTopic string

	// NextTopic, when set, receives the unchanged message after a
	// successful write. Empty for terminal stages.
	NextTopic string

	// Fallback is written at OutputPath when input is missing or the
	// stage fails soft. Downstream readers use it to tell "processed
	// but empty" from "not yet processed".
	Fallback any

	// Provider selects the completer used for the call.
	Provider ProviderTag

	// OnFailure selects the failure policy. Zero value is
	// WriteFallbackAndStop.
	OnFailure FailurePolicy

	// ParseJSON indicates the completion must parse as JSON before the
	// write; the parsed value is persisted instead of the raw text.
	ParseJSON bool

	// Check optionally validates the parsed output before it is
	// persisted. Only consulted when ParseJSON is set. A check failure
	// is a stage failure subject to OnFailure.
	Check func(raw json.RawMessage) error
}

// Validate reports a ConfigError naming the first missing mandatory field.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &ConfigError{Field: "Name"}
	}
	if d.Instructions == "" {
		return &ConfigError{Stage: d.Name, Field: "Instructions"}
	}
	if d.InputPath == "" {
		return &ConfigError{Stage: d.Name, Field: "InputPath"}
	}
	if d.OutputPath == "" {
		return &ConfigError{Stage: d.Name, Field: "OutputPath"}
	}
	if d.TriggerTopic == "" {
		return &ConfigError{Stage: d.Name, Field: "TriggerTopic"}
	}
	if d.Fallback == nil {
		return &ConfigError{Stage: d.Name, Field: "Fallback"}
	}
	if d.Provider == "" {
		return &ConfigError{Stage: d.Name, Field: "Provider"}
	}
	return nil
}
