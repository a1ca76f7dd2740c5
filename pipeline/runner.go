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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jobsift/jobsift/ai"
	"github.com/jobsift/jobsift/bus"
	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
)

// Runner binds stage definitions to bus subscriptions and executes the
// read, call, write, forward protocol for each delivered message.
//
// Per invocation the handler performs exactly one document write and at
// most one publish. Writes are overwrite-by-path, so redelivery of the
// same message leaves the document in the same final state.
type Runner struct {
	docs       storage.DocumentStore
	bus        bus.Bus
	completers map[ProviderTag]ai.Completer
	backoff    []time.Duration
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// WithBackoffTable replaces the delays slept between provider call
// attempts. Mostly used by tests to avoid minute-long sleeps.
func WithBackoffTable(table []time.Duration) RunnerOption {
	return func(r *Runner) error {
		if len(table) == 0 {
			return ErrInvalidBackoffTable
		}
		r.backoff = table
		return nil
	}
}

// WithRunnerLogger sets a custom logger.
// Default is slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRunner creates a runner over the given store, bus, and completers.
// The completer map is keyed by the provider tag stage definitions select.
func NewRunner(docs storage.DocumentStore, b bus.Bus, completers map[ProviderTag]ai.Completer, opts ...RunnerOption) (*Runner, error) {
	if docs == nil {
		return nil, ErrDocumentStoreRequired
	}
	if b == nil {
		return nil, ErrBusRequired
	}

	r := &Runner{
		docs:       docs,
		bus:        b,
		completers: completers,
		backoff:    DefaultBackoffTable,
		logger:     slog.Default().With("component", "pipeline-runner"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Bind validates the definition, ensures its topics exist, and
// subscribes its handler to the trigger topic.
func (r *Runner) Bind(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	completer, ok := r.completers[def.Provider]
	if !ok || completer == nil {
		return &ProviderNotConfiguredError{Stage: def.Name, Provider: def.Provider}
	}

	if err := r.bus.EnsureTopic(def.TriggerTopic); err != nil {
		return err
	}
	if def.NextTopic != "" {
		if err := r.bus.EnsureTopic(def.NextTopic); err != nil {
			return err
		}
	}

	return r.bus.Subscribe(def.TriggerTopic, r.handler(def, completer))
}

// BindAll binds every definition, stopping at the first error.
func (r *Runner) BindAll(defs []*Definition) error {
	for _, def := range defs {
		if err := r.Bind(def); err != nil {
			return err
		}
	}
	return nil
}

// handler builds the bus handler for one stage.
func (r *Runner) handler(def *Definition, completer ai.Completer) bus.Handler {
	return func(ctx context.Context, payload []byte) error {
		var msg core.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			// Dropping is preferred to a poison-message loop.
			r.logger.Warn("malformed pipeline message dropped",
				"stage", def.Name, "err", err)
			return nil
		}
		if err := msg.Validate(); err != nil {
			r.logger.Warn("invalid pipeline message dropped",
				"stage", def.Name, "err", err)
			return nil
		}

		logger := r.logger.With(
			"stage", def.Name,
			"subjectId", msg.SubjectID,
			"docId", msg.DocID)

		exists, err := r.docs.Exists(ctx, msg.SubjectID, msg.DocID)
		if err != nil {
			return err
		}
		if !exists {
			logger.Warn("document missing, writing fallback")
			r.writeFallback(ctx, def, &msg, logger)
			return nil
		}

		input, err := r.readInput(ctx, def, &msg)
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("input path missing, writing fallback", "path", def.InputPath)
			r.writeFallback(ctx, def, &msg, logger)
			return nil
		}
		if err != nil {
			return err
		}

		text, err := CallWithBackoff(ctx, completer, def.Instructions, input, r.backoff)
		if err != nil {
			return r.failStage(ctx, def, &msg, err, logger)
		}

		var output any = text
		if def.ParseJSON {
			var raw json.RawMessage
			if err := ai.DecodeJSON(text, &raw); err != nil {
				return r.failStage(ctx, def, &msg, err, logger)
			}
			if def.Check != nil {
				if err := def.Check(raw); err != nil {
					return r.failStage(ctx, def, &msg, err, logger)
				}
			}
			output = raw
		}

		err = r.docs.SetPaths(ctx, msg.SubjectID, msg.DocID, map[string]any{
			def.OutputPath:            output,
			core.PathProcessingStatus: def.Name + "-completed",
		})
		if err != nil {
			return err
		}

		if def.NextTopic != "" {
			if err := r.bus.EnsureTopic(def.NextTopic); err != nil {
				return err
			}
			if err := r.bus.Publish(ctx, def.NextTopic, payload); err != nil {
				return err
			}
			logger.Debug("message forwarded", "topic", def.NextTopic)
		}
		return nil
	}
}

// readInput resolves the stage's input path. Non-string values are
// passed to the provider as compact JSON.
func (r *Runner) readInput(ctx context.Context, def *Definition, msg *core.Message) (string, error) {
	var raw json.RawMessage
	if err := r.docs.GetPath(ctx, msg.SubjectID, msg.DocID, def.InputPath, &raw); err != nil {
		return "", err
	}

	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// failStage applies the stage's failure policy.
func (r *Runner) failStage(ctx context.Context, def *Definition, msg *core.Message, cause error, logger *slog.Logger) error {
	if def.OnFailure == Rethrow {
		logger.Error("stage failed, requesting redelivery", "err", cause)
		return cause
	}
	logger.Error("stage failed, writing fallback", "err", cause)
	r.writeFallback(ctx, def, msg, logger)
	return nil
}

// writeFallback writes the fallback value and an error status.
// Best effort: a failed fallback write is logged, not propagated.
func (r *Runner) writeFallback(ctx context.Context, def *Definition, msg *core.Message, logger *slog.Logger) {
	err := r.docs.SetPaths(ctx, msg.SubjectID, msg.DocID, map[string]any{
		def.OutputPath:            def.Fallback,
		core.PathProcessingStatus: def.Name + "-error",
	})
	if err != nil {
		logger.Error("failed to write fallback", "err", err)
	}
}
