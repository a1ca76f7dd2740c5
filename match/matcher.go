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


// Package match implements the quote-deduplicating quality matcher.
// Qualities are evidenced with verbatim excerpts from a source text,
// with each excerpt attributed to at most one quality across the whole
// set.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/jobsift/jobsift/ai"
	"github.com/jobsift/jobsift/bus"
	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 30 * time.Second
)

// batchResult is the per-quality shape returned by the provider.
type batchResult struct {
	ResumeText string `json:"resumeText"`
	Location   string `json:"location"`
}

// Matcher runs the two-batch quality matching stage. The quality set is
// split in half; batch one is matched first, and its excerpts are
// embedded into batch two's instructions as a do-not-reuse constraint.
// A code-side collision check blanks any excerpt the provider reused
// anyway.
type Matcher struct {
	docs        storage.DocumentStore
	completer   ai.Completer
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithRetry sets the per-batch attempt count and the base delay of the
// linear backoff between attempts.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(m *Matcher) error {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		if delay < 0 {
			delay = 0
		}
		m.maxAttempts = maxAttempts
		m.retryDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewMatcher creates a quality matcher over the given store and completer.
func NewMatcher(docs storage.DocumentStore, completer ai.Completer, opts ...Option) (*Matcher, error) {
	if docs == nil {
		return nil, ErrDocumentStoreRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	m := &Matcher{
		docs:        docs,
		completer:   completer,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      slog.Default().With("component", "quality-matcher"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Bind subscribes the matcher's handler to the given topic.
func (m *Matcher) Bind(b bus.Bus, topic string) error {
	if err := b.EnsureTopic(topic); err != nil {
		return err
	}
	return b.Subscribe(topic, m.Handler())
}

// Handler returns the bus handler running the matching stage. The stage
// is fail-loud: errors propagate so the bus's redelivery policy applies.
func (m *Matcher) Handler() bus.Handler {
	return func(ctx context.Context, payload []byte) error {
		var msg core.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			m.logger.Warn("malformed quality-match message dropped", "err", err)
			return nil
		}
		if err := msg.Validate(); err != nil {
			m.logger.Warn("invalid quality-match message dropped", "err", err)
			return nil
		}
		return m.Match(ctx, msg.SubjectID, msg.DocID)
	}
}

// Match evidences every quality of the document with at most one verbatim
// excerpt, each excerpt used at most once, and persists the result.
func (m *Matcher) Match(ctx context.Context, subjectID, docID string) error {
	logger := m.logger.With("subjectId", subjectID, "docId", docID)

	var qualities map[string]core.Quality
	err := m.docs.GetPath(ctx, subjectID, docID, core.PathQualities, &qualities)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Debug("no qualities to match")
		return nil
	}
	if err != nil {
		return err
	}
	if len(qualities) == 0 {
		logger.Debug("no qualities to match")
		return nil
	}

	var sourceText string
	if err := m.docs.GetPath(ctx, subjectID, docID, core.PathExtractedText, &sourceText); err != nil {
		return err
	}

	batch1, batch2 := splitQualities(qualities)

	results1, err := m.matchBatch(ctx, sourceText, batch1, nil)
	if err != nil {
		return err
	}

	// Every non-empty batch-one excerpt constrains batch two.
	usedQuotes := make([]string, 0, len(results1))
	usedSet := make(map[string]struct{}, len(results1))
	for _, id := range sortedIDs(results1) {
		if quote := results1[id].ResumeText; quote != "" {
			usedQuotes = append(usedQuotes, quote)
			usedSet[quote] = struct{}{}
		}
	}

	var results2 map[string]batchResult
	if len(batch2) > 0 {
		results2, err = m.matchBatch(ctx, sourceText, batch2, usedQuotes)
		if err != nil {
			return err
		}
	}

	// Secondary safety net: the prompt constraint is the primary
	// enforcement, collisions that slip through are blanked here.
	for id, result := range results2 {
		if _, collides := usedSet[result.ResumeText]; collides && result.ResumeText != "" {
			logger.Warn("provider reused an excerpt, blanking it",
				"qualityId", id)
			result.ResumeText = ""
			result.Location = ""
			results2[id] = result
		}
	}

	merged := make(map[string]core.Quality, len(qualities))
	for id, quality := range qualities {
		if result, ok := results1[id]; ok {
			quality.ResumeText = result.ResumeText
			quality.Location = result.Location
		} else if result, ok := results2[id]; ok {
			quality.ResumeText = result.ResumeText
			quality.Location = result.Location
		}
		merged[id] = quality
	}

	err = m.docs.SetPaths(ctx, subjectID, docID, map[string]any{
		core.PathQualities:        merged,
		core.PathProcessingStatus: "quality-match-completed",
	})
	if err != nil {
		return err
	}

	logger.Debug("qualities matched",
		"total", len(merged),
		"batch1", len(batch1),
		"batch2", len(batch2))
	return nil
}

// matchBatch calls the provider for one batch with linear backoff.
// Attempt n sleeps n * retryDelay before the next try.
func (m *Matcher) matchBatch(ctx context.Context, sourceText string, batch map[string]core.Quality, usedQuotes []string) (map[string]batchResult, error) {
	if len(batch) == 0 {
		return map[string]batchResult{}, nil
	}

	instructions := buildInstructions(batch, usedQuotes)

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		text, err := m.completer.Complete(ctx, instructions, sourceText)
		if err != nil {
			lastErr = err
		} else {
			var results map[string]batchResult
			if derr := ai.DecodeJSON(text, &results); derr != nil {
				lastErr = derr
			} else {
				return results, nil
			}
		}

		m.logger.Debug("batch match failed, will retry",
			"attempt", attempt,
			"maxAttempts", m.maxAttempts,
			"error", lastErr)

		if attempt == m.maxAttempts {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * m.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// splitQualities deals the quality set into two halves by sorted id.
func splitQualities(qualities map[string]core.Quality) (map[string]core.Quality, map[string]core.Quality) {
	ids := make([]string, 0, len(qualities))
	for id := range qualities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	half := (len(ids) + 1) / 2
	batch1 := make(map[string]core.Quality, half)
	batch2 := make(map[string]core.Quality, len(ids)-half)
	for i, id := range ids {
		if i < half {
			batch1[id] = qualities[id]
		} else {
			batch2[id] = qualities[id]
		}
	}
	return batch1, batch2
}

func sortedIDs(results map[string]batchResult) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
