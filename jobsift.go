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


// Package jobsift wires the document store, message bus, providers,
// pipeline stages, quality matcher, and job queue into one system.
package jobsift

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jobsift/jobsift/ai"
	"github.com/jobsift/jobsift/ai/gemini"
	"github.com/jobsift/jobsift/ai/openai"
	"github.com/jobsift/jobsift/bus"
	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/match"
	"github.com/jobsift/jobsift/pipeline"
	"github.com/jobsift/jobsift/queue"
	"github.com/jobsift/jobsift/storage"
	"github.com/jobsift/jobsift/storage/badger"
)

const (
	defaultMaxConcurrentJobs = 4
	ingestedStatus           = "ingested"
)

// System aggregates the processing pipeline around one storage backend.
type System struct {
	backend    *badger.Backend
	docs       storage.DocumentStore
	queueStore storage.QueueStore
	bus        *bus.MemoryBus
	providers  []ai.Provider
	runner     *pipeline.Runner
	matcher    *match.Matcher
	queue      *queue.Manager
	logger     *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig      *ai.Config
	maxConcurrent int
	perTypeMax    int
	inMemory      bool
	backoff       []time.Duration
	submitter     queue.Submitter
	scrapeURL     string
	completers    map[pipeline.ProviderTag]ai.Completer
}

// WithAIConfig sets the provider configuration.
func WithAIConfig(cfg *ai.Config) SystemOption {
	return func(o *systemOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithMaxConcurrentJobs bounds how many external jobs run at once.
// Default is 4.
func WithMaxConcurrentJobs(maxConcurrent, perTypeMax int) SystemOption {
	return func(o *systemOptions) {
		o.maxConcurrent = maxConcurrent
		o.perTypeMax = perTypeMax
	}
}

// WithInMemoryStorage keeps all state in memory. Used by tests.
func WithInMemoryStorage() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// WithBackoffTable replaces the provider retry delays.
func WithBackoffTable(table []time.Duration) SystemOption {
	return func(o *systemOptions) {
		if len(table) > 0 {
			o.backoff = table
		}
	}
}

// WithSubmitter replaces the HTTP scrape submitter.
func WithSubmitter(s queue.Submitter) SystemOption {
	return func(o *systemOptions) {
		o.submitter = s
	}
}

// WithScrapeServiceURL sets the base URL of the external scraping
// service used when no custom submitter is given.
func WithScrapeServiceURL(url string) SystemOption {
	return func(o *systemOptions) {
		o.scrapeURL = url
	}
}

// WithCompleters injects completers directly, bypassing provider
// construction. Used by tests.
func WithCompleters(completers map[pipeline.ProviderTag]ai.Completer) SystemOption {
	return func(o *systemOptions) {
		o.completers = completers
	}
}

// Open builds a System rooted at filePath.
func Open(ctx context.Context, filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig:      ai.DefaultConfig(),
		maxConcurrent: defaultMaxConcurrentJobs,
		backoff:       pipeline.DefaultBackoffTable,
		scrapeURL:     "http://localhost:8090",
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := slog.Default()

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	docs := badger.NewDocumentRepository(backend)

	queueStore, err := badger.NewQueueRepository(backend, options.maxConcurrent, options.perTypeMax)
	if err != nil {
		backend.Close()
		return nil, err
	}

	b, err := bus.NewMemoryBus()
	if err != nil {
		backend.Close()
		return nil, err
	}

	system := &System{
		backend:    backend,
		docs:       docs,
		queueStore: queueStore,
		bus:        b,
		logger:     logger,
	}

	completers := options.completers
	if completers == nil {
		completers, err = system.buildCompleters(ctx, options.aiConfig)
		if err != nil {
			system.Close()
			return nil, err
		}
	}

	runner, err := pipeline.NewRunner(docs, b, completers,
		pipeline.WithBackoffTable(options.backoff))
	if err != nil {
		system.Close()
		return nil, err
	}
	if err := runner.BindAll(pipeline.DefaultStages()); err != nil {
		system.Close()
		return nil, err
	}
	system.runner = runner

	matcher, err := match.NewMatcher(docs, completers[pipeline.ProviderOpenAI])
	if err != nil {
		system.Close()
		return nil, err
	}
	if err := matcher.Bind(b, pipeline.TopicJobScored); err != nil {
		system.Close()
		return nil, err
	}
	system.matcher = matcher

	submitter := options.submitter
	if submitter == nil {
		submitter = queue.NewHTTPSubmitter(options.scrapeURL, nil)
	}
	manager, err := queue.NewManager(queueStore, submitter)
	if err != nil {
		system.Close()
		return nil, err
	}
	system.queue = manager

	return system, nil
}

// buildCompleters constructs the real providers. Without a Gemini key
// the OpenAI-compatible completer serves both tags.
func (s *System) buildCompleters(ctx context.Context, cfg *ai.Config) (map[pipeline.ProviderTag]ai.Completer, error) {
	openaiProvider, err := openai.NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	s.providers = append(s.providers, openaiProvider)

	completers := map[pipeline.ProviderTag]ai.Completer{
		pipeline.ProviderOpenAI: openaiProvider.Completer(),
		pipeline.ProviderGemini: openaiProvider.Completer(),
	}

	if cfg.GeminiAPIKey != "" {
		geminiProvider, err := gemini.NewProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.providers = append(s.providers, geminiProvider)
		completers[pipeline.ProviderGemini] = geminiProvider.Completer()
	} else {
		s.logger.Warn("no Gemini API key configured, using the OpenAI-compatible provider for all stages")
	}

	return completers, nil
}

// Ingest stores a captured document and publishes the first pipeline
// message. An empty docID derives one from the raw text, so ingesting
// the same capture twice targets the same document. Returns the docID.
func (s *System) Ingest(ctx context.Context, subjectID, docID, rawText, url string) (string, error) {
	if subjectID == "" {
		return "", core.ErrEmptySubjectID
	}
	if rawText == "" {
		return "", core.ErrEmptyRawText
	}
	if docID == "" {
		docID = core.IDFromContent(rawText).Hex()
	}

	now := time.Now().UTC()
	err := s.docs.SetPaths(ctx, subjectID, docID, map[string]any{
		core.PathGeneralData: core.GeneralData{
			Status:           "new",
			ProcessingStatus: ingestedStatus,
			URL:              url,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		core.PathRawText: rawText,
	})
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(core.Message{SubjectID: subjectID, DocID: docID})
	if err != nil {
		return "", err
	}
	if err := s.bus.EnsureTopic(pipeline.TopicRawTextStored); err != nil {
		return "", err
	}
	if err := s.bus.Publish(ctx, pipeline.TopicRawTextStored, payload); err != nil {
		return "", err
	}

	s.logger.Info("document ingested", "subjectId", subjectID, "docId", docID)
	return docID, nil
}

// DocumentStore returns the document repository.
func (s *System) DocumentStore() storage.DocumentStore {
	return s.docs
}

// Queue returns the job queue manager.
func (s *System) Queue() *queue.Manager {
	return s.queue
}

// Bus returns the message bus.
func (s *System) Bus() *bus.MemoryBus {
	return s.bus
}

// Drain blocks until in-flight pipeline work finishes.
func (s *System) Drain() {
	s.bus.Drain()
}

// Close shuts the system down: the bus first so no handler touches a
// closed backend, then the providers, then storage.
func (s *System) Close() error {
	if err := s.bus.Close(); err != nil {
		s.logger.Error("error closing bus", "err", err)
	}

	for _, provider := range s.providers {
		if err := provider.Close(); err != nil {
			s.logger.Error("error closing provider", "err", err)
		}
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
