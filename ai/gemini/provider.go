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


package gemini

import (
	"context"
	"log/slog"

	"github.com/jobsift/jobsift/ai"
)

// Provider implements ai.Provider using the Gemini API.
type Provider struct {
	completer *Completer
	logger    *slog.Logger
}

// NewProvider creates a new AI provider backed by Gemini.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	completer, err := newCompleter(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		completer: completer,
		logger:    slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Completer returns the text-generation service.
func (p *Provider) Completer() ai.Completer {
	return p.completer
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return nil
}
