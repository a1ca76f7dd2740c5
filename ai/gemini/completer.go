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
	"errors"
	"log/slog"
	"strings"

	"github.com/jobsift/jobsift/ai"
	"google.golang.org/genai"
)

// Completer implements ai.Completer using the Gemini API.
type Completer struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

// newCompleter is an internal constructor that returns the concrete type.
func newCompleter(ctx context.Context, config *ai.Config) (*Completer, error) {
	apiKey := strings.TrimSpace(config.GeminiAPIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	model := strings.TrimSpace(config.GeminiModel)
	if model == "" {
		return nil, errors.New("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &Completer{
		client:    client,
		modelName: model,
		logger:    slog.Default().With("component", "gemini-completer"),
	}, nil
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(ctx context.Context, config *ai.Config) (ai.Completer, error) {
	return newCompleter(ctx, config)
}

// Complete sends the instructions as the system instruction and the input
// as the user content, and returns the joined candidate text.
func (c *Completer) Complete(ctx context.Context, instructions, input string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(input), cfg)
	if err != nil {
		pe := ai.ClassifyCallError(err)
		c.logger.Error("failed to generate content", "kind", pe.Kind.String(), "err", err)
		return "", pe
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", &ai.ProviderError{Kind: ai.KindEmpty, Err: errors.New("gemini api returned empty response")}
	}

	return output, nil
}
