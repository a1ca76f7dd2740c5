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
	"encoding/json"
	"sort"

	"github.com/jobsift/jobsift/core"
)

// Topic names wiring the stage chain. Each stage's NextTopic is the
// following stage's TriggerTopic.
const (
	TopicRawTextStored           = "raw-text-stored"
	TopicJobDescriptionExtracted = "job-description-extracted"
	TopicRequirementsExtracted   = "requirements-extracted"
	TopicSoftSkillsAssessed      = "soft-skills-assessed"
	TopicDomainExpertiseAssessed = "domain-expertise-assessed"
	TopicJobScored               = "job-scored"
)

// FallbackNA marks an output field whose stage ran but produced nothing.
const FallbackNA = "na"

// Registry holds validated stage definitions by name.
type Registry struct {
	stages map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]*Definition)}
}

// Register validates the definition and adds it to the registry.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, ok := r.stages[def.Name]; ok {
		return ErrStageExists
	}
	r.stages[def.Name] = def
	return nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, error) {
	def, ok := r.stages[name]
	if !ok {
		return nil, ErrStageNotFound
	}
	return def, nil
}

// All returns the registered definitions sorted by name.
func (r *Registry) All() []*Definition {
	defs := make([]*Definition, 0, len(r.stages))
	for _, def := range r.stages {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// DefaultStages returns the job-posting processing chain. The extract
// stage is triggered by ingestion; each later stage is triggered by its
// predecessor's NextTopic. Scoring rethrows failures so the bus retries
// it instead of persisting a partial score.
func DefaultStages() []*Definition {
	return []*Definition{
		{
			Name:         "extract",
			Instructions: extractInstructions,
			InputPath:    core.PathRawText,
			OutputPath:   core.PathExtractedText,
			TriggerTopic: TopicRawTextStored,
			NextTopic:    TopicJobDescriptionExtracted,
			Fallback:     FallbackNA,
			Provider:     ProviderOpenAI,
		},
		{
			Name:         "requirements",
			Instructions: requirementsInstructions,
			InputPath:    core.PathExtractedText,
			OutputPath:   core.PathRequirements,
			TriggerTopic: TopicJobDescriptionExtracted,
			NextTopic:    TopicRequirementsExtracted,
			Fallback:     FallbackNA,
			Provider:     ProviderOpenAI,
			ParseJSON:    true,
		},
		{
			Name:         "softskills",
			Instructions: softSkillsInstructions,
			InputPath:    core.PathExtractedText,
			OutputPath:   core.PathSoftSkills,
			TriggerTopic: TopicRequirementsExtracted,
			NextTopic:    TopicSoftSkillsAssessed,
			Fallback:     FallbackNA,
			Provider:     ProviderOpenAI,
			ParseJSON:    true,
		},
		{
			Name:         "expertise",
			Instructions: domainExpertiseInstructions,
			InputPath:    core.PathExtractedText,
			OutputPath:   core.PathDomainExpertise,
			TriggerTopic: TopicSoftSkillsAssessed,
			NextTopic:    TopicDomainExpertiseAssessed,
			Fallback:     FallbackNA,
			Provider:     ProviderOpenAI,
			ParseJSON:    true,
			Check:        checkDomainExpertise,
		},
		{
			Name:         "scoring",
			Instructions: scoringInstructions,
			InputPath:    core.PathExtractedText,
			OutputPath:   core.PathScore,
			TriggerTopic: TopicDomainExpertiseAssessed,
			NextTopic:    TopicJobScored,
			Fallback:     FallbackNA,
			Provider:     ProviderGemini,
			OnFailure:    Rethrow,
			ParseJSON:    true,
			Check:        checkScore,
		},
	}
}

func checkScore(raw json.RawMessage) error {
	var result core.ScoreResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	return result.Validate()
}

func checkDomainExpertise(raw json.RawMessage) error {
	var expertise core.DomainExpertise
	if err := json.Unmarshal(raw, &expertise); err != nil {
		return err
	}
	return expertise.Validate()
}
