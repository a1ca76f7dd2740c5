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


package core

import "fmt"

// Validate checks that a pipeline message carries both identity fields.
func (m Message) Validate() error {
	if m.SubjectID == "" {
		return ErrEmptySubjectID
	}
	if m.DocID == "" {
		return ErrEmptyDocID
	}
	return nil
}

// ValidateScore rejects scores outside the 0-100 range.
func ValidateScore(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: got %d", ErrScoreOutOfRange, score)
	}
	return nil
}

// Validate checks every score carried by a scoring result. A result
// failing validation must never be persisted.
func (r *ScoreResult) Validate() error {
	if err := ValidateScore(r.TotalScore); err != nil {
		return fmt.Errorf("totalScore: %w", err)
	}
	for i, m := range r.Matches {
		if err := ValidateScore(m.Score); err != nil {
			return fmt.Errorf("matches[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks a domain-expertise record's importance range.
func (d *DomainExpertise) Validate() error {
	if d.Importance < 1 || d.Importance > 5 {
		return fmt.Errorf("%w: got %d", ErrImportanceOutOfRange, d.Importance)
	}
	return nil
}

// Validate checks a queue entry before it is persisted.
func (e *QueueEntry) Validate() error {
	if e.JobID == "" {
		return ErrEmptyJobID
	}
	switch e.Status {
	case JobStatusPending, JobStatusProcessing, JobStatusError:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidJobStatus, int(e.Status))
	}
	if e.RetryCount < 0 {
		return fmt.Errorf("retry count cannot be negative: %d", e.RetryCount)
	}
	return nil
}
