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

import "errors"

// Domain validation errors
var (
	// ErrEmptySubjectID indicates a pipeline message without a subjectId.
	ErrEmptySubjectID = errors.New("subjectId cannot be empty")

	// ErrEmptyDocID indicates a pipeline message without a docId.
	ErrEmptyDocID = errors.New("docId cannot be empty")

	// ErrEmptyRawText indicates an ingestion request without captured text.
	ErrEmptyRawText = errors.New("raw text cannot be empty")

	// ErrScoreOutOfRange indicates a score outside the 0-100 range.
	ErrScoreOutOfRange = errors.New("score must be between 0 and 100")

	// ErrImportanceOutOfRange indicates a domain-expertise importance outside 1-5.
	ErrImportanceOutOfRange = errors.New("importance must be between 1 and 5")

	// ErrEmptyJobID indicates a queue entry without a job ID.
	ErrEmptyJobID = errors.New("job id cannot be empty")

	// ErrInvalidJobStatus indicates an unknown JobStatus value.
	ErrInvalidJobStatus = errors.New("invalid job status")
)
