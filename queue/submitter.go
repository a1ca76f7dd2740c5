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


package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Submitter starts one external job. A *PermanentError return means the
// job must not be retried.
type Submitter interface {
	Submit(ctx context.Context, jobID, jobType string) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, jobID, jobType string) error

// Submit calls the wrapped function.
func (f SubmitterFunc) Submit(ctx context.Context, jobID, jobType string) error {
	return f(ctx, jobID, jobType)
}

// HTTPSubmitter submits jobs to an external scraping service over HTTP.
type HTTPSubmitter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSubmitter creates a submitter posting to baseURL/jobs.
// A nil client uses a default with a 30 second timeout.
func NewHTTPSubmitter(baseURL string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSubmitter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Submit posts the job to the scraping service. A 4xx response other
// than 429 is permanent; 429, 5xx, and transport failures are transient.
func (s *HTTPSubmitter) Submit(ctx context.Context, jobID, jobType string) error {
	payload, err := json.Marshal(map[string]string{
		"jobId":   jobID,
		"jobType": jobType,
	})
	if err != nil {
		return &PermanentError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return &PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit job %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("submit job %s: status %d", jobID, resp.StatusCode)
	default:
		return &PermanentError{Err: fmt.Errorf("submit job %s: status %d", jobID, resp.StatusCode)}
	}
}
