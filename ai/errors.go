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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies provider failures. Only rate-limit and transport
// failures are worth retrying; a malformed response or a rejected
// request will not get better on a second attempt.
type ErrorKind int

const (
	// KindTransport covers network failures and HTTP 5xx responses.
	KindTransport ErrorKind = iota + 1
	// KindRateLimit covers HTTP 429 responses.
	KindRateLimit
	// KindRequest covers other HTTP errors (4xx): the request itself is bad.
	KindRequest
	// KindParse covers completions that are not the expected JSON.
	KindParse
	// KindEmpty covers responses carrying no usable text.
	KindEmpty
)

// String returns the kind name used in logs.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimit:
		return "rate_limit"
	case KindRequest:
		return "request"
	case KindParse:
		return "parse"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ProviderError wraps a provider failure with its classification and,
// when known, the HTTP status that caused it.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s error: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindRateLimit
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

// ClassifyCallError wraps a raw provider-call error. The status code is
// extracted when the client exposes it through the error text; network
// errors with no status are treated as transport failures.
func ClassifyCallError(err error) *ProviderError {
	status := statusFromError(err)
	switch {
	case status == 429:
		return &ProviderError{Kind: KindRateLimit, Status: status, Err: err}
	case status >= 500:
		return &ProviderError{Kind: KindTransport, Status: status, Err: err}
	case status >= 400:
		return &ProviderError{Kind: KindRequest, Status: status, Err: err}
	default:
		return &ProviderError{Kind: KindTransport, Err: err}
	}
}

// statusFromError scans an error message for an HTTP status code.
// Client libraries flatten status codes into the message, so this is a
// best-effort extraction of a standalone 4xx/5xx number.
func statusFromError(err error) int {
	if err == nil {
		return 0
	}
	msg := err.Error()
	for i := 0; i+3 <= len(msg); i++ {
		if i > 0 && isDigit(msg[i-1]) {
			continue
		}
		if i+3 < len(msg) && isDigit(msg[i+3]) {
			continue
		}
		if !isDigit(msg[i]) || !isDigit(msg[i+1]) || !isDigit(msg[i+2]) {
			continue
		}
		code := int(msg[i]-'0')*100 + int(msg[i+1]-'0')*10 + int(msg[i+2]-'0')
		if code >= 400 && code < 600 {
			return code
		}
	}
	if strings.Contains(strings.ToLower(msg), "too many requests") {
		return 429
	}
	return 0
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
