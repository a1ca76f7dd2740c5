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
	"log/slog"
	"time"

	"github.com/jobsift/jobsift/ai"
)

// DefaultBackoffTable holds the delays slept between provider call
// attempts. Attempt n sleeps table[n-1]; attempts = len(table) + 1.
var DefaultBackoffTable = []time.Duration{
	1 * time.Minute,
	2 * time.Minute,
	3 * time.Minute,
}

// CallWithBackoff invokes the completer, retrying transient failures
// (rate limits, 5xx, network errors) per the backoff table. Any other
// error propagates immediately. Exhausting the table returns the last
// error.
func CallWithBackoff(ctx context.Context, completer ai.Completer, instructions, input string, table []time.Duration) (string, error) {
	if len(table) == 0 {
		return "", ErrInvalidBackoffTable
	}

	var lastErr error
	maxAttempts := len(table) + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := completer.Complete(ctx, instructions, input)
		if err == nil {
			if attempt > 1 {
				slog.Debug("provider call succeeded after retry", "attempt", attempt)
			}
			return text, nil
		}
		lastErr = err

		if !ai.IsRetryable(err) {
			return "", err
		}
		if attempt == maxAttempts {
			break
		}

		delay := table[attempt-1]
		slog.Debug("provider call failed, will retry",
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	return "", lastErr
}
