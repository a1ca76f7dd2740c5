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
	"errors"
	"fmt"
)

var (
	// ErrStoreRequired is returned when a manager is created without a
	// queue store.
	ErrStoreRequired = errors.New("queue store is required")

	// ErrSubmitterRequired is returned when a manager is created
	// without a submitter.
	ErrSubmitterRequired = errors.New("submitter is required")
)

// PermanentError marks a submission failure that will not succeed on
// retry. The job is marked errored instead of requeued.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent submission failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err marks a non-recoverable submission.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
