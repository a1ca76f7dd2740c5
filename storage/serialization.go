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


package storage

import (
	"time"

	"github.com/jobsift/jobsift/core"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the fixed-schema queue records. Job documents are
// stored as JSON because their subtrees carry model output of varying
// shape; queue and counter records have a stable schema and use the
// compact binary format.

// QueueEntryMUS serializes core.QueueEntry values.
var QueueEntryMUS = queueEntryMUS{}

type queueEntryMUS struct{}

func (s queueEntryMUS) Marshal(v core.QueueEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.JobID, bs)
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += varint.Int.Marshal(v.RetryCount, bs[n:])
	n += varint.Int64.Marshal(v.CreatedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
	return
}

func (s queueEntryMUS) Unmarshal(bs []byte) (v core.QueueEntry, n int, err error) {
	var n1 int
	v.JobID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var status int
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = core.JobStatus(status)
	v.RetryCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (s queueEntryMUS) Size(v core.QueueEntry) (size int) {
	size = ord.String.Size(v.JobID)
	size += varint.Int.Size(int(v.Status))
	size += varint.Int.Size(v.RetryCount)
	size += varint.Int64.Size(v.CreatedAt.UnixMicro())
	size += varint.Int64.Size(v.UpdatedAt.UnixMicro())
	return
}

// ActiveJobMUS serializes core.ActiveJob values.
var ActiveJobMUS = activeJobMUS{}

type activeJobMUS struct{}

func (s activeJobMUS) Marshal(v core.ActiveJob, bs []byte) (n int) {
	n = ord.String.Marshal(v.JobID, bs)
	n += ord.String.Marshal(v.JobType, bs[n:])
	n += varint.Int64.Marshal(v.StartedAt.UnixMicro(), bs[n:])
	return
}

func (s activeJobMUS) Unmarshal(bs []byte) (v core.ActiveJob, n int, err error) {
	var n1 int
	v.JobID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.JobType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.StartedAt = time.UnixMicro(micros).UTC()
	return
}

func (s activeJobMUS) Size(v core.ActiveJob) (size int) {
	size = ord.String.Size(v.JobID)
	size += ord.String.Size(v.JobType)
	size += varint.Int64.Size(v.StartedAt.UnixMicro())
	return
}

// MarshalQueueEntry serializes a QueueEntry to bytes.
func MarshalQueueEntry(entry *core.QueueEntry) []byte {
	buf := make([]byte, QueueEntryMUS.Size(*entry))
	QueueEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalQueueEntry deserializes a QueueEntry from bytes.
func UnmarshalQueueEntry(data []byte) (*core.QueueEntry, error) {
	entry, _, err := QueueEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarshalActiveJob serializes an ActiveJob to bytes.
func MarshalActiveJob(job *core.ActiveJob) []byte {
	buf := make([]byte, ActiveJobMUS.Size(*job))
	ActiveJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalActiveJob deserializes an ActiveJob from bytes.
func UnmarshalActiveJob(data []byte) (*core.ActiveJob, error) {
	job, _, err := ActiveJobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarshalCount serializes the concurrency counter to bytes.
func MarshalCount(count uint64) []byte {
	buf := make([]byte, varint.Uint64.Size(count))
	varint.Uint64.Marshal(count, buf)
	return buf
}

// UnmarshalCount deserializes the concurrency counter from bytes.
func UnmarshalCount(data []byte) (uint64, error) {
	count, _, err := varint.Uint64.Unmarshal(data)
	return count, err
}
