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


// Package bus provides topic-based message delivery between processing
// stages. Payloads are opaque bytes; stages agree on a JSON envelope.
package bus

import "context"

// Handler consumes one message payload. A non-nil error requests
// redelivery; the bus gives up after a bounded number of attempts.
type Handler func(ctx context.Context, payload []byte) error

// Bus routes payloads from publishers to topic subscribers.
// Implementations must be safe for concurrent use.
type Bus interface {
	// EnsureTopic creates the topic if it does not exist.
	// Calling it again for an existing topic is a no-op.
	EnsureTopic(name string) error

	// Subscribe registers a handler for a topic, creating the topic if
	// needed. Every subscriber receives every message published to the
	// topic after its registration.
	Subscribe(topic string, handler Handler) error

	// Publish delivers the payload to all current subscribers of the
	// topic. Publishing to a topic that was never ensured or subscribed
	// is an error. Delivery is asynchronous; Publish returns once the
	// message is accepted for dispatch.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Close stops dispatch and waits for in-flight deliveries.
	Close() error
}
