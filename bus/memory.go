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


package bus

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	defaultMaxDeliveries   = 3
	defaultRedeliveryDelay = 100 * time.Millisecond
)

// MemoryBus is an in-process Bus backed by a worker pool.
// Failed deliveries are retried per subscriber up to a bounded number of
// attempts, then dropped with an error log.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string][]Handler
	closed bool

	pool            *ants.Pool
	inflight        sync.WaitGroup
	maxDeliveries   int
	redeliveryDelay time.Duration
	logger          *slog.Logger
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus) error

// WithPoolSize sets the worker pool size for message dispatch.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) MemoryOption {
	return func(b *MemoryBus) error {
		if size < 1 {
			size = 1
		}
		if b.pool != nil {
			b.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithMaxDeliveries sets how many times a failing delivery is attempted
// before the message is dropped for that subscriber. Default is 3.
func WithMaxDeliveries(n int) MemoryOption {
	return func(b *MemoryBus) error {
		if n < 1 {
			n = 1
		}
		b.maxDeliveries = n
		return nil
	}
}

// WithRedeliveryDelay sets the pause between delivery attempts.
func WithRedeliveryDelay(d time.Duration) MemoryOption {
	return func(b *MemoryBus) error {
		if d < 0 {
			d = 0
		}
		b.redeliveryDelay = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(b *MemoryBus) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(opts ...MemoryOption) (*MemoryBus, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &MemoryBus{
		topics:          make(map[string][]Handler),
		pool:            pool,
		maxDeliveries:   defaultMaxDeliveries,
		redeliveryDelay: defaultRedeliveryDelay,
		logger:          slog.Default().With("component", "memory-bus"),
	}

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.pool.Release()
			return nil, optErr
		}
	}

	return b, nil
}

// EnsureTopic creates the topic if it does not exist.
func (b *MemoryBus) EnsureTopic(name string) error {
	if name == "" {
		return ErrEmptyTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if _, ok := b.topics[name]; !ok {
		b.topics[name] = nil
	}
	return nil
}

// Subscribe registers a handler for a topic, creating the topic if needed.
func (b *MemoryBus) Subscribe(topic string, handler Handler) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.topics[topic] = append(b.topics[topic], handler)
	return nil
}

// Publish dispatches the payload to all subscribers of the topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	handlers, ok := b.topics[topic]
	b.mu.RUnlock()

	if !ok {
		return ErrUnknownTopic
	}

	for _, handler := range handlers {
		handler := handler
		b.inflight.Add(1)
		err := b.pool.Submit(func() {
			defer b.inflight.Done()
			b.deliver(topic, handler, payload)
		})
		if err != nil {
			b.inflight.Done()
			return err
		}
	}
	return nil
}

// deliver runs one subscriber with bounded redelivery.
func (b *MemoryBus) deliver(topic string, handler Handler, payload []byte) {
	var lastErr error
	for attempt := 1; attempt <= b.maxDeliveries; attempt++ {
		lastErr = handler(context.Background(), payload)
		if lastErr == nil {
			return
		}
		b.logger.Warn("message delivery failed",
			"topic", topic,
			"attempt", attempt,
			"err", lastErr)
		if attempt < b.maxDeliveries {
			time.Sleep(b.redeliveryDelay)
		}
	}
	b.logger.Error("message dropped after delivery attempts exhausted",
		"topic", topic,
		"attempts", b.maxDeliveries,
		"err", lastErr)
}

// Drain blocks until all accepted deliveries have finished.
// Intended for tests and shutdown sequencing.
func (b *MemoryBus) Drain() {
	b.inflight.Wait()
}

// Close stops dispatch and waits for in-flight deliveries.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	b.pool.Release()
	return nil
}
