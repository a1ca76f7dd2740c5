package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jobsift/jobsift/ai"
)

var _ ai.Completer = (*MockCompleter)(nil)

// MockCompleter is a test double for ai.Completer.
// It allows custom behavior injection via function fields.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete echoes the input back as a JSON text field.
	CompleteFunc func(ctx context.Context, instructions, input string) (string, error)

	mu        sync.Mutex
	callCount int
	calls     []Call
}

// Call records the arguments of one Complete invocation.
type Call struct {
	Instructions string
	Input        string
}

// NewMockCompleter creates a mock completer with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete invokes CompleteFunc when set, otherwise echoes the input
// back as a {"text": ...} JSON object.
func (m *MockCompleter) Complete(ctx context.Context, instructions, input string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.calls = append(m.calls, Call{Instructions: instructions, Input: input})
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, instructions, input)
	}

	quoted, _ := json.Marshal(input)
	return `{"text": ` + string(quoted) + `}`, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Calls returns a copy of the recorded invocations.
func (m *MockCompleter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears the recorded calls and the custom function.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.calls = nil
	m.CompleteFunc = nil
}
