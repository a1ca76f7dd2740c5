package ai

import "context"

// Completer submits one text-generation request to a provider.
// Implementations must be thread-safe for concurrent use.
//
// The request embeds both the stage instructions and the input text;
// how the two are combined (system/user roles, single prompt) is up to
// the implementation. Stage code never depends on anything beyond this
// contract and a selector tag.
type Completer interface {
	// Complete sends instructions plus input and returns the textual
	// completion. Failures are reported as *ProviderError so callers
	// can distinguish transport problems (retryable) from request,
	// parse, and empty-response problems (not retryable).
	Complete(ctx context.Context, instructions, input string) (string, error)
}

// Provider aggregates a Completer with its lifecycle.
type Provider interface {
	// Completer returns the text-generation service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider.
	Close() error
}
