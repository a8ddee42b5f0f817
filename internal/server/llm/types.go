// Package llm abstracts the language-model backend behind a Generator
// interface and provides the Gemini implementation plus a mock for tests.
package llm

import "context"

// Message is one entry of the model-ready context. Role is "user" or
// "model", matching the persisted turn roles one-to-one.
type Message struct {
	Role string
	Text string
}

// Generator produces the model's reply to newUserText given the prior
// context. Implementations must honor ctx cancellation and return an error
// wrapping common.ErrProvider on transport/quota/timeout failures.
type Generator interface {
	Generate(ctx context.Context, history []Message, newUserText string) (string, error)
}
