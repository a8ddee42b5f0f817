package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator is a deterministic Generator for tests and keyless local
// runs. It records every call and replies with Reply (or an echo when Reply
// is empty). Err, when set, is returned instead.
type MockGenerator struct {
	mu    sync.Mutex
	calls [][]Message

	Reply string
	Err   error

	// Block, when non-nil, is closed by the test to release Generate,
	// allowing in-flight turns to be held open deliberately.
	Block chan struct{}
}

func (m *MockGenerator) Generate(ctx context.Context, history []Message, newUserText string) (string, error) {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	snapshot := make([]Message, len(history), len(history)+1)
	copy(snapshot, history)
	snapshot = append(snapshot, Message{Role: "user", Text: newUserText})
	m.calls = append(m.calls, snapshot)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	return fmt.Sprintf("echo: %s", newUserText), nil
}

// Calls returns the full prompts passed to Generate, in call order. Each
// entry is the supplied history with the new user message appended.
func (m *MockGenerator) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
