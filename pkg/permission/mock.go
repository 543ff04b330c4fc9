package permission

import (
	"context"
	"sync"
)

// MockPrompter is a scriptable prompter for tests.
type MockPrompter struct {
	mu sync.Mutex

	// QueryGranted/QueryOK are returned by Query.
	QueryGranted bool
	QueryOK      bool

	// PromptGranted/PromptErr are returned by Prompt.
	PromptGranted bool
	PromptErr     error

	prompts int
}

func (m *MockPrompter) Query(ctx context.Context) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QueryGranted, m.QueryOK
}

func (m *MockPrompter) Prompt(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts++
	return m.PromptGranted, m.PromptErr
}

// PromptCount returns how many times Prompt was invoked.
func (m *MockPrompter) PromptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts
}

var _ Prompter = (*MockPrompter)(nil)
