package providers

import (
	"context"
	"sync"
)

// MockLLM is a scripted LLMClient for tests. Responses are returned in
// order; after the script runs out the last response repeats.
type MockLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int

	// LastRequest records the most recent request for assertions.
	LastRequest *ChatRequest
}

// NewMockLLM builds a mock that replies with the given contents.
func NewMockLLM(responses ...string) *MockLLM {
	return &MockLLM{responses: responses}
}

// FailWith appends an error response to the script.
func (m *MockLLM) FailWith(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	m.responses = append(m.responses, "")
	return m
}

// Calls reports how many Chat invocations have happened.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockLLM) Name() string { return "mock" }

// Chat returns the next scripted response.
func (m *MockLLM) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	m.LastRequest = req

	if idx < len(m.errs) && m.errs[idx] != nil {
		return &ChatResult{Provider: "mock", ErrorMessage: m.errs[idx].Error()}, m.errs[idx]
	}

	content := ""
	if len(m.responses) > 0 {
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		}
		content = m.responses[idx]
	}

	result := &ChatResult{
		Content:   content,
		Provider:  "mock",
		ModelUsed: "mock-model",
		Success:   true,
		Attempts:  1,
	}
	if req.ResponseFormat != nil && content != "" {
		if parsed, err := ParseStructuredJSON(content); err == nil {
			result.ParsedJSON = parsed
		}
	}
	return result, nil
}

var _ LLMClient = (*MockLLM)(nil)
