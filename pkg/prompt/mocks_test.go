package prompt

import (
	"context"
	"sync"
)

// mockTextGenerator は TextGenerator のモックです。
type mockTextGenerator struct {
	mu           sync.Mutex
	response     string
	err          error
	block        bool
	calls        int
	instructions []string
}

func (m *mockTextGenerator) Complete(ctx context.Context, instruction string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.instructions = append(m.instructions, instruction)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.response, m.err
}
