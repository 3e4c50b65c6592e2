package llm

import (
	"context"
	"strings"
)

// MockLLM is an offline Generator for local runs. It echoes the caller's
// latest line, which is enough to walk a call through every slot.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

const mockFollowup = "Okay. Is anyone injured, and are you somewhere safe right now?"

func (m *MockLLM) Generate(_ context.Context, prompt string) (string, error) {
	if strings.HasSuffix(strings.TrimSpace(prompt), "Dispatcher:") {
		return mockFollowup, nil
	}

	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if after, ok := strings.CutPrefix(line, "Caller:"); ok {
			if text := strings.TrimSpace(after); text != "" {
				return text, nil
			}
		}
	}
	return "undefined", nil
}
