package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/materials"
)

// stubCompleter is a provider.Completer driven by a function, recording
// every call it receives.
type stubCompleter struct {
	fn func(ctx context.Context, prompt llm.PromptID, vars map[string]string) (string, error)

	mu    sync.Mutex
	calls []map[string]string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt llm.PromptID, vars map[string]string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, vars)
	s.mu.Unlock()
	return s.fn(ctx, prompt, vars)
}

func (s *stubCompleter) materialsQueried() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, vars := range s.calls {
		if m, ok := vars["material"]; ok {
			out = append(out, m)
		}
	}
	return out
}

func mustList(t *testing.T, ids ...string) materials.List {
	t.Helper()
	list, err := materials.New(ids...)
	if err != nil {
		t.Fatalf("building material list: %v", err)
	}
	return list
}

// amountReply answers every material query with an amount derived from the
// material name, so tests can check that results land in the right slot.
func amountReply(vars map[string]string) string {
	return fmt.Sprintf(`{"materialCode": %q, "amount": %d}`, vars["material"], len(vars["material"]))
}
