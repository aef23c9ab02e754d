package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/llm"
)

func TestEstimateAll_PreservesListOrder(t *testing.T) {
	list := mustList(t, "Cobalt", "Gallium", "Lithium", "Tungsten", "Bismuth")
	stub := &stubCompleter{fn: func(_ context.Context, _ llm.PromptID, vars map[string]string) (string, error) {
		return amountReply(vars), nil
	}}
	est := NewMaterialEstimator(list, stub, 0, zap.NewNop())

	got := est.EstimateAll(context.Background(), "Iphone 8")

	if len(got) != list.Len() {
		t.Fatalf("expected %d estimates, got %d", list.Len(), len(got))
	}
	for i, e := range got {
		if e.MaterialID != list.At(i) {
			t.Errorf("slot %d: expected %s, got %s", i, list.At(i), e.MaterialID)
		}
		if !e.Valid || e.AmountGrams != float64(len(list.At(i))) {
			t.Errorf("slot %d: unexpected estimate %+v", i, e)
		}
	}
}

func TestEstimateAll_OneQueryPerMaterial(t *testing.T) {
	list := mustList(t, "Cobalt", "Gallium", "Lithium", "Tungsten")
	stub := &stubCompleter{fn: func(_ context.Context, _ llm.PromptID, vars map[string]string) (string, error) {
		return amountReply(vars), nil
	}}
	est := NewMaterialEstimator(list, stub, 0, zap.NewNop())

	est.EstimateAll(context.Background(), "Iphone 8")

	queried := stub.materialsQueried()
	if len(queried) != list.Len() {
		t.Fatalf("expected %d queries, got %d", list.Len(), len(queried))
	}
	seen := make(map[string]bool)
	for _, m := range queried {
		if seen[m] {
			t.Errorf("material %s queried twice", m)
		}
		seen[m] = true
	}
	for _, m := range list.IDs() {
		if !seen[m] {
			t.Errorf("material %s never queried", m)
		}
	}
}

func TestEstimateAll_AllQueriesFail(t *testing.T) {
	list := mustList(t, "Cobalt", "Gallium", "Lithium")
	stub := &stubCompleter{fn: func(context.Context, llm.PromptID, map[string]string) (string, error) {
		return "", fmt.Errorf("%w: connection refused", llm.ErrTransport)
	}}
	est := NewMaterialEstimator(list, stub, 0, zap.NewNop())

	got := est.EstimateAll(context.Background(), "Iphone 8")

	if len(got) != list.Len() {
		t.Fatalf("expected %d estimates, got %d", list.Len(), len(got))
	}
	for i, e := range got {
		if e.Valid {
			t.Errorf("slot %d: expected invalid estimate, got %+v", i, e)
		}
		if e.MaterialID != list.At(i) {
			t.Errorf("slot %d: invalid entry lost its material, got %q", i, e.MaterialID)
		}
	}
}

func TestEstimateAll_FailuresAreIsolated(t *testing.T) {
	list := mustList(t, "Cobalt", "Gallium", "Lithium", "Tungsten")
	stub := &stubCompleter{fn: func(_ context.Context, _ llm.PromptID, vars map[string]string) (string, error) {
		switch vars["material"] {
		case "Gallium":
			return "The device contains about 3 grams of gallium.", nil
		case "Tungsten":
			return "", fmt.Errorf("%w: 429", llm.ErrRateLimit)
		}
		return amountReply(vars), nil
	}}
	est := NewMaterialEstimator(list, stub, 0, zap.NewNop())

	got := est.EstimateAll(context.Background(), "Iphone 8")

	want := map[string]bool{"Cobalt": true, "Gallium": false, "Lithium": true, "Tungsten": false}
	for _, e := range got {
		if e.Valid != want[e.MaterialID] {
			t.Errorf("%s: expected valid=%v, got %+v", e.MaterialID, want[e.MaterialID], e)
		}
	}
}

func TestEstimateAll_RunsQueriesConcurrently(t *testing.T) {
	list := mustList(t, "A", "B", "C", "D", "E", "F", "G", "H", "I", "J")
	const delay = 100 * time.Millisecond
	stub := &stubCompleter{fn: func(_ context.Context, _ llm.PromptID, vars map[string]string) (string, error) {
		time.Sleep(delay)
		return amountReply(vars), nil
	}}
	est := NewMaterialEstimator(list, stub, 0, zap.NewNop())

	start := time.Now()
	est.EstimateAll(context.Background(), "Iphone 8")
	elapsed := time.Since(start)

	// Sequential would take 10 * delay.
	if elapsed > 5*delay {
		t.Errorf("expected latency close to one call (%s), took %s", delay, elapsed)
	}
}

func TestEstimateAll_RespectsMaxConcurrency(t *testing.T) {
	list := mustList(t, "A", "B", "C", "D", "E", "F")
	var inFlight, peak atomic.Int32
	stub := &stubCompleter{fn: func(_ context.Context, _ llm.PromptID, vars map[string]string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return amountReply(vars), nil
	}}
	est := NewMaterialEstimator(list, stub, 2, zap.NewNop())

	got := est.EstimateAll(context.Background(), "Iphone 8")

	if peak.Load() > 2 {
		t.Errorf("expected at most 2 queries in flight, saw %d", peak.Load())
	}
	if len(got) != list.Len() {
		t.Errorf("expected %d estimates, got %d", list.Len(), len(got))
	}
}

func TestEstimateAll_CanceledContext(t *testing.T) {
	list := mustList(t, "Cobalt", "Gallium")
	stub := &stubCompleter{fn: func(ctx context.Context, _ llm.PromptID, _ map[string]string) (string, error) {
		return "", fmt.Errorf("%w: %w", llm.ErrTransport, ctx.Err())
	}}
	est := NewMaterialEstimator(list, stub, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := est.EstimateAll(ctx, "Iphone 8")

	for _, e := range got {
		if e.Valid {
			t.Errorf("expected invalid estimate after cancellation, got %+v", e)
		}
	}
}
