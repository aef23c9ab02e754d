// Go testing basics:
// - Test files must end with _test.go (they're excluded from production builds)
// - Test functions must start with Test and take *testing.T
// - t.Fatal stops the test immediately; t.Error continues to find more failures
package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fleveque/crm-service/internal/model"
)

// setupTestRepo creates a temporary SQLite database for testing.
// t.TempDir() is removed automatically after the test.
func setupTestRepo(t *testing.T) LLMCallRepository {
	t.Helper() // marks this as a helper so error line numbers point to the caller

	db, err := NewDatabase(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewLLMCallRepository(db)
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func TestLLMCallRepository_CreateAndCount(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	call := &model.LLMCall{
		Prompt:     "material_amount",
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		Success:    true,
		DurationMs: int64Ptr(420),
	}
	if err := repo.Create(ctx, call); err != nil {
		t.Fatalf("creating call: %v", err)
	}

	if call.ID == 0 {
		t.Error("expected call ID to be set after create")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 call, got %d", count)
	}
}

func TestLLMCallRepository_Stats(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	calls := []*model.LLMCall{
		{Prompt: "material_amount", Provider: "openai", Model: "m", Success: true, DurationMs: int64Ptr(100)},
		{Prompt: "material_amount", Provider: "openai", Model: "m", Success: false, ErrorKind: strPtr("timeout"), DurationMs: int64Ptr(300)},
		{Prompt: "co2", Provider: "anthropic", Model: "c", Success: true, DurationMs: int64Ptr(50)},
	}
	for _, c := range calls {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("creating call: %v", err)
		}
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(stats), stats)
	}

	// Ordered by prompt: "co2" sorts before "material_amount".
	if stats[0].Prompt != "co2" || stats[0].Total != 1 || stats[0].Succeeded != 1 {
		t.Errorf("unexpected co2 stats %+v", stats[0])
	}
	mat := stats[1]
	if mat.Total != 2 || mat.Succeeded != 1 {
		t.Errorf("unexpected material stats %+v", mat)
	}
	if mat.AvgDurationMs != 200 {
		t.Errorf("expected avg 200ms, got %v", mat.AvgDurationMs)
	}
}

func TestLLMCallRepository_StatsEmpty(t *testing.T) {
	repo := setupTestRepo(t)

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no stats, got %+v", stats)
	}
}
