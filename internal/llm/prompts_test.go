package llm

import (
	"strings"
	"testing"
)

func TestPrompts_RenderMaterialAmount(t *testing.T) {
	prompts, err := NewPrompts(nil)
	if err != nil {
		t.Fatalf("compiling prompts: %v", err)
	}

	out, err := prompts.Render(PromptMaterialAmount, map[string]string{
		"material": "Cobalt",
		"device":   "Iphone 8",
	})
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}

	if !strings.Contains(out, "Cobalt") || !strings.Contains(out, "Iphone 8") {
		t.Errorf("expected variables in prompt, got %q", out)
	}
	if !strings.Contains(out, `"amount"`) {
		t.Errorf("expected JSON shape in prompt, got %q", out)
	}
}

func TestPrompts_MissingVariable(t *testing.T) {
	prompts, err := NewPrompts(nil)
	if err != nil {
		t.Fatalf("compiling prompts: %v", err)
	}

	if _, err := prompts.Render(PromptMaterialAmount, map[string]string{"device": "Iphone 8"}); err == nil {
		t.Error("expected error when material variable is missing")
	}
}

func TestPrompts_Override(t *testing.T) {
	prompts, err := NewPrompts(map[string]string{"co2": "CO2 of {{.device}} as JSON"})
	if err != nil {
		t.Fatalf("compiling prompts: %v", err)
	}

	out, err := prompts.Render(PromptCO2, map[string]string{"device": "Pixel 7"})
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}
	if out != "CO2 of Pixel 7 as JSON" {
		t.Errorf("unexpected override output %q", out)
	}
}

func TestPrompts_UnknownOverride(t *testing.T) {
	if _, err := NewPrompts(map[string]string{"weather": "x"}); err == nil {
		t.Error("expected error for unknown prompt id")
	}
}
