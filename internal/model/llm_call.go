package model

import "time"

// LLMCall tracks each call to an LLM provider for cost monitoring.
// It deliberately holds no device name and no answer: the service keeps
// call accounting, not query history.
type LLMCall struct {
	ID         int64     `db:"id" json:"id"`
	Prompt     string    `db:"prompt" json:"prompt"`
	Provider   string    `db:"provider" json:"provider"`
	Model      string    `db:"model" json:"model"`
	Success    bool      `db:"success" json:"success"`
	ErrorKind  *string   `db:"error_kind" json:"error_kind,omitempty"`
	DurationMs *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CallStats aggregates LLM calls per prompt and provider.
type CallStats struct {
	Prompt        string  `db:"prompt" json:"prompt"`
	Provider      string  `db:"provider" json:"provider"`
	Total         int64   `db:"total" json:"total"`
	Succeeded     int64   `db:"succeeded" json:"succeeded"`
	AvgDurationMs float64 `db:"avg_duration_ms" json:"avg_duration_ms"`
}
