package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/relay/pkg/models"
)

// Provider buckets usage by model vendor.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderOther  Provider = "other"
)

// Providers lists every bucket in display order.
var Providers = []Provider{ProviderClaude, ProviderOpenAI, ProviderGemini, ProviderOther}

// ProviderForAgent maps an agent tag to its usage bucket.
func ProviderForAgent(a models.AgentType) Provider {
	switch a {
	case models.AgentClaudeCode:
		return ProviderClaude
	case models.AgentCodex:
		return ProviderOpenAI
	case models.AgentGeminiCLI:
		return ProviderGemini
	default:
		return ProviderOther
	}
}

// UsageStats are the running totals of one provider.
type UsageStats struct {
	Tasks       int64         `json:"tasks"`
	InputChars  int64         `json:"inputChars"`
	OutputChars int64         `json:"outputChars"`
	Duration    time.Duration `json:"duration"`
}

// UsageSummary holds totals for every provider.
type UsageSummary struct {
	Providers   map[Provider]UsageStats `json:"providers"`
	LastUpdated *time.Time              `json:"lastUpdated"`
}

// UsageStore accumulates per-provider task usage.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a store backed by db.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordTask adds one task to its provider bucket. Input size is the
// task description; output size is the result summary.
func (s *UsageStore) RecordTask(ctx context.Context, task *models.Task, result *models.TaskResult) error {
	provider := ProviderForAgent(task.Agent)
	_, err := s.db.Exec(ctx, `
		INSERT INTO usage (provider, tasks, input_chars, output_chars, duration_ms, updated_at)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			tasks = tasks + 1,
			input_chars = input_chars + excluded.input_chars,
			output_chars = output_chars + excluded.output_chars,
			duration_ms = duration_ms + excluded.duration_ms,
			updated_at = excluded.updated_at
	`, string(provider), len(task.Description), len(result.Summary), result.Duration.Milliseconds(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Summary returns totals for every provider, zero-filled.
func (s *UsageStore) Summary(ctx context.Context) (*UsageSummary, error) {
	summary := &UsageSummary{Providers: make(map[Provider]UsageStats, len(Providers))}
	for _, p := range Providers {
		summary.Providers[p] = UsageStats{}
	}

	rows, err := s.db.Query(ctx, `
		SELECT provider, tasks, input_chars, output_chars, duration_ms, updated_at FROM usage
	`)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p       Provider
			st      UsageStats
			ms      int64
			updated string
		)
		if err := rows.Scan(&p, &st.Tasks, &st.InputChars, &st.OutputChars, &ms, &updated); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		summary.Providers[p] = st

		if t, err := parseTime(updated); err == nil {
			if summary.LastUpdated == nil || t.After(*summary.LastUpdated) {
				summary.LastUpdated = &t
			}
		}
	}
	return summary, rows.Err()
}

// Reset clears all totals.
func (s *UsageStore) Reset(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM usage`); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	return nil
}
