package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/relay/pkg/models"
)

func TestProviderForAgent(t *testing.T) {
	tests := []struct {
		agent models.AgentType
		want  Provider
	}{
		{models.AgentClaudeCode, ProviderClaude},
		{models.AgentCodex, ProviderOpenAI},
		{models.AgentGeminiCLI, ProviderGemini},
		{models.AgentMock, ProviderOther},
		{models.AgentType("custom"), ProviderOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProviderForAgent(tt.agent), string(tt.agent))
	}
}

func TestUsageStore(t *testing.T) {
	store := NewUsageStore(setupTestDB(t))
	ctx := context.Background()

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary.Providers, 4)
	assert.Nil(t, summary.LastUpdated)

	task := &models.Task{ID: "T1", Agent: models.AgentCodex, Description: "12345"}
	result := &models.TaskResult{ID: "T1", Summary: "abc", Duration: 1500 * time.Millisecond}
	require.NoError(t, store.RecordTask(ctx, task, result))
	require.NoError(t, store.RecordTask(ctx, task, result))

	summary, err = store.Summary(ctx)
	require.NoError(t, err)
	openai := summary.Providers[ProviderOpenAI]
	assert.Equal(t, int64(2), openai.Tasks)
	assert.Equal(t, int64(10), openai.InputChars)
	assert.Equal(t, int64(6), openai.OutputChars)
	assert.Equal(t, 3*time.Second, openai.Duration)
	assert.Zero(t, summary.Providers[ProviderClaude].Tasks)
	assert.NotNil(t, summary.LastUpdated)

	require.NoError(t, store.Reset(ctx))
	summary, err = store.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Providers[ProviderOpenAI].Tasks)
}
