package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/pkg/models"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Now().UTC()

	require.NoError(t, db.CreateRun(ctx, &Run{ID: "plan-1", Prompt: "build", Status: RunRunning, StartedAt: start}, []string{"T1", "T2"}))
	require.NoError(t, db.StartRunTask(ctx, "plan-1", "T1", models.AgentMock, start))
	require.NoError(t, db.FinishRunTask(ctx, "plan-1", "T1", models.TaskStatusFailed, start.Add(time.Second)))
	require.NoError(t, db.FinishRun(ctx, "plan-1", RunFailed, "", []string{"boom"}, start.Add(2*time.Second)))

	run, err := db.GetRun(ctx, "plan-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, []string{"boom"}, run.Errors)
	assert.Equal(t, "build", run.Prompt)
	require.NotNil(t, run.FinishedAt)

	tasks, err := db.ListRunTasks(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "T1", tasks[0].TaskID)
	assert.Equal(t, models.TaskStatusFailed, tasks[0].Status)
	assert.Equal(t, models.AgentMock, tasks[0].Agent)
	assert.Equal(t, models.TaskStatusPending, tasks[1].Status)
	assert.Nil(t, tasks[1].StartedAt)
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.CreateRun(ctx, &Run{ID: id, Status: RunCompleted, StartedAt: base.Add(time.Duration(i) * time.Minute)}, nil))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Empty(t, runs[0].Errors)

	all, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetRun_Missing(t *testing.T) {
	db := setupTestDB(t)
	run, err := db.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRecorder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	bus := orchestrator.NewEventBus(nil)
	rec := NewRecorder(db, "ship it", "/ws")
	dispose := rec.Attach(bus)
	defer dispose()

	bus.Emit(orchestrator.NewEvent(orchestrator.EventPlanCreated, orchestrator.PlanCreated{PlanID: "plan-9", TaskIDs: []string{"T1"}}))
	bus.Emit(orchestrator.NewEvent(orchestrator.EventTaskStarted, orchestrator.TaskStarted{TaskID: "T1", Agent: models.AgentCodex}))
	bus.Emit(orchestrator.NewEvent(orchestrator.EventAgentStream, orchestrator.AgentStream{TaskID: "T1", Text: "hi"}))
	bus.Emit(orchestrator.NewEvent(orchestrator.EventTaskCompleted, orchestrator.TaskCompleted{TaskID: "T1", Status: models.TaskStatusCompleted}))
	bus.Emit(orchestrator.NewEvent(orchestrator.EventRunCompleted, orchestrator.RunCompleted{PlanID: "plan-9", Summary: "T1: done"}))

	assert.Equal(t, "plan-9", rec.RunID())

	run, err := db.GetRun(ctx, "plan-9")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, "T1: done", run.Summary)
	assert.Equal(t, "ship it", run.Prompt)
	assert.Equal(t, "/ws", run.Workspace)

	tasks, err := db.ListRunTasks(ctx, "plan-9")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusCompleted, tasks[0].Status)
	assert.Equal(t, models.AgentCodex, tasks[0].Agent)
	assert.NotNil(t, tasks[0].FinishedAt)
}
