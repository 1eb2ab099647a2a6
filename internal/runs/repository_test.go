package runs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/groverq/internal/runs"
	testingpkg "github.com/aristath/groverq/internal/testing"
)

func newTestRepository(t *testing.T) *runs.Repository {
	t.Helper()
	db := testingpkg.NewMemoryDB(t, "runs")
	return runs.NewRepository(db.Conn(), zerolog.Nop())
}

func createRun(t *testing.T, repo *runs.Repository, id string, createdAt time.Time) *runs.Run {
	t.Helper()
	run := &runs.Run{
		ID:        id,
		Status:    runs.StatusQueued,
		Request:   testingpkg.NewChainRequest(3, 5),
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), run))
	return run
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createRun(t, repo, "run-1", created)

	run, err := repo.Get(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, runs.StatusQueued, run.Status)
	assert.Equal(t, created, run.CreatedAt)
	assert.Equal(t, testingpkg.NewChainRequest(3, 5), run.Request)
	assert.Nil(t, run.Summary)
	assert.Nil(t, run.StartedAt)
	assert.Nil(t, run.FinishedAt)
	assert.Empty(t, run.Error)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, runs.ErrNotFound)
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	createRun(t, repo, "run-1", time.Now())

	err := repo.Create(context.Background(), &runs.Run{
		ID:        "run-1",
		Status:    runs.StatusQueued,
		Request:   testingpkg.NewChainRequest(3, 5),
		CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestRepository_Lifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createRun(t, repo, "run-1", time.Now())

	started := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	finished := started.Add(3 * time.Second)

	require.NoError(t, repo.MarkRunning(ctx, "run-1", started))
	// A running run cannot be started twice.
	assert.ErrorIs(t, repo.MarkRunning(ctx, "run-1", started), runs.ErrNotFound)

	summary := testingpkg.NewSummaryFixture()
	history := testingpkg.NewHistoryFixture()
	artifacts := testingpkg.NewArtifactsFixture()
	require.NoError(t, repo.Complete(ctx, "run-1", finished, summary, history, artifacts))

	run, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, runs.StatusCompleted, run.Status)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, started, *run.StartedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	require.NotNil(t, run.Summary)
	assert.Equal(t, summary, run.Summary)

	episodes, err := repo.Episodes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, episodes, 3)
	for i, ep := range episodes {
		assert.Equal(t, i, ep.Episode)
		assert.Equal(t, history.Steps[i], ep.Steps)
		assert.Equal(t, history.GoalReached[i], ep.GoalReached)
		assert.Equal(t, history.Trajectories[i], ep.Trajectory)
		assert.Equal(t, len(history.Trajectories[i]), ep.Transitions)
		assert.Equal(t, history.Returns[i], ep.Return)
		assert.Equal(t, history.MaxQDeltas[i], ep.MaxQDelta)
	}

	got, err := repo.Artifacts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, artifacts, got)

	// Completed runs are terminal.
	assert.ErrorIs(t, repo.Fail(ctx, "run-1", finished, "late"), runs.ErrNotFound)
}

func TestRepository_CompleteRequiresRunning(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createRun(t, repo, "run-1", time.Now())

	err := repo.Complete(ctx, "run-1", time.Now(),
		testingpkg.NewSummaryFixture(), testingpkg.NewHistoryFixture(), testingpkg.NewArtifactsFixture())
	require.ErrorIs(t, err, runs.ErrNotFound)

	// Nothing from the rolled back transaction is visible.
	episodes, err := repo.Episodes(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, episodes)
	_, err = repo.Artifacts(ctx, "run-1")
	assert.ErrorIs(t, err, runs.ErrNotFound)
}

func TestRepository_Fail(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createRun(t, repo, "queued", time.Now())
	createRun(t, repo, "running", time.Now())
	require.NoError(t, repo.MarkRunning(ctx, "running", time.Now()))

	require.NoError(t, repo.Fail(ctx, "queued", time.Now(), "queue full"))
	require.NoError(t, repo.Fail(ctx, "running", time.Now(), "backend down"))
	assert.ErrorIs(t, repo.Fail(ctx, "missing", time.Now(), "x"), runs.ErrNotFound)

	run, err := repo.Get(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFailed, run.Status)
	assert.Equal(t, "backend down", run.Error)
	assert.NotNil(t, run.FinishedAt)
}

func TestRepository_FailInterrupted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		createRun(t, repo, fmt.Sprintf("run-%d", i), time.Now())
	}
	require.NoError(t, repo.MarkRunning(ctx, "run-0", time.Now()))
	require.NoError(t, repo.MarkRunning(ctx, "run-1", time.Now()))

	n, err := repo.FailInterrupted(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[runs.Status]int{runs.StatusFailed: 2, runs.StatusQueued: 1}, counts)

	n, err = repo.FailInterrupted(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_ListAndQueued(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		createRun(t, repo, fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	require.NoError(t, repo.MarkRunning(ctx, "run-1", base))

	all, err := repo.List(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "run-3", all[0].ID)
	assert.Equal(t, "run-0", all[3].ID)

	limited, err := repo.List(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	running, err := repo.List(ctx, 10, runs.StatusRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "run-1", running[0].ID)

	queued, err := repo.QueuedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-0", "run-2", "run-3"}, queued)
}

func TestRepository_EpisodesOfUnknownRun(t *testing.T) {
	repo := newTestRepository(t)

	episodes, err := repo.Episodes(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, episodes)
}

func TestArtifactsCodec(t *testing.T) {
	artifacts := testingpkg.NewArtifactsFixture()

	data, err := runs.EncodeArtifacts(artifacts)
	require.NoError(t, err)

	decoded, err := runs.DecodeArtifacts(data)
	require.NoError(t, err)
	assert.Equal(t, artifacts, decoded)

	_, err = runs.DecodeArtifacts([]byte{0xc1})
	assert.Error(t, err)
}

func TestStatusValid(t *testing.T) {
	for _, s := range []runs.Status{runs.StatusQueued, runs.StatusRunning, runs.StatusCompleted, runs.StatusFailed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, runs.Status("paused").Valid())
}
