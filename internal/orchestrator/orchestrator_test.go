package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/pkg/database"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanQueue feeds jobs from a channel and reports ErrEmpty once drained
// so worker loops keep polling.
type chanQueue struct {
	jobs chan queue.Job
}

func newChanQueue(jobs ...queue.Job) *chanQueue {
	q := &chanQueue{jobs: make(chan queue.Job, len(jobs)+8)}
	for _, j := range jobs {
		q.jobs <- j
	}
	return q
}

func (q *chanQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.jobs <- job
	return nil
}

func (q *chanQueue) Dequeue(ctx context.Context) (queue.Job, error) {
	select {
	case <-ctx.Done():
		return queue.Job{}, ctx.Err()
	case job := <-q.jobs:
		return job, nil
	case <-time.After(10 * time.Millisecond):
		return queue.Job{}, queue.ErrEmpty
	}
}

// countingRunner records how many times each task was run.
type countingRunner struct {
	mu   sync.Mutex
	runs map[uuid.UUID]int
	err  error
	done chan uuid.UUID
}

func newCountingRunner(err error) *countingRunner {
	return &countingRunner{runs: make(map[uuid.UUID]int), err: err, done: make(chan uuid.UUID, 16)}
}

func (r *countingRunner) Run(_ context.Context, t task.TranscriptionTask) error {
	r.mu.Lock()
	r.runs[t.ID]++
	r.mu.Unlock()
	r.done <- t.ID
	return r.err
}

func (r *countingRunner) count(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}

func newTaskRepo(t *testing.T) repository.TaskRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	db, err := database.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return repository.NewTaskRepository(db)
}

func waitFor(t *testing.T, done <-chan uuid.UUID) uuid.UUID {
	t.Helper()
	select {
	case id := <-done:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a run")
		return uuid.Nil
	}
}

func TestDuplicateJobRunsOnce(t *testing.T) {
	tasks := newTaskRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tsk := task.TranscriptionTask{ID: uuid.New(), RecordingID: uuid.New(), Status: task.StatusPending}
	require.NoError(t, tasks.Create(ctx, &tsk))

	job := queue.Job{TaskID: tsk.ID, RecordingID: tsk.RecordingID}
	// The same job delivered three times, split across four workers.
	q := newChanQueue(job, job, job)
	runner := newCountingRunner(nil)

	orch := New(q, tasks, runner, logger.NewNop(), 4)
	go orch.Run(ctx)

	waitFor(t, runner.done)
	// Give the duplicate deliveries time to be dropped.
	time.Sleep(100 * time.Millisecond)
	cancel()

	assert.Equal(t, 1, runner.count(tsk.ID))

	got, err := tasks.GetByID(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestFailedRunMarksTaskFailed(t *testing.T) {
	tasks := newTaskRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tsk := task.TranscriptionTask{ID: uuid.New(), RecordingID: uuid.New(), Status: task.StatusPending}
	require.NoError(t, tasks.Create(ctx, &tsk))

	q := newChanQueue(queue.Job{TaskID: tsk.ID, RecordingID: tsk.RecordingID})
	runner := newCountingRunner(fmt.Errorf("%w: model blew up", maxmeet_errors.ErrTranscriptionModel))

	orch := New(q, tasks, runner, logger.NewNop(), 1)
	go orch.Run(ctx)

	waitFor(t, runner.done)
	time.Sleep(50 * time.Millisecond)
	cancel()

	got, err := tasks.GetByID(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "model blew up")
}

func TestCancelledRunCompletesQuietly(t *testing.T) {
	tasks := newTaskRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tsk := task.TranscriptionTask{ID: uuid.New(), RecordingID: uuid.New(), Status: task.StatusPending}
	require.NoError(t, tasks.Create(ctx, &tsk))

	q := newChanQueue(queue.Job{TaskID: tsk.ID, RecordingID: tsk.RecordingID})
	runner := newCountingRunner(maxmeet_errors.ErrCancelled)

	orch := New(q, tasks, runner, logger.NewNop(), 1)
	go orch.Run(ctx)

	waitFor(t, runner.done)
	time.Sleep(50 * time.Millisecond)
	cancel()

	got, err := tasks.GetByID(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
}

func TestJobForMissingTaskIsDropped(t *testing.T) {
	tasks := newTaskRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newChanQueue(queue.Job{TaskID: uuid.New(), RecordingID: uuid.New()})
	runner := newCountingRunner(nil)

	orch := New(q, tasks, runner, logger.NewNop(), 1)
	go orch.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.runs)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	tasks := newTaskRepo(t)
	ctx, cancel := context.WithCancel(context.Background())

	q := newChanQueue()
	orch := New(q, tasks, newCountingRunner(nil), logger.NewNop(), 3)

	stopped := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not drain after cancel")
	}
}
