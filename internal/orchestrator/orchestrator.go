package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"
)

// Runner drives one claimed task to completion.
type Runner interface {
	Run(ctx context.Context, t task.TranscriptionTask) error
}

// Orchestrator runs the bounded worker pool. Each worker dequeues one
// job at a time, wins it with an atomic claim, and drives the pipeline
// to a terminal task state. Jobs that lose the claim or carry a stale
// generation are acknowledged as no-ops; the claim is what makes a
// redelivered job harmless.
type Orchestrator struct {
	queue    queue.Queue
	tasks    repository.TaskRepository
	pipeline Runner
	log      *logger.Logger
	workers  int
}

func New(q queue.Queue, tasks repository.TaskRepository, p Runner, log *logger.Logger, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 2
	}
	return &Orchestrator{
		queue:    q,
		tasks:    tasks,
		pipeline: p,
		log:      log,
		workers:  workers,
	}
}

// Run blocks until ctx is cancelled and every worker has drained its
// in-flight job.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Infof("starting %d transcription workers", o.workers)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			o.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
	o.log.Infof("all transcription workers stopped")
}

func (o *Orchestrator) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := o.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			o.log.Errorf("worker %d: dequeue: %v", id, err)
			continue
		}

		o.handle(ctx, id, job)
	}
}

// handle resolves a dequeued job to exactly one terminal task state.
// Once claimed, the task always ends completed or failed, even on panic
// boundaries handled upstream.
func (o *Orchestrator) handle(ctx context.Context, workerID int, job queue.Job) {
	t, err := o.tasks.GetByID(ctx, job.TaskID)
	if err != nil {
		if errors.Is(err, maxmeet_errors.ErrNotFound) {
			// Recording was deleted after enqueue; the cascade took the
			// task row with it.
			o.log.Infof("worker %d: task %s no longer exists, dropping job", workerID, job.TaskID)
			return
		}
		o.log.Errorf("worker %d: load task %s: %v", workerID, job.TaskID, err)
		return
	}
	if t.Status != task.StatusPending {
		o.log.Infof("worker %d: task %s already %s, dropping job", workerID, t.ID, t.Status)
		return
	}

	won, err := o.tasks.Claim(ctx, t.ID)
	if err != nil {
		o.log.Errorf("worker %d: claim task %s: %v", workerID, t.ID, err)
		return
	}
	if !won {
		o.log.Infof("worker %d: task %s claimed elsewhere, dropping job", workerID, t.ID)
		return
	}

	o.log.Infof("worker %d: claimed task %s for recording %s (generation %d)",
		workerID, t.ID, t.RecordingID, t.Generation)

	runErr := o.pipeline.Run(ctx, t)
	switch {
	case runErr == nil:
		if err := o.tasks.MarkCompleted(ctx, t.ID, ""); err != nil {
			o.log.Errorf("worker %d: mark task %s completed: %v", workerID, t.ID, err)
		}
	case errors.Is(runErr, maxmeet_errors.ErrCancelled):
		if err := o.tasks.MarkCompleted(ctx, t.ID, "recording removed before completion"); err != nil &&
			!errors.Is(err, maxmeet_errors.ErrNotFound) {
			o.log.Errorf("worker %d: mark cancelled task %s: %v", workerID, t.ID, err)
		}
	default:
		o.log.Errorf("worker %d: task %s failed: %v", workerID, t.ID, runErr)
		if err := o.tasks.MarkFailed(ctx, t.ID, runErr.Error()); err != nil {
			o.log.Errorf("worker %d: mark task %s failed: %v", workerID, t.ID, err)
		}
	}
}
