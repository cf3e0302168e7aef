package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job is one enqueued pipeline run. Generation carries the recording's
// retry count at enqueue time so workers can recognize stale tasks.
type Job struct {
	TaskID      uuid.UUID `json:"task_id"`
	RecordingID uuid.UUID `json:"recording_id"`
	Generation  int       `json:"generation"`
}

// ErrEmpty is returned by Dequeue when no job arrived within the poll
// window. Callers loop.
var ErrEmpty = errors.New("queue empty")

// Queue is the durable transport between the upload process and the
// worker pool.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to the poll window for the next job.
	Dequeue(ctx context.Context) (Job, error)
}

const defaultKey = "stt:jobs"

// RedisQueue stores jobs in a redis list. LPUSH/BRPOP gives FIFO order
// and survives process restarts on either side.
type RedisQueue struct {
	client     *redis.Client
	key        string
	popTimeout time.Duration
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: defaultKey, popTimeout: 5 * time.Second}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	res, err := q.client.BRPop(ctx, q.popTimeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrEmpty
		}
		return Job{}, err
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return Job{}, fmt.Errorf("unexpected brpop reply of %d elements", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}
