package repository

import (
	"context"
	"errors"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresTaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &PostgresTaskRepository{db: db}
}

func (r *PostgresTaskRepository) Create(ctx context.Context, t *task.TranscriptionTask) error {
	res := r.db.WithContext(ctx).Create(t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return maxmeet_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (task.TranscriptionTask, error) {
	var t task.TranscriptionTask
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.TranscriptionTask{}, maxmeet_errors.ErrNotFound
		}
		return task.TranscriptionTask{}, err
	}
	return t, nil
}

func (r *PostgresTaskRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&task.TranscriptionTask{}).
		Where("id = ? AND status = ?", id, task.StatusPending).
		Updates(map[string]interface{}{
			"status":     task.StatusRunning,
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresTaskRepository) MarkCompleted(ctx context.Context, id uuid.UUID, message string) error {
	return r.finish(ctx, id, task.StatusCompleted, message)
}

func (r *PostgresTaskRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.finish(ctx, id, task.StatusFailed, message)
}

func (r *PostgresTaskRepository) finish(ctx context.Context, id uuid.UUID, status task.Status, message string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&task.TranscriptionTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": message,
			"completed_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return maxmeet_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresTaskRepository) DeleteByRecording(ctx context.Context, recordingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&task.TranscriptionTask{}, "recording_id = ?", recordingID).Error
}
