package repository

import (
	"context"
	"errors"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresRecordingRepository struct {
	db *gorm.DB
}

func NewRecordingRepository(db *gorm.DB) RecordingRepository {
	return &PostgresRecordingRepository{db: db}
}

func (r *PostgresRecordingRepository) Create(ctx context.Context, rec *recording.Recording) error {
	res := r.db.WithContext(ctx).Create(rec)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return maxmeet_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresRecordingRepository) GetByID(ctx context.Context, id uuid.UUID) (recording.Recording, error) {
	var rec recording.Recording
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recording.Recording{}, maxmeet_errors.ErrNotFound
		}
		return recording.Recording{}, err
	}
	return rec, nil
}

func (r *PostgresRecordingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to recording.Status) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&recording.Recording{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresRecordingRepository) TransitionForRetry(ctx context.Context, id uuid.UUID, maxRetries int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&recording.Recording{}).
		Where("id = ? AND status = ? AND retry_count < ?", id, recording.StatusFailed, maxRetries).
		Updates(map[string]interface{}{
			"status":        recording.StatusProcessing,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_type":    "",
			"error_message": "",
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresRecordingRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorType, message string) error {
	res := r.db.WithContext(ctx).
		Model(&recording.Recording{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        recording.StatusFailed,
			"error_type":    errorType,
			"error_message": message,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return maxmeet_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresRecordingRepository) SetCompleted(ctx context.Context, id uuid.UUID, durationSeconds int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&recording.Recording{}).
		Where("id = ? AND status = ?", id, recording.StatusProcessing).
		Updates(map[string]interface{}{
			"status":           recording.StatusCompleted,
			"duration_seconds": durationSeconds,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresRecordingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&recording.TranscriptSegment{}, "recording_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&task.TranscriptionTask{}, "recording_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&recording.Recording{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return maxmeet_errors.ErrNotFound
		}
		return nil
	})
}

func (r *PostgresRecordingRepository) GetStaleUploading(ctx context.Context, olderThan time.Duration) ([]recording.Recording, error) {
	var recs []recording.Recording
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", recording.StatusUploading, cutoff).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
