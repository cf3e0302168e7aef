package repository

import (
	"context"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresProcessingLogRepository struct {
	db *gorm.DB
}

func NewProcessingLogRepository(db *gorm.DB) ProcessingLogRepository {
	return &PostgresProcessingLogRepository{db: db}
}

// Append inserts a log entry. Entries are never updated or deleted; the
// table exists purely for audit and diagnosis.
func (r *PostgresProcessingLogRepository) Append(ctx context.Context, entry *recording.ProcessingLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *PostgresProcessingLogRepository) ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]recording.ProcessingLog, error) {
	var entries []recording.ProcessingLog
	err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
