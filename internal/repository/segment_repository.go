package repository

import (
	"context"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresSegmentRepository struct {
	db *gorm.DB
}

func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &PostgresSegmentRepository{db: db}
}

func (r *PostgresSegmentRepository) CreateBatch(ctx context.Context, segments []recording.TranscriptSegment) error {
	if len(segments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&segments).Error
}

func (r *PostgresSegmentRepository) ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]recording.TranscriptSegment, error) {
	var segments []recording.TranscriptSegment
	err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("start_seconds ASC").
		Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *PostgresSegmentRepository) DeleteByRecording(ctx context.Context, recordingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&recording.TranscriptSegment{}, "recording_id = ?", recordingID).Error
}

func (r *PostgresSegmentRepository) CountByRecording(ctx context.Context, recordingID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&recording.TranscriptSegment{}).
		Where("recording_id = ?", recordingID).
		Count(&count).Error
	return count, err
}
