package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"insightpilot/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrJobNotProcessing is returned when finishing or failing a job that has
// already reached a terminal state.
var ErrJobNotProcessing = errors.New("import job is not processing")

func (s *Store) StartJob(ctx context.Context, filename string) (models.ImportJob, error) {
	job := models.ImportJob{
		ID:       uuid.New().String(),
		Filename: filename,
		Status:   models.JobStatusProcessing,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return models.ImportJob{}, fmt.Errorf("start import job: %w", err)
	}
	return job, nil
}

func (s *Store) FinishJob(ctx context.Context, id string, rowCount int) error {
	return s.closeJob(ctx, id, map[string]interface{}{
		"status":      models.JobStatusDone,
		"row_count":   rowCount,
		"finished_at": time.Now(),
	})
}

func (s *Store) FailJob(ctx context.Context, id string, errText string) error {
	return s.closeJob(ctx, id, map[string]interface{}{
		"status":        models.JobStatusFailed,
		"error_message": errText,
		"finished_at":   time.Now(),
	})
}

func (s *Store) closeJob(ctx context.Context, id string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update import job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("import job %s: %w", id, ErrJobNotProcessing)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (models.ImportJob, error) {
	var job models.ImportJob
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ImportJob{}, fmt.Errorf("import job %s: %w", id, ErrNotFound)
		}
		return models.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first together with the total count.
func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]models.ImportJob, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.ImportJob{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count import jobs: %w", err)
	}
	var jobs []models.ImportJob
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset).Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list import jobs: %w", err)
	}
	return jobs, total, nil
}
