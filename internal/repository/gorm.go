package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// Save persists a completed run.
func (r *GormRunRepository) Save(ctx context.Context, run *RunRecord) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetByUUID retrieves a run by its UUID.
func (r *GormRunRepository) GetByUUID(ctx context.Context, uuid string) (*RunRecord, error) {
	var run RunRecord

	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %s", uuid)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRecent retrieves the most recent runs, newest first.
func (r *GormRunRepository) ListRecent(ctx context.Context, limit int) ([]*RunRecord, error) {
	var runs []*RunRecord

	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}
