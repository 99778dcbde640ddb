package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Er1one/telegram-bot-template/internal/domain"
)

const maxListLimit = 100

type BroadcastRepository interface {
	Create(ctx context.Context, run *domain.BroadcastRun) error
	GetByID(ctx context.Context, id string) (*domain.BroadcastRun, error)
	ListRecent(ctx context.Context, limit int) ([]domain.BroadcastRun, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	Finish(ctx context.Context, run *domain.BroadcastRun) error
}

type GormBroadcastRepo struct {
	db *gorm.DB
}

func NewGormBroadcastRepo(db *gorm.DB) *GormBroadcastRepo {
	return &GormBroadcastRepo{db: db}
}

func (r *GormBroadcastRepo) Create(ctx context.Context, run *domain.BroadcastRun) error {
	model := runModelFromDomain(run)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if run != nil {
		*run = *runModelToDomain(model)
	}
	return nil
}

func (r *GormBroadcastRepo) GetByID(ctx context.Context, id string) (*domain.BroadcastRun, error) {
	var model BroadcastRunModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return runModelToDomain(&model), nil
}

func (r *GormBroadcastRepo) ListRecent(ctx context.Context, limit int) ([]domain.BroadcastRun, error) {
	if limit < 1 || limit > maxListLimit {
		limit = maxListLimit
	}

	var models []BroadcastRunModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	runs := make([]domain.BroadcastRun, 0, len(models))
	for i := range models {
		runs = append(runs, *runModelToDomain(&models[i]))
	}
	return runs, nil
}

// MarkRunning claims a queued run. A run that is already running or finished
// yields domain.ErrConflict so a redelivered job is not dispatched twice.
func (r *GormBroadcastRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&BroadcastRunModel{}).
		Where("id = ? AND status = ?", id, domain.RunStatusQueued).
		Updates(map[string]any{
			"status":     domain.RunStatusRunning,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormBroadcastRepo) Finish(ctx context.Context, run *domain.BroadcastRun) error {
	if run == nil {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&BroadcastRunModel{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":      run.Status,
			"expected":    run.Expected,
			"total":       run.Total,
			"success":     run.Success,
			"failed":      run.Failed,
			"blocked":     run.Blocked,
			"error":       run.Error,
			"finished_at": run.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
