package repository

import (
	"context"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.AttemptRecord) error
	ListByRequestID(ctx context.Context, requestID string) ([]domain.AttemptRecord, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.AttemptRecord) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) ListByRequestID(ctx context.Context, requestID string) ([]domain.AttemptRecord, error) {
	var models []AttemptRecordModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.AttemptRecord, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}
