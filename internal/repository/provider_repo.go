package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProviderRepository interface {
	ListEnabledByKind(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error)
	Save(ctx context.Context, p *domain.ProviderDescriptor) error
}

type FeeRuleRepository interface {
	Get(ctx context.Context, operation, currency string) (*domain.FeeRule, error)
}

type TemplateRepository interface {
	GetByType(ctx context.Context, messageType string) (*domain.MessageTemplate, error)
	Save(ctx context.Context, t *domain.MessageTemplate) error
}

type GormProviderRepo struct {
	db *gorm.DB
}

func NewGormProviderRepo(db *gorm.DB) *GormProviderRepo {
	return &GormProviderRepo{db: db}
}

func (r *GormProviderRepo) ListEnabledByKind(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error) {
	var models []ProviderDescriptorModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND enabled = ?", kind, true).
		Order("priority ASC, name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	descriptors := make([]domain.ProviderDescriptor, 0, len(models))
	for i := range models {
		descriptors = append(descriptors, *providerModelToDomain(&models[i]))
	}

	return descriptors, nil
}

func (r *GormProviderRepo) Save(ctx context.Context, p *domain.ProviderDescriptor) error {
	if err := p.Validate(); err != nil {
		return err
	}

	model := providerModelFromDomain(p)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

type GormFeeRuleRepo struct {
	db *gorm.DB
}

func NewGormFeeRuleRepo(db *gorm.DB) *GormFeeRuleRepo {
	return &GormFeeRuleRepo{db: db}
}

func (r *GormFeeRuleRepo) Get(ctx context.Context, operation, currency string) (*domain.FeeRule, error) {
	var model FeeRuleModel
	err := r.db.WithContext(ctx).
		First(&model, "operation = ? AND currency = ?", operation, currency).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: fee rule %s/%s", domain.ErrNotFound, operation, currency)
	}
	if err != nil {
		return nil, err
	}
	return feeRuleModelToDomain(&model), nil
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) GetByType(ctx context.Context, messageType string) (*domain.MessageTemplate, error) {
	var model MessageTemplateModel
	err := r.db.WithContext(ctx).First(&model, "type = ?", messageType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: template %q", domain.ErrNotFound, messageType)
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) Save(ctx context.Context, t *domain.MessageTemplate) error {
	if t == nil {
		return fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	model := &MessageTemplateModel{
		Type:    t.Type,
		Subject: t.Subject,
		Body:    t.Body,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}},
			UpdateAll: true,
		}).
		Create(model).Error
}
