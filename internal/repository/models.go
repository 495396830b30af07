package repository

import (
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

// BudgetStateModel is the persistence model for budget_states.
type BudgetStateModel struct {
	Scope          string `gorm:"type:varchar(64);primaryKey"`
	SpentToDate    int64  `gorm:"not null;default:0"`
	CountToday     int    `gorm:"not null;default:0"`
	CountThisMonth int    `gorm:"not null;default:0"`
	LimitTotal     int64  `gorm:"not null;default:0"`
	LimitPerDay    int    `gorm:"not null;default:0"`
	LimitPerMonth  int    `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

func (BudgetStateModel) TableName() string {
	return "budget_states"
}

// WalletModel is the persistence model for wallets.
type WalletModel struct {
	AccountID string `gorm:"type:varchar(64);primaryKey"`
	Balance   int64  `gorm:"not null;default:0"`
	Currency  string `gorm:"type:varchar(8);not null"`
	UpdatedAt time.Time
}

func (WalletModel) TableName() string {
	return "wallets"
}

// ProviderDescriptorModel is the persistence model for provider_descriptors.
type ProviderDescriptorModel struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	Name      string      `gorm:"type:varchar(64);not null"`
	Kind      domain.Kind `gorm:"type:varchar(16);not null"`
	Priority  int         `gorm:"not null;default:0"`
	UnitCost  int64       `gorm:"not null;default:0"`
	Enabled   bool        `gorm:"not null;default:true"`
	Endpoint  string      `gorm:"type:varchar(512);not null"`
	APIKey    string      `gorm:"type:varchar(255)"`
	Sender    string      `gorm:"type:varchar(255)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProviderDescriptorModel) TableName() string {
	return "provider_descriptors"
}

// FeeRuleModel is the persistence model for fee_rules.
type FeeRuleModel struct {
	Operation  string `gorm:"type:varchar(32);primaryKey"`
	Currency   string `gorm:"type:varchar(8);primaryKey"`
	PercentBPS int64  `gorm:"not null;default:0"`
	Flat       int64  `gorm:"not null;default:0"`
	Min        int64  `gorm:"not null;default:0"`
	Max        int64  `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}

func (FeeRuleModel) TableName() string {
	return "fee_rules"
}

// MessageTemplateModel is the persistence model for message_templates.
type MessageTemplateModel struct {
	Type      string `gorm:"type:varchar(64);primaryKey"`
	Subject   string `gorm:"type:varchar(255);not null"`
	Body      string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (MessageTemplateModel) TableName() string {
	return "message_templates"
}

// AttemptRecordModel is the persistence model for dispatch_attempts.
type AttemptRecordModel struct {
	ID                string                `gorm:"type:uuid;primaryKey"`
	RequestID         string                `gorm:"type:uuid;not null"`
	CorrelationID     string                `gorm:"type:varchar(36);not null"`
	Kind              domain.Kind           `gorm:"type:varchar(16);not null"`
	ProviderID        string                `gorm:"type:uuid;not null"`
	ProviderName      string                `gorm:"type:varchar(64);not null"`
	Outcome           domain.AttemptOutcome `gorm:"type:varchar(16);not null"`
	Cost              int64                 `gorm:"not null;default:0"`
	ProviderMessageID *string               `gorm:"type:varchar(255)"`
	StatusCode        *int                  `gorm:"type:int"`
	Error             *string               `gorm:"type:text"`
	CreatedAt         time.Time
}

func (AttemptRecordModel) TableName() string {
	return "dispatch_attempts"
}

// TransactionModel is the persistence model for transactions.
type TransactionModel struct {
	ID              string                   `gorm:"type:uuid;primaryKey"`
	AccountID       string                   `gorm:"type:varchar(64);not null"`
	Phone           string                   `gorm:"type:varchar(32);not null"`
	Amount          int64                    `gorm:"not null"`
	Fee             int64                    `gorm:"not null;default:0"`
	Currency        string                   `gorm:"type:varchar(8);not null"`
	Status          domain.TransactionStatus `gorm:"type:varchar(16);not null"`
	ExternalRef     string                   `gorm:"type:varchar(64);not null"`
	ClientReference *string                  `gorm:"type:varchar(255)"`
	Notes           *string                  `gorm:"type:text"`
	CorrelationID   string                   `gorm:"type:varchar(36);not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (TransactionModel) TableName() string {
	return "transactions"
}

func budgetStateModelToDomain(m *BudgetStateModel) *domain.BudgetState {
	if m == nil {
		return nil
	}

	return &domain.BudgetState{
		Scope:          m.Scope,
		SpentToDate:    m.SpentToDate,
		CountToday:     m.CountToday,
		CountThisMonth: m.CountThisMonth,
		LimitTotal:     m.LimitTotal,
		LimitPerDay:    m.LimitPerDay,
		LimitPerMonth:  m.LimitPerMonth,
		UpdatedAt:      m.UpdatedAt,
	}
}

func walletModelToDomain(m *WalletModel) *domain.Wallet {
	if m == nil {
		return nil
	}

	return &domain.Wallet{
		AccountID: m.AccountID,
		Balance:   m.Balance,
		Currency:  m.Currency,
		UpdatedAt: m.UpdatedAt,
	}
}

func providerModelFromDomain(p *domain.ProviderDescriptor) *ProviderDescriptorModel {
	if p == nil {
		return nil
	}

	return &ProviderDescriptorModel{
		ID:       p.ID,
		Name:     p.Name,
		Kind:     p.Kind,
		Priority: p.Priority,
		UnitCost: p.UnitCost,
		Enabled:  p.Enabled,
		Endpoint: p.Endpoint,
		APIKey:   p.APIKey,
		Sender:   p.Sender,
	}
}

func providerModelToDomain(m *ProviderDescriptorModel) *domain.ProviderDescriptor {
	if m == nil {
		return nil
	}

	return &domain.ProviderDescriptor{
		ID:       m.ID,
		Name:     m.Name,
		Kind:     m.Kind,
		Priority: m.Priority,
		UnitCost: m.UnitCost,
		Enabled:  m.Enabled,
		Endpoint: m.Endpoint,
		APIKey:   m.APIKey,
		Sender:   m.Sender,
	}
}

func feeRuleModelToDomain(m *FeeRuleModel) *domain.FeeRule {
	if m == nil {
		return nil
	}

	return &domain.FeeRule{
		Operation:  m.Operation,
		Currency:   m.Currency,
		PercentBPS: m.PercentBPS,
		Flat:       m.Flat,
		Min:        m.Min,
		Max:        m.Max,
		UpdatedAt:  m.UpdatedAt,
	}
}

func templateModelToDomain(m *MessageTemplateModel) *domain.MessageTemplate {
	if m == nil {
		return nil
	}

	return &domain.MessageTemplate{
		Type:      m.Type,
		Subject:   m.Subject,
		Body:      m.Body,
		UpdatedAt: m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.AttemptRecord) *AttemptRecordModel {
	if a == nil {
		return nil
	}

	return &AttemptRecordModel{
		ID:                a.ID,
		RequestID:         a.RequestID,
		CorrelationID:     a.CorrelationID,
		Kind:              a.Kind,
		ProviderID:        a.ProviderID,
		ProviderName:      a.ProviderName,
		Outcome:           a.Outcome,
		Cost:              a.Cost,
		ProviderMessageID: a.ProviderMessageID,
		StatusCode:        a.StatusCode,
		Error:             a.Error,
		CreatedAt:         a.CreatedAt,
	}
}

func attemptModelToDomain(m *AttemptRecordModel) *domain.AttemptRecord {
	if m == nil {
		return nil
	}

	return &domain.AttemptRecord{
		ID:                m.ID,
		RequestID:         m.RequestID,
		CorrelationID:     m.CorrelationID,
		Kind:              m.Kind,
		ProviderID:        m.ProviderID,
		ProviderName:      m.ProviderName,
		Outcome:           m.Outcome,
		Cost:              m.Cost,
		ProviderMessageID: m.ProviderMessageID,
		StatusCode:        m.StatusCode,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
	}
}

func transactionModelFromDomain(t *domain.Transaction) *TransactionModel {
	if t == nil {
		return nil
	}

	return &TransactionModel{
		ID:              t.ID,
		AccountID:       t.AccountID,
		Phone:           t.Phone,
		Amount:          t.Amount,
		Fee:             t.Fee,
		Currency:        t.Currency,
		Status:          t.Status,
		ExternalRef:     t.ExternalRef,
		ClientReference: t.ClientReference,
		Notes:           t.Notes,
		CorrelationID:   t.CorrelationID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func transactionModelToDomain(m *TransactionModel) *domain.Transaction {
	if m == nil {
		return nil
	}

	return &domain.Transaction{
		ID:              m.ID,
		AccountID:       m.AccountID,
		Phone:           m.Phone,
		Amount:          m.Amount,
		Fee:             m.Fee,
		Currency:        m.Currency,
		Status:          m.Status,
		ExternalRef:     m.ExternalRef,
		ClientReference: m.ClientReference,
		Notes:           m.Notes,
		CorrelationID:   m.CorrelationID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
