package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"go.uber.org/zap"
)

// StatusService applies gateway settlements to transactions. Settlements
// arrive from the webhook handler and the settlement queue consumer, both
// keyed by the gateway reference, and may arrive more than once. A repeat
// of an already-applied settlement is a no-op; a settlement that would
// move a transaction out of a different terminal state is rejected and
// counted as an anomaly.
type StatusService struct {
	transactions repository.TransactionRepository
	logger       *zap.Logger
	metrics      *observability.Metrics
}

func NewStatusService(
	transactions repository.TransactionRepository,
	logger *zap.Logger,
) (*StatusService, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transaction repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StatusService{
		transactions: transactions,
		logger:       logger,
	}, nil
}

func (s *StatusService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *StatusService) GetStatus(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, fmt.Errorf("%w: transaction id is required", domain.ErrValidation)
	}
	return s.transactions.GetByID(ctx, strings.TrimSpace(transactionID))
}

// ApplySettlement moves the transaction identified by the gateway
// reference into COMPLETED or FAILED. A failed settlement refunds the
// admission-time debit exactly once, guarded by the status transition
// taking effect.
func (s *StatusService) ApplySettlement(
	ctx context.Context,
	externalRef string,
	status domain.TransactionStatus,
	note string,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return fmt.Errorf("%w: external reference is required", domain.ErrValidation)
	}
	if status != domain.TxCompleted && status != domain.TxFailed {
		return fmt.Errorf("%w: settlement status must be %s or %s (got %q)",
			domain.ErrValidation, domain.TxCompleted, domain.TxFailed, status)
	}

	var (
		applied bool
		err     error
	)
	switch status {
	case domain.TxCompleted:
		applied, err = s.transactions.CompleteByExternalRef(ctx, externalRef)
	case domain.TxFailed:
		applied, err = s.transactions.FailByExternalRefWithRefund(ctx, externalRef, note)
	}
	if err != nil {
		return err
	}

	if applied {
		s.metrics.IncSettlement(status.String())
		s.logger.Info("settlement applied",
			zap.String("externalRef", externalRef),
			zap.String("status", status.String()),
		)
		return nil
	}

	// Nothing was in PROCESSING for this reference. Distinguish the
	// harmless repeat from an out-of-order or contradictory event.
	current, err := s.transactions.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return err
	}

	if current.Status == status {
		s.logger.Debug("settlement repeated, already applied",
			zap.String("externalRef", externalRef),
			zap.String("status", status.String()),
		)
		return nil
	}

	s.metrics.IncAnomalousTransition()
	s.logger.Warn("anomalous settlement rejected",
		zap.String("externalRef", externalRef),
		zap.String("transactionId", current.ID),
		zap.String("currentStatus", current.Status.String()),
		zap.String("requestedStatus", status.String()),
	)
	return fmt.Errorf("%w: %s -> %s on transaction %s",
		domain.ErrAnomalousTransition, current.Status, status, current.ID)
}
