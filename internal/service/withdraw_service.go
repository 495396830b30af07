package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/fee"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"github.com/kursadbilgin/outbound-dispatch/internal/provider"
	"github.com/kursadbilgin/outbound-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"go.uber.org/zap"
)

const withdrawalOperation = "withdrawal"

// WithdrawResult reports the transaction the withdrawal was recorded under
// and the state it reached synchronously. PROCESSING settles later through
// the gateway callback or the settlement queue.
type WithdrawResult struct {
	TransactionID string
	Status        domain.TransactionStatus
	Fee           int64
}

// WithdrawService admits a withdrawal against the wallet balance, initiates
// the disbursement at the mobile-money gateway and records the outcome.
// The balance check, the debit and the PENDING transaction row happen in
// one database transaction; a rejected initiation refunds the debit.
type WithdrawService struct {
	transactions repository.TransactionRepository
	fees         *fee.Engine
	gateway      provider.Gateway
	sink         AuditSink
	references   ReferenceReserver
	rateLimiter  ratelimit.RateLimiter
	timeout      time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewWithdrawService(
	transactions repository.TransactionRepository,
	fees *fee.Engine,
	gateway provider.Gateway,
	sink AuditSink,
	references ReferenceReserver,
	rateLimiter ratelimit.RateLimiter,
	timeout time.Duration,
	logger *zap.Logger,
) (*WithdrawService, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transaction repository is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("audit sink is required")
	}
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WithdrawService{
		transactions: transactions,
		fees:         fees,
		gateway:      gateway,
		sink:         sink,
		references:   references,
		rateLimiter:  rateLimiter,
		timeout:      timeout,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (s *WithdrawService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *WithdrawService) Dispatch(ctx context.Context, req *domain.DispatchRequest) (*WithdrawResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := prepareRequest(req, domain.KindWithdraw); err != nil {
		return nil, err
	}

	if err := reserveClientReference(ctx, s.references, req); err != nil {
		return nil, err
	}

	withdrawalFee, err := s.fees.FeeFor(ctx, withdrawalOperation, req.Currency, req.Amount)
	if err != nil {
		releaseClientReference(ctx, s.references, req, s.logger)
		return nil, err
	}

	transaction := &domain.Transaction{
		ID:              req.ID,
		AccountID:       req.AccountID,
		Phone:           req.Phone,
		Amount:          req.Amount,
		Fee:             withdrawalFee,
		Currency:        req.Currency,
		Status:          domain.TxPending,
		ClientReference: req.ClientReference,
		CorrelationID:   req.CorrelationID,
	}

	if err := s.transactions.AdmitWithdrawal(ctx, transaction); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			s.metrics.IncCapRejected(req.Kind.String(), "balance")
		}
		// The debit never happened; free the reference so the caller can
		// retry once the balance allows.
		releaseClientReference(ctx, s.references, req, s.logger)
		return nil, err
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, strings.ToLower(req.Kind.String())); err != nil {
			s.failWithRefund(ctx, transaction, "rate limiter wait failed: "+err.Error())
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	initiation, initErr := s.initiate(ctx, transaction)
	s.recordAttempt(transaction, initiation, initErr)

	if initErr != nil {
		note := "gateway initiation failed: " + initErr.Error()
		if errors.Is(initErr, domain.ErrGatewayRejected) {
			note = "gateway rejected: " + initErr.Error()
		}
		s.failWithRefund(ctx, transaction, note)
		s.metrics.IncDispatch(req.Kind.String(), "failed")
		return nil, initErr
	}

	if err := s.transactions.MarkProcessing(ctx, transaction.ID, initiation.GatewayRef); err != nil {
		// The debit already happened and the gateway accepted; surface the
		// inconsistency instead of guessing at a refund.
		s.logger.Error("failed to mark transaction processing",
			zap.String("transactionId", transaction.ID),
			zap.String("gatewayRef", initiation.GatewayRef),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncDispatch(req.Kind.String(), "accepted")
	return &WithdrawResult{
		TransactionID: transaction.ID,
		Status:        domain.TxProcessing,
		Fee:           withdrawalFee,
	}, nil
}

func (s *WithdrawService) initiate(ctx context.Context, t *domain.Transaction) (*provider.Initiation, error) {
	initiateCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	initiation, err := s.gateway.Initiate(initiateCtx, t.Phone, t.Amount, t.Currency, t.ID)
	s.metrics.ObserveProviderAttemptDuration("mobile_money_gateway", s.now().Sub(start))
	return initiation, err
}

func (s *WithdrawService) failWithRefund(ctx context.Context, t *domain.Transaction, note string) {
	if err := s.transactions.MarkFailed(ctx, t.ID, note); err != nil {
		s.logger.Error("failed to fail transaction with refund",
			zap.String("transactionId", t.ID),
			zap.Error(err),
		)
	}
}

func (s *WithdrawService) recordAttempt(t *domain.Transaction, initiation *provider.Initiation, initErr error) {
	attempt := domain.AttemptRecord{
		ID:            uuid.NewString(),
		RequestID:     t.ID,
		CorrelationID: t.CorrelationID,
		Kind:          domain.KindWithdraw,
		ProviderName:  "mobile_money_gateway",
		Outcome:       domain.AttemptSent,
		Cost:          t.Fee,
		CreatedAt:     s.now().UTC(),
	}

	if initiation != nil && strings.TrimSpace(initiation.GatewayRef) != "" {
		ref := initiation.GatewayRef
		attempt.ProviderMessageID = &ref
	}

	if initErr != nil {
		attempt.Outcome = domain.AttemptFailed
		attempt.Cost = 0
		value := initErr.Error()
		attempt.Error = &value

		var providerErr *provider.Error
		if errors.As(initErr, &providerErr) && providerErr.StatusCode > 0 {
			code := providerErr.StatusCode
			attempt.StatusCode = &code
		}
	}

	s.sink.RecordAttempt(attempt)
}
