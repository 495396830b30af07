package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/ledger"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"github.com/kursadbilgin/outbound-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/outbound-dispatch/internal/registry"
	"github.com/kursadbilgin/outbound-dispatch/internal/template"
	"go.uber.org/zap"
)

// ReferenceReserver claims a client reference so a retried call with the
// same reference is rejected instead of dispatched twice. Release frees a
// claim when the operation failed before any external side effect, so the
// caller can retry with the same reference.
type ReferenceReserver interface {
	Reserve(ctx context.Context, kind domain.Kind, reference string) (bool, error)
	Release(ctx context.Context, kind domain.Kind, reference string) error
}

// NotifyResult reports the accepted delivery back to the caller.
type NotifyResult struct {
	RequestID    string
	ProviderUsed string
	Cost         int64
	MessageID    string
}

// NotifyService admits a notification against its budget scope, resolves
// the message template and runs the provider fallback loop. The budget
// charge and the attempt rows land asynchronously through the audit sink.
type NotifyService struct {
	registry    *registry.Registry
	ledger      *ledger.Ledger
	templates   *template.Resolver
	dispatcher  *Dispatcher
	sink        AuditSink
	references  ReferenceReserver
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewNotifyService(
	reg *registry.Registry,
	led *ledger.Ledger,
	templates *template.Resolver,
	dispatcher *Dispatcher,
	sink AuditSink,
	references ReferenceReserver,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*NotifyService, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("audit sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotifyService{
		registry:    reg,
		ledger:      led,
		templates:   templates,
		dispatcher:  dispatcher,
		sink:        sink,
		references:  references,
		rateLimiter: rateLimiter,
		logger:      logger,
	}, nil
}

func (s *NotifyService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.dispatcher.SetMetrics(metrics)
}

func (s *NotifyService) Dispatch(ctx context.Context, req *domain.DispatchRequest) (*NotifyResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := prepareRequest(req, domain.KindNotify); err != nil {
		return nil, err
	}

	if err := reserveClientReference(ctx, s.references, req); err != nil {
		return nil, err
	}

	descriptors, err := s.registry.ListByKind(ctx, domain.KindNotify)
	if err != nil {
		s.releaseClientReference(ctx, req)
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}
	if len(descriptors) == 0 {
		s.releaseClientReference(ctx, req)
		return nil, fmt.Errorf("%w: no enabled providers for kind %s",
			domain.ErrAllProvidersFailed, domain.KindNotify)
	}

	// Admission is checked against the priciest candidate so a fallback to
	// a more expensive provider can never push the scope past its limit.
	admissionCost := registry.MaxUnitCost(descriptors)
	if err := s.ledger.AdmitBudget(ctx, req.Scope, admissionCost); err != nil {
		if errors.Is(err, domain.ErrBudgetExceeded) {
			s.metrics.IncCapRejected(req.Kind.String(), "budget")
		}
		// Nothing happened yet; the same reference must be retriable once
		// the budget allows.
		s.releaseClientReference(ctx, req)
		return nil, err
	}

	subject, body, err := s.templates.Resolve(ctx, req.MessageType, req.Params)
	if err != nil {
		s.releaseClientReference(ctx, req)
		return nil, err
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, strings.ToLower(req.Kind.String())); err != nil {
			s.releaseClientReference(ctx, req)
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	outcome, err := s.dispatcher.Dispatch(ctx, *req, descriptors, subject, body)
	if err != nil {
		s.metrics.IncDispatch(req.Kind.String(), "failed")
		return nil, err
	}

	s.sink.ChargeBudget(req.Scope, outcome.Provider.UnitCost)
	s.metrics.IncDispatch(req.Kind.String(), "sent")

	return &NotifyResult{
		RequestID:    req.ID,
		ProviderUsed: outcome.Provider.Name,
		Cost:         outcome.Provider.UnitCost,
		MessageID:    outcome.MessageID,
	}, nil
}

func (s *NotifyService) releaseClientReference(ctx context.Context, req *domain.DispatchRequest) {
	releaseClientReference(ctx, s.references, req, s.logger)
}

func reserveClientReference(ctx context.Context, references ReferenceReserver, req *domain.DispatchRequest) error {
	if references == nil || req.ClientReference == nil {
		return nil
	}

	ok, err := references.Reserve(ctx, req.Kind, *req.ClientReference)
	if err != nil {
		return fmt.Errorf("failed to reserve client reference: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateReference, *req.ClientReference)
	}
	return nil
}

// releaseClientReference frees a claim taken earlier in the same call.
// Only invoked on paths where no external side effect happened, so a
// retry with the same reference is safe. Best-effort: the TTL reclaims
// the key if the release itself fails.
func releaseClientReference(ctx context.Context, references ReferenceReserver, req *domain.DispatchRequest, logger *zap.Logger) {
	if references == nil || req.ClientReference == nil {
		return
	}

	if err := references.Release(ctx, req.Kind, *req.ClientReference); err != nil {
		logger.Warn("failed to release client reference",
			zap.String("reference", *req.ClientReference),
			zap.String("kind", req.Kind.String()),
			zap.Error(err),
		)
	}
}

func prepareRequest(req *domain.DispatchRequest, kind domain.Kind) error {
	if req == nil {
		return fmt.Errorf("%w: dispatch request is required", domain.ErrValidation)
	}

	req.Kind = kind
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CorrelationID = strings.TrimSpace(req.CorrelationID)
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	req.Scope = strings.TrimSpace(req.Scope)
	req.Recipient = strings.TrimSpace(req.Recipient)
	req.MessageType = strings.TrimSpace(req.MessageType)
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.ClientReference = normalizeOptionalString(req.ClientReference)

	return req.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
