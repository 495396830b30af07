package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"github.com/kursadbilgin/outbound-dispatch/internal/provider"
	"go.uber.org/zap"
)

const defaultAttemptTimeout = 10 * time.Second

// AuditSink receives attempt rows and budget charges without blocking the
// dispatch path.
type AuditSink interface {
	RecordAttempt(attempt domain.AttemptRecord)
	ChargeBudget(scope string, cost int64)
}

// DispatchOutcome describes a successful delivery: the provider that
// accepted the message and how many providers were tried to get there.
type DispatchOutcome struct {
	Provider  domain.ProviderDescriptor
	MessageID string
	Tried     int
}

// Dispatcher walks an ordered provider list and delivers through the first
// one that accepts. Each attempt runs under its own timeout and leaves an
// attempt record behind, success or not.
type Dispatcher struct {
	factory provider.SenderFactory
	sink    AuditSink
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewDispatcher(
	factory provider.SenderFactory,
	sink AuditSink,
	timeout time.Duration,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if factory == nil {
		factory = provider.NewSender
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

	return &Dispatcher{
		factory: factory,
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Dispatch tries each descriptor in order and stops at the first accepted
// delivery. When every provider fails the aggregate error wraps
// ErrAllProvidersFailed around the last provider error.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	req domain.DispatchRequest,
	descriptors []domain.ProviderDescriptor,
	subject string,
	body string,
) (*DispatchOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: no enabled providers for kind %s",
			domain.ErrAllProvidersFailed, req.Kind)
	}

	var lastErr error
	for i, descriptor := range descriptors {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		resp, sendErr := d.attempt(ctx, descriptor, req.Recipient, subject, body)
		d.recordAttempt(req, descriptor, resp, sendErr)

		if sendErr == nil {
			tried := i + 1
			d.metrics.ObserveFallbackDepth(req.Kind.String(), tried)
			if tried > 1 {
				d.logger.Info("dispatch succeeded after fallback",
					zap.String("requestId", req.ID),
					zap.String("provider", descriptor.Name),
					zap.Int("tried", tried),
				)
			}

			messageID := ""
			if resp != nil {
				messageID = strings.TrimSpace(resp.MessageID)
			}
			return &DispatchOutcome{
				Provider:  descriptor,
				MessageID: messageID,
				Tried:     tried,
			}, nil
		}

		lastErr = sendErr
		d.logger.Warn("provider attempt failed",
			zap.String("requestId", req.ID),
			zap.String("provider", descriptor.Name),
			zap.Error(sendErr),
		)
	}

	d.metrics.ObserveFallbackDepth(req.Kind.String(), len(descriptors))
	return nil, fmt.Errorf("%w: %v", domain.ErrAllProvidersFailed, lastErr)
}

func (d *Dispatcher) attempt(
	ctx context.Context,
	descriptor domain.ProviderDescriptor,
	to string,
	subject string,
	body string,
) (*provider.Response, error) {
	sender, err := d.factory(descriptor, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to build sender for %s: %w", descriptor.Name, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.now()
	resp, err := sender.Send(attemptCtx, to, subject, body)
	d.metrics.ObserveProviderAttemptDuration(descriptor.Name, d.now().Sub(start))
	return resp, err
}

func (d *Dispatcher) recordAttempt(
	req domain.DispatchRequest,
	descriptor domain.ProviderDescriptor,
	resp *provider.Response,
	sendErr error,
) {
	attempt := domain.AttemptRecord{
		ID:            uuid.NewString(),
		RequestID:     req.ID,
		CorrelationID: req.CorrelationID,
		Kind:          req.Kind,
		ProviderID:    descriptor.ID,
		ProviderName:  descriptor.Name,
		Outcome:       domain.AttemptSent,
		Cost:          descriptor.UnitCost,
		CreatedAt:     d.now().UTC(),
	}

	if resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			attempt.StatusCode = &value
		}
		if messageID := strings.TrimSpace(resp.MessageID); messageID != "" {
			attempt.ProviderMessageID = &messageID
		}
	}

	if sendErr != nil {
		attempt.Outcome = domain.AttemptFailed
		attempt.Cost = 0
		value := sendErr.Error()
		attempt.Error = &value

		var providerErr *provider.Error
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && attempt.StatusCode == nil {
			code := providerErr.StatusCode
			attempt.StatusCode = &code
		}
	}

	d.sink.RecordAttempt(attempt)
}
