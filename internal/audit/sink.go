// Package audit persists attempt records and budget charges off the
// caller's critical path. Jobs go through a bounded in-memory queue
// drained by a dedicated writer; the dispatch loop never awaits
// durability.
package audit

import (
	"context"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// AttemptWriter persists one attempt record.
type AttemptWriter interface {
	Create(ctx context.Context, a *domain.AttemptRecord) error
}

// BudgetCharger applies one budget counter increment.
type BudgetCharger interface {
	Charge(ctx context.Context, scope string, cost int64) error
}

type jobKind int

const (
	jobAttempt jobKind = iota
	jobBudgetCharge
)

type job struct {
	kind    jobKind
	attempt domain.AttemptRecord
	scope   string
	cost    int64
}

// Sink is the asynchronous audit/reconciliation writer. Attempt rows are
// best-effort; a lost budget charge silently inflates the remaining budget,
// so drops and write failures of charges are surfaced in monitoring.
type Sink struct {
	attempts     AttemptWriter
	budgets      BudgetCharger
	jobs         chan job
	logger       *zap.Logger
	metrics      *observability.Metrics
	writeTimeout time.Duration
}

func NewSink(
	attempts AttemptWriter,
	budgets BudgetCharger,
	queueSize int,
	logger *zap.Logger,
) *Sink {
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sink{
		attempts:     attempts,
		budgets:      budgets,
		jobs:         make(chan job, queueSize),
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
	}
}

func (s *Sink) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// RecordAttempt enqueues one attempt row without blocking. On overflow the
// row is dropped and counted; audit completeness is secondary to caller
// latency.
func (s *Sink) RecordAttempt(attempt domain.AttemptRecord) {
	s.enqueue(job{kind: jobAttempt, attempt: attempt})
}

// ChargeBudget enqueues one counter increment without blocking. An
// overflow here is a correctness defect, not just lost telemetry.
func (s *Sink) ChargeBudget(scope string, cost int64) {
	s.enqueue(job{kind: jobBudgetCharge, scope: scope, cost: cost})
}

func (s *Sink) enqueue(j job) {
	select {
	case s.jobs <- j:
		s.metrics.SetAuditQueueDepth(len(s.jobs))
	default:
		switch j.kind {
		case jobAttempt:
			s.metrics.IncAuditDropped("attempt")
			s.logger.Warn("audit queue full, attempt record dropped",
				zap.String("requestId", j.attempt.RequestID),
				zap.String("provider", j.attempt.ProviderName),
			)
		case jobBudgetCharge:
			s.metrics.IncAuditDropped("budget_charge")
			s.metrics.IncReconcileFailure()
			s.logger.Error("audit queue full, budget charge dropped",
				zap.String("scope", j.scope),
				zap.Int64("cost", j.cost),
			)
		}
	}
}

// Start drains the queue until context cancellation, then flushes whatever
// is already enqueued before returning.
func (s *Sink) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return nil
		case j := <-s.jobs:
			s.process(j)
			s.metrics.SetAuditQueueDepth(len(s.jobs))
		}
	}
}

func (s *Sink) flush() {
	for {
		select {
		case j := <-s.jobs:
			s.process(j)
		default:
			s.metrics.SetAuditQueueDepth(0)
			return
		}
	}
}

func (s *Sink) process(j job) {
	// Writes run detached from the caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	switch j.kind {
	case jobAttempt:
		if err := s.attempts.Create(ctx, &j.attempt); err != nil {
			s.logger.Warn("failed to persist attempt record",
				zap.String("requestId", j.attempt.RequestID),
				zap.String("provider", j.attempt.ProviderName),
				zap.Error(err),
			)
		}
	case jobBudgetCharge:
		if err := s.budgets.Charge(ctx, j.scope, j.cost); err != nil {
			s.metrics.IncReconcileFailure()
			s.logger.Error("failed to apply budget charge",
				zap.String("scope", j.scope),
				zap.Int64("cost", j.cost),
				zap.Error(err),
			)
		}
	}
}
