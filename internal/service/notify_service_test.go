package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/ledger"
	"github.com/kursadbilgin/outbound-dispatch/internal/provider"
	"github.com/kursadbilgin/outbound-dispatch/internal/registry"
	"github.com/kursadbilgin/outbound-dispatch/internal/template"
	"go.uber.org/zap"
)

type fakeProviderRepo struct {
	descriptors []domain.ProviderDescriptor
}

func (f *fakeProviderRepo) ListEnabledByKind(_ context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error) {
	out := make([]domain.ProviderDescriptor, 0, len(f.descriptors))
	for _, d := range f.descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeProviderRepo) Save(_ context.Context, _ *domain.ProviderDescriptor) error {
	return nil
}

type fakeBudgetRepo struct {
	mu    sync.Mutex
	state domain.BudgetState
}

func (f *fakeBudgetRepo) GetByScope(_ context.Context, scope string) (*domain.BudgetState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	state.Scope = scope
	return &state, nil
}

func (f *fakeBudgetRepo) ApplyCharge(_ context.Context, _ string, cost int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.SpentToDate += cost
	f.state.CountToday++
	f.state.CountThisMonth++
	return nil
}

type fakeWalletRepo struct{}

func (f *fakeWalletRepo) GetByAccountID(_ context.Context, accountID string) (*domain.Wallet, error) {
	return nil, fmt.Errorf("%w: account %q", domain.ErrNotFound, accountID)
}

func (f *fakeWalletRepo) Credit(_ context.Context, _ string, _ int64) error {
	return nil
}

type fakeTemplateRepo struct {
	templates map[string]domain.MessageTemplate
}

func (f *fakeTemplateRepo) GetByType(_ context.Context, messageType string) (*domain.MessageTemplate, error) {
	tmpl, ok := f.templates[messageType]
	if !ok {
		return nil, fmt.Errorf("%w: template %q", domain.ErrNotFound, messageType)
	}
	return &tmpl, nil
}

func (f *fakeTemplateRepo) Save(_ context.Context, _ *domain.MessageTemplate) error {
	return nil
}

type fakeReserver struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeReserver) Reserve(_ context.Context, kind domain.Kind, reference string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := kind.String() + ":" + reference
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeReserver) Release(_ context.Context, kind domain.Kind, reference string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, kind.String()+":"+reference)
	return nil
}

type fakeRateLimiter struct {
	mu    sync.Mutex
	waits int
}

func (f *fakeRateLimiter) Allow(_ context.Context, _ string) (bool, error) { return true, nil }

func (f *fakeRateLimiter) Wait(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return nil
}

// chargingSink applies budget charges synchronously so tests can observe
// admission decisions after a charge.
type chargingSink struct {
	fakeSink
	ledger *ledger.Ledger
}

func (c *chargingSink) ChargeBudget(scope string, cost int64) {
	c.fakeSink.ChargeBudget(scope, cost)
	_ = c.ledger.Charge(context.Background(), scope, cost)
}

type notifyFixture struct {
	service   *NotifyService
	sink      *chargingSink
	limiter   *fakeRateLimiter
	budgets   *fakeBudgetRepo
	ledger    *ledger.Ledger
	templates *fakeTemplateRepo
}

func newNotifyFixture(t *testing.T, budget domain.BudgetState, senders map[string]*fakeSender, descriptors []domain.ProviderDescriptor) *notifyFixture {
	t.Helper()

	budgets := &fakeBudgetRepo{state: budget}
	led := ledger.New(budgets, &fakeWalletRepo{}, time.Minute)
	reg := registry.New(&fakeProviderRepo{descriptors: descriptors}, time.Minute)
	templates := &fakeTemplateRepo{templates: map[string]domain.MessageTemplate{
		"payout_confirmation": {
			Type:    "payout_confirmation",
			Subject: "Payout to {name}",
			Body:    "Sent {amount} {currency} to {name}.",
		},
	}}
	resolver := template.NewResolver(templates, time.Minute)

	sink := &chargingSink{ledger: led}
	dispatcher, err := NewDispatcher(senderFactory(senders), sink, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	limiter := &fakeRateLimiter{}
	service, err := NewNotifyService(reg, led, resolver, dispatcher, sink, &fakeReserver{}, limiter, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return &notifyFixture{
		service:   service,
		sink:      sink,
		limiter:   limiter,
		budgets:   budgets,
		ledger:    led,
		templates: templates,
	}
}

func acceptingSenders() map[string]*fakeSender {
	return map[string]*fakeSender{
		"mailprime": {name: "mailprime", sendFn: func(_ context.Context, _, subject, _ string) (*provider.Response, error) {
			if subject == "" {
				return nil, errors.New("empty subject")
			}
			return &provider.Response{StatusCode: 200, MessageID: "msg-1"}, nil
		}},
	}
}

func TestNotifyDispatchSuccess(t *testing.T) {
	t.Parallel()

	fixture := newNotifyFixture(t,
		domain.BudgetState{LimitTotal: 1000},
		acceptingSenders(),
		notifyDescriptors(12),
	)

	req := &domain.DispatchRequest{
		Scope:       "notifications:acme",
		Recipient:   "ops@acme.example",
		MessageType: "payout_confirmation",
		Params:      map[string]string{"name": "Akello", "amount": "9000", "currency": "UGX"},
	}
	result, err := fixture.service.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ProviderUsed != "mailprime" || result.Cost != 12 || result.MessageID != "msg-1" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.RequestID == "" {
		t.Error("expected a generated request id")
	}
	if got := fixture.sink.charged("notifications:acme"); got != 12 {
		t.Errorf("expected budget charge of 12, got %d", got)
	}
	if fixture.limiter.waits != 1 {
		t.Errorf("expected one rate limiter wait, got %d", fixture.limiter.waits)
	}
}

func TestNotifyDispatchBudgetExceeded(t *testing.T) {
	t.Parallel()

	saturated := domain.BudgetState{SpentToDate: 1000, LimitTotal: 1000}
	senders := map[string]*fakeSender{
		"mailprime": {name: "mailprime", sendFn: func(context.Context, string, string, string) (*provider.Response, error) {
			t.Error("provider must not be called for a rejected request")
			return nil, nil
		}},
	}
	fixture := newNotifyFixture(t, saturated, senders, notifyDescriptors(12))

	_, err := fixture.service.Dispatch(context.Background(), &domain.DispatchRequest{
		Scope:       "notifications:acme",
		Recipient:   "ops@acme.example",
		MessageType: "payout_confirmation",
	})
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	if len(fixture.sink.recorded()) != 0 {
		t.Error("expected no attempt records for a rejected request")
	}
	if got := fixture.sink.charged("notifications:acme"); got != 0 {
		t.Errorf("expected no budget charge, got %d", got)
	}
}

func TestNotifyDispatchBudgetSaturatesAcrossRequests(t *testing.T) {
	t.Parallel()

	// Limit 100, every provider costs 40: two dispatches fit, the third
	// must be rejected before any provider is called.
	fixture := newNotifyFixture(t,
		domain.BudgetState{LimitTotal: 100},
		acceptingSenders(),
		notifyDescriptors(40),
	)

	for i := 0; i < 2; i++ {
		_, err := fixture.service.Dispatch(context.Background(), &domain.DispatchRequest{
			Scope:       "notifications:acme",
			Recipient:   "ops@acme.example",
			MessageType: "payout_confirmation",
		})
		if err != nil {
			t.Fatalf("dispatch %d: unexpected error: %v", i+1, err)
		}
	}

	_, err := fixture.service.Dispatch(context.Background(), &domain.DispatchRequest{
		Scope:       "notifications:acme",
		Recipient:   "ops@acme.example",
		MessageType: "payout_confirmation",
	})
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded on third dispatch, got %v", err)
	}
	if got := fixture.sink.charged("notifications:acme"); got != 80 {
		t.Errorf("expected total charge of 80, got %d", got)
	}
}

func TestNotifyDispatchDuplicateReference(t *testing.T) {
	t.Parallel()

	fixture := newNotifyFixture(t,
		domain.BudgetState{LimitTotal: 1000},
		acceptingSenders(),
		notifyDescriptors(12),
	)

	ref := "client-ref-1"
	first := &domain.DispatchRequest{
		Scope:           "notifications:acme",
		Recipient:       "ops@acme.example",
		MessageType:     "payout_confirmation",
		ClientReference: &ref,
	}
	if _, err := fixture.service.Dispatch(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &domain.DispatchRequest{
		Scope:           "notifications:acme",
		Recipient:       "ops@acme.example",
		MessageType:     "payout_confirmation",
		ClientReference: &ref,
	}
	_, err := fixture.service.Dispatch(context.Background(), second)
	if !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if got := fixture.sink.charged("notifications:acme"); got != 12 {
		t.Errorf("expected a single charge of 12, got %d", got)
	}
}

func TestNotifyDispatchReferenceRetriableAfterBudgetRejection(t *testing.T) {
	t.Parallel()

	saturated := domain.BudgetState{SpentToDate: 1000, LimitTotal: 1000}
	fixture := newNotifyFixture(t, saturated, acceptingSenders(), notifyDescriptors(12))

	ref := "client-ref-1"
	request := func() *domain.DispatchRequest {
		return &domain.DispatchRequest{
			Scope:           "notifications:acme",
			Recipient:       "ops@acme.example",
			MessageType:     "payout_confirmation",
			ClientReference: &ref,
		}
	}

	_, err := fixture.service.Dispatch(context.Background(), request())
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	// The rejection had no side effect, so the same reference must be
	// re-admitted, not refused as a duplicate.
	_, err = fixture.service.Dispatch(context.Background(), request())
	if errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("retry with the same reference was refused as duplicate: %v", err)
	}
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded on retry, got %v", err)
	}

	fixture.budgets.mu.Lock()
	fixture.budgets.state.LimitTotal = 2000
	fixture.budgets.mu.Unlock()
	fixture.ledger.Invalidate("notifications:acme")

	result, err := fixture.service.Dispatch(context.Background(), request())
	if err != nil {
		t.Fatalf("expected retry to dispatch after the limit was raised, got %v", err)
	}
	if result.ProviderUsed != "mailprime" {
		t.Errorf("ProviderUsed = %q, want mailprime", result.ProviderUsed)
	}

	// And the reference is consumed now that the dispatch went through.
	_, err = fixture.service.Dispatch(context.Background(), request())
	if !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference after a successful dispatch, got %v", err)
	}
}

func TestNotifyDispatchUnknownTemplate(t *testing.T) {
	t.Parallel()

	fixture := newNotifyFixture(t,
		domain.BudgetState{LimitTotal: 1000},
		acceptingSenders(),
		notifyDescriptors(12),
	)

	_, err := fixture.service.Dispatch(context.Background(), &domain.DispatchRequest{
		Scope:       "notifications:acme",
		Recipient:   "ops@acme.example",
		MessageType: "no_such_type",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(fixture.sink.recorded()) != 0 {
		t.Error("expected no attempt records when the template is missing")
	}
}

func TestNotifyDispatchAllProvidersFailNoCharge(t *testing.T) {
	t.Parallel()

	senders := map[string]*fakeSender{
		"mailprime": {name: "mailprime", sendFn: func(context.Context, string, string, string) (*provider.Response, error) {
			return nil, &provider.Error{StatusCode: 500, Message: "upstream error"}
		}},
		"sendway": {name: "sendway", sendFn: func(context.Context, string, string, string) (*provider.Response, error) {
			return nil, &provider.Error{StatusCode: 503, Message: "unavailable"}
		}},
	}
	fixture := newNotifyFixture(t,
		domain.BudgetState{LimitTotal: 1000},
		senders,
		notifyDescriptors(12, 15),
	)

	_, err := fixture.service.Dispatch(context.Background(), &domain.DispatchRequest{
		Scope:       "notifications:acme",
		Recipient:   "ops@acme.example",
		MessageType: "payout_confirmation",
	})
	if !errors.Is(err, domain.ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}

	if got := fixture.sink.charged("notifications:acme"); got != 0 {
		t.Errorf("expected no budget charge on total failure, got %d", got)
	}
	if got := len(fixture.sink.recorded()); got != 2 {
		t.Errorf("expected 2 failed attempt records, got %d", got)
	}
}

func TestNotifyDispatchValidation(t *testing.T) {
	t.Parallel()

	fixture := newNotifyFixture(t,
		domain.BudgetState{LimitTotal: 1000},
		acceptingSenders(),
		notifyDescriptors(12),
	)

	_, err := fixture.service.Dispatch(context.Background(), &domain.DispatchRequest{
		Scope:     "notifications:acme",
		Recipient: "ops@acme.example",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
