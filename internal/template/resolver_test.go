package template

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

type fakeTemplateRepo struct {
	getFn  func(ctx context.Context, messageType string) (*domain.MessageTemplate, error)
	saveFn func(ctx context.Context, t *domain.MessageTemplate) error
	gets   int
}

func (f *fakeTemplateRepo) GetByType(ctx context.Context, messageType string) (*domain.MessageTemplate, error) {
	f.gets++
	if f.getFn != nil {
		return f.getFn(ctx, messageType)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTemplateRepo) Save(ctx context.Context, t *domain.MessageTemplate) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, t)
	}
	return nil
}

func TestResolveRendersAndCaches(t *testing.T) {
	t.Parallel()

	repo := &fakeTemplateRepo{
		getFn: func(ctx context.Context, messageType string) (*domain.MessageTemplate, error) {
			return &domain.MessageTemplate{
				Type:    messageType,
				Subject: "Withdrawal of {amount} {currency}",
				Body:    "Your withdrawal of {amount} {currency} is on its way.",
			}, nil
		},
	}

	r := NewResolver(repo, time.Minute)

	for i := 0; i < 3; i++ {
		subject, body, err := r.Resolve(context.Background(), "withdrawal_initiated", map[string]string{
			"amount":   "9000",
			"currency": "UGX",
		})
		if err != nil {
			t.Fatalf("Resolve() unexpected error = %v", err)
		}
		if subject != "Withdrawal of 9000 UGX" {
			t.Fatalf("subject = %q", subject)
		}
		if body != "Your withdrawal of 9000 UGX is on its way." {
			t.Fatalf("body = %q", body)
		}
	}

	if repo.gets != 1 {
		t.Fatalf("store reads = %d, want 1", repo.gets)
	}
}

func TestResolveUnknownType(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeTemplateRepo{}, time.Minute)

	_, _, err := r.Resolve(context.Background(), "no_such_type", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestSaveInvalidatesCachedTemplate(t *testing.T) {
	t.Parallel()

	subject := "before"
	repo := &fakeTemplateRepo{
		getFn: func(ctx context.Context, messageType string) (*domain.MessageTemplate, error) {
			return &domain.MessageTemplate{Type: messageType, Subject: subject, Body: "b"}, nil
		},
	}

	r := NewResolver(repo, time.Hour)
	ctx := context.Background()

	got, _, err := r.Resolve(ctx, "welcome", nil)
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}
	if got != "before" {
		t.Fatalf("subject = %q, want %q", got, "before")
	}

	subject = "after"
	if err := r.Save(ctx, &domain.MessageTemplate{Type: "welcome", Subject: subject, Body: "b"}); err != nil {
		t.Fatalf("Save() unexpected error = %v", err)
	}

	got, _, err = r.Resolve(ctx, "welcome", nil)
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}
	if got != "after" {
		t.Fatalf("subject after save = %q, want %q", got, "after")
	}
}
