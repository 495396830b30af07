package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultReferenceTTL = 24 * time.Hour

// ReferenceStore claims client references with SET NX so a retried call
// carrying the same reference is rejected. For withdrawals the unique
// index on the transactions table backstops this claim.
type ReferenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewReferenceStore(client *goredis.Client, ttl time.Duration) (*ReferenceStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultReferenceTTL
	}

	return &ReferenceStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Reserve claims the reference for the given kind. It reports false when
// the reference was already claimed.
func (s *ReferenceStore) Reserve(ctx context.Context, kind domain.Kind, reference string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("reference store is not initialized")
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return false, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}
	if !kind.IsValid() {
		return false, fmt.Errorf("%w: invalid kind %q", domain.ErrValidation, kind)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	claimed, err := s.client.SetNX(ctx, referenceKey(kind, reference), 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve reference: %w", err)
	}

	return claimed, nil
}

// Release frees a claim taken by Reserve. Callers release when the
// operation failed before any external side effect, so a retry with the
// same reference can run.
func (s *ReferenceStore) Release(ctx context.Context, kind domain.Kind, reference string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("reference store is not initialized")
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", domain.ErrValidation, kind)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.client.Del(ctx, referenceKey(kind, reference)).Err(); err != nil {
		return fmt.Errorf("failed to release reference: %w", err)
	}
	return nil
}

func referenceKey(kind domain.Kind, reference string) string {
	return fmt.Sprintf("dispatchref:%s:%s", strings.ToLower(kind.String()), reference)
}
