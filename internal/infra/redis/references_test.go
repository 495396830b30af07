package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

func TestReferenceStoreReserve(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewReferenceStore(rdb, time.Hour)
	if err != nil {
		t.Fatalf("NewReferenceStore() error = %v", err)
	}

	claimed, err := store.Reserve(context.Background(), domain.KindWithdraw, "wd-ref-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !claimed {
		t.Fatal("first reservation should succeed")
	}

	claimed, err = store.Reserve(context.Background(), domain.KindWithdraw, "wd-ref-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if claimed {
		t.Fatal("second reservation of the same reference should fail")
	}
}

func TestReferenceStoreReserveKindsAreIndependent(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewReferenceStore(rdb, time.Hour)
	if err != nil {
		t.Fatalf("NewReferenceStore() error = %v", err)
	}

	claimed, err := store.Reserve(context.Background(), domain.KindNotify, "ref-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !claimed {
		t.Fatal("notify reservation should succeed")
	}

	claimed, err = store.Reserve(context.Background(), domain.KindWithdraw, "ref-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !claimed {
		t.Fatal("the same reference under another kind should be independent")
	}
}

func TestReferenceStoreReleaseFreesClaim(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewReferenceStore(rdb, time.Hour)
	if err != nil {
		t.Fatalf("NewReferenceStore() error = %v", err)
	}

	claimed, err := store.Reserve(context.Background(), domain.KindWithdraw, "wd-ref-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !claimed {
		t.Fatal("first reservation should succeed")
	}

	if err := store.Release(context.Background(), domain.KindWithdraw, "wd-ref-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	claimed, err = store.Reserve(context.Background(), domain.KindWithdraw, "wd-ref-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !claimed {
		t.Fatal("reservation after release should succeed")
	}
}

func TestReferenceStoreReleaseValidation(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewReferenceStore(rdb, time.Hour)
	if err != nil {
		t.Fatalf("NewReferenceStore() error = %v", err)
	}

	if err := store.Release(context.Background(), domain.KindNotify, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank reference, got %v", err)
	}
	if err := store.Release(context.Background(), domain.Kind("bogus"), "ref-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for invalid kind, got %v", err)
	}
}

func TestReferenceStoreReserveValidation(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewReferenceStore(rdb, time.Hour)
	if err != nil {
		t.Fatalf("NewReferenceStore() error = %v", err)
	}

	if _, err := store.Reserve(context.Background(), domain.KindNotify, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank reference, got %v", err)
	}
	if _, err := store.Reserve(context.Background(), domain.Kind("bogus"), "ref-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for invalid kind, got %v", err)
	}
}
