package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

type fakeProviderRepo struct {
	listFn func(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error)
	saveFn func(ctx context.Context, p *domain.ProviderDescriptor) error
	lists  int
}

func (f *fakeProviderRepo) ListEnabledByKind(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error) {
	f.lists++
	if f.listFn != nil {
		return f.listFn(ctx, kind)
	}
	return nil, nil
}

func (f *fakeProviderRepo) Save(ctx context.Context, p *domain.ProviderDescriptor) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, p)
	}
	return nil
}

func descriptors() []domain.ProviderDescriptor {
	return []domain.ProviderDescriptor{
		{ID: "p1", Name: "mailrelay", Kind: domain.KindNotify, Priority: 1, UnitCost: 40, Enabled: true, Endpoint: "https://a"},
		{ID: "p2", Name: "sendmara", Kind: domain.KindNotify, Priority: 2, UnitCost: 35, Enabled: true, Endpoint: "https://b"},
		{ID: "p3", Name: "postbird", Kind: domain.KindNotify, Priority: 3, UnitCost: 30, Enabled: true, Endpoint: "https://c"},
	}
}

func TestListByKindCachesStoreReads(t *testing.T) {
	t.Parallel()

	repo := &fakeProviderRepo{
		listFn: func(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error) {
			return descriptors(), nil
		},
	}

	r := New(repo, time.Minute)

	for i := 0; i < 4; i++ {
		got, err := r.ListByKind(context.Background(), domain.KindNotify)
		if err != nil {
			t.Fatalf("ListByKind() unexpected error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("ListByKind() returned %d descriptors, want 3", len(got))
		}
	}

	if repo.lists != 1 {
		t.Fatalf("store reads = %d, want 1", repo.lists)
	}
}

func TestListByKindInvalidKind(t *testing.T) {
	t.Parallel()

	r := New(&fakeProviderRepo{}, time.Minute)

	_, err := r.ListByKind(context.Background(), domain.Kind("FAX"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ListByKind() error = %v, want ErrValidation", err)
	}
}

func TestSaveInvalidatesCachedList(t *testing.T) {
	t.Parallel()

	repo := &fakeProviderRepo{
		listFn: func(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error) {
			return descriptors(), nil
		},
	}

	r := New(repo, time.Hour)
	ctx := context.Background()

	if _, err := r.ListByKind(ctx, domain.KindNotify); err != nil {
		t.Fatalf("ListByKind() unexpected error = %v", err)
	}

	updated := descriptors()[0]
	updated.Enabled = false
	if err := r.Save(ctx, &updated); err != nil {
		t.Fatalf("Save() unexpected error = %v", err)
	}

	if _, err := r.ListByKind(ctx, domain.KindNotify); err != nil {
		t.Fatalf("ListByKind() unexpected error = %v", err)
	}

	if repo.lists != 2 {
		t.Fatalf("store reads = %d, want 2 (write must bust the cache)", repo.lists)
	}
}

func TestMaxUnitCost(t *testing.T) {
	t.Parallel()

	if got := MaxUnitCost(descriptors()); got != 40 {
		t.Fatalf("MaxUnitCost() = %d, want 40", got)
	}
	if got := MaxUnitCost(nil); got != 0 {
		t.Fatalf("MaxUnitCost(nil) = %d, want 0", got)
	}
}
