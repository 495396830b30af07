// Package registry serves prioritized provider lists from a TTL cache over
// the durable descriptor store. Configuration writes invalidate the cached
// list immediately so a just-disabled provider is never dispatched through.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/cache"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
)

type Registry struct {
	providers repository.ProviderRepository
	cache     *cache.Cache[[]domain.ProviderDescriptor]
}

func New(providers repository.ProviderRepository, ttl time.Duration) *Registry {
	return &Registry{
		providers: providers,
		cache:     cache.New[[]domain.ProviderDescriptor](ttl),
	}
}

// ListByKind returns the enabled descriptors for a kind in ascending
// priority order, refreshing from the store on a cache miss.
func (r *Registry) ListByKind(ctx context.Context, kind domain.Kind) ([]domain.ProviderDescriptor, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: invalid kind %q", domain.ErrValidation, kind)
	}

	return r.cache.GetOrLoad(cacheKey(kind), func() ([]domain.ProviderDescriptor, error) {
		return r.providers.ListEnabledByKind(ctx, kind)
	})
}

// Save writes a descriptor and invalidates the cached list for its kind.
func (r *Registry) Save(ctx context.Context, descriptor *domain.ProviderDescriptor) error {
	if err := r.providers.Save(ctx, descriptor); err != nil {
		return err
	}
	r.cache.Invalidate(cacheKey(descriptor.Kind))
	return nil
}

// MaxUnitCost returns the highest declared unit cost among the given
// descriptors. Budget admission checks against this so a fallback to a
// pricier provider can never overshoot the limit.
func MaxUnitCost(descriptors []domain.ProviderDescriptor) int64 {
	var max int64
	for i := range descriptors {
		if descriptors[i].UnitCost > max {
			max = descriptors[i].UnitCost
		}
	}
	return max
}

func cacheKey(kind domain.Kind) string {
	return "providers:" + kind.String()
}
