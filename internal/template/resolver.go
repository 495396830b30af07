// Package template resolves logical message types to rendered subject and
// body content, caching templates with their own TTL.
package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/cache"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
)

type Resolver struct {
	templates repository.TemplateRepository
	cache     *cache.Cache[domain.MessageTemplate]
}

func NewResolver(templates repository.TemplateRepository, ttl time.Duration) *Resolver {
	return &Resolver{
		templates: templates,
		cache:     cache.New[domain.MessageTemplate](ttl),
	}
}

// Resolve loads the template for a message type and renders it with the
// caller params.
func (r *Resolver) Resolve(ctx context.Context, messageType string, params map[string]string) (string, string, error) {
	messageType = strings.TrimSpace(messageType)
	if messageType == "" {
		return "", "", fmt.Errorf("%w: message type is required", domain.ErrValidation)
	}

	template, err := r.cache.GetOrLoad(messageType, func() (domain.MessageTemplate, error) {
		loaded, err := r.templates.GetByType(ctx, messageType)
		if err != nil {
			return domain.MessageTemplate{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return "", "", err
	}

	subject, body := template.Render(params)
	return subject, body, nil
}

// Save writes a template and invalidates its cached entry.
func (r *Resolver) Save(ctx context.Context, template *domain.MessageTemplate) error {
	if err := r.templates.Save(ctx, template); err != nil {
		return err
	}
	r.cache.Invalidate(template.Type)
	return nil
}
