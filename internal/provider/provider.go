package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

// Sender is the outbound notification delivery port. Implementations are
// built from a ProviderDescriptor and treated uniformly by the dispatch
// loop regardless of vendor.
type Sender interface {
	Name() string
	Send(ctx context.Context, to, subject, body string) (*Response, error)
}

// Response stores provider call metadata for audit and persistence.
type Response struct {
	StatusCode int
	Body       string
	MessageID  string
}

// SenderFactory builds a Sender from a descriptor. The dispatch loop uses
// it so provider construction stays out of the fallback logic.
type SenderFactory func(descriptor domain.ProviderDescriptor, timeout time.Duration) (Sender, error)

// NewSender is the default factory: every configured notification provider
// speaks the uniform JSON mail contract.
func NewSender(descriptor domain.ProviderDescriptor, timeout time.Duration) (Sender, error) {
	if descriptor.Kind != domain.KindNotify {
		return nil, fmt.Errorf("descriptor %q is not a notification provider", descriptor.Name)
	}
	return NewHTTPMailProvider(descriptor, timeout)
}
