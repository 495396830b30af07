package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

// Gateway initiates mobile-money withdrawals. Settlement confirmation
// arrives out-of-band and is consumed by the status tracker, never here.
type Gateway interface {
	Initiate(ctx context.Context, phone string, amount int64, currency, reference string) (*Initiation, error)
}

// Initiation is the gateway's synchronous answer to an initiation request.
type Initiation struct {
	GatewayRef string
	StatusCode int
}

type initiateRequest struct {
	Phone     string `json:"phone"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type initiateResponse struct {
	Status     string `json:"status"`
	GatewayRef string `json:"gateway_ref"`
	Reason     string `json:"reason"`
}

// MobileMoneyGateway talks to the payment gateway's REST initiation API.
type MobileMoneyGateway struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

func NewMobileMoneyGateway(baseURL, apiKey string, timeout time.Duration) (*MobileMoneyGateway, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &MobileMoneyGateway{
		client:  client,
		baseURL: trimmed,
		apiKey:  apiKey,
	}, nil
}

func (g *MobileMoneyGateway) Initiate(ctx context.Context, phone string, amount int64, currency, reference string) (*Initiation, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}

	var parsed initiateResponse
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+g.apiKey).
		SetBody(initiateRequest{
			Phone:     phone,
			Amount:    amount,
			Currency:  currency,
			Reference: reference,
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(g.baseURL + "/v1/disbursements")
	if err != nil {
		return nil, &Error{
			Message: "gateway request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()

	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices &&
		strings.EqualFold(parsed.Status, "accepted"):
		return &Initiation{
			GatewayRef: strings.TrimSpace(parsed.GatewayRef),
			StatusCode: statusCode,
		}, nil

	// Any 4xx means the gateway refused this initiation; only 5xx and
	// transport failures are indistinguishable from gateway trouble.
	case (statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError) ||
		strings.EqualFold(parsed.Status, "rejected"):
		reason := strings.TrimSpace(parsed.Reason)
		if reason == "" {
			reason = fmt.Sprintf("gateway returned status %d", statusCode)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason)

	default:
		return nil, &Error{
			StatusCode: statusCode,
			Message:    errorMessage(statusCode, strings.TrimSpace(response.String())),
		}
	}
}
