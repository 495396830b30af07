package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

const defaultSendTimeout = 10 * time.Second

type mailRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type mailResponse struct {
	ID string `json:"id"`
}

// HTTPMailProvider sends email through a JSON HTTP endpoint described by a
// ProviderDescriptor.
type HTTPMailProvider struct {
	client     *resty.Client
	descriptor domain.ProviderDescriptor
}

func NewHTTPMailProvider(descriptor domain.ProviderDescriptor, timeout time.Duration) (*HTTPMailProvider, error) {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return NewHTTPMailProviderWithClient(descriptor, client)
}

func NewHTTPMailProviderWithClient(descriptor domain.ProviderDescriptor, client *resty.Client) (*HTTPMailProvider, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(descriptor.Endpoint)); err != nil {
		return nil, fmt.Errorf("invalid provider endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPMailProvider{
		client:     client,
		descriptor: descriptor,
	}, nil
}

func (p *HTTPMailProvider) Name() string {
	return p.descriptor.Name
}

func (p *HTTPMailProvider) Send(ctx context.Context, to, subject, body string) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("recipient is required")
	}

	request := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mailRequest{
			From:    p.descriptor.Sender,
			To:      to,
			Subject: subject,
			Body:    body,
		})
	if key := strings.TrimSpace(p.descriptor.APIKey); key != "" {
		request.SetHeader("Authorization", "Bearer "+key)
	}

	response, err := request.Post(p.descriptor.Endpoint)
	if err != nil {
		return nil, &Error{
			Message: "provider request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return nil, &Error{Message: "provider returned empty response"}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID(response),
		}, nil
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    errorMessage(statusCode, responseBody),
	}
}

func errorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func messageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	var parsed mailResponse
	if err := json.Unmarshal(response.Body(), &parsed); err == nil {
		if id := strings.TrimSpace(parsed.ID); id != "" {
			return id
		}
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
