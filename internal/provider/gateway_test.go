package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

func TestMobileMoneyGatewayInitiateAccepted(t *testing.T) {
	t.Parallel()

	var gotBody initiateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/disbursements" {
			t.Errorf("path = %s, want /v1/disbursements", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"accepted","gateway_ref":"mm-123"}`))
	}))
	defer server.Close()

	g, err := NewMobileMoneyGateway(server.URL, "gw-key", time.Second)
	if err != nil {
		t.Fatalf("NewMobileMoneyGateway() error = %v", err)
	}

	result, err := g.Initiate(context.Background(), "+256700000001", 9000, "UGX", "ref-1")
	if err != nil {
		t.Fatalf("Initiate() unexpected error: %v", err)
	}

	if result.GatewayRef != "mm-123" {
		t.Fatalf("GatewayRef = %q, want %q", result.GatewayRef, "mm-123")
	}
	if gotBody.Phone != "+256700000001" || gotBody.Amount != 9000 || gotBody.Currency != "UGX" {
		t.Fatalf("request body = %+v", gotBody)
	}
	if gotBody.Reference != "ref-1" {
		t.Fatalf("request.reference = %q, want ref-1", gotBody.Reference)
	}
}

func TestMobileMoneyGatewayInitiateRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"rejected","reason":"no mobile money account on file"}`))
	}))
	defer server.Close()

	g, err := NewMobileMoneyGateway(server.URL, "gw-key", time.Second)
	if err != nil {
		t.Fatalf("NewMobileMoneyGateway() error = %v", err)
	}

	_, err = g.Initiate(context.Background(), "+256700000001", 9000, "UGX", "ref-1")
	if !errors.Is(err, domain.ErrGatewayRejected) {
		t.Fatalf("Initiate() error = %v, want ErrGatewayRejected", err)
	}
}

func TestMobileMoneyGatewayInitiateClientErrorsAreRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{name: "bad request", statusCode: http.StatusBadRequest, body: `{"status":"error","reason":"malformed msisdn"}`},
		{name: "forbidden", statusCode: http.StatusForbidden, body: `{"status":"error"}`},
		{name: "conflict without body", statusCode: http.StatusConflict, body: ``},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			g, err := NewMobileMoneyGateway(server.URL, "gw-key", time.Second)
			if err != nil {
				t.Fatalf("NewMobileMoneyGateway() error = %v", err)
			}

			_, err = g.Initiate(context.Background(), "+256700000001", 9000, "UGX", "ref-1")
			if !errors.Is(err, domain.ErrGatewayRejected) {
				t.Fatalf("Initiate() error = %v, want ErrGatewayRejected for %d", err, tc.statusCode)
			}
		})
	}
}

func TestMobileMoneyGatewayInitiateServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g, err := NewMobileMoneyGateway(server.URL, "gw-key", time.Second)
	if err != nil {
		t.Fatalf("NewMobileMoneyGateway() error = %v", err)
	}

	_, err = g.Initiate(context.Background(), "+256700000001", 9000, "UGX", "ref-1")
	if err == nil {
		t.Fatal("Initiate() expected error, got nil")
	}
	if errors.Is(err, domain.ErrGatewayRejected) {
		t.Fatal("server error must not be classified as a business rejection")
	}

	var providerErr *Error
	if !errors.As(err, &providerErr) {
		t.Fatalf("Initiate() error = %T, want *Error", err)
	}
}

func TestNewMobileMoneyGatewayInvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := NewMobileMoneyGateway("", "k", time.Second); err == nil {
		t.Fatal("expected error for empty url, got nil")
	}
	if _, err := NewMobileMoneyGateway("not a url", "k", time.Second); err == nil {
		t.Fatal("expected error for malformed url, got nil")
	}
}
