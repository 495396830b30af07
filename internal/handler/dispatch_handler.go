package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/service"
)

type Notifier interface {
	Dispatch(ctx context.Context, req *domain.DispatchRequest) (*service.NotifyResult, error)
}

type Withdrawer interface {
	Dispatch(ctx context.Context, req *domain.DispatchRequest) (*service.WithdrawResult, error)
}

// StatusTracker is the read-and-settle surface of the transaction state
// machine.
type StatusTracker interface {
	GetStatus(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ApplySettlement(ctx context.Context, externalRef string, status domain.TransactionStatus, note string) error
}

type AttemptLister interface {
	ListByRequestID(ctx context.Context, requestID string) ([]domain.AttemptRecord, error)
}

type DispatchHandler struct {
	notifier    Notifier
	withdrawer  Withdrawer
	settlements StatusTracker
	attempts    AttemptLister
}

func NewDispatchHandler(
	notifier Notifier,
	withdrawer Withdrawer,
	settlements StatusTracker,
	attempts AttemptLister,
) (*DispatchHandler, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if withdrawer == nil {
		return nil, fmt.Errorf("withdrawer is required")
	}
	if settlements == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt lister is required")
	}

	return &DispatchHandler{
		notifier:    notifier,
		withdrawer:  withdrawer,
		settlements: settlements,
		attempts:    attempts,
	}, nil
}

func RegisterDispatchRoutes(
	router fiber.Router,
	notifier Notifier,
	withdrawer Withdrawer,
	settlements StatusTracker,
	attempts AttemptLister,
) error {
	h, err := NewDispatchHandler(notifier, withdrawer, settlements, attempts)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.DispatchNotification)
	v1.Post("/withdrawals", h.DispatchWithdrawal)
	v1.Get("/withdrawals/:id", h.GetWithdrawal)
	v1.Get("/dispatches/:id/attempts", h.ListAttempts)
	v1.Post("/gateway/callback", h.GatewayCallback)

	return nil
}

type dispatchNotificationRequest struct {
	CorrelationID   string            `json:"correlationId"`
	ClientReference *string           `json:"clientReference,omitempty"`
	Scope           string            `json:"scope"`
	Recipient       string            `json:"recipient"`
	MessageType     string            `json:"messageType"`
	Params          map[string]string `json:"params,omitempty"`
}

type dispatchNotificationResponse struct {
	RequestID    string `json:"requestId"`
	ProviderUsed string `json:"providerUsed"`
	Cost         int64  `json:"cost"`
	MessageID    string `json:"messageId,omitempty"`
}

type dispatchWithdrawalRequest struct {
	CorrelationID   string  `json:"correlationId"`
	ClientReference *string `json:"clientReference,omitempty"`
	AccountID       string  `json:"accountId"`
	Phone           string  `json:"phone"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
}

type dispatchWithdrawalResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Fee           int64  `json:"fee"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	Phone         string    `json:"phone"`
	Amount        int64     `json:"amount"`
	Fee           int64     `json:"fee"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	ExternalRef   string    `json:"externalRef,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type gatewayCallbackRequest struct {
	ExternalRef string `json:"externalRef"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
}

type attemptResponse struct {
	ID                string    `json:"id"`
	RequestID         string    `json:"requestId"`
	Kind              string    `json:"kind"`
	ProviderName      string    `json:"providerName"`
	Outcome           string    `json:"outcome"`
	Cost              int64     `json:"cost"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	StatusCode        *int      `json:"statusCode,omitempty"`
	Error             *string   `json:"error,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type listAttemptsResponse struct {
	Data []attemptResponse `json:"data"`
}

func (h *DispatchHandler) DispatchNotification(c *fiber.Ctx) error {
	var req dispatchNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dispatchReq := &domain.DispatchRequest{
		CorrelationID:   correlationID(req.CorrelationID, c),
		ClientReference: req.ClientReference,
		Scope:           req.Scope,
		Recipient:       req.Recipient,
		MessageType:     req.MessageType,
		Params:          req.Params,
	}

	result, err := h.notifier.Dispatch(c.Context(), dispatchReq)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(dispatchNotificationResponse{
		RequestID:    result.RequestID,
		ProviderUsed: result.ProviderUsed,
		Cost:         result.Cost,
		MessageID:    result.MessageID,
	})
}

func (h *DispatchHandler) DispatchWithdrawal(c *fiber.Ctx) error {
	var req dispatchWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dispatchReq := &domain.DispatchRequest{
		CorrelationID:   correlationID(req.CorrelationID, c),
		ClientReference: req.ClientReference,
		AccountID:       req.AccountID,
		Phone:           req.Phone,
		Amount:          req.Amount,
		Currency:        req.Currency,
	}

	result, err := h.withdrawer.Dispatch(c.Context(), dispatchReq)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dispatchWithdrawalResponse{
		TransactionID: result.TransactionID,
		Status:        result.Status.String(),
		Fee:           result.Fee,
	})
}

func (h *DispatchHandler) GetWithdrawal(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	transaction, err := h.settlements.GetStatus(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTransactionResponse(transaction))
}

func (h *DispatchHandler) ListAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: dispatch id is required", domain.ErrValidation))
	}

	attempts, err := h.attempts.ListByRequestID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		data = append(data, toAttemptResponse(attempt))
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{Data: data})
}

func (h *DispatchHandler) GatewayCallback(c *fiber.Ctx) error {
	var req gatewayCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := domain.ParseTransactionStatusFromString(req.Status)
	if err != nil {
		return toHTTPError(err)
	}
	if !status.IsTerminal() {
		return toHTTPError(fmt.Errorf("%w: settlement status must be terminal", domain.ErrValidation))
	}

	if err := h.settlements.ApplySettlement(c.Context(), req.ExternalRef, status, req.Note); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"externalRef": req.ExternalRef,
		"status":      status.String(),
	})
}

func correlationID(fromBody string, c *fiber.Ctx) string {
	if value := strings.TrimSpace(fromBody); value != "" {
		return value
	}
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	if t == nil {
		return transactionResponse{}
	}

	return transactionResponse{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Phone:         t.Phone,
		Amount:        t.Amount,
		Fee:           t.Fee,
		Currency:      t.Currency,
		Status:        t.Status.String(),
		ExternalRef:   t.ExternalRef,
		Notes:         t.Notes,
		CorrelationID: t.CorrelationID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func toAttemptResponse(a domain.AttemptRecord) attemptResponse {
	return attemptResponse{
		ID:                a.ID,
		RequestID:         a.RequestID,
		Kind:              a.Kind.String(),
		ProviderName:      a.ProviderName,
		Outcome:           a.Outcome.String(),
		Cost:              a.Cost,
		ProviderMessageID: a.ProviderMessageID,
		StatusCode:        a.StatusCode,
		Error:             a.Error,
		CreatedAt:         a.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, domain.ErrAnomalousTransition),
		errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBudgetExceeded):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrGatewayRejected):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrAllProvidersFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
