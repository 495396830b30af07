package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

// SettlementMessage is the broker payload for one gateway settlement
// event. Status carries the terminal outcome the gateway reports.
type SettlementMessage struct {
	ExternalRef   string `json:"externalRef"`
	Status        string `json:"status"`
	Note          string `json:"note,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m SettlementMessage) Validate() error {
	if strings.TrimSpace(m.ExternalRef) == "" {
		return fmt.Errorf("externalRef is required")
	}
	status, err := domain.ParseTransactionStatusFromString(m.Status)
	if err != nil {
		return fmt.Errorf("invalid status %q", m.Status)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not a settlement outcome", m.Status)
	}
	return nil
}

// TransactionStatus returns the parsed terminal status. Validate must have
// passed.
func (m SettlementMessage) TransactionStatus() (domain.TransactionStatus, error) {
	status, err := domain.ParseTransactionStatusFromString(m.Status)
	if err != nil {
		return "", err
	}
	return status, nil
}
