// Command settlementctl injects a settlement message into the broker.
// It exists for operations work: replaying a settlement the gateway
// reported out-of-band, or unsticking a transaction left in PROCESSING
// after a lost callback.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kursadbilgin/outbound-dispatch/internal/queue"
)

const publishTimeout = 10 * time.Second

func main() {
	var (
		externalRef = flag.String("ref", "", "gateway reference of the transaction to settle")
		status      = flag.String("status", "", "settlement outcome: COMPLETED or FAILED")
		note        = flag.String("note", "", "optional operator note stored on the transaction")
	)
	flag.Parse()

	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		log.Fatal("RABBITMQ_URL is required")
	}

	msg := queue.SettlementMessage{
		ExternalRef:   *externalRef,
		Status:        *status,
		Note:          *note,
		CorrelationID: uuid.NewString(),
	}
	if err := msg.Validate(); err != nil {
		log.Fatalf("invalid settlement: %v", err)
	}

	mq, err := queue.NewRabbitMQ(url)
	if err != nil {
		log.Fatalf("rabbitmq connection failed: %v", err)
	}
	defer mq.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	publisher := queue.NewRabbitMQPublisher(mq)
	if err := publisher.Publish(ctx, queue.SettlementQueue, msg); err != nil {
		log.Fatalf("publish failed: %v", err)
	}

	fmt.Printf("settlement published: ref=%s status=%s correlationId=%s\n",
		msg.ExternalRef, msg.Status, msg.CorrelationID)
}
