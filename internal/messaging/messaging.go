package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	BatchQueue      = "batch_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// BatchTaskPayload points at a queued BatchJob row, the task list itself lives
// in the database.
type BatchTaskPayload struct {
	BatchId uuid.UUID
}

type Publisher interface {
	PublishBatchTask(ctx context.Context, payload BatchTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
