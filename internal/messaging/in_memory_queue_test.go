package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()

	payload := BatchTaskPayload{BatchId: uuid.New()}
	require.NoError(t, queue.PublishBatchTask(context.Background(), payload))

	task := <-queue.Tasks()
	assert.Equal(t, BatchQueue, task.Type())

	var got BatchTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, payload, got)
	assert.NoError(t, task.Ack())

	queue.Close()
	queue.Close()

	_, open := <-queue.Tasks()
	assert.False(t, open)
	assert.ErrorIs(t, queue.PublishBatchTask(context.Background(), payload), ErrQueueClosed)
}

func TestInMemoryQueuePublishRespectsContext(t *testing.T) {
	queue := NewInMemoryQueue()
	for i := 0; i < cap(queue.tasks); i++ {
		require.NoError(t, queue.PublishBatchTask(context.Background(), BatchTaskPayload{BatchId: uuid.New()}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, queue.PublishBatchTask(ctx, BatchTaskPayload{BatchId: uuid.New()}), context.Canceled)
}
