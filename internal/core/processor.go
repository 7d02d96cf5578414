package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"satinel-backend/internal/core/types"
	"satinel-backend/internal/database"
	"satinel-backend/internal/messaging"

	"gorm.io/gorm"
)

// BatchProcessor runs queued batch jobs and records their outcome on the job
// row.
type BatchProcessor struct {
	db          *gorm.DB
	coordinator *BatchCoordinator
	publisher   messaging.Publisher
	reciever    messaging.Reciever
}

func NewBatchProcessor(db *gorm.DB, coordinator *BatchCoordinator, publisher messaging.Publisher, reciever messaging.Reciever) *BatchProcessor {
	return &BatchProcessor{
		db:          db,
		coordinator: coordinator,
		publisher:   publisher,
		reciever:    reciever,
	}
}

func (proc *BatchProcessor) Start() {
	slog.Info("starting batch processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *BatchProcessor) Stop() {
	slog.Info("stopping batch processor")

	proc.publisher.Close()
	proc.reciever.Close()
}

func (proc *BatchProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {
	case messaging.BatchQueue:
		var payload messaging.BatchTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling batch task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processBatchTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *BatchProcessor) processBatchTask(ctx context.Context, payload messaging.BatchTaskPayload) error {
	batchId := payload.BatchId

	var job database.BatchJob
	if err := proc.db.WithContext(ctx).First(&job, "id = ?", batchId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("batch job %s not found", batchId)
		}
		slog.Error("error loading batch job", "batch_id", batchId, "error", err)
		return fmt.Errorf("error loading batch job: %w", err)
	}

	if job.Status == database.JobCompleted || job.Status == database.JobFailed {
		slog.Warn("batch job already finished, skipping", "batch_id", batchId, "status", job.Status)
		return nil
	}

	tasks, err := job.DecodeTasks()
	if err != nil {
		database.SaveBatchJobError(ctx, proc.db, batchId, "", err.Error())
		if updateErr := database.UpdateBatchJobStatus(ctx, proc.db, batchId, database.JobFailed); updateErr != nil {
			return errors.Join(err, updateErr)
		}
		return err
	}

	if err := database.UpdateBatchJobStatus(ctx, proc.db, batchId, database.JobRunning); err != nil {
		return fmt.Errorf("error marking batch job running: %w", err)
	}

	result := proc.coordinator.RunBatchWithId(ctx, batchId, tasks, nil)

	for _, resp := range result.TaskResults {
		if resp.Status != types.TaskError {
			continue
		}
		msg, _ := resp.Results["error"].(string)
		database.SaveBatchJobError(ctx, proc.db, batchId, resp.TaskId, msg)
	}

	return database.SaveBatchResult(ctx, proc.db, batchId, result)
}
