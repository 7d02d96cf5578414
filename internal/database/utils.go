package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"satinel-backend/internal/core/types"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func NewBatchJob(tasks []types.Task) (BatchJob, error) {
	data, err := json.Marshal(tasks)
	if err != nil {
		return BatchJob{}, fmt.Errorf("error serializing tasks: %w", err)
	}

	return BatchJob{
		Id:           uuid.New(),
		Status:       JobQueued,
		Tasks:        data,
		TotalTasks:   len(tasks),
		CreationTime: time.Now().UTC(),
	}, nil
}

func (j *BatchJob) DecodeTasks() ([]types.Task, error) {
	var tasks []types.Task
	if err := json.Unmarshal(j.Tasks, &tasks); err != nil {
		return nil, fmt.Errorf("invalid tasks JSON for batch %s: %w", j.Id, err)
	}
	return tasks, nil
}

func (j *BatchJob) DecodeAggregate() (*types.AggregateStats, error) {
	if len(j.Aggregate) == 0 {
		return nil, nil
	}
	var agg types.AggregateStats
	if err := json.Unmarshal(j.Aggregate, &agg); err != nil {
		return nil, fmt.Errorf("invalid aggregate JSON for batch %s: %w", j.Id, err)
	}
	return &agg, nil
}

func UpdateBatchJobStatus(ctx context.Context, txn *gorm.DB, batchId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&BatchJob{Id: batchId}).Updates(updates).Error; err != nil {
		slog.Error("error updating batch job status", "batch_id", batchId, "status", status, "error", err)
		return err
	}
	return nil
}

// SaveBatchResult records counts and aggregates of a finished batch. Per task
// results are not persisted.
func SaveBatchResult(ctx context.Context, txn *gorm.DB, batchId uuid.UUID, result types.BatchResult) error {
	aggregate, err := json.Marshal(result.AggregateStats)
	if err != nil {
		return fmt.Errorf("error serializing aggregate stats: %w", err)
	}

	status := JobCompleted
	if result.Status == types.BatchFailed {
		status = JobFailed
	}

	updates := map[string]any{
		"status":          status,
		"completed_tasks": result.Completed,
		"failed_tasks":    result.Failed,
		"batch_status":    sql.NullString{String: string(result.Status), Valid: true},
		"aggregate":       datatypes.JSON(aggregate),
		"completion_time": time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Model(&BatchJob{Id: batchId}).Updates(updates).Error; err != nil {
		slog.Error("error saving batch result", "batch_id", batchId, "error", err)
		return fmt.Errorf("error saving batch result: %w", err)
	}
	return nil
}

func SaveBatchJobError(ctx context.Context, txn *gorm.DB, batchId uuid.UUID, taskId string, errorMessage string) {
	jobError := BatchJobError{
		BatchId:   batchId,
		ErrorId:   uuid.New(),
		TaskId:    taskId,
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&jobError).Error; err != nil {
		slog.Error("error saving batch job error", "batch_id", batchId, "error", err)
	}
}
