package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"satinel-backend/internal/core/types"
	"satinel-backend/internal/core/utils"

	"github.com/google/uuid"
)

const (
	DefaultHotspotThreshold = 70.0
	DefaultBatchConcurrency = 4
)

type TaskRunner interface {
	Run(ctx context.Context, task types.Task) (types.TaskResponse, error)
}

var _ TaskRunner = (*TaskPipeline)(nil)

type BatchCoordinator struct {
	runner           TaskRunner
	concurrency      int
	hotspotThreshold float64
}

func NewBatchCoordinator(runner TaskRunner, concurrency int, hotspotThreshold float64) *BatchCoordinator {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	if hotspotThreshold <= 0 {
		hotspotThreshold = DefaultHotspotThreshold
	}
	return &BatchCoordinator{runner: runner, concurrency: concurrency, hotspotThreshold: hotspotThreshold}
}

type indexedTask struct {
	index int
	task  types.Task
}

// ProgressFunc is called once per finished task, in completion order.
type ProgressFunc func(resp types.TaskResponse)

func (c *BatchCoordinator) RunBatch(ctx context.Context, tasks []types.Task) types.BatchResult {
	return c.RunBatchWithId(ctx, uuid.New(), tasks, nil)
}

func (c *BatchCoordinator) RunBatchWithProgress(ctx context.Context, tasks []types.Task, progress ProgressFunc) types.BatchResult {
	return c.RunBatchWithId(ctx, uuid.New(), tasks, progress)
}

// RunBatchWithId runs every task on a bounded pool. A task that fails, panics
// or is cancelled is recorded as an error placeholder and never affects the
// others. Task results keep input order, hotspots are in completion order.
func (c *BatchCoordinator) RunBatchWithId(ctx context.Context, batchId uuid.UUID, tasks []types.Task, progress ProgressFunc) types.BatchResult {
	start := time.Now()

	slog.Info("starting batch", "batch_id", batchId, "tasks", len(tasks), "concurrency", c.concurrency)

	queue := make(chan indexedTask, len(tasks))
	for i, task := range tasks {
		queue <- indexedTask{index: i, task: task}
	}
	close(queue)

	completed := make(chan utils.CompletedTask[indexedTask, types.TaskResponse], len(tasks))

	worker := func(ctx context.Context, t indexedTask) (types.TaskResponse, error) {
		return c.runner.Run(ctx, t.task)
	}

	utils.RunInPool(ctx, worker, queue, completed, c.concurrency)

	result := types.BatchResult{
		BatchId:     batchId,
		TotalTasks:  len(tasks),
		TaskResults: make([]types.TaskResponse, len(tasks)),
		AggregateStats: types.AggregateStats{
			Hotspots: []types.Hotspot{},
		},
	}
	agg := &result.AggregateStats

	for done := range completed {
		resp := done.Result
		if done.Error != nil {
			err := fmt.Errorf("%w: %w", types.ErrTaskFailed, done.Error)
			slog.Error("batch task failed", "batch_id", batchId, "task_id", done.Input.task.TaskId, "error", err)
			resp = types.ErrorResponse(done.Input.task, err)
			result.Failed++
		} else {
			agg.TotalDetections += resp.BuildingStats.Count
			agg.TotalAreaM2 += resp.BuildingStats.TotalFootprintAreaM2
			agg.TotalNew += resp.ChangeStats.New
			agg.TotalRemoved += resp.ChangeStats.Removed
			if resp.ChangeStats.ActivityScore > c.hotspotThreshold {
				agg.Hotspots = append(agg.Hotspots, types.Hotspot{
					TaskId:        resp.TaskId,
					Area:          resp.Area,
					ActivityScore: resp.ChangeStats.ActivityScore,
				})
			}
		}

		result.TaskResults[done.Input.index] = resp
		if progress != nil {
			progress(resp)
		}
	}

	result.Completed = result.TotalTasks - result.Failed
	if result.Completed > 0 {
		agg.AvgDetectionsPerTask = round2(float64(agg.TotalDetections) / float64(result.Completed))
	}
	agg.TotalAreaM2 = round2(agg.TotalAreaM2)
	agg.ProcessingTimeSeconds = round2(time.Since(start).Seconds())

	switch {
	case result.Failed == 0:
		result.Status = types.BatchCompleted
	case result.Completed == 0:
		result.Status = types.BatchFailed
	default:
		result.Status = types.BatchPartial
	}

	slog.Info("batch finished", "batch_id", batchId, "status", result.Status, "completed", result.Completed, "failed", result.Failed, "duration", time.Since(start))

	return result
}
