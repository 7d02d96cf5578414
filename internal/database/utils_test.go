package database

import (
	"context"
	"testing"

	"satinel-backend/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Every pooled connection to file::memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, GetMigrator(db).Migrate())

	return db
}

func TestBatchJobLifecycle(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	tasks := []types.Task{
		{TaskId: "t1", AreaId: "AREA_1", Date: "2023-01-01"},
		{TaskId: "t2", AreaId: "AREA_1", Date: "2023-01-01", HistoricalDate: "2021-01-01"},
	}

	job, err := NewBatchJob(tasks)
	require.NoError(t, err)
	require.NoError(t, db.Create(&job).Error)

	require.NoError(t, UpdateBatchJobStatus(ctx, db, job.Id, JobRunning))

	result := types.BatchResult{
		BatchId:    job.Id,
		Status:     types.BatchPartial,
		TotalTasks: 2,
		Completed:  1,
		Failed:     1,
		AggregateStats: types.AggregateStats{
			TotalDetections: 7,
			Hotspots:        []types.Hotspot{{TaskId: "t2", Area: "AREA_1", ActivityScore: 80}},
		},
	}
	require.NoError(t, SaveBatchResult(ctx, db, job.Id, result))
	SaveBatchJobError(ctx, db, job.Id, "t1", "imagery unavailable")

	var stored BatchJob
	require.NoError(t, db.Preload("Errors").First(&stored, "id = ?", job.Id).Error)

	assert.Equal(t, JobCompleted, stored.Status)
	assert.Equal(t, 2, stored.TotalTasks)
	assert.Equal(t, 1, stored.CompletedTasks)
	assert.Equal(t, 1, stored.FailedTasks)
	assert.Equal(t, "partial", stored.BatchStatus.String)
	assert.True(t, stored.CompletionTime.Valid)
	require.Len(t, stored.Errors, 1)
	assert.Equal(t, "t1", stored.Errors[0].TaskId)

	decoded, err := stored.DecodeTasks()
	require.NoError(t, err)
	assert.Equal(t, tasks, decoded)

	agg, err := stored.DecodeAggregate()
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, 7, agg.TotalDetections)
	assert.Len(t, agg.Hotspots, 1)
}

func TestSaveBatchResultFailedBatch(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	job, err := NewBatchJob([]types.Task{{AreaId: "AREA_1", Date: "2023-01-01"}})
	require.NoError(t, err)
	require.NoError(t, db.Create(&job).Error)

	require.NoError(t, SaveBatchResult(ctx, db, job.Id, types.BatchResult{Status: types.BatchFailed, TotalTasks: 1, Failed: 1}))

	var stored BatchJob
	require.NoError(t, db.First(&stored, "id = ?", job.Id).Error)
	assert.Equal(t, JobFailed, stored.Status)
}
