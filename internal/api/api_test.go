package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	backend "satinel-backend/internal/api"
	"satinel-backend/internal/areas"
	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/database"
	"satinel-backend/internal/detection"
	"satinel-backend/internal/imagery"
	"satinel-backend/internal/messaging"
	"satinel-backend/internal/storage"
	"satinel-backend/pkg/api"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

func putTile(t *testing.T, provider storage.Provider, areaId, date string, boxes ...image.Rectangle) {
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	for _, b := range boxes {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	require.NoError(t, provider.PutObject(context.Background(), "imagery", imagery.StaticKey(areaId, date), &buf))
}

type testEnv struct {
	router    chi.Router
	db        *gorm.DB
	queue     *messaging.InMemoryQueue
	processor *core.BatchProcessor
}

func newTestEnv(t *testing.T) testEnv {
	dir := t.TempDir()

	provider, err := storage.NewLocalProvider(filepath.Join(dir, "storage"))
	require.NoError(t, err)
	require.NoError(t, provider.CreateBucket(context.Background(), "imagery"))

	building := image.Rect(10, 10, 30, 30)
	putTile(t, provider, "AREA_1", "2021-01-01", building)
	putTile(t, provider, "AREA_1", "2023-01-01", building, image.Rect(100, 100, 120, 120))

	cache, err := imagery.NewTileCache(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	source := imagery.NewRouter(types.ImageryStatic).
		Register(types.ImageryStatic, imagery.NewStaticSource(provider, "imagery", cache))

	repo, err := areas.NewStaticRepository(areas.BuiltinAreas())
	require.NoError(t, err)
	resolver := areas.NewResolver(repo)

	pipeline := core.NewTaskPipeline(
		resolver,
		source,
		detection.NewThresholdDetector(detection.DefaultThreshold, core.DefaultMinObjectPixels),
		core.NewChangeMatcher(core.DefaultIoUThreshold),
		core.NewStatisticsAggregator(core.DefaultPixelResolutionM),
	)
	batches := core.NewBatchCoordinator(pipeline, 2, core.DefaultHotspotThreshold)

	db := createDB(t)
	queue := messaging.NewInMemoryQueue()

	service := backend.NewSatinelService(db, resolver, pipeline, batches, queue, types.ImageryStatic)
	router := chi.NewRouter()
	service.AddRoutes(router)

	return testEnv{
		router:    router,
		db:        db,
		queue:     queue,
		processor: core.NewBatchProcessor(db, batches, queue, queue),
	}
}

func (e testEnv) do(t *testing.T, method, endpoint string, payload any, dest any) int {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, endpoint, &body)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if dest != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var res api.HealthResponse
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil, &res))
	assert.Equal(t, api.HealthResponse{Status: "healthy", Areas: len(areas.BuiltinAreas()), ImagerySource: "static"}, res)
}

func TestAreas(t *testing.T) {
	env := newTestEnv(t)

	var list []api.Area
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/areas", nil, &list))
	require.Len(t, list, len(areas.BuiltinAreas()))
	assert.Equal(t, "AREA_1", list[0].AreaId)
	assert.Equal(t, [4]float64{0, 0, 1, 1}, list[0].BBox)
	assert.Equal(t, api.Point{Lat: 0.5, Lon: 0.5}, list[0].Center)
	assert.InDelta(t, 9856.8, list[0].AreaKm2, 1e-6)

	t.Run("ResolveById", func(t *testing.T) {
		var area api.Area
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/areas/resolve?area_id=AREA_2", nil, &area))
		assert.Equal(t, "AREA_2", area.AreaId)
	})

	t.Run("ResolveByCoordinates", func(t *testing.T) {
		var area api.Area
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/areas/resolve?lat=40.78&lon=-73.97", nil, &area))
		assert.Equal(t, "nyc_manhattan", area.AreaId)
	})

	t.Run("Unresolvable", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/areas/resolve?lat=-60&lon=10", nil, nil))
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/areas/resolve?area_id=atlantis", nil, nil))
	})

	t.Run("MissingParams", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/areas/resolve?lat=40.78", nil, nil))
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/areas/resolve?lat=north&lon=1", nil, nil))
	})
}

func TestRunTask(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Temporal", func(t *testing.T) {
		var resp types.TaskResponse
		code := env.do(t, http.MethodPost, "/task", api.TaskRequest{
			TaskId:         "ignored",
			AreaId:         "AREA_1",
			Date:           "2023-01-01",
			HistoricalDate: "2021-01-01",
		}, &resp)
		require.Equal(t, http.StatusOK, code)

		assert.Equal(t, "AREA_1:2021-01-01-2023-01-01", resp.TaskId)
		assert.Equal(t, "ignored", resp.RequestedTaskId)
		assert.Equal(t, types.TaskDone, resp.Status)
		assert.Equal(t, types.ChangeStats{New: 1, Unchanged: 1, ActivityScore: 50, TemporalChangePct: 100}, resp.ChangeStats)
		assert.Equal(t, 2, resp.BuildingStats.Count)
		assert.Equal(t, 80000.0, resp.BuildingStats.TotalFootprintAreaM2)
	})

	t.Run("MissingTileDegrades", func(t *testing.T) {
		var resp types.TaskResponse
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/task", api.TaskRequest{AreaId: "AREA_1", Date: "2022-06-01"}, &resp))
		assert.Equal(t, types.TaskDegraded, resp.Status)
		assert.Equal(t, types.BuildingStats{}, resp.BuildingStats)
		assert.Contains(t, resp.Results["error"], "2022-06-01")
		require.NotNil(t, resp.Degradation)
		assert.Equal(t, types.StageFetchImagery, resp.Degradation.Stage)
	})

	t.Run("Errors", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/task", api.TaskRequest{AreaId: "atlantis", Date: "2023-01-01"}, nil))
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/task", api.TaskRequest{AreaId: "AREA_1", Date: "2023/01/01"}, nil))
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/task", api.TaskRequest{AreaId: "AREA_1", Date: "2023-01-01", ImagerySource: "drone"}, nil))
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/task", nil, nil))
	})
}

func TestRunBatch(t *testing.T) {
	env := newTestEnv(t)

	var result types.BatchResult
	code := env.do(t, http.MethodPost, "/batch", api.BatchRequest{Tasks: []api.TaskRequest{
		{TaskId: "t1", AreaId: "AREA_1", Date: "2023-01-01"},
		{TaskId: "t2", AreaId: "atlantis", Date: "2023-01-01"},
		{TaskId: "t3", AreaId: "AREA_1", Date: "2023-01-01", HistoricalDate: "2021-01-01"},
	}}, &result)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 3, result.TotalTasks)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, types.BatchPartial, result.Status)

	require.Len(t, result.TaskResults, 3)
	assert.Equal(t, "t1", result.TaskResults[0].TaskId)
	assert.Equal(t, types.TaskError, result.TaskResults[1].Status)
	assert.Equal(t, "AREA_1:2021-01-01-2023-01-01", result.TaskResults[2].TaskId)

	assert.Equal(t, 4, result.AggregateStats.TotalDetections)
	assert.Equal(t, 1, result.AggregateStats.TotalNew)
	assert.Equal(t, 2.0, result.AggregateStats.AvgDetectionsPerTask)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/batch", api.BatchRequest{}, nil))
}

func TestBatchTask(t *testing.T) {
	env := newTestEnv(t)

	var submitted api.BatchTaskSubmitResponse
	code := env.do(t, http.MethodPost, "/batch_task", api.BatchRequest{Tasks: []api.TaskRequest{
		{AreaId: "AREA_1", Date: "2023-01-01", HistoricalDate: "2021-01-01"},
		{AreaId: "AREA_1", Date: "2023-01-01"},
	}}, &submitted)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", submitted.Status)

	var job api.BatchJob
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/batch_task/"+submitted.BatchId.String(), nil, &job))
	assert.Equal(t, database.JobQueued, job.Status)
	assert.Equal(t, 2, job.TotalTasks)
	assert.Nil(t, job.CompletionTime)

	env.processor.ProcessTask(<-env.queue.Tasks())

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/batch_task/"+submitted.BatchId.String(), nil, &job))
	assert.Equal(t, database.JobCompleted, job.Status)
	assert.Equal(t, string(types.BatchCompleted), job.BatchStatus)
	assert.Equal(t, 2, job.CompletedTasks)
	assert.Equal(t, 0, job.FailedTasks)
	assert.NotNil(t, job.CompletionTime)

	var agg types.AggregateStats
	require.NoError(t, json.Unmarshal(job.AggregateStats, &agg))
	assert.Equal(t, 4, agg.TotalDetections)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/batch_task/"+uuid.NewString(), nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/batch_task/not-a-uuid", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/batch_task", api.BatchRequest{}, nil))
}
