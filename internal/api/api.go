package api

import (
	"errors"
	"log/slog"
	"net/http"

	"satinel-backend/internal/areas"
	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/database"
	"satinel-backend/internal/messaging"
	"satinel-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type SatinelService struct {
	db        *gorm.DB
	resolver  *areas.Resolver
	pipeline  core.TaskRunner
	batches   *core.BatchCoordinator
	publisher messaging.Publisher

	imagerySource types.ImagerySourceMode
}

func NewSatinelService(db *gorm.DB, resolver *areas.Resolver, pipeline core.TaskRunner, batches *core.BatchCoordinator, publisher messaging.Publisher, imagerySource types.ImagerySourceMode) *SatinelService {
	return &SatinelService{
		db:            db,
		resolver:      resolver,
		pipeline:      pipeline,
		batches:       batches,
		publisher:     publisher,
		imagerySource: imagerySource,
	}
}

func (s *SatinelService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))

	r.Route("/areas", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListAreas))
		r.Get("/resolve", RestHandler(s.ResolveArea))
	})

	r.Post("/task", RestHandler(s.RunTask))
	r.Post("/batch", RestHandler(s.RunBatch))

	r.Route("/batch_task", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitBatchTask))
		r.Get("/{batch_id}", RestHandler(s.GetBatchTask))
	})
}

func (s *SatinelService) Health(r *http.Request) (any, error) {
	list, err := s.resolver.Repository().List(r.Context())
	if err != nil {
		slog.Error("error listing areas", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "area registry unavailable")
	}
	return api.HealthResponse{Status: "healthy", Areas: len(list), ImagerySource: string(s.imagerySource)}, nil
}

func (s *SatinelService) ListAreas(r *http.Request) (any, error) {
	list, err := s.resolver.Repository().List(r.Context())
	if err != nil {
		slog.Error("error listing areas", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing areas")
	}
	return convertAreas(list), nil
}

func (s *SatinelService) ResolveArea(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ResolveAreaParams](r)
	if err != nil {
		return nil, err
	}

	if params.AreaId == "" && (params.Lat == nil || params.Lon == nil) {
		return nil, CodedErrorf(http.StatusBadRequest, "either area_id or lat and lon must be provided")
	}

	area, err := s.resolver.Resolve(r.Context(), params.AreaId, params.Lat, params.Lon)
	if err != nil {
		return nil, taskError(err)
	}
	return convertArea(area), nil
}

func (s *SatinelService) RunTask(r *http.Request) (any, error) {
	req, err := ParseRequest[api.TaskRequest](r)
	if err != nil {
		return nil, err
	}

	resp, err := s.pipeline.Run(r.Context(), convertTaskRequest(req))
	if err != nil {
		return nil, taskError(err)
	}
	return resp, nil
}

func (s *SatinelService) RunBatch(r *http.Request) (any, error) {
	req, err := ParseRequest[api.BatchRequest](r)
	if err != nil {
		return nil, err
	}

	if len(req.Tasks) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "batch must contain at least one task")
	}

	return s.batches.RunBatch(r.Context(), convertTaskRequests(req.Tasks)), nil
}

func (s *SatinelService) SubmitBatchTask(r *http.Request) (any, error) {
	req, err := ParseRequest[api.BatchRequest](r)
	if err != nil {
		return nil, err
	}

	if len(req.Tasks) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "batch must contain at least one task")
	}

	ctx := r.Context()

	job, err := database.NewBatchJob(convertTaskRequests(req.Tasks))
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error creating batch job")
	}

	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		slog.Error("error creating batch job", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create batch job entry")
	}

	if err := s.publisher.PublishBatchTask(ctx, messaging.BatchTaskPayload{BatchId: job.Id}); err != nil {
		slog.Error("error publishing batch task", "batch_id", job.Id, "error", err)
		database.SaveBatchJobError(ctx, s.db, job.Id, "", "failed to queue batch: "+err.Error())
		if err := database.UpdateBatchJobStatus(ctx, s.db, job.Id, database.JobFailed); err != nil {
			slog.Error("error marking batch job failed", "batch_id", job.Id, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue batch task")
	}

	slog.Info("submitted batch job", "batch_id", job.Id, "tasks", job.TotalTasks)

	return api.BatchTaskSubmitResponse{BatchId: job.Id, Status: "queued"}, nil
}

func (s *SatinelService) GetBatchTask(r *http.Request) (any, error) {
	batchId, err := URLParamUUID(r, "batch_id")
	if err != nil {
		return nil, err
	}

	var job database.BatchJob
	if err := s.db.WithContext(r.Context()).Preload("Errors").First(&job, "id = ?", batchId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "batch job not found")
		}
		slog.Error("error getting batch job", "batch_id", batchId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving batch job record")
	}

	return convertBatchJob(job), nil
}

func taskError(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidTask):
		return CodedError(http.StatusBadRequest, err)
	case errors.Is(err, types.ErrAreaNotFound):
		return CodedError(http.StatusNotFound, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}
