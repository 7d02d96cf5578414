package api

import (
	"log/slog"

	"satinel-backend/internal/areas"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/database"
	"satinel-backend/pkg/api"
)

func convertTaskRequest(req api.TaskRequest) types.Task {
	return types.Task{
		TaskId:         req.TaskId,
		AreaId:         req.AreaId,
		Lat:            req.Lat,
		Lon:            req.Lon,
		Date:           req.Date,
		HistoricalDate: req.HistoricalDate,
		ImagerySource:  types.ImagerySourceMode(req.ImagerySource),
		Prompt:         req.Prompt,
	}
}

func convertTaskRequests(reqs []api.TaskRequest) []types.Task {
	tasks := make([]types.Task, 0, len(reqs))
	for _, req := range reqs {
		tasks = append(tasks, convertTaskRequest(req))
	}
	return tasks
}

func convertArea(a areas.Area) api.Area {
	return api.Area{
		AreaId:      a.Id,
		Name:        a.Name,
		BBox:        a.BBox,
		Center:      api.Point{Lat: a.Center.Lat, Lon: a.Center.Lon},
		Description: a.Description,
		AreaKm2:     a.AreaKm2(),
	}
}

func convertAreas(as []areas.Area) []api.Area {
	out := make([]api.Area, 0, len(as))
	for _, a := range as {
		out = append(out, convertArea(a))
	}
	return out
}

func convertBatchJob(j database.BatchJob) api.BatchJob {
	job := api.BatchJob{
		BatchId:        j.Id,
		Status:         j.Status,
		TotalTasks:     j.TotalTasks,
		CompletedTasks: j.CompletedTasks,
		FailedTasks:    j.FailedTasks,
		CreationTime:   j.CreationTime,
	}
	if j.BatchStatus.Valid {
		job.BatchStatus = j.BatchStatus.String
	}
	if len(j.Aggregate) > 0 {
		if _, err := j.DecodeAggregate(); err != nil {
			slog.Error("stored aggregate is invalid", "batch_id", j.Id, "error", err)
		} else {
			job.AggregateStats = []byte(j.Aggregate)
		}
	}
	if j.CompletionTime.Valid {
		job.CompletionTime = &j.CompletionTime.Time
	}
	for _, e := range j.Errors {
		job.Errors = append(job.Errors, api.BatchJobError{TaskId: e.TaskId, Error: e.Error, Timestamp: e.Timestamp})
	}
	return job
}
