package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"satinel-backend/internal/areas"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/imagery"
)

const DefaultPrompt = "buildings infrastructure"

type AreaResolver interface {
	Resolve(ctx context.Context, areaId string, lat, lon *float64) (areas.Area, error)
}

type DetectionProvider interface {
	Detect(ctx context.Context, tile imagery.Tile, prompt string) ([]types.Detection, error)
}

type OverlayRenderer interface {
	RenderDetections(ctx context.Context, tile imagery.Tile, detections []types.Detection) (string, error)
	RenderChange(ctx context.Context, historical, current imagery.Tile, match types.MatchResult) (string, error)
}

type TaskPipeline struct {
	resolver   AreaResolver
	imagery    imagery.Source
	detector   DetectionProvider
	matcher    *ChangeMatcher
	aggregator *StatisticsAggregator

	overlays      OverlayRenderer
	defaultPrompt string
	taskTimeout   time.Duration
}

type PipelineOption func(*TaskPipeline)

func WithOverlays(renderer OverlayRenderer) PipelineOption {
	return func(p *TaskPipeline) {
		p.overlays = renderer
	}
}

func WithDefaultPrompt(prompt string) PipelineOption {
	return func(p *TaskPipeline) {
		if prompt != "" {
			p.defaultPrompt = prompt
		}
	}
}

// WithTaskTimeout bounds each task. A fetch or detection cut short by this
// deadline degrades the response like any other stage failure.
func WithTaskTimeout(timeout time.Duration) PipelineOption {
	return func(p *TaskPipeline) {
		p.taskTimeout = timeout
	}
}

func NewTaskPipeline(resolver AreaResolver, source imagery.Source, detector DetectionProvider, matcher *ChangeMatcher, aggregator *StatisticsAggregator, opts ...PipelineOption) *TaskPipeline {
	p := &TaskPipeline{
		resolver:      resolver,
		imagery:       source,
		detector:      detector,
		matcher:       matcher,
		aggregator:    aggregator,
		defaultPrompt: DefaultPrompt,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// taskRun carries the state of one task through the pipeline stages.
type taskRun struct {
	// parent is the caller's context, before the per-task deadline is applied.
	parent   context.Context
	task     types.Task
	area     areas.Area
	prompt   string
	response types.TaskResponse

	currentTile    imagery.Tile
	historicalTile imagery.Tile
	current        []types.Detection
	historical     []types.Detection
	match          *types.MatchResult
}

func (r *taskRun) enter(stage types.Stage) {
	slog.Info("task stage", "task_id", r.response.TaskId, "stage", stage)
}

// Run executes one task. Imagery and detection failures produce a degraded
// response with a nil error. An error is returned only when the task is
// invalid, its area cannot be resolved or the caller's context is done.
func (p *TaskPipeline) Run(ctx context.Context, task types.Task) (types.TaskResponse, error) {
	if err := task.Validate(); err != nil {
		return types.TaskResponse{}, err
	}

	parent := ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	run := &taskRun{parent: parent, task: task, prompt: task.Prompt}
	if run.prompt == "" {
		run.prompt = p.defaultPrompt
	}

	slog.Info("task stage", "task_id", task.TaskId, "stage", types.StageResolveArea)
	area, err := p.resolver.Resolve(ctx, task.AreaId, task.Lat, task.Lon)
	if err != nil {
		slog.Error("unable to resolve area", "task_id", task.TaskId, "stage", types.StageError, "error", err)
		return types.TaskResponse{}, fmt.Errorf("unable to resolve area for task: %w", err)
	}
	run.area = area
	run.response = newResponse(task, area, run.prompt)

	run.enter(types.StageFetchImagery)
	if err := p.fetch(ctx, run); err != nil {
		return p.degrade(run, types.StageFetchImagery, err)
	}

	run.enter(types.StageDetect)
	if err := p.detect(ctx, run); err != nil {
		return p.degrade(run, types.StageDetect, err)
	}

	if task.Temporal() {
		run.enter(types.StageMatchChange)
		match := p.matcher.Match(run.historical, run.current)
		run.match = &match
	}

	run.enter(types.StageAggregate)
	resp := &run.response
	resp.Status = types.TaskDone
	resp.BuildingStats = p.aggregator.BuildingStats(run.current, area.AreaKm2())
	resp.ChangeStats = p.aggregator.ChangeSummary(run.match)
	resp.OverlayUrl = p.renderOverlay(ctx, run)

	resp.Results["tile"] = run.currentTile.Path
	resp.Results["detections"] = run.current
	if task.Temporal() {
		resp.Results["historical_tile"] = run.historicalTile.Path
		resp.Results["historical_detections"] = run.historical
	}

	run.enter(types.StageDone)
	return *resp, nil
}

func newResponse(task types.Task, area areas.Area, prompt string) types.TaskResponse {
	resp := types.TaskResponse{
		TaskId:         task.TaskId,
		Area:           area.Id,
		Date:           task.Date,
		HistoricalDate: task.HistoricalDate,
		Source:         task.ImagerySource,
		Results:        map[string]any{"aoi_area_km2": area.AreaKm2(), "prompt": prompt},
	}

	switch {
	case task.Temporal():
		resp.TaskId = fmt.Sprintf("%s:%s-%s", area.Id, task.HistoricalDate, task.Date)
		if task.TaskId != "" && task.TaskId != resp.TaskId {
			resp.RequestedTaskId = task.TaskId
		}
	case resp.TaskId == "":
		resp.TaskId = fmt.Sprintf("%s:%s", area.Id, task.Date)
	}

	return resp
}

func (p *TaskPipeline) fetch(ctx context.Context, run *taskRun) error {
	tile, err := p.imagery.FetchTile(ctx, imagery.TileRequest{Area: run.area, Date: run.task.Date, Mode: run.task.ImagerySource})
	if err != nil {
		return err
	}
	run.currentTile = tile
	run.response.Source = tile.Source

	if run.task.Temporal() {
		tile, err := p.imagery.FetchTile(ctx, imagery.TileRequest{Area: run.area, Date: run.task.HistoricalDate, Mode: run.task.ImagerySource})
		if err != nil {
			return err
		}
		run.historicalTile = tile
	}
	return nil
}

func (p *TaskPipeline) detect(ctx context.Context, run *taskRun) error {
	current, err := p.detector.Detect(ctx, run.currentTile, run.prompt)
	if err != nil {
		return err
	}
	run.current = current

	if run.task.Temporal() {
		historical, err := p.detector.Detect(ctx, run.historicalTile, run.prompt)
		if err != nil {
			return err
		}
		run.historical = historical
	}
	return nil
}

func (p *TaskPipeline) degrade(run *taskRun, stage types.Stage, err error) (types.TaskResponse, error) {
	if run.parent.Err() != nil {
		slog.Error("task cancelled", "task_id", run.response.TaskId, "stage", types.StageError, "error", err)
		return types.TaskResponse{}, fmt.Errorf("task %s cancelled during %s: %w", run.response.TaskId, stage, err)
	}

	slog.Warn("task degraded", "task_id", run.response.TaskId, "stage", stage, "error", err)

	resp := run.response
	resp.Status = types.TaskDegraded
	resp.BuildingStats = types.BuildingStats{}
	resp.ChangeStats = types.ChangeStats{}
	resp.Degradation = &types.Degradation{Stage: stage, Reason: err.Error()}
	resp.Results["error"] = err.Error()
	return resp, nil
}

func (p *TaskPipeline) renderOverlay(ctx context.Context, run *taskRun) string {
	if p.overlays == nil {
		return ""
	}

	var url string
	var err error
	if run.match != nil {
		url, err = p.overlays.RenderChange(ctx, run.historicalTile, run.currentTile, *run.match)
	} else {
		url, err = p.overlays.RenderDetections(ctx, run.currentTile, run.current)
	}
	if err != nil {
		slog.Warn("unable to render overlay", "task_id", run.response.TaskId, "error", err)
		return ""
	}
	return url
}
