package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

type ImagerySourceMode string

const (
	ImageryStatic  ImagerySourceMode = "static"
	ImageryDynamic ImagerySourceMode = "dynamic"
)

type Task struct {
	TaskId         string            `json:"task_id,omitempty"`
	AreaId         string            `json:"area_id,omitempty"`
	Lat            *float64          `json:"lat,omitempty"`
	Lon            *float64          `json:"lon,omitempty"`
	Date           string            `json:"date"`
	HistoricalDate string            `json:"historical_date,omitempty"`
	ImagerySource  ImagerySourceMode `json:"imagery_source,omitempty"`
	Prompt         string            `json:"prompt,omitempty"`
}

func (t Task) Temporal() bool {
	return t.HistoricalDate != ""
}

func (t Task) Coordinates() (lat float64, lon float64, ok bool) {
	if t.Lat == nil || t.Lon == nil {
		return 0, 0, false
	}
	return *t.Lat, *t.Lon, true
}

func (t Task) Validate() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return fmt.Errorf("%w: date '%s' must be formatted as YYYY-MM-DD", ErrInvalidTask, t.Date)
	}
	if t.Temporal() {
		if _, err := time.Parse(DateLayout, t.HistoricalDate); err != nil {
			return fmt.Errorf("%w: historical_date '%s' must be formatted as YYYY-MM-DD", ErrInvalidTask, t.HistoricalDate)
		}
	}

	lat, lon, hasCoords := t.Coordinates()
	if t.AreaId == "" && !hasCoords {
		return fmt.Errorf("%w: either area_id or lat/lon must be provided", ErrInvalidTask)
	}
	if (t.Lat == nil) != (t.Lon == nil) {
		return fmt.Errorf("%w: lat and lon must be provided together", ErrInvalidTask)
	}
	if hasCoords && (lat < -90 || lat > 90 || lon < -180 || lon > 180) {
		return fmt.Errorf("%w: coordinates (%f, %f) out of range", ErrInvalidTask, lat, lon)
	}

	switch t.ImagerySource {
	case "", ImageryStatic, ImageryDynamic:
	default:
		return fmt.Errorf("%w: unknown imagery_source '%s'", ErrInvalidTask, t.ImagerySource)
	}

	return nil
}

type TaskStatus string

const (
	TaskDone     TaskStatus = "done"
	TaskDegraded TaskStatus = "degraded"
	TaskError    TaskStatus = "error"
)

type Stage string

const (
	StageResolveArea  Stage = "RESOLVE_AREA"
	StageFetchImagery Stage = "FETCH_IMAGERY"
	StageDetect       Stage = "DETECT"
	StageMatchChange  Stage = "MATCH_CHANGE"
	StageAggregate    Stage = "AGGREGATE"
	StageDone         Stage = "DONE"
	StageError        Stage = "ERROR"
)

// Degradation explains why a response carries zeroed statistics.
type Degradation struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

type TaskResponse struct {
	TaskId          string            `json:"task_id"`
	RequestedTaskId string            `json:"requested_task_id,omitempty"`
	Status          TaskStatus        `json:"status"`
	Area            string            `json:"area"`
	Date            string            `json:"date"`
	HistoricalDate  string            `json:"historical_date,omitempty"`
	Source          ImagerySourceMode `json:"source,omitempty"`
	BuildingStats   BuildingStats     `json:"building_stats"`
	ChangeStats     ChangeStats       `json:"change_stats"`
	OverlayUrl      string            `json:"overlay_url,omitempty"`
	Degradation     *Degradation      `json:"degradation,omitempty"`
	Results         map[string]any    `json:"results"`
}

// ErrorResponse is the placeholder recorded for a task that failed outright.
// Without a caller id the placeholder is named after the area, or after the
// coordinates when no area was given.
func ErrorResponse(task Task, err error) TaskResponse {
	id := task.TaskId
	if id == "" {
		location := task.AreaId
		if lat, lon, ok := task.Coordinates(); ok && location == "" {
			location = fmt.Sprintf("%.4f,%.4f", lat, lon)
		}
		id = fmt.Sprintf("%s:%s", location, task.Date)
	}
	return TaskResponse{
		TaskId:         id,
		Status:         TaskError,
		Area:           task.AreaId,
		Date:           task.Date,
		HistoricalDate: task.HistoricalDate,
		Source:         task.ImagerySource,
		Results:        map[string]any{"error": err.Error()},
	}
}

type BatchStatus string

const (
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

type Hotspot struct {
	TaskId        string  `json:"task_id"`
	Area          string  `json:"area"`
	ActivityScore float64 `json:"activity_score"`
}

type AggregateStats struct {
	TotalDetections       int       `json:"total_detections"`
	TotalAreaM2           float64   `json:"total_area_m2"`
	TotalNew              int       `json:"total_new"`
	TotalRemoved          int       `json:"total_removed"`
	AvgDetectionsPerTask  float64   `json:"avg_detections_per_task"`
	Hotspots              []Hotspot `json:"hotspots"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
}

type BatchResult struct {
	BatchId        uuid.UUID      `json:"batch_id"`
	Status         BatchStatus    `json:"status"`
	TotalTasks     int            `json:"total_tasks"`
	Completed      int            `json:"completed"`
	Failed         int            `json:"failed"`
	TaskResults    []TaskResponse `json:"task_results"`
	AggregateStats AggregateStats `json:"aggregate_stats"`
}
