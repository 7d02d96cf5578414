package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskRequest struct {
	TaskId         string   `json:"task_id,omitempty"`
	AreaId         string   `json:"area_id,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	Date           string   `json:"date"`
	HistoricalDate string   `json:"historical_date,omitempty"`
	ImagerySource  string   `json:"imagery_source,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
}

type BatchRequest struct {
	Tasks []TaskRequest `json:"tasks"`
}

type BatchTaskSubmitResponse struct {
	BatchId uuid.UUID `json:"batch_id"`
	Status  string    `json:"status"`
}

type BatchJobError struct {
	TaskId    string    `json:"task_id,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type BatchJob struct {
	BatchId     uuid.UUID `json:"batch_id"`
	Status      string    `json:"status"`
	BatchStatus string    `json:"batch_status,omitempty"`

	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed"`
	FailedTasks    int `json:"failed"`

	AggregateStats json.RawMessage `json:"aggregate_stats,omitempty"`

	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`

	Errors []BatchJobError `json:"errors,omitempty"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Area struct {
	AreaId      string     `json:"area_id"`
	Name        string     `json:"name"`
	BBox        [4]float64 `json:"bbox"`
	Center      Point      `json:"center"`
	Description string     `json:"description,omitempty"`
	AreaKm2     float64    `json:"area_km2"`
}

type ResolveAreaParams struct {
	AreaId string   `schema:"area_id"`
	Lat    *float64 `schema:"lat"`
	Lon    *float64 `schema:"lon"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Areas         int    `json:"areas"`
	ImagerySource string `json:"imagery_source"`
}
