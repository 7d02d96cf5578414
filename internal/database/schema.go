package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Area is a registered area of interest. Bounds are in degrees.
type Area struct {
	Id          string `gorm:"primaryKey;size:64"`
	Name        string
	MinLon      float64
	MinLat      float64
	MaxLon      float64
	MaxLat      float64
	CenterLat   sql.NullFloat64
	CenterLon   sql.NullFloat64
	Description string
}

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

type BatchJob struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status string    `gorm:"size:20;not null"`

	Tasks datatypes.JSON `gorm:"not null"` // [{"area_id":"…","date":"…"},…]

	TotalTasks     int `gorm:"default:0"`
	CompletedTasks int `gorm:"default:0"`
	FailedTasks    int `gorm:"default:0"`

	BatchStatus sql.NullString `gorm:"size:20"`
	Aggregate   datatypes.JSON

	CreationTime   time.Time
	CompletionTime sql.NullTime

	Errors []BatchJobError `gorm:"foreignKey:BatchId;constraint:OnDelete:CASCADE"`
}

type BatchJobError struct {
	BatchId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	TaskId    string
	Error     string
	Timestamp time.Time
}
