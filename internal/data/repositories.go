package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

// DBTX is a common interface for *sql.DB and *sql.Tx so models can run both
// standalone and inside the per-artifact commit transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Two producers racing on the same filepath hit this; the loser
// treats it as a dedupe hit.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Camera is one physical device, identified by (location, device_name).
type Camera struct {
	ID              int64     `json:"id"`
	Location        string    `json:"location"`
	DeviceName      string    `json:"device_name"`
	DeviceType      string    `json:"device_type"`
	FullName        string    `json:"full_name"`
	CreatedAt       time.Time `json:"created_at"`
	LastSeen        time.Time `json:"last_seen"`
	IsActive        bool      `json:"is_active"`
	TotalDetections int       `json:"total_detections"`
	TotalAlerts     int       `json:"total_alerts"`
}

// Detection is the persisted record for one artifact.
type Detection struct {
	ID         int64  `json:"id"`
	Filename   string `json:"filename"`
	Filepath   string `json:"filepath"`
	MediaType  string `json:"media_type"`
	CameraID   int64  `json:"camera_id"`
	MotionType string `json:"motion_type,omitempty"`

	Processed             bool    `json:"processed"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`

	Description        string  `json:"description"`
	Confidence         float64 `json:"confidence"`
	AnalysisStructured []byte  `json:"analysis_structured,omitempty"`

	Timestamp     time.Time  `json:"timestamp"`
	FileTimestamp *time.Time `json:"file_timestamp,omitempty"`

	Width           int      `json:"width"`
	Height          int      `json:"height"`
	FrameCount      *int     `json:"frame_count,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`

	HasPerson          bool `json:"has_person"`
	HasVehicle         bool `json:"has_vehicle"`
	HasPackage         bool `json:"has_package"`
	HasUnusualActivity bool `json:"has_unusual_activity"`
	IsNightTime        bool `json:"is_night_time"`
	AlertCount         int  `json:"alert_count"`

	ThumbnailPath *string `json:"thumbnail_path,omitempty"`
}

// AlertType is one row of the fixed alert catalog.
type AlertType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// DetectionAlert links a detection to a fired alert type.
type DetectionAlert struct {
	ID          int64     `json:"id"`
	DetectionID int64     `json:"detection_id"`
	AlertTypeID int64     `json:"alert_type_id"`
	Confidence  float64   `json:"confidence"`
	DetectedAt  time.Time `json:"detected_at"`
}
