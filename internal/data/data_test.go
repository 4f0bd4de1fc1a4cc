package data_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrycam/sentrycam/internal/data"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCameraGetOrCreate(t *testing.T) {
	db, mock := newMock(t)
	m := data.CameraModel{DB: db}

	now := time.Now()
	mock.ExpectQuery("INSERT INTO cameras").
		WithArgs("frontdoor", "FoscamCamera_00626EFE4FA3", "FoscamCamera", "frontdoor_FoscamCamera_00626EFE4FA3").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "location", "device_name", "device_type", "full_name",
			"created_at", "last_seen", "is_active", "total_detections", "total_alerts",
		}).AddRow(1, "frontdoor", "FoscamCamera_00626EFE4FA3", "FoscamCamera",
			"frontdoor_FoscamCamera_00626EFE4FA3", now, now, true, 0, 0))

	cam, err := m.GetOrCreate(context.Background(), "frontdoor", "FoscamCamera_00626EFE4FA3", "FoscamCamera")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cam.ID)
	assert.Equal(t, "frontdoor_FoscamCamera_00626EFE4FA3", cam.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCameraGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	m := data.CameraModel{DB: db}

	mock.ExpectQuery("FROM cameras").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := m.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func TestCameraBumpCounters(t *testing.T) {
	db, mock := newMock(t)
	m := data.CameraModel{DB: db}

	mock.ExpectExec("UPDATE cameras").
		WithArgs(1, 2, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, m.BumpCounters(context.Background(), 5, 1, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectionExistsByFilepath(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("/foscam/frontdoor/FoscamCamera_X/snap/a.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := m.ExistsByFilepath(context.Background(), "/foscam/frontdoor/FoscamCamera_X/snap/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDetectionInsertFillsIDAndTimestamp(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	now := time.Now()
	mock.ExpectQuery("INSERT INTO detections").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(42, now))

	d := &data.Detection{
		Filename:  "MDAlarm_20240115-153045.jpg",
		Filepath:  "/foscam/frontdoor/cam/snap/MDAlarm_20240115-153045.jpg",
		MediaType: "image",
		CameraID:  1,
		Processed: true,
	}
	require.NoError(t, m.Insert(context.Background(), d))
	assert.Equal(t, int64(42), d.ID)
	assert.WithinDuration(t, now, d.Timestamp, time.Second)
}

func TestDetectionInsertUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	mock.ExpectQuery("INSERT INTO detections").
		WillReturnError(&pq.Error{Code: "23505"})

	err := m.Insert(context.Background(), &data.Detection{Filepath: "/dup"})
	require.Error(t, err)
	assert.True(t, data.IsUniqueViolation(err))
}

func TestReplaceAlertsRejectsUnknownKinds(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	mock.ExpectExec("DELETE FROM detection_alerts").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Catalog only matched one of the two requested kinds.
	mock.ExpectExec("INSERT INTO detection_alerts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.ReplaceAlerts(context.Background(), 7, []string{"PERSON_DETECTED", "BOGUS_KIND"}, 0.8)
	assert.Error(t, err)
}

func TestDetectionListBuildsFilters(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM detections").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	cols := []string{
		"id", "filename", "filepath", "media_type", "camera_id", "motion_type",
		"processed", "processing_time_seconds", "description", "confidence",
		"analysis_structured", "timestamp", "file_timestamp",
		"width", "height", "frame_count", "duration_seconds",
		"has_person", "has_vehicle", "has_package", "has_unusual_activity",
		"is_night_time", "alert_count", "thumbnail_path",
		"location", "full_name",
	}
	mock.ExpectQuery("JOIN cameras c ON").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			1, "a.jpg", "/p/a.jpg", "image", 1, "MD",
			true, 1.5, "SCENE: porch", 0.4,
			nil, time.Now(), time.Now(),
			1280, 720, nil, nil,
			true, false, false, false,
			false, 1, nil,
			"frontdoor", "frontdoor_cam",
		))

	items, total, err := m.List(context.Background(), data.ListFilter{
		Page:       1,
		PerPage:    10,
		Start:      &start,
		CameraIDs:  []int64{1},
		OnlyAlerts: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "frontdoor", items[0].CameraLocation)
	assert.True(t, items[0].HasPerson)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountStats(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"today", "week", "month", "total"}).
			AddRow(2, 9, 30, 120))

	s, err := m.CountStats(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Today)
	assert.Equal(t, 120, s.Total)
}

func TestHeatmapHourlyZeroFills(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	now := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT date_trunc").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "location", "count"}).
			AddRow(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), "frontdoor", 3))

	buckets, err := m.HeatmapHourly(context.Background(), false, nil, now)
	require.NoError(t, err)
	require.Len(t, buckets, 24)

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, buckets[9].Count)
	require.NotNil(t, buckets[9].Hour)
	assert.Equal(t, 9, *buckets[9].Hour)
}

func TestHeatmapDailyOmitsEmptyDays(t *testing.T) {
	db, mock := newMock(t)
	m := data.DetectionModel{DB: db}

	mock.ExpectQuery("SELECT date_trunc").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "location", "count"}).
			AddRow(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "frontdoor", 2).
			AddRow(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "backyard", 1).
			AddRow(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), "frontdoor", 5))

	buckets, err := m.HeatmapDaily(context.Background(), 7, true, nil, time.Now())
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-01-10", buckets[0].BucketDate)
	assert.Equal(t, 3, buckets[0].Count)
	assert.Equal(t, map[string]int{"frontdoor": 2, "backyard": 1}, buckets[0].CameraBreakdown)
	assert.Equal(t, 5, buckets[1].Count)

	// Daily buckets have no hour key in their JSON form.
	raw, err := json.Marshal(buckets[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"hour"`)
}

func TestAlertTypeList(t *testing.T) {
	db, mock := newMock(t)
	m := data.AlertTypeModel{DB: db}

	mock.ExpectQuery("FROM alert_types").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "priority"}).
			AddRow(1, "PERSON_DETECTED", "Person visible in frame", 10).
			AddRow(2, "VEHICLE_DETECTED", "Vehicle visible in frame", 8))

	types, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "PERSON_DETECTED", types[0].Name)
}

func TestStatsRecountFixesDrift(t *testing.T) {
	db, mock := newMock(t)
	m := data.StatsModel{DB: db}

	mock.ExpectQuery("LEFT JOIN detections").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "total_detections", "total_alerts",
			"actual_detections", "actual_alerts",
		}).AddRow(1, 10, 4, 12, 5))

	mock.ExpectExec("UPDATE cameras").
		WithArgs(12, 5, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	drifts, err := m.RecountCameras(context.Background())
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
