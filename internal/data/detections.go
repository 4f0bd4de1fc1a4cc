package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

type DetectionModel struct {
	DB DBTX
}

const detectionColumns = `
	d.id, d.filename, d.filepath, d.media_type, d.camera_id, d.motion_type,
	d.processed, d.processing_time_seconds, d.description, d.confidence,
	d.analysis_structured, d.timestamp, d.file_timestamp,
	d.width, d.height, d.frame_count, d.duration_seconds,
	d.has_person, d.has_vehicle, d.has_package, d.has_unusual_activity,
	d.is_night_time, d.alert_count, d.thumbnail_path`

func scanDetection(row interface{ Scan(...any) error }) (*Detection, error) {
	var d Detection
	var motionType sql.NullString
	var analysis []byte
	var fileTS sql.NullTime
	var frameCount sql.NullInt64
	var duration sql.NullFloat64
	var thumb sql.NullString

	err := row.Scan(
		&d.ID, &d.Filename, &d.Filepath, &d.MediaType, &d.CameraID, &motionType,
		&d.Processed, &d.ProcessingTimeSeconds, &d.Description, &d.Confidence,
		&analysis, &d.Timestamp, &fileTS,
		&d.Width, &d.Height, &frameCount, &duration,
		&d.HasPerson, &d.HasVehicle, &d.HasPackage, &d.HasUnusualActivity,
		&d.IsNightTime, &d.AlertCount, &thumb,
	)
	if err != nil {
		return nil, err
	}

	d.MotionType = motionType.String
	d.AnalysisStructured = analysis
	if fileTS.Valid {
		t := fileTS.Time
		d.FileTimestamp = &t
	}
	if frameCount.Valid {
		n := int(frameCount.Int64)
		d.FrameCount = &n
	}
	if duration.Valid {
		v := duration.Float64
		d.DurationSeconds = &v
	}
	if thumb.Valid {
		s := thumb.String
		d.ThumbnailPath = &s
	}
	return &d, nil
}

// ExistsByFilepath is the dedupe check: one detection per source file, ever.
func (m DetectionModel) ExistsByFilepath(ctx context.Context, filepath string) (bool, error) {
	var exists bool
	err := m.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM detections WHERE filepath = $1)`, filepath,
	).Scan(&exists)
	return exists, err
}

// Insert writes a new detection and fills ID and Timestamp from the DB.
// A unique violation on filepath bubbles up for the caller to classify.
func (m DetectionModel) Insert(ctx context.Context, d *Detection) error {
	query := `
		INSERT INTO detections (
			filename, filepath, media_type, camera_id, motion_type,
			processed, processing_time_seconds, description, confidence,
			analysis_structured, file_timestamp, width, height,
			frame_count, duration_seconds,
			has_person, has_vehicle, has_package, has_unusual_activity,
			is_night_time, alert_count, thumbnail_path
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, timestamp`

	var motionType any
	if d.MotionType != "" {
		motionType = d.MotionType
	}
	var analysis any
	if len(d.AnalysisStructured) > 0 {
		analysis = d.AnalysisStructured
	}

	return m.DB.QueryRowContext(ctx, query,
		d.Filename, d.Filepath, d.MediaType, d.CameraID, motionType,
		d.Processed, d.ProcessingTimeSeconds, d.Description, d.Confidence,
		analysis, d.FileTimestamp, d.Width, d.Height,
		d.FrameCount, d.DurationSeconds,
		d.HasPerson, d.HasVehicle, d.HasPackage, d.HasUnusualActivity,
		d.IsNightTime, d.AlertCount, d.ThumbnailPath,
	).Scan(&d.ID, &d.Timestamp)
}

// GetByID retrieves one detection.
func (m DetectionModel) GetByID(ctx context.Context, id int64) (*Detection, error) {
	query := `SELECT ` + detectionColumns + ` FROM detections d WHERE d.id = $1`
	d, err := scanDetection(m.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	return d, err
}

// ReplaceAlerts rewrites the detection_alerts rows for a detection to exactly
// the named kinds. Runs inside the commit transaction so the junction rows
// and the denormalized flags can never diverge.
func (m DetectionModel) ReplaceAlerts(ctx context.Context, detectionID int64, kinds []string, confidence float64) error {
	if _, err := m.DB.ExecContext(ctx,
		`DELETE FROM detection_alerts WHERE detection_id = $1`, detectionID,
	); err != nil {
		return err
	}
	if len(kinds) == 0 {
		return nil
	}

	query := `
		INSERT INTO detection_alerts (detection_id, alert_type_id, confidence)
		SELECT $1, at.id, $2
		FROM alert_types at
		WHERE at.name = ANY($3)`

	res, err := m.DB.ExecContext(ctx, query, detectionID, confidence, pq.Array(kinds))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != len(kinds) {
		return fmt.Errorf("alert catalog missing kinds: wrote %d of %d", n, len(kinds))
	}
	return nil
}

// ListFilter narrows the paged detection listing.
type ListFilter struct {
	Page       int
	PerPage    int
	Start      *time.Time
	End        *time.Time
	CameraIDs  []int64
	OnlyAlerts bool
}

// DetectionWithCamera joins the camera display fields the dashboard needs.
type DetectionWithCamera struct {
	Detection
	CameraLocation string `json:"camera_location"`
	CameraFullName string `json:"camera_full_name"`
}

// List returns one page of processed detections ordered by file_timestamp
// descending (id descending as tiebreak) plus the unpaged total.
func (m DetectionModel) List(ctx context.Context, f ListFilter) ([]*DetectionWithCamera, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 50
	}

	var conds []string
	var args []any
	conds = append(conds, "d.processed = TRUE")
	if f.Start != nil {
		args = append(args, *f.Start)
		conds = append(conds, fmt.Sprintf("d.file_timestamp >= $%d", len(args)))
	}
	if f.End != nil {
		args = append(args, *f.End)
		conds = append(conds, fmt.Sprintf("d.file_timestamp <= $%d", len(args)))
	}
	if len(f.CameraIDs) > 0 {
		args = append(args, pq.Array(f.CameraIDs))
		conds = append(conds, fmt.Sprintf("d.camera_id = ANY($%d)", len(args)))
	}
	if f.OnlyAlerts {
		conds = append(conds, "d.alert_count > 0")
	}
	where := strings.Join(conds, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM detections d WHERE ` + where
	if err := m.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	query := `
		SELECT ` + detectionColumns + `, c.location, c.full_name
		FROM detections d
		JOIN cameras c ON c.id = d.camera_id
		WHERE ` + where + `
		ORDER BY d.file_timestamp DESC NULLS LAST, d.id DESC
		LIMIT $` + fmt.Sprint(len(args)-1) + ` OFFSET $` + fmt.Sprint(len(args))

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*DetectionWithCamera
	for rows.Next() {
		var dc DetectionWithCamera
		var motionType sql.NullString
		var analysis []byte
		var fileTS sql.NullTime
		var frameCount sql.NullInt64
		var duration sql.NullFloat64
		var thumb sql.NullString

		err := rows.Scan(
			&dc.ID, &dc.Filename, &dc.Filepath, &dc.MediaType, &dc.CameraID, &motionType,
			&dc.Processed, &dc.ProcessingTimeSeconds, &dc.Description, &dc.Confidence,
			&analysis, &dc.Timestamp, &fileTS,
			&dc.Width, &dc.Height, &frameCount, &duration,
			&dc.HasPerson, &dc.HasVehicle, &dc.HasPackage, &dc.HasUnusualActivity,
			&dc.IsNightTime, &dc.AlertCount, &thumb,
			&dc.CameraLocation, &dc.CameraFullName,
		)
		if err != nil {
			return nil, 0, err
		}
		dc.MotionType = motionType.String
		dc.AnalysisStructured = analysis
		if fileTS.Valid {
			t := fileTS.Time
			dc.FileTimestamp = &t
		}
		if frameCount.Valid {
			n := int(frameCount.Int64)
			dc.FrameCount = &n
		}
		if duration.Valid {
			v := duration.Float64
			dc.DurationSeconds = &v
		}
		if thumb.Valid {
			s := thumb.String
			dc.ThumbnailPath = &s
		}
		out = append(out, &dc)
	}
	return out, total, rows.Err()
}

// Stats holds detection counts over the dashboard's standard windows.
type Stats struct {
	Today int `json:"today"`
	Week  int `json:"week"`
	Month int `json:"month"`
	Total int `json:"total"`
}

// CountStats computes the today/week/month/total windows in one pass.
// "Today" starts at local midnight; week and month are rolling.
func (m DetectionModel) CountStats(ctx context.Context, cameraIDs []int64, now time.Time) (*Stats, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE file_timestamp >= $1),
			COUNT(*) FILTER (WHERE file_timestamp >= $2),
			COUNT(*) FILTER (WHERE file_timestamp >= $3),
			COUNT(*)
		FROM detections
		WHERE processed = TRUE`
	args := []any{midnight, weekAgo, monthAgo}
	if len(cameraIDs) > 0 {
		query += ` AND camera_id = ANY($4)`
		args = append(args, pq.Array(cameraIDs))
	}

	var s Stats
	if err := m.DB.QueryRowContext(ctx, query, args...).Scan(&s.Today, &s.Week, &s.Month, &s.Total); err != nil {
		return nil, err
	}
	return &s, nil
}

// HeatmapBucket is one aggregate cell for the dashboard heatmaps. Daily
// buckets carry BucketDate, hourly buckets carry Hour; the unused key stays
// out of the JSON.
type HeatmapBucket struct {
	BucketDate      string         `json:"bucket_date,omitempty"`
	Hour            *int           `json:"hour,omitempty"`
	Count           int            `json:"count"`
	CameraBreakdown map[string]int `json:"camera_breakdown,omitempty"`
}

// HeatmapDaily aggregates detections per day over the trailing window.
// Buckets with zero detections are omitted, matching the dashboard contract.
func (m DetectionModel) HeatmapDaily(ctx context.Context, days int, perCamera bool, cameraIDs []int64, now time.Time) ([]*HeatmapBucket, error) {
	if days <= 0 {
		days = 30
	}
	start := now.AddDate(0, 0, -days)

	query := `
		SELECT date_trunc('day', d.file_timestamp), c.location, COUNT(*)
		FROM detections d
		JOIN cameras c ON c.id = d.camera_id
		WHERE d.processed = TRUE
		  AND d.file_timestamp >= $1 AND d.file_timestamp <= $2`
	args := []any{start, now}
	if len(cameraIDs) > 0 {
		args = append(args, pq.Array(cameraIDs))
		query += fmt.Sprintf(" AND d.camera_id = ANY($%d)", len(args))
	}
	query += `
		GROUP BY 1, 2
		ORDER BY 1`

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[string]*HeatmapBucket)
	var order []string
	for rows.Next() {
		var day time.Time
		var location string
		var count int
		if err := rows.Scan(&day, &location, &count); err != nil {
			return nil, err
		}
		key := day.Format("2006-01-02")
		b, ok := byDay[key]
		if !ok {
			b = &HeatmapBucket{BucketDate: key}
			if perCamera {
				b.CameraBreakdown = make(map[string]int)
			}
			byDay[key] = b
			order = append(order, key)
		}
		b.Count += count
		if perCamera {
			b.CameraBreakdown[location] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*HeatmapBucket, 0, len(order))
	for _, key := range order {
		out = append(out, byDay[key])
	}
	return out, nil
}

// HeatmapHourly aggregates the last 24 hours ending now, bucketed by
// start-of-hour. All 24 buckets are returned, zeros included.
func (m DetectionModel) HeatmapHourly(ctx context.Context, perCamera bool, cameraIDs []int64, now time.Time) ([]*HeatmapBucket, error) {
	start := now.Add(-24 * time.Hour)

	query := `
		SELECT date_trunc('hour', d.file_timestamp), c.location, COUNT(*)
		FROM detections d
		JOIN cameras c ON c.id = d.camera_id
		WHERE d.processed = TRUE
		  AND d.file_timestamp >= $1 AND d.file_timestamp <= $2`
	args := []any{start, now}
	if len(cameraIDs) > 0 {
		args = append(args, pq.Array(cameraIDs))
		query += fmt.Sprintf(" AND d.camera_id = ANY($%d)", len(args))
	}
	query += `
		GROUP BY 1, 2
		ORDER BY 1`

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type hourAgg struct {
		count     int
		breakdown map[string]int
	}
	byHour := make(map[int]*hourAgg)
	for rows.Next() {
		var bucket time.Time
		var location string
		var count int
		if err := rows.Scan(&bucket, &location, &count); err != nil {
			return nil, err
		}
		h := bucket.In(now.Location()).Hour()
		agg, ok := byHour[h]
		if !ok {
			agg = &hourAgg{breakdown: make(map[string]int)}
			byHour[h] = agg
		}
		agg.count += count
		agg.breakdown[location] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*HeatmapBucket, 0, 24)
	for h := 0; h < 24; h++ {
		hour := h
		b := &HeatmapBucket{Hour: &hour}
		if agg, ok := byHour[h]; ok {
			b.Count = agg.count
			if perCamera {
				b.CameraBreakdown = agg.breakdown
			}
		}
		out = append(out, b)
	}
	return out, nil
}
