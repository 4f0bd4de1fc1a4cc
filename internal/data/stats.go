package data

import (
	"context"
	"log"
)

// StatsModel owns the background verification and roll-up work: recounting
// the cached camera counters and rebuilding the processing_stats table.
type StatsModel struct {
	DB DBTX
}

// CounterDrift reports a camera whose cached counters disagree with the
// aggregates over its detection rows.
type CounterDrift struct {
	CameraID         int64
	CachedDetections int
	ActualDetections int
	CachedAlerts     int
	ActualAlerts     int
}

// RecountCameras recomputes every camera's counters from the detections
// table, fixes any drift, and returns what was corrected. Counters are
// eventually consistent; drift here means a crashed commit or operator edit.
func (m StatsModel) RecountCameras(ctx context.Context) ([]*CounterDrift, error) {
	query := `
		SELECT c.id, c.total_detections, c.total_alerts,
		       COUNT(d.id), COALESCE(SUM(d.alert_count), 0)
		FROM cameras c
		LEFT JOIN detections d ON d.camera_id = c.id
		GROUP BY c.id, c.total_detections, c.total_alerts`

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifted []*CounterDrift
	for rows.Next() {
		var d CounterDrift
		if err := rows.Scan(&d.CameraID, &d.CachedDetections, &d.CachedAlerts,
			&d.ActualDetections, &d.ActualAlerts); err != nil {
			return nil, err
		}
		if d.CachedDetections != d.ActualDetections || d.CachedAlerts != d.ActualAlerts {
			drifted = append(drifted, &d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, d := range drifted {
		log.Printf("[Stats] Counter drift on camera %d: detections %d->%d, alerts %d->%d",
			d.CameraID, d.CachedDetections, d.ActualDetections, d.CachedAlerts, d.ActualAlerts)
		_, err := m.DB.ExecContext(ctx,
			`UPDATE cameras SET total_detections = $1, total_alerts = $2 WHERE id = $3`,
			d.ActualDetections, d.ActualAlerts, d.CameraID,
		)
		if err != nil {
			return drifted, err
		}
	}
	return drifted, nil
}

// RebuildProcessingStats regenerates the per-(date, hour, camera) roll-up
// from scratch. Cheap enough to run on demand; the dashboard reads it for
// long-window trend charts.
func (m StatsModel) RebuildProcessingStats(ctx context.Context) error {
	if _, err := m.DB.ExecContext(ctx, `DELETE FROM processing_stats`); err != nil {
		return err
	}

	query := `
		INSERT INTO processing_stats (
			date, hour, camera_id, files_processed, images_processed,
			videos_processed, avg_processing_time, total_processing_time,
			avg_confidence, total_alerts
		)
		SELECT
			date_trunc('day', file_timestamp),
			EXTRACT(HOUR FROM file_timestamp)::int,
			camera_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE media_type = 'image'),
			COUNT(*) FILTER (WHERE media_type = 'video'),
			AVG(processing_time_seconds),
			SUM(processing_time_seconds),
			AVG(confidence),
			COALESCE(SUM(alert_count), 0)
		FROM detections
		WHERE processed = TRUE AND file_timestamp IS NOT NULL
		GROUP BY 1, 2, 3`

	_, err := m.DB.ExecContext(ctx, query)
	return err
}
