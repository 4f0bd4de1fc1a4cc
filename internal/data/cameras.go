package data

import (
	"context"
	"database/sql"
)

type CameraModel struct {
	DB DBTX
}

// GetOrCreate upserts the camera row for (location, device_name), bumping
// last_seen on conflict. Atomic, so concurrent first-sight of a camera from
// crawler and watcher yields one row.
func (m CameraModel) GetOrCreate(ctx context.Context, location, deviceName, deviceType string) (*Camera, error) {
	query := `
		INSERT INTO cameras (location, device_name, device_type, full_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (location, device_name)
		DO UPDATE SET last_seen = NOW()
		RETURNING id, location, device_name, device_type, full_name,
		          created_at, last_seen, is_active, total_detections, total_alerts`

	fullName := location + "_" + deviceName

	var c Camera
	err := m.DB.QueryRowContext(ctx, query, location, deviceName, deviceType, fullName).Scan(
		&c.ID, &c.Location, &c.DeviceName, &c.DeviceType, &c.FullName,
		&c.CreatedAt, &c.LastSeen, &c.IsActive, &c.TotalDetections, &c.TotalAlerts,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID retrieves a single camera.
func (m CameraModel) GetByID(ctx context.Context, id int64) (*Camera, error) {
	query := `
		SELECT id, location, device_name, device_type, full_name,
		       created_at, last_seen, is_active, total_detections, total_alerts
		FROM cameras
		WHERE id = $1`

	var c Camera
	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Location, &c.DeviceName, &c.DeviceType, &c.FullName,
		&c.CreatedAt, &c.LastSeen, &c.IsActive, &c.TotalDetections, &c.TotalAlerts,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all cameras ordered by (location, device_name).
func (m CameraModel) List(ctx context.Context) ([]*Camera, error) {
	query := `
		SELECT id, location, device_name, device_type, full_name,
		       created_at, last_seen, is_active, total_detections, total_alerts
		FROM cameras
		ORDER BY location, device_name`

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		var c Camera
		if err := rows.Scan(
			&c.ID, &c.Location, &c.DeviceName, &c.DeviceType, &c.FullName,
			&c.CreatedAt, &c.LastSeen, &c.IsActive, &c.TotalDetections, &c.TotalAlerts,
		); err != nil {
			return nil, err
		}
		cameras = append(cameras, &c)
	}
	return cameras, rows.Err()
}

// BumpCounters adjusts the cached detection/alert counters and refreshes
// last_seen. Called only inside the artifact commit transaction.
func (m CameraModel) BumpCounters(ctx context.Context, id int64, deltaDetections, deltaAlerts int) error {
	query := `
		UPDATE cameras
		SET total_detections = total_detections + $1,
		    total_alerts = total_alerts + $2,
		    last_seen = NOW()
		WHERE id = $3`

	res, err := m.DB.ExecContext(ctx, query, deltaDetections, deltaAlerts, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
