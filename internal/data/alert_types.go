package data

import "context"

type AlertTypeModel struct {
	DB DBTX
}

// List returns the full catalog ordered by priority descending.
func (m AlertTypeModel) List(ctx context.Context) ([]*AlertType, error) {
	query := `
		SELECT id, name, description, priority
		FROM alert_types
		ORDER BY priority DESC, name`

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AlertType
	for rows.Next() {
		var at AlertType
		if err := rows.Scan(&at.ID, &at.Name, &at.Description, &at.Priority); err != nil {
			return nil, err
		}
		out = append(out, &at)
	}
	return out, rows.Err()
}

// AlertsFor returns the catalog names of every alert fired for a detection.
func (m AlertTypeModel) AlertsFor(ctx context.Context, detectionID int64) ([]string, error) {
	query := `
		SELECT at.name
		FROM detection_alerts da
		JOIN alert_types at ON at.id = da.alert_type_id
		WHERE da.detection_id = $1
		ORDER BY at.priority DESC, at.name`

	rows, err := m.DB.QueryContext(ctx, query, detectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
