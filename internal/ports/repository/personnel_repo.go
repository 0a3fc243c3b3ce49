package repository

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PersonnelDirectory is the PostgreSQL-backed directory lookup.
type PersonnelDirectory struct {
	DB *sql.DB
}

// NewPersonnelDirectory create new instance
func NewPersonnelDirectory(db *sql.DB) Directory {
	return &PersonnelDirectory{DB: db}
}

// StationOf resolves the station a person is assigned to.
func (d *PersonnelDirectory) StationOf(ctx context.Context, personnelID int64) (int64, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("app.personnel_id", personnelID))

	var stationID int64
	query := `SELECT station_id FROM personnel WHERE id = $1`

	err := d.DB.QueryRowContext(ctx, query, personnelID).Scan(&stationID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	return stationID, nil
}
