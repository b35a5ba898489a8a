package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fmt"
)

// Postgres-backed implementation of the DriverRepository and
// PickupRepository ports.
type PostgresRosterRepository struct{ DB *sql.DB }

func NewPostgresRosterRepository(db *sql.DB) *PostgresRosterRepository {
	return &PostgresRosterRepository{DB: db}
}

func (s *PostgresRosterRepository) ListDrivers(ctx context.Context, regionID int64) ([]domain.Driver, error) {
	if s.DB == nil {
		return nil, errors.New("postgres roster repository: DB is nil")
	}

	query := `
	SELECT
		driver_id,
		status,
		lon,
		lat,
		destination_zone
	FROM drivers
	WHERE region_id = $1
	ORDER BY driver_id;
	`
	rows, err := s.DB.QueryContext(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("list drivers: query drivers table: %w", err)
	}
	defer rows.Close()

	drivers := make([]domain.Driver, 0, 64)
	for rows.Next() {
		var (
			d      domain.Driver
			status string
			dest   sql.NullInt32
		)
		if err := rows.Scan(&d.ID, &status, &d.Position.Lon, &d.Position.Lat, &dest); err != nil {
			return nil, fmt.Errorf("list drivers: scan row: %w", err)
		}
		d.RegionID = regionID
		d.Status, err = domain.ParseDriverStatus(status)
		if err != nil {
			return nil, fmt.Errorf("list drivers: driver_id=%q: %w", d.ID, err)
		}
		if dest.Valid {
			z := int(dest.Int32)
			d.DestinationZone = &z
		}
		drivers = append(drivers, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drivers: row iteration: %w", err)
	}

	return drivers, nil
}

func (s *PostgresRosterRepository) ListPickups(ctx context.Context, regionID int64) ([]domain.Pickup, error) {
	if s.DB == nil {
		return nil, errors.New("postgres roster repository: DB is nil")
	}

	query := `
	SELECT
		pickup_id,
		lon,
		lat,
		picked_up_at
	FROM pickups
	WHERE region_id = $1
	ORDER BY picked_up_at, pickup_id;
	`
	rows, err := s.DB.QueryContext(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("list pickups: query pickups table: %w", err)
	}
	defer rows.Close()

	pickups := make([]domain.Pickup, 0, 256)
	for rows.Next() {
		p := domain.Pickup{RegionID: regionID}
		if err := rows.Scan(&p.ID, &p.Position.Lon, &p.Position.Lat, &p.At); err != nil {
			return nil, fmt.Errorf("list pickups: scan row: %w", err)
		}
		pickups = append(pickups, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pickups: row iteration: %w", err)
	}

	return pickups, nil
}
