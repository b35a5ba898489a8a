package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres database schema.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRegionsQuery := `
	CREATE TABLE IF NOT EXISTS regions (
		region_id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		zones_geojson JSONB,
		samples_json JSONB,
		density_json JSONB,
		built_at TIMESTAMPTZ
	);
	`

	createDriversQuery := `
	CREATE TABLE IF NOT EXISTS drivers (
		driver_id TEXT PRIMARY KEY,
		region_id BIGINT NOT NULL REFERENCES regions(region_id),
		status TEXT NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		destination_zone INTEGER
	);
	`

	createPickupsQuery := `
	CREATE TABLE IF NOT EXISTS pickups (
		pickup_id BIGSERIAL PRIMARY KEY,
		region_id BIGINT NOT NULL REFERENCES regions(region_id),
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		picked_up_at TIMESTAMPTZ NOT NULL
	);
	`

	createTravelTimeCacheQuery := `
	CREATE TABLE IF NOT EXISTS travel_time_cache (
		cache_key TEXT PRIMARY KEY,
		duration_seconds INTEGER NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_pickups_region_time
	ON pickups(region_id, picked_up_at, pickup_id);
	`

	statements := []string{
		createRegionsQuery,
		createDriversQuery,
		createPickupsQuery,
		createTravelTimeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Populate the database with regions, drivers and pickups from a JSON file.
// Regions and drivers are upserted; pickups are appended only for regions
// that have none yet.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	seed, err := LoadSeed(jsonPath)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range seed.Regions {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO regions (region_id, name)
		VALUES ($1, $2)
		ON CONFLICT (region_id) DO UPDATE SET name = EXCLUDED.name;
		`, r.ID, r.Name)
		if err != nil {
			return fmt.Errorf("seed: insert region_id=%d: %w", r.ID, err)
		}
	}

	driverStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO drivers (driver_id, region_id, status, lon, lat, destination_zone)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (driver_id) DO UPDATE SET
		region_id = EXCLUDED.region_id,
		status = EXCLUDED.status,
		lon = EXCLUDED.lon,
		lat = EXCLUDED.lat,
		destination_zone = EXCLUDED.destination_zone;
	`)
	if err != nil {
		return fmt.Errorf("seed: prepare driver insert: %w", err)
	}
	defer driverStmt.Close()

	for _, d := range seed.Drivers {
		var dest sql.NullInt32
		if d.DestinationZone != nil {
			dest = sql.NullInt32{Int32: int32(*d.DestinationZone), Valid: true}
		}
		if _, err := driverStmt.ExecContext(ctx, d.ID, d.RegionID, d.Status, d.Lon, d.Lat, dest); err != nil {
			return fmt.Errorf("seed: insert driver_id=%q: %w", d.ID, err)
		}
	}

	seeded := map[int64]bool{}
	for _, r := range seed.Regions {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pickups WHERE region_id = $1;`, r.ID).Scan(&n); err != nil {
			return fmt.Errorf("seed: count pickups region_id=%d: %w", r.ID, err)
		}
		seeded[r.ID] = n > 0
	}

	pickupStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pickups (region_id, lon, lat, picked_up_at)
	VALUES ($1, $2, $3, $4);
	`)
	if err != nil {
		return fmt.Errorf("seed: prepare pickup insert: %w", err)
	}
	defer pickupStmt.Close()

	for i, p := range seed.Pickups {
		if seeded[p.RegionID] {
			continue
		}
		if _, err := pickupStmt.ExecContext(ctx, p.RegionID, p.Lon, p.Lat, p.At); err != nil {
			return fmt.Errorf("seed: insert pickup #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
