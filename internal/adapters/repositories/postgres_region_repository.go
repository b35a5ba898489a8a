package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-reposition-service/internal/density"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/zones"
	"fmt"
	"time"
)

// Postgres-backed implementation of the RegionRepository port.
type PostgresRegionRepository struct{ DB *sql.DB }

func NewPostgresRegionRepository(db *sql.DB) *PostgresRegionRepository {
	return &PostgresRegionRepository{DB: db}
}

const selectRegion = `
	SELECT
		region_id,
		name,
		zones_geojson,
		samples_json,
		density_json,
		built_at
	FROM regions
	`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegion(row rowScanner) (*domain.Region, error) {
	var (
		r                             domain.Region
		zonesRaw, samplesRaw, densRaw []byte
		builtAt                       sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Name, &zonesRaw, &samplesRaw, &densRaw, &builtAt); err != nil {
		return nil, err
	}

	if len(zonesRaw) > 0 {
		zs, err := zones.UnmarshalZones(zonesRaw)
		if err != nil {
			return nil, fmt.Errorf("region_id=%d: %w", r.ID, err)
		}
		r.Zones = zs
	}
	if len(samplesRaw) > 0 {
		samples, err := density.UnmarshalSamples(samplesRaw)
		if err != nil {
			return nil, fmt.Errorf("region_id=%d: %w", r.ID, err)
		}
		r.Samples = samples
	}
	if len(densRaw) > 0 {
		table, err := density.UnmarshalTable(densRaw)
		if err != nil {
			return nil, fmt.Errorf("region_id=%d: %w", r.ID, err)
		}
		r.Density = table
	}
	if builtAt.Valid {
		t := builtAt.Time
		r.BuiltAt = &t
	}
	return &r, nil
}

func (s *PostgresRegionRepository) GetRegion(ctx context.Context, id int64) (_ *domain.Region, err error) {
	defer obs.Time(ctx, "repo.GetRegion")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres region repository: DB is nil")
	}

	r, err := scanRegion(s.DB.QueryRowContext(ctx, selectRegion+`WHERE region_id = $1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get region %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get region %d: %w", id, err)
	}
	return r, nil
}

func (s *PostgresRegionRepository) ListRegions(ctx context.Context) ([]*domain.Region, error) {
	if s.DB == nil {
		return nil, errors.New("postgres region repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, selectRegion+`ORDER BY region_id;`)
	if err != nil {
		return nil, fmt.Errorf("list regions: query regions table: %w", err)
	}
	defer rows.Close()

	regions := make([]*domain.Region, 0, 8)
	for rows.Next() {
		r, err := scanRegion(rows)
		if err != nil {
			return nil, fmt.Errorf("list regions: scan row: %w", err)
		}
		regions = append(regions, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list regions: row iteration: %w", err)
	}

	return regions, nil
}

func (s *PostgresRegionRepository) SaveRegionZones(
	ctx context.Context,
	id int64,
	zs []domain.Zone,
	samples []domain.DensitySample,
	table domain.DensityTable,
) (err error) {
	defer obs.Time(ctx, "repo.SaveRegionZones")(&err)

	if s.DB == nil {
		return errors.New("postgres region repository: DB is nil")
	}

	zonesRaw, err := zones.MarshalZones(zs)
	if err != nil {
		return fmt.Errorf("save region %d: %w", id, err)
	}
	samplesRaw, err := density.MarshalSamples(samples)
	if err != nil {
		return fmt.Errorf("save region %d: %w", id, err)
	}
	densRaw, err := density.MarshalTable(table)
	if err != nil {
		return fmt.Errorf("save region %d: %w", id, err)
	}

	res, err := s.DB.ExecContext(ctx, `
	UPDATE regions
	SET zones_geojson = $2, samples_json = $3, density_json = $4, built_at = $5
	WHERE region_id = $1;
	`, id, zonesRaw, samplesRaw, densRaw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save region %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save region %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("save region %d: %w", id, ports.ErrNotFound)
	}
	return nil
}
