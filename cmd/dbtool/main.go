package main

import (
	"context"
	"database/sql"
	"flag"
	"fleet-reposition-service/internal/adapters/repositories"
	"fleet-reposition-service/internal/adapters/routing"
	"fleet-reposition-service/internal/config"
	"fleet-reposition-service/internal/dispatch"
	"fleet-reposition-service/internal/platform/db"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/services"
	"fleet-reposition-service/internal/zones"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "rebuild zones and density for every region after seeding")
	horizon := flag.Int("seconds", zones.DefaultHorizonSeconds, "isochrone horizon used when rebuilding")
	interval := flag.Int("min-interval", zones.DefaultIntervalMinutes, "density sample interval in minutes")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found (using environment variables)")
	}
	logger := obs.Setup()

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/demo.json")
	if err := initAndSeed(ctx, logger, conn, seedPath); err != nil {
		logger.Error("init and seed", "err", err)
		os.Exit(1)
	}

	if !*rebuild {
		return
	}
	if err := rebuildAll(ctx, logger, conn, services.RebuildOptions{HorizonSeconds: *horizon, IntervalMinutes: *interval}); err != nil {
		logger.Error("rebuild", "err", err)
		os.Exit(1)
	}
}

func initAndSeed(ctx context.Context, logger *slog.Logger, conn *sql.DB, seedPath string) error {
	logger.Info("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}
	logger.Info("Schema ready.")

	logger.Info("Seeding database...", "path", seedPath)
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return err
	}
	logger.Info("Seeding complete.")

	return nil
}

func rebuildAll(ctx context.Context, logger *slog.Logger, conn *sql.DB, opts services.RebuildOptions) error {
	var isochrones ports.IsochroneProvider = routing.NewMockIsochroneProvider(config.GetFloat("MOCK_ISOCHRONE_RADIUS", 0.01))
	if key := strings.TrimSpace(os.Getenv("ORS_API_KEY")); key != "" {
		client, err := routing.NewORSClient(key, routing.WithRateLimit(config.GetFloat("ORS_RPS", 1), config.GetInt("ORS_BURST", 5)))
		if err != nil {
			return err
		}
		iso, err := routing.NewORSIsochroneProvider(client, os.Getenv("ORS_ISOCHRONE_PROFILE"))
		if err != nil {
			return err
		}
		isochrones = iso
	} else {
		logger.Warn("ORS_API_KEY not set, rebuilding with mock isochrones")
	}

	cfg, err := dispatch.LoadConfig(config.Get("SEARCH_CONFIG", "config/search.yaml"))
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(config.Get("REGION_TZ", "UTC"))
	if err != nil {
		return err
	}

	roster := repositories.NewPostgresRosterRepository(conn)
	d := &services.Dispatcher{
		Regions:    repositories.NewPostgresRegionRepository(conn),
		Pickups:    roster,
		Drivers:    roster,
		Engine:     zones.NewEngine(isochrones, cfg.NearTolerance),
		Config:     cfg,
		Location:   loc,
		DensityDir: os.Getenv("DENSITY_DIR"),
	}

	results, err := d.RebuildAllRegions(ctx, opts)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			logger.Error("region rebuild failed", "region_id", r.RegionID, "err", r.Err)
			continue
		}
		logger.Info("region rebuilt", "region_id", r.RegionID, "zones", r.Zones)
	}
	return nil
}
