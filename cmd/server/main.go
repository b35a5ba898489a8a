package main

import (
	"context"
	"database/sql"
	"errors"
	"fleet-reposition-service/internal/adapters/cache"
	"fleet-reposition-service/internal/adapters/publisher"
	"fleet-reposition-service/internal/adapters/repositories"
	"fleet-reposition-service/internal/adapters/routing"
	"fleet-reposition-service/internal/api"
	"fleet-reposition-service/internal/config"
	"fleet-reposition-service/internal/dispatch"
	"fleet-reposition-service/internal/platform/db"
	"fleet-reposition-service/internal/platform/metrics"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/services"
	"fleet-reposition-service/internal/traveltime"
	"fleet-reposition-service/internal/zones"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

type stores struct {
	regions ports.RegionRepository
	drivers ports.DriverRepository
	pickups ports.PickupRepository
	cache   ports.TravelTimeCache
	close   func()
}

// main is the application composition root.
// It wires concrete adapters (Postgres or memory, Redis, ORS, AMQP) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found (using environment variables)")
	}

	logger := obs.Setup()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	port := config.Get("PORT", "8080")

	searchCfg, err := dispatch.LoadConfig(config.Get("SEARCH_CONFIG", "config/search.yaml"))
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(config.Get("REGION_TZ", "UTC"))
	if err != nil {
		return fmt.Errorf("load REGION_TZ: %w", err)
	}

	st, err := openStores(ctx, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Redis, when configured, is the shared travel-time tier; otherwise
	// Postgres is.
	rdb, err := cache.OpenRedis(ctx)
	if err != nil {
		return err
	}
	shared := st.cache
	if rdb != nil {
		defer rdb.Close()
		shared = cache.NewRedisTravelTimeCache(rdb, config.GetDuration("REDIS_TTL", 0))
		logger.Info("travel time cache backed by redis")
	}
	ttCache := traveltime.NewTieredCache(shared)

	routes, isochrones, err := openProviders(logger)
	if err != nil {
		return err
	}

	var pub ports.PlanPublisher = publisher.LogPublisher{Logger: logger}
	if url := strings.TrimSpace(os.Getenv("AMQP_URL")); url != "" {
		amqpPub, err := publisher.NewAMQPPublisher(url, config.Get("AMQP_EXCHANGE", publisher.DefaultExchange), logger)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		pub = amqpPub
	}

	dispatcher := &services.Dispatcher{
		Regions:        st.regions,
		Drivers:        st.drivers,
		Pickups:        st.pickups,
		Oracle:         traveltime.NewOracle(routes, ttCache),
		Engine:         zones.NewEngine(isochrones, searchCfg.NearTolerance),
		Publisher:      pub,
		Config:         searchCfg,
		Location:       loc,
		DensityDir:     os.Getenv("DENSITY_DIR"),
		MatrixParallel: config.GetInt("MATRIX_PARALLEL", 5),
	}

	router := api.NewRouter(st.regions, dispatcher)

	// Timeouts are tuned for cold-cache searches and rebuilds (external API latency).
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// openStores picks Postgres when DATABASE_URL is set and an in-memory store
// seeded from SEED_PATH otherwise.
func openStores(ctx context.Context, logger *slog.Logger) (*stores, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return memoryStores(config.Get("SEED_PATH", "data/seeds/demo.json"), logger)
	}

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := repositories.InitSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	roster := repositories.NewPostgresRosterRepository(conn)
	return &stores{
		regions: repositories.NewPostgresRegionRepository(conn),
		drivers: roster,
		pickups: roster,
		cache:   cache.NewSQLTravelTimeCache(conn),
		close:   func() { closeDB(conn, logger) },
	}, nil
}

func memoryStores(seedPath string, logger *slog.Logger) (*stores, error) {
	mem := repositories.NewMemory()
	seed, err := repositories.LoadSeed(seedPath)
	switch {
	case err == nil:
		mem = repositories.NewMemoryFromSeed(seed)
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("seed file not found, starting empty", "path", seedPath)
	default:
		return nil, err
	}
	return &stores{regions: mem, drivers: mem, pickups: mem, close: func() {}}, nil
}

func closeDB(conn *sql.DB, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Warn("close database", "err", err)
	}
}

// openProviders uses OpenRouteService when ORS_API_KEY is set and the
// straight-line mocks otherwise.
func openProviders(logger *slog.Logger) (ports.RoutingProvider, ports.IsochroneProvider, error) {
	orsKey := strings.TrimSpace(os.Getenv("ORS_API_KEY"))
	if orsKey == "" {
		logger.Warn("ORS_API_KEY not set, using mock routing and isochrone providers")
		return routing.NewMockRoutingProvider(config.GetFloat("MOCK_SECONDS_PER_DEGREE", 9000)),
			routing.NewMockIsochroneProvider(config.GetFloat("MOCK_ISOCHRONE_RADIUS", 0.01)),
			nil
	}

	opts := []routing.ORSOption{
		routing.WithRateLimit(config.GetFloat("ORS_RPS", 1), config.GetInt("ORS_BURST", 5)),
	}
	if base := os.Getenv("ORS_BASE_URL"); base != "" {
		opts = append(opts, routing.WithBaseURL(base))
	}
	client, err := routing.NewORSClient(orsKey, opts...)
	if err != nil {
		return nil, nil, err
	}

	routes, err := routing.NewORSRoutingProvider(client, os.Getenv("ORS_ROUTING_PROFILE"))
	if err != nil {
		return nil, nil, err
	}
	isochrones, err := routing.NewORSIsochroneProvider(client, os.Getenv("ORS_ISOCHRONE_PROFILE"))
	if err != nil {
		return nil, nil, err
	}
	return routes, isochrones, nil
}
