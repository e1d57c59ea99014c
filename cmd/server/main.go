package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/orderharvest/internal/api"
	appinvoices "github.com/ahrav/orderharvest/internal/app/invoices"
	appsession "github.com/ahrav/orderharvest/internal/app/session"
	"github.com/ahrav/orderharvest/internal/config"
	"github.com/ahrav/orderharvest/internal/config/fileloader"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/internal/infra/collector"
	"github.com/ahrav/orderharvest/internal/infra/eventbus"
	busmemory "github.com/ahrav/orderharvest/internal/infra/eventbus/memory"
	"github.com/ahrav/orderharvest/internal/infra/invoices"
	"github.com/ahrav/orderharvest/internal/infra/notify"
	storefs "github.com/ahrav/orderharvest/internal/infra/storage/session/fs"
	storememory "github.com/ahrav/orderharvest/internal/infra/storage/session/memory"
	storepostgres "github.com/ahrav/orderharvest/internal/infra/storage/session/postgres"
	"github.com/ahrav/orderharvest/pkg/common"
	"github.com/ahrav/orderharvest/pkg/common/logger"
	"github.com/ahrav/orderharvest/pkg/common/otel"
)

const serviceType = "orderharvest"

func main() {
	_, _ = maxprocs.Set()

	configPath := flag.String("config", os.Getenv("ORDERHARVEST_CONFIG"), "path to the config file")
	flag.Parse()

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	log := logger.NewWithEvents(os.Stdout, logger.LevelInfo, serviceType, traceIDFn, logEvents)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, *configPath); err != nil {
		log.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, configPath string) error {
	cfg, err := fileloader.NewFileLoader(configPath).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tracer, telemetryTeardown, err := initTracer(ctx, log)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer telemetryTeardown(ctx)

	snapshots, settings, storeTeardown, err := buildStores(ctx, cfg, tracer)
	if err != nil {
		return fmt.Errorf("building stores: %w", err)
	}
	defer storeTeardown()

	bus := busmemory.NewBroker()
	defer bus.Close()
	publisher := eventbus.NewDomainEventPublisher(bus)

	bridge, err := collector.NewEventBusBridge(ctx, bus, publisher, cfg.Session.CollectorReadyWait, log, tracer)
	if err != nil {
		return fmt.Errorf("creating collector bridge: %w", err)
	}

	svc := appsession.NewService(
		appsession.Config{
			DefaultHost:         cfg.ResolvedDefaultHost(),
			OrdersLimit:         cfg.Session.OrdersLimit,
			FallbackFilterYears: cfg.Session.FallbackFilterYears,
		},
		appsession.Dependencies{
			Store:     snapshots,
			Settings:  settings,
			Bridge:    bridge,
			Notifier:  notify.NewLogNotifier(log),
			Pages:     collector.NewConfigContextProvider(cfg),
			Filters:   collector.UnavailableFilterSource{},
			Publisher: publisher,
			Log:       log,
			Tracer:    tracer,
		},
	)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	downloader := appinvoices.NewCoordinator(
		svc,
		invoices.NewHTTPResolver(httpClient, log, tracer),
		invoices.NewFileSaver(cfg.Downloads.Root, httpClient),
		log,
		tracer,
	)
	svc.AttachDownloader(downloader)
	svc.Hydrate(ctx)

	if metricsAddr := os.Getenv("METRICS_ADDR"); metricsAddr != "" {
		go func() {
			if err := common.RunMetricsServer(metricsAddr); err != nil {
				log.Error(ctx, "metrics server failed", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg, log, tracer, svc)
	if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}

	log.Info(ctx, "shutdown complete")
	return nil
}

// initTracer wires the OTLP exporter when an endpoint is configured and falls
// back to a noop tracer otherwise, so local runs need no collector.
func initTracer(ctx context.Context, log *logger.Logger) (trace.Tracer, func(ctx context.Context), error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return noop.NewTracerProvider().Tracer(serviceType), func(context.Context) {}, nil
	}

	prob := 1.0
	if raw := os.Getenv("OTEL_SAMPLING_RATIO"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing OTEL_SAMPLING_RATIO: %w", err)
		}
		prob = p
	}

	tp, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      serviceType,
		ExporterEndpoint: endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability:      prob,
		InsecureExporter: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return tp.Tracer(serviceType), teardown, nil
}

// buildStores constructs the snapshot and settings stores for the configured
// backend. The returned teardown releases backend resources.
func buildStores(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (domain.SnapshotStore, domain.SettingsStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		return storememory.NewSnapshotStore(), storememory.NewSettingsStore(), func() {}, nil

	case config.StorageBackendFile:
		return storefs.NewSnapshotStore(cfg.Storage.SnapshotPath),
			storefs.NewSettingsStore(cfg.Storage.SettingsPath),
			func() {}, nil

	case config.StorageBackendPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing postgres dsn: %w", err)
		}
		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening postgres pool: %w", err)
		}
		if err := runMigrations(pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		return storepostgres.NewSnapshotStore(pool, tracer),
			storepostgres.NewSettingsStore(pool, tracer),
			pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// runMigrations applies all up migrations from db/migrations.
func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create pgx driver: %w", err)
	}

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "file://db/migrations"
	}
	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}
