// devcaps compiles a raw device catalog into an immutable capability table
// and answers "what can this device do right now" queries against it.
//
// At startup the catalog is loaded from YAML files or SQLite, compiled and
// validated, and the compile report is logged. When MQTT is enabled the
// process then serves resolutions for snapshots published on
// devcaps/snapshot/{device_type}/{device_id}; when InfluxDB is enabled it
// records resolver statistics; when the API is enabled it answers HTTP
// queries under /api/v1. With nothing enabled it exits after the compile
// report once signalled, which makes it usable as a catalog checker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-devcaps/migrations"

	"github.com/nerrad567/gray-logic-devcaps/internal/api"
	"github.com/nerrad567/gray-logic-devcaps/internal/bridge"
	"github.com/nerrad567/gray-logic-devcaps/internal/catalog"
	"github.com/nerrad567/gray-logic-devcaps/internal/compiler"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-devcaps/internal/resolver"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/devcaps.yaml"

// configEnvVar overrides defaultConfigPath.
const configEnvVar = "DEVCAPS_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting devcaps",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"catalog_source", cfg.Catalog.Source,
		"catalog_path", cfg.Catalog.Path,
		"mask_policy", cfg.Compiler.MaskPolicy,
		"strict", cfg.Compiler.Strict,
	)

	// Catalog
	var db *database.DB
	if cfg.UsesDatabase() {
		db, err = openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	cat, err := loadCatalog(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	log.Info("catalog loaded",
		"descriptors", cat.Len(),
		"versioned_bases", len(cat.VersionBases()),
		"sources", len(cat.Sources()),
	)

	if cfg.Catalog.ImportToDatabase {
		if err := catalog.SaveSQLite(ctx, db, cat); err != nil {
			return fmt.Errorf("importing catalog: %w", err)
		}
		log.Info("catalog imported", "path", db.Path())
	}

	// Compile
	table, report, err := compileCatalog(cfg.Compiler, cat, log)
	if err != nil {
		return err
	}

	res := resolver.New(table)
	res.SetLogger(log.With("component", "resolver"))

	// Adapters
	g, gctx := errgroup.WithContext(ctx)

	var (
		mqttClient *mqtt.Client
		snapshots  *bridge.SnapshotBridge
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connection established, subscriptions restored")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)

		snapshots, err = bridge.NewSnapshotBridge(bridge.SnapshotBridgeOptions{
			MQTT:     mqttClient,
			Resolver: res,
			QoS:      mqttClient.QoS(),
			Logger:   log.With("component", "bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating snapshot bridge: %w", err)
		}
		g.Go(func() error { return snapshots.Run(gctx) })
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		fingerprint := table.Fingerprint().String()
		influxClient.WriteCatalogSummary(influxdb.CatalogSummary{
			Fingerprint: fingerprint,
			Source:      cfg.Catalog.Source,
			Valid:       len(report.Valid),
			Excluded:    len(report.Excluded),
			Warnings:    len(report.Warnings),
		}, time.Now())

		opts := bridge.StatsExporterOptions{
			Resolver:    res,
			Writer:      influxClient,
			Fingerprint: fingerprint,
			Interval:    cfg.GetStatsInterval(),
			Logger:      log.With("component", "stats"),
		}
		if snapshots != nil {
			opts.Bridge = snapshots
		}
		exporter, err := bridge.NewStatsExporter(opts)
		if err != nil {
			return fmt.Errorf("creating stats exporter: %w", err)
		}
		g.Go(func() error { return exporter.Run(gctx) })
	}

	if cfg.API.Enabled {
		apiServer, err := startAPI(gctx, cfg, res, report, mqttClient, snapshots, log)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("devcaps started", "device_types", table.Len())

	// gctx is also cancelled if an adapter fails.
	<-gctx.Done()
	log.Info("shutting down...")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("adapter stopped: %w", err)
	}

	log.Info("devcaps stopped", "stats", res.Stats())
	return nil
}

// loadConfig reads path. A missing file at the default location falls back
// to built-in defaults; an explicitly configured path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

// openDatabase opens the SQLite database and applies the catalog schema.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already returning the migration error
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// loadCatalog reads the raw catalog from the configured source.
func loadCatalog(ctx context.Context, cfg *config.Config, db *database.DB) (*catalog.Catalog, error) {
	switch cfg.Catalog.Source {
	case config.SourceFile:
		return catalog.LoadFile(cfg.Catalog.Path)
	case config.SourceDir:
		return catalog.LoadDir(cfg.Catalog.Path)
	case config.SourceSQLite:
		return catalog.LoadSQLite(ctx, db, db.Path())
	default:
		return catalog.Load(cfg.Catalog.Path)
	}
}

// compileCatalog builds the capability table and logs the report.
// In strict mode any exclusion is fatal.
func compileCatalog(cfg config.CompilerConfig, cat *catalog.Catalog, log *logging.Logger) (*compiler.Table, *compiler.Report, error) {
	policy, err := compiler.ParseMaskPolicy(cfg.MaskPolicy)
	if err != nil {
		return nil, nil, err
	}

	opts := compiler.DefaultOptions()
	opts.Condition.MaskPolicy = policy
	opts.Condition.MaskWidthBits = cfg.MaskWidthBits
	opts.Logger = log.With("component", "compiler")

	table, report := compiler.Compile(cat, opts)

	for _, w := range report.Warnings {
		log.Warn("catalog warning", "warning", w)
	}
	for _, e := range report.Excluded {
		log.Warn("device type excluded", "device_type", e.DeviceType, "reasons", e.Reasons)
	}
	log.Info("catalog compiled",
		"layout", report.Layout,
		"valid", len(report.Valid),
		"excluded", len(report.Excluded),
		"warnings", len(report.Warnings),
		"entries", table.Len(),
		"fingerprint", table.Fingerprint(),
	)

	if cfg.Strict {
		if err := report.Err(); err != nil {
			return nil, nil, fmt.Errorf("strict compile: %w", err)
		}
	}
	return table, report, nil
}

// startAPI starts the HTTP query API. MQTT and the snapshot bridge are
// optional and only passed on when configured.
func startAPI(ctx context.Context, cfg *config.Config, res *resolver.Resolver, report *compiler.Report,
	mqttClient *mqtt.Client, snapshots *bridge.SnapshotBridge, log *logging.Logger) (*api.Server, error) {
	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.With("component", "api"),
		Resolver: res,
		Report:   report,
		Version:  version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if snapshots != nil {
		deps.Bridge = snapshots
	}

	server, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	return server, nil
}

// getConfigPath returns the configuration file path.
// Checks DEVCAPS_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
