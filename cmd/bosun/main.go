// Bosun Core - vessel sensor hub.
//
// Bosun listens for BLE advertisements from on-board sensors (anchor rode
// sensors, battery monitors, environment tags), decodes them per
// manufacturer, evaluates alarm rules against the combined state and
// streams state patches to connected displays over WebSocket.
//
// Usage:
//
//	bosun                 run the hub (config from BOSUN_CONFIG)
//	bosun token <subject> print a bearer token for the write endpoints
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/bosun-core/internal/action"
	"github.com/nerrad567/bosun-core/internal/api"
	"github.com/nerrad567/bosun-core/internal/decoder"
	"github.com/nerrad567/bosun-core/internal/device"
	"github.com/nerrad567/bosun-core/internal/infrastructure/config"
	"github.com/nerrad567/bosun-core/internal/infrastructure/database"
	"github.com/nerrad567/bosun-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/bosun-core/internal/infrastructure/logging"
	"github.com/nerrad567/bosun-core/internal/infrastructure/metrics"
	"github.com/nerrad567/bosun-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/bosun-core/internal/ingest"
	"github.com/nerrad567/bosun-core/internal/manufacturer"
	"github.com/nerrad567/bosun-core/internal/pipeline"
	"github.com/nerrad567/bosun-core/internal/publisher"
	"github.com/nerrad567/bosun-core/internal/rules"
	"github.com/nerrad567/bosun-core/internal/transform"
	"github.com/nerrad567/bosun-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Configuration, catalog and rule-file errors abort startup; everything
// after that degrades with a log line.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // composition root: linear wiring of every component
	log := logging.Default()
	log.Info("starting Bosun Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	catalog, err := loadCatalog(cfg.ManufacturersFile)
	if err != nil {
		return fmt.Errorf("loading manufacturer catalog: %w", err)
	}
	log.Info("manufacturer catalog loaded", "entries", catalog.Len())

	var ruleSet []rules.Rule
	if cfg.RulesFile != "" {
		ruleSet, err = rules.LoadFile(cfg.RulesFile, rules.BuiltinFunctions())
		if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
	}
	engine := rules.NewEngine(ruleSet)
	engine.SetLogger(log.Component("rules"))
	log.Info("rules loaded", "count", engine.Len(), "names", engine.Names())

	reg := decoder.NewRegistry()
	decoder.RegisterBuiltins(reg)

	promRegistry := metrics.NewRegistry()
	m := promRegistry.Metrics

	store := device.NewStore(device.Options{
		StaleAfter: cfg.Store.StaleAfter,
		MetricTTL:  cfg.Store.MetricTTL,
	})
	store.SetLogger(log.Component("device"))

	// Persistence
	var events *action.EventRecorder
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", db.Path())

		store.SetRepository(device.NewSQLiteRepository(db.DB))
		if loadErr := store.Load(ctx); loadErr != nil {
			return fmt.Errorf("loading devices: %w", loadErr)
		}
		events = action.NewEventRecorder(db.DB)
	} else {
		log.Info("database disabled, device state is memory-only")
	}
	m.SetDevices(store.Count())

	// Outbound and inbound broker
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without broker", "error", err)
			mqttClient = nil
		} else {
			mqttClient.SetLogger(log.Component("mqtt"))
			mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
			mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	var telemetry pipeline.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", influxErr)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			telemetry = influxClient
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	sink, closeSinks := buildSinks(ctx, cfg, log, mqttClient, events)
	defer closeSinks()

	pub := publisher.New(cfg.WebSocket.SendBuffer)
	pub.SetLogger(log.Component("publisher"))
	pub.SetDropHook(m.Dropped)
	pub.SetCountHook(m.SetSubscribers)
	defer pub.Close()

	p, err := pipeline.New(pipeline.Config{
		Decoders: reg,
		Store:    store,
		Transformer: transform.Composite{
			transform.Devices{Manufacturers: catalog},
			transform.Anchor{DeviceType: transform.DeviceTypeAnchor},
		},
		Engine:        engine,
		Publisher:     pub,
		Sink:          sink,
		Env:           rules.Env(cfg.Environment),
		Manufacturers: catalog,
		Telemetry:     telemetry,
		Metrics:       m,
		Logger:        log.Component("pipeline"),
		ActionQueue:   cfg.Ingest.ActionQueue,
		SweepInterval: cfg.Store.SweepInterval,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	if err := provisionDevices(ctx, p, cfg.Devices); err != nil {
		return fmt.Errorf("provisioning devices: %w", err)
	}
	p.Refresh(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := p.Run(ctx); runErr != nil {
			log.Error("pipeline stopped", "error", runErr)
		}
	}()

	var status api.ConnectionStatus
	if mqttClient != nil {
		handler := ingest.NewHandler(ctx, p, log.Component("ingest"))
		if subErr := handler.Start(mqttClient, cfg.Ingest.Topic, byte(cfg.MQTT.QoS)); subErr != nil {
			log.Warn("advertisement subscription failed", "topic", cfg.Ingest.Topic, "error", subErr)
		} else {
			log.Info("listening for advertisements", "topic", cfg.Ingest.Topic)
		}
		status = mqttClient
	}

	var eventLister api.EventLister
	if events != nil {
		eventLister = events
	}
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Site:     cfg.Site,
		Logger:   log.Component("api"),
		Pipeline: p,
		Catalog:  catalog,
		Events:   eventLister,
		MQTT:     status,
		Metrics:  promRegistry.Handler(),
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", store.Count(),
		"rules", engine.Len(),
	)
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	wg.Wait()

	log.Info("Bosun Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BOSUN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BOSUN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func loadCatalog(path string) (*manufacturer.Catalog, error) {
	if path == "" {
		return manufacturer.LoadEmbedded()
	}
	return manufacturer.LoadFile(path)
}

// buildSinks wires the action sinks. Every action is logged; publish and
// notify actions go to MQTT, record actions to SQLite and notify actions to
// Redis when those backends are available.
func buildSinks(ctx context.Context, cfg *config.Config, log *logging.Logger, mqttClient *mqtt.Client, events *action.EventRecorder) (action.Sink, func()) {
	sinks := []action.Sink{action.NewLogSink(log.Component("action"))}
	closers := []func(){}

	if mqttClient != nil {
		sinks = append(sinks, action.ForTypes(action.NewMQTTSink(mqttClient), rules.ActionPublish, rules.ActionNotify))
	}
	if events != nil {
		sinks = append(sinks, action.ForTypes(events, rules.ActionRecord))
	}
	if cfg.Redis.Enabled {
		client, err := action.ConnectRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Warn("Redis unavailable, notifications will not be queued", "addr", cfg.Redis.Addr, "error", err)
		} else {
			sinks = append(sinks, action.ForTypes(action.NewRedisSink(client, cfg.Redis.NotificationKey), rules.ActionNotify))
			closers = append(closers, func() {
				if err := client.Close(); err != nil {
					log.Error("error closing Redis", "error", err)
				}
			})
			log.Info("Redis connected", "addr", cfg.Redis.Addr, "key", cfg.Redis.NotificationKey)
		}
	}

	return action.Multi(sinks...), func() {
		for _, c := range closers {
			c()
		}
	}
}

// provisionDevices registers the devices listed in the config so their
// names and keys are in place before the first advertisement.
func provisionDevices(ctx context.Context, p *pipeline.Pipeline, devices []config.DeviceConfig) error {
	for _, d := range devices {
		meta := device.Metadata{Name: d.Name, Type: d.Type}
		if err := p.Provision(ctx, d.Address, meta, d.Config); err != nil {
			return fmt.Errorf("device %s: %w", d.Address, err)
		}
	}
	return nil
}

// printToken issues a bearer token using the configured JWT secret.
func printToken(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bosun token <subject>")
	}
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	token, err := api.IssueToken(cfg.Security.JWT.Secret, args[0], 30*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
