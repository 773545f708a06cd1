package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/runnr/pkg/autosave"
	"github.com/dukex/runnr/pkg/channels/kafka"
	"github.com/dukex/runnr/pkg/cmd"
	"github.com/dukex/runnr/pkg/config"
	"github.com/dukex/runnr/pkg/editor"
	"github.com/dukex/runnr/pkg/log"
	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/otelhelper"
	"github.com/dukex/runnr/pkg/persistence"
	"github.com/dukex/runnr/pkg/web"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the editor API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				Sources: cli.EnvVars("RUNNR_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   config.DefaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "storage-url",
				Usage:   "Storage URL for the autosaved workflow (file://, redis://, postgres://)",
				Value:   config.DefaultStorageURL,
				Sources: cli.EnvVars("STORAGE_URL"),
			},
			&cli.StringFlag{
				Name:    "slot-key",
				Usage:   "Key of the storage slot holding the workflow",
				Value:   persistence.DefaultSlotKey,
				Sources: cli.EnvVars("SLOT_KEY"),
			},
			&cli.IntFlag{
				Name:    "history-limit",
				Usage:   "Number of undo snapshots to keep",
				Value:   editor.DefaultHistoryLimit,
				Sources: cli.EnvVars("HISTORY_LIMIT"),
			},
			&cli.DurationFlag{
				Name:    "autosave-delay",
				Usage:   "Quiet period before an edit is saved",
				Value:   autosave.DefaultDelay,
				Sources: cli.EnvVars("AUTOSAVE_DELAY"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   config.DefaultEventBus,
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   config.DefaultLogLevel,
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json, pretty)",
				Value:   config.DefaultLogFormat,
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel, cfg.LogFormat)

			return serve(ctx, cfg)
		},
	}
}

// loadConfig reads the config file and applies every flag that was set
// explicitly, on the command line or through its environment variable.
func loadConfig(command *cli.Command) (config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return cfg, err
	}

	if command.IsSet("port") {
		cfg.Port = command.Int("port")
	}

	if command.IsSet("storage-url") {
		cfg.StorageURL = command.String("storage-url")
	}

	if command.IsSet("slot-key") {
		cfg.SlotKey = command.String("slot-key")
	}

	if command.IsSet("history-limit") {
		cfg.HistoryLimit = command.Int("history-limit")
	}

	if command.IsSet("autosave-delay") {
		cfg.AutosaveDelay = command.Duration("autosave-delay")
	}

	if command.IsSet("event-bus") {
		cfg.EventBus = command.String("event-bus")
	}

	if command.IsSet("kafka-brokers") {
		cfg.KafkaBrokers = kafka.ParseBrokers(command.String("kafka-brokers"))
	}

	if command.IsSet("log-level") {
		cfg.LogLevel = command.String("log-level")
	}

	if command.IsSet("log-format") {
		cfg.LogFormat = command.String("log-format")
	}

	if command.IsSet("tracing") {
		cfg.Tracing = command.Bool("tracing")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing runnr", "storage", cfg.StorageURL, "event_bus", cfg.EventBus)

	var tracer trace.Tracer

	if cfg.Tracing {
		t, shutdown, err := otelhelper.NewTracer(ctx, "runnr")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = t
	}

	slot, err := cmd.NewPersistence(ctx, log.WithModule("persistence"), cfg.StorageURL, cfg.SlotKey)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	defer func() {
		if err := slot.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(cfg.EventBus, logger, cfg.KafkaBrokers)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	saver := autosave.New(slot, log.WithModule("autosave"), autosave.WithDelay(cfg.AutosaveDelay))
	if err := saver.Register(eventBus); err != nil {
		return err
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to editor events: %w", err)
	}

	defer func() {
		if err := saver.Flush(context.Background()); err != nil {
			logger.Error("Failed to flush pending autosave", "error", err)
		}
	}()

	changes := web.NewChangePublisher(eventBus, cfg.SlotKey, logger)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := changes.Close(ctx); err != nil {
			logger.Error("Failed to publish pending editor changes", "error", err)
		}
	}()

	engine := editor.New(
		editor.WithHistoryLimit(cfg.HistoryLimit),
		editor.WithInitialWorkflow(restore(ctx, slot, logger)),
		editor.WithListener(changes.OnChange),
	)

	return NewAPI(logger, engine, slot, changes, saver, tracer).Start(ctx, cfg.Port)
}

// restore loads the autosaved workflow. An empty or unreadable slot starts
// a fresh session.
func restore(ctx context.Context, slot persistence.Slot, logger *slog.Logger) *models.Workflow {
	workflow, err := slot.Load(ctx)

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Restored autosaved workflow", "name", workflow.Name, "jobs", len(workflow.Jobs))

		return workflow
	case persistence.IsSlotEmpty(err):
		return nil
	case errors.Is(err, persistence.ErrCorruptRecord):
		logger.WarnContext(ctx, "Ignoring unreadable autosaved workflow", "error", err)

		return nil
	default:
		logger.ErrorContext(ctx, "Failed to load autosaved workflow", "error", err)

		return nil
	}
}
