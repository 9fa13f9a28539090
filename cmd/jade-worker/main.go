// jade-worker runs the shop example as a single binary: CloudEvents
// HTTP ingress plus, in queued mode, the queue workers. The queue
// backend is SQLite by default; set JADE_NATS_URL to a broker URL or to
// "embedded" for an in-process JetStream server.
//
// Configuration (environment):
//
//	JADE_HTTP_ADDR          listen address, default ":8080"
//	JADE_MODE               "direct" or "queued", default "direct"
//	JADE_STORE_DSN          event store DSN, default "jade.db"
//	JADE_QUEUE_DSN          sqlite queue DSN, default "jade-queue.db"
//	JADE_NATS_URL           NATS URL, "embedded", or empty for sqlite
//	JADE_SECRETS_KEEPER_URL gocloud secrets keeper for encrypted DSNs
//	JADE_LOG_LEVEL          slog level, default "info"
//
// DSN values may be literal, "env:NAME" references, or
// "encrypted:BASE64" blobs decrypted through the keeper.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jadehq/jade/examples/shop"
	"github.com/jadehq/jade/pkg/cloudevents"
	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/httpapi"
	"github.com/jadehq/jade/pkg/observability"
	"github.com/jadehq/jade/pkg/queue"
	queuenats "github.com/jadehq/jade/pkg/queue/nats"
	"github.com/jadehq/jade/pkg/runner"
	"github.com/jadehq/jade/pkg/runtime/embeddednats"
	"github.com/jadehq/jade/pkg/security/credentials"
	"github.com/jadehq/jade/pkg/sqlite"
	"github.com/jadehq/jade/pkg/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("jade-worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	logger := newLogger(envOr("JADE_LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	resolver, err := newResolver(ctx)
	if err != nil {
		return err
	}
	defer resolver.Close()

	telemetry, err := observability.Init(ctx, observability.Config{
		ServiceName: "jade-worker",
		Environment: envOr("JADE_ENV", "dev"),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer telemetry.Shutdown(ctx)

	storeDSN, err := resolver.Resolve(ctx, envOr("JADE_STORE_DSN", "jade.db"))
	if err != nil {
		return fmt.Errorf("resolve store dsn: %w", err)
	}
	store, err := sqlite.NewEventStore(sqlite.WithDSN(storeDSN))
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer store.Close()

	app, err := shop.Wire(store, logMailer{logger: logger},
		shop.WithLogger(logger),
		shop.WithMetrics(telemetry.Metrics),
	)
	if err != nil {
		return fmt.Errorf("wire shop: %w", err)
	}

	mode, err := cloudevents.ParseMode(envOr("JADE_MODE", "direct"))
	if err != nil {
		return err
	}

	var services []runner.Service

	processor := cloudevents.NewProcessor(app.Registry, app.Bus,
		cloudevents.WithProcessorLogger(logger),
		cloudevents.WithProcessorMetrics(telemetry.Metrics))

	if mode == cloudevents.ModeQueued {
		engine, embedded, err := newQueueEngine(ctx, resolver, logger)
		if err != nil {
			return err
		}
		defer engine.Close()
		if embedded != nil {
			services = append(services, embedded)
		}

		publisher := queue.NewPublisher(engine, app.Codec,
			queue.WithPublisherMetrics(telemetry.Metrics))
		processor = cloudevents.NewProcessor(app.Registry, app.Bus,
			cloudevents.WithProcessorLogger(logger),
			cloudevents.WithProcessorMetrics(telemetry.Metrics),
			cloudevents.WithPublisher(publisher))

		// One receiver per aggregate-type queue; dispatch inside the
		// worker is always direct.
		direct := cloudevents.NewProcessor(app.Registry, app.Bus,
			cloudevents.WithProcessorLogger(logger))
		var receivers []*worker.Receiver
		for _, name := range queueNames(app.Registry) {
			receivers = append(receivers, worker.NewReceiver(name, engine, direct, app.Codec,
				worker.WithReceiverLogger(logger),
				worker.WithReceiverMetrics(telemetry.Metrics)))
		}
		services = append(services, worker.NewHost(receivers, worker.WithHostLogger(logger)))
	}

	services = append(services, httpapi.NewServer(envOr("JADE_HTTP_ADDR", ":8080"), processor,
		httpapi.WithServerLogger(logger)))

	return runner.New(services, runner.WithLogger(logger)).Run(ctx)
}

// newQueueEngine picks the queue backend. The embedded service is
// non-nil only for JADE_NATS_URL=embedded and must be started by the
// runner before the workers poll; its server is brought up here because
// the engine needs a live connection at wiring time.
func newQueueEngine(ctx context.Context, resolver credentials.Resolver, logger *slog.Logger) (queue.Engine, runner.Service, error) {
	natsURL := os.Getenv("JADE_NATS_URL")
	switch {
	case natsURL == "":
		dsn, err := resolver.Resolve(ctx, envOr("JADE_QUEUE_DSN", "jade-queue.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("resolve queue dsn: %w", err)
		}
		engine, err := queue.NewSQLiteEngine(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite queue: %w", err)
		}
		return engine, nil, nil

	case natsURL == "embedded":
		svc := embeddednats.New(embeddednats.WithLogger(logger))
		if err := svc.Start(ctx); err != nil {
			return nil, nil, err
		}
		engine, err := queuenats.NewEngine(svc.URL())
		if err != nil {
			svc.Stop(ctx)
			return nil, nil, fmt.Errorf("connect embedded nats: %w", err)
		}
		return engine, startedService{svc}, nil

	default:
		url, err := resolver.Resolve(ctx, natsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve nats url: %w", err)
		}
		engine, err := queuenats.NewEngine(url)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats %s: %w", url, err)
		}
		return engine, nil, nil
	}
}

// startedService wraps an already-started service so the runner only
// manages its shutdown.
type startedService struct {
	runner.Service
}

func (startedService) Start(context.Context) error { return nil }

// queueNames derives the set of queues from the registered command
// schemas: one queue per aggregate segment.
func queueNames(registry *eventsourcing.Registry) []string {
	seen := make(map[string]bool)
	var names []string
	for _, urn := range registry.Schemas() {
		schema, err := eventsourcing.ParseCommandSchema(urn)
		if err != nil {
			continue
		}
		if !seen[schema.Aggregate] {
			seen[schema.Aggregate] = true
			names = append(names, schema.Aggregate)
		}
	}
	return names
}

func newResolver(ctx context.Context) (credentials.Resolver, error) {
	keeperURL := os.Getenv("JADE_SECRETS_KEEPER_URL")
	if keeperURL == "" {
		return credentials.NewChain(credentials.Env{}), nil
	}
	keeper, err := credentials.NewKeeper(ctx, keeperURL)
	if err != nil {
		return nil, fmt.Errorf("open secrets keeper: %w", err)
	}
	return credentials.NewChain(credentials.Env{}, keeper), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// logMailer stands in for a real mail provider in the example binary.
type logMailer struct {
	logger *slog.Logger
}

func (m logMailer) Send(_ context.Context, recipient, subject, _ string) error {
	m.logger.Info("confirmation mail sent", "recipient", recipient, "subject", subject)
	return nil
}
