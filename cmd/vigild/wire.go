package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"vigil/internal/api/handlers"
	"vigil/internal/backend"
	"vigil/internal/config"
	"vigil/internal/core"
	"vigil/internal/db"
	"vigil/internal/external"
	notify "vigil/internal/notifications/core"
	"vigil/internal/queue"
	"vigil/internal/scheduler"
	"vigil/internal/sources"
	"vigil/internal/store"
	"vigil/internal/types"
)

// app holds the wired components and the resources to release on exit.
type app struct {
	engine   *scheduler.Engine
	server   *core.Server
	listener *queue.Listener
	poll     func(ctx context.Context)

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build constructs every component from cfg. On error, whatever was already
// opened is closed.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	clock := types.RealClock{}
	loc := cfg.Engine.Location()

	// Device store.
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	st = st.WithClock(clock)
	a.closers = append(a.closers, func() { _ = st.Close() })

	// Managed backend.
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.Database.URL.Unmask(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	parishes := db.NewParishRepository(pool)
	appointments := db.NewAppointmentRepository(pool)
	personal := db.NewPersonalEventRepository(pool)

	// Broadcast calendar feed.
	base := external.NewBaseClient(
		&http.Client{Timeout: cfg.Calendar.Timeout},
		"calendar",
		external.DefaultRetryPolicy(),
		"vigild/"+cfg.Build.Version,
	)
	calendar := external.NewCalendarClient(base, external.CalendarClientConfig{
		APIKey:  cfg.Calendar.APIKey.Unmask(),
		BaseURL: cfg.Calendar.BaseURL,
		Logger:  logger,
	})

	aggregator := sources.NewAggregator(cfg.Engine.SourceFetchTimeout, logger,
		sources.NewBroadcastAdapter(parishes, calendar, logger),
		sources.NewAppointmentAdapter(appointments, logger),
		sources.NewPersonalAdapter(personal, logger),
	)

	// AWS clients are only created when something needs them.
	var awsCfg aws.Config
	if cfg.Observability.EnableMetrics || cfg.AWS.TriggerQueueURL != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
	}

	var metrics notify.NotificationMetrics = notify.NoopMetrics{}
	var apiMetrics core.MetricsCollector
	if cfg.Observability.EnableMetrics {
		cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		cwMetrics := notify.NewCloudWatchNotificationMetrics(cw, cfg.Observability.MetricNamespace, &slogAdapter{logger: logger})
		metrics = cwMetrics
		apiMetrics = cwMetrics
	}

	// Notification Backend.
	sink := deliveryLogger{logger: logger}
	probes := []core.HealthProbe{
		core.ProbeFunc{ProbeName: "store", Fn: st.Ping},
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
	}
	var nb notify.Backend
	switch cfg.Backend.Kind {
	case "redis":
		client, err := backend.NewRedisClient(ctx, backend.RedisOptions{
			Addr:     cfg.Backend.RedisAddr,
			Password: cfg.Backend.RedisPassword.Unmask(),
			DB:       cfg.Backend.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		rb := backend.NewRedis(client, cfg.Backend.RedisPrefix, clock, logger)
		nb = rb
		a.poll = func(ctx context.Context) { rb.Poll(ctx, cfg.Backend.PollInterval, sink) }
		probes = append(probes, core.ProbeFunc{ProbeName: "backend", Fn: redisPing(client)})
	default:
		nb = backend.NewMemory(ctx, sink, logger, backend.WithMemoryClock(clock))
	}

	a.engine = scheduler.New(scheduler.Config{
		Preferences: st,
		Visibility:  st,
		Ledger:      st,
		Collector:   aggregator,
		Backend:     nb,
		Policy:      notify.NewPolicyEngine(&slogAdapter{logger: logger}),
		Session:     types.StaticSession{UserID: cfg.Session.UserID},
		Names:       parishes,
		Metrics:     metrics,
		Clock:       clock,
		Logger:      logger,
		Location:    loc,
		WindowDays:  cfg.Engine.WindowDays,
		Debounce:    cfg.Engine.Debounce,
	})

	// Control API.
	srv, err := core.NewServer(logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = apiMetrics
	srv.HealthProbes = probes
	control := handlers.NewControlHandler(a.engine, st, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		control.RegisterRoutes(r)
	})
	srv.MountRoutes()
	a.server = srv

	// Trigger queue.
	if cfg.AWS.TriggerQueueURL != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.listener = queue.NewListener(client, cfg.AWS.TriggerQueueURL, a.engine, logger)
	}

	return a, nil
}

func redisPing(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// deliveryLogger is the host notification surface for a headless daemon: a
// delivered notification is written to the log, where the device's notifier
// (or an operator) picks it up.
type deliveryLogger struct {
	logger *slog.Logger
}

func (d deliveryLogger) Deliver(ctx context.Context, del backend.Delivery) {
	d.logger.InfoContext(ctx, "notification delivered",
		"handle", del.Handle,
		"trigger_at", del.TriggerAt.Format(time.RFC3339),
		"title", del.Content.Title,
		"body", del.Content.Body,
		"candidate_id", del.Content.Payload.CandidateID,
		"kind", string(del.Content.Payload.Kind),
		"navigation_target", string(del.Content.Payload.NavigationTarget),
	)
}
