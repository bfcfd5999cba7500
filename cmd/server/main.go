package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"renewals/internal/clients/identity"
	"renewals/internal/clients/resource"
	"renewals/internal/clients/upstream"
	iphandler "renewals/internal/iprenewal/handler"
	ipmetrics "renewals/internal/iprenewal/metrics"
	ipservice "renewals/internal/iprenewal/service"
	jwttoken "renewals/internal/jwt_token"
	"renewals/internal/locator"
	"renewals/internal/notification"
	"renewals/internal/outbox"
	"renewals/internal/outbox/effects"
	"renewals/internal/platform/config"
	"renewals/internal/platform/httpserver"
	"renewals/internal/platform/kafka"
	"renewals/internal/platform/logger"
	"renewals/internal/platform/metrics"
	"renewals/internal/platform/redis"
	transferhandler "renewals/internal/transfer/handler"
	transfermetrics "renewals/internal/transfer/metrics"
	transferservice "renewals/internal/transfer/service"
	vapthandler "renewals/internal/vaptrenewal/handler"
	vaptmetrics "renewals/internal/vaptrenewal/metrics"
	vaptservice "renewals/internal/vaptrenewal/service"
	"renewals/pkg/platform/circuit"
	"renewals/pkg/platform/httputil"
	authmw "renewals/pkg/platform/middleware/auth"
	"renewals/pkg/platform/middleware/metadata"
	"renewals/pkg/platform/middleware/request"
	"renewals/pkg/platform/middleware/requesttime"
)

// main wires the stores, upstream clients, the three request families and the
// outbox relay, then serves until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		slog.Error("renewal service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat).With("service", cfg.Server.ServiceName)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outboxMetrics := outbox.NewMetrics()
	st, err := openStores(ctx, cfg.Database, outboxMetrics, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.Close()

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, locator cache disabled", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	resolver, err := buildResolver(cfg, rdb, log)
	if err != nil {
		return err
	}

	upstreamMetrics := upstream.NewMetrics()
	newCaller := func(service string) *upstream.Caller {
		return upstream.NewCaller(service, resolver,
			upstream.WithTimeout(cfg.Upstream.Timeout),
			upstream.WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.RateBurst),
			upstream.WithBreaker(circuit.New(service,
				circuit.WithFailureThreshold(cfg.Upstream.BreakerFailureThreshold),
				circuit.WithSuccessThreshold(cfg.Upstream.BreakerSuccessThreshold),
				circuit.WithCooldown(cfg.Upstream.BreakerCooldown),
			)),
			upstream.WithMetrics(upstreamMetrics),
			upstream.WithLogger(log),
		)
	}
	resources := resource.New(newCaller(config.ResourceService))
	users := identity.New(newCaller(config.IdentityService))

	emitter, closeEmitter, err := buildEmitter(ctx, cfg, newCaller, log)
	if err != nil {
		return err
	}
	defer closeEmitter()
	notifier := notification.NewBestEffort(emitter, log, notification.NewMetrics())

	syncTargets := map[outbox.AggregateType]effects.SyncFunc{}
	relayOpts := outbox.OptionsFromConfig(cfg.Outbox)
	relayOpts.Logger = log
	relayOpts.Metrics = outboxMetrics
	relay, err := outbox.NewRelay(st.outbox, effects.NewDispatcher(resources, log), effects.NewSyncRecorder(syncTargets), relayOpts)
	if err != nil {
		return err
	}

	transfers := transferservice.New(st.transfer, st.transfer, resources, users, st.outbox,
		transferservice.WithLogger(log),
		transferservice.WithMetrics(transfermetrics.New()),
		transferservice.WithNotifier(notifier),
		transferservice.WithKicker(relay),
	)
	vapts := vaptservice.New(st.vapt, st.vapt, resources, users, st.outbox,
		vaptservice.WithLogger(log),
		vaptservice.WithMetrics(vaptmetrics.New()),
		vaptservice.WithNotifier(notifier),
		vaptservice.WithKicker(relay),
	)
	ips := ipservice.New(st.ip, st.ip, resources, users, st.outbox,
		ipservice.WithLogger(log),
		ipservice.WithMetrics(ipmetrics.New()),
		ipservice.WithNotifier(notifier),
		ipservice.WithKicker(relay),
	)
	syncTargets[outbox.AggregateTransfer] = transfers.RecordSync
	syncTargets[outbox.AggregateVaptRenewal] = vapts.RecordSync
	syncTargets[outbox.AggregateIPRenewal] = ips.RecordSync

	jwtValidator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer))

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(metrics.NewHTTP().Middleware)
	r.Get("/health", healthHandler(st, rdb))
	r.Handle("/metrics", metrics.Handler())
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwtValidator, log))
		transferhandler.New(transfers, log).Register(r)
		vapthandler.New(vapts, log).Register(r)
		iphandler.New(ips, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	if cfg.Outbox.Enabled {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	} else {
		log.Warn("outbox relay disabled, directory updates will queue until another instance relays them")
	}

	log.Info("renewal service started",
		"addr", cfg.Server.Addr,
		"postgres", st.db != nil,
		"redis", rdb != nil,
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("renewal service stopped")
	return nil
}

// buildResolver chains SERVICE_URLS ahead of Eureka and caches the result in
// Redis when it is available.
func buildResolver(cfg *config.Config, rdb *redis.Client, log *slog.Logger) (locator.Resolver, error) {
	static, err := cfg.Locator.StaticURLs()
	if err != nil {
		return nil, err
	}
	chain := locator.Chain{locator.Static(static)}
	if cfg.Locator.EurekaURL != "" {
		chain = append(chain, locator.NewEureka(cfg.Locator.EurekaURL, &http.Client{Timeout: 5 * time.Second}))
	}
	if rdb == nil {
		return chain, nil
	}
	return locator.NewCached(chain, rdb.Client, cfg.Redis.LocatorTTL, log), nil
}

// buildEmitter prefers Kafka, then the notification service webhook, and falls
// back to logging events.
func buildEmitter(ctx context.Context, cfg *config.Config, newCaller func(string) *upstream.Caller, log *slog.Logger) (notification.Emitter, func(), error) {
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		if cfg.Kafka.CreateTopic {
			if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.NotificationTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				client.Close()
				return nil, nil, err
			}
		}
		log.Info("notifications published to kafka", "topic", cfg.Kafka.NotificationTopic)
		return notification.NewKafkaEmitter(client, cfg.Kafka.NotificationTopic), client.Close, nil
	}

	static, _ := cfg.Locator.StaticURLs()
	if _, ok := static[config.NotificationService]; ok || cfg.Locator.EurekaURL != "" {
		log.Info("notifications posted to the notification service")
		return notification.NewWebhookEmitter(newCaller(config.NotificationService)), func() {}, nil
	}

	log.Warn("no notification transport configured, logging events")
	return notification.NewLogEmitter(log), func() {}, nil
}

func healthHandler(st *stores, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "database": "ok", "redis": "disabled"}
		code := http.StatusOK
		if err := st.health(ctx); err != nil {
			status["status"], status["database"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Health(ctx); err != nil {
				status["redis"] = err.Error()
			}
		}
		httputil.WriteJSON(w, code, status)
	}
}
