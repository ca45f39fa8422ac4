package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"marketplace-gateway/internal/projects"
	"marketplace-gateway/middleware/security"
	"marketplace-gateway/middleware/security/application"
	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/infra"
	"marketplace-gateway/middleware/security/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

// statsReader é o lado de leitura dos stores de stats que sabem agregar.
type statsReader interface {
	Snapshot(ctx context.Context) (infra.StatsSnapshot, error)
}

// app junta as dependências montadas a partir da config.
type app struct {
	cfg      config
	log      *logging.Logger
	db       *gorm.DB
	rdb      *redis.Client
	registry *prometheus.Registry

	rateStore  domain.RateLimitStore
	auditStore domain.AuditStore
	stats      domain.StatsStore
	statsView  statsReader
	burst      *infra.BurstGuard

	closers []func() error
}

func newApp(ctx context.Context, cfg config, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector())

	db, err := infra.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Verbose)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := infra.Migrate(db); err != nil {
		return nil, a.fail(fmt.Errorf("migrate security tables: %w", err))
	}
	if err := projects.Migrate(db); err != nil {
		return nil, a.fail(fmt.Errorf("migrate projects: %w", err))
	}
	a.db = db
	a.auditStore = infra.NewGormAuditStore(db)

	if cfg.Store.Type == "redis" || cfg.Stats.Type == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return nil, a.fail(fmt.Errorf("redis ping: %w", err))
		}
		a.rdb = rdb
	}

	switch cfg.Store.Type {
	case "redis":
		a.rateStore = infra.NewRedisRateLimitStore(a.rdb, infra.WithRateLimitPrefix(cfg.Store.Redis.Prefix))
	case "database":
		a.rateStore = infra.NewGormRateLimitStore(db)
	default:
		a.rateStore = infra.NewMemoryRateLimitStore()
	}

	switch cfg.Stats.Type {
	case "memory":
		ms := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
		a.stats, a.statsView = ms, ms
	case "redis":
		rs := infra.NewRedisStatsStore(
			a.rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
		a.stats, a.statsView = rs, rs
	case "prometheus":
		ps, err := infra.NewPrometheusStatsStore(a.registry)
		if err != nil {
			return nil, a.fail(err)
		}
		a.stats = ps
	}

	if cfg.Burst.Enabled {
		a.burst = infra.NewBurstGuard(cfg.Burst.RPS, cfg.Burst.Burst)
		a.burst.StartJanitor(ctx)
	}

	if !cfg.RateLimit.InlineCleanup {
		window := cfg.RateLimit.Window
		if window <= 0 {
			window = projects.Policy().RateLimit.Window
		}
		infra.Janitor{
			Store:  a.rateStore,
			Window: window,
			Every:  cfg.RateLimit.SweepEvery,
			Logger: log,
		}.Start(ctx)
	}
	return a, nil
}

func (a *app) fail(err error) error {
	_ = a.close()
	return err
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *app) gateway() *security.Gateway {
	opts := security.Options{
		Store:               a.rateStore,
		Identity:            infra.NewJWTIdentityProvider(a.cfg.Auth.JWTSecret, infra.WithIssuer(a.cfg.Auth.Issuer), infra.WithLeeway(a.cfg.Auth.Leeway)),
		Stats:               a.stats,
		SkipCleanup:         !a.cfg.RateLimit.InlineCleanup,
		StoreAcquireTimeout: a.cfg.RateLimit.StoreAcquireTimeout,
	}
	if a.burst != nil {
		opts.Burst = a.burst
	}
	if n := a.cfg.RateLimit.StoreMaxInFlight; n > 0 {
		pool := infra.NewSemaphore(n)
		a.registerPoolGauges("store", pool)
		opts.StorePool = pool
	}
	return security.New(opts)
}

// projectPolicy aplica os overrides da config sobre a política do endpoint.
func (a *app) projectPolicy() security.Config {
	p := projects.Policy()
	rl := *p.RateLimit
	if a.cfg.RateLimit.Window > 0 {
		rl.Window = a.cfg.RateLimit.Window
	}
	if a.cfg.RateLimit.MaxRequests > 0 {
		rl.MaxRequests = a.cfg.RateLimit.MaxRequests
	}
	rl.FailClosed = a.cfg.RateLimit.FailClosed
	p.RateLimit = &rl
	p.RateLimitHeaders = a.cfg.RateLimit.Headers
	p.LogLevel = a.cfg.Log.Level
	return p
}

func (a *app) router() (http.Handler, error) {
	audit := application.AuditLogger{Store: a.auditStore, Logger: a.log}
	projectHandler, err := projects.NewHandler(projects.NewGormRepository(a.db), audit, a.log).
		Mount(a.gateway(), a.projectPolicy())
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if n := a.cfg.Server.MaxInFlight; n > 0 {
		pool := infra.NewSemaphore(n)
		a.registerPoolGauges("http", pool)
		r.Use(security.LimitInFlight(pool, a.cfg.Server.AcquireTimeout))
	}
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "marketplace-gateway")
	})

	r.Get("/healthz", a.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	if a.statsView != nil {
		r.Get("/stats", a.statsSnapshot)
	}
	r.Handle(projects.Route, projectHandler)
	return r, nil
}

// registerPoolGauges expõe ocupação e capacidade do pool em /metrics.
func (a *app) registerPoolGauges(name string, pool *infra.Semaphore) {
	labels := prometheus.Labels{"pool": name}
	a.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "security_gateway_pool_in_use",
			Help:        "Slots currently held.",
			ConstLabels: labels,
		}, func() float64 { return float64(pool.InUse()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "security_gateway_pool_capacity",
			Help:        "Pool size.",
			ConstLabels: labels,
		}, func() float64 { return float64(pool.Cap()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "security_gateway_pool_waits_total",
			Help:        "Acquisitions that found the pool full.",
			ConstLabels: labels,
		}, func() float64 { return float64(pool.Waited()) }),
	)
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok"}
	code := http.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "down"
		code = http.StatusServiceUnavailable
	}
	if a.rdb != nil {
		status["redis"] = "ok"
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			// o rate limit falha aberto; redis fora não derruba o serviço
			status["redis"] = "down"
		}
	}
	security.SuccessResponse(status, code).Write(w)
}

func (a *app) statsSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.statsView.Snapshot(r.Context())
	if err != nil {
		a.log.Error("Failed to read stats", map[string]any{"error": err.Error()})
		security.ErrorResponse(security.MsgInternalError, http.StatusInternalServerError, nil).Write(w)
		return
	}
	security.SuccessResponse(snap, http.StatusOK).Write(w)
}
