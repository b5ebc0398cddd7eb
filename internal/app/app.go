// Package app wires configuration into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/auth"
	"github.com/avvvet/rhoai-intent/internal/config"
	"github.com/avvvet/rhoai-intent/internal/confirm"
	"github.com/avvvet/rhoai-intent/internal/handlers"
	"github.com/avvvet/rhoai-intent/internal/intent"
	"github.com/avvvet/rhoai-intent/internal/memory"
	"github.com/avvvet/rhoai-intent/internal/monitoring"
	"github.com/avvvet/rhoai-intent/internal/openshift"
	"github.com/avvvet/rhoai-intent/internal/operations"
	"github.com/avvvet/rhoai-intent/internal/transport"
)

// limiterIdle is how long an unused rate-limit bucket is kept.
const limiterIdle = time.Hour

// NewLogger builds the process logger for level.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

type pinger interface {
	Ping(ctx context.Context) error
}

// OpenSessions opens the session store the config selects.
func OpenSessions(cfg *config.Config, logger *zap.Logger) (*memory.Manager, memory.Store, error) {
	var store memory.Store
	if cfg.RedisURL != "" {
		redisStore, err := memory.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("session store", zap.String("backend", "redis"))
		store = redisStore
	} else {
		logger.Warn("REDIS_URL not set, sessions are kept in memory")
		store = memory.NewMemoryStore()
	}
	return memory.NewManager(store, cfg.ContextWindow, logger), store, nil
}

// OpenAudit connects the Postgres audit store. It returns a nil store when
// DATABASE_URL is empty.
func OpenAudit(ctx context.Context, cfg *config.Config) (*audit.PostgresStore, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	pool, store, err := audit.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, pool.Close, nil
}

type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *memory.Manager
	agent    *handlers.Agent
	limiter  *auth.Limiter
	http     *transport.HTTPServer
	nats     *transport.NATSTransport
	closers  []func()
}

// New connects every backend and builds the transports.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	health := map[string]transport.HealthCheck{}

	sessions, store, err := OpenSessions(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.sessions = sessions
	a.closers = append(a.closers, func() { _ = sessions.Close() })
	if p, ok := store.(pinger); ok {
		health["sessions"] = p.Ping
	}

	sinks := []audit.Sink{audit.NewLogSink(logger)}
	auditStore, closeAudit, err := OpenAudit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeAudit)
	if auditStore != nil {
		logger.Info("audit store", zap.String("backend", "postgres"))
		sinks = append(sinks, auditStore)
		health["audit"] = auditStore.Ping
	}
	sink := audit.Fanout(sinks...)

	restCfg, err := openshift.LoadConfig(cfg.Kubeconfig)
	if err != nil {
		return nil, err
	}
	cluster, kube, err := openshift.NewForConfig(restCfg, cfg.ResourceTimeout, logger)
	if err != nil {
		return nil, err
	}
	cluster = openshift.WithBreaker(cluster, openshift.DefaultBreakerConfig, logger)

	var metrics monitoring.Source = monitoring.Disabled{}
	if cfg.PrometheusURL != "" {
		if metrics, err = monitoring.NewPrometheusSource(cfg.PrometheusURL, logger); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("PROMETHEUS_URL not set, metric-based monitoring is unavailable")
	}

	router := operations.NewRouter(cluster, metrics, sink, operations.NewMetrics(reg), cfg.DefaultNamespace, logger)

	issuer, err := confirm.NewIssuer(cfg.ConfirmSecret, cfg.ConfirmTTL)
	if err != nil {
		return nil, err
	}
	authn, err := auth.New(cfg.AuthMode, openshift.NewTokenReviewer(kube))
	if err != nil {
		return nil, err
	}
	if cfg.AuthMode == auth.ModeTrust {
		logger.Warn("AUTH_MODE=trust accepts any bearer token")
	}

	a.agent = handlers.NewAgent(handlers.Deps{
		Sessions: sessions,
		Parser:   intent.NewParser(),
		Executor: router,
		Confirm:  issuer,
		Audit:    sink,
		Registry: reg,
		Logger:   logger,
	})
	a.limiter = auth.NewLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	a.http = transport.NewHTTPServer(a.agent, authn, a.limiter, reg, health, logger)

	if cfg.NatsEnabled {
		if a.nats, err = transport.NewNATSTransport(cfg, a.agent, logger); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = a.nats.Close() })
	}
	return a, nil
}

// Run serves until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.nats != nil {
		if err := a.nats.Start(); err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- a.http.Start(a.cfg.HTTPAddr) }()
	go a.sweep(ctx)

	a.logger.Info("service running", zap.String("service", a.cfg.ServiceName), zap.String("http_addr", a.cfg.HTTPAddr))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	return runErr
}

// sweep expires idle sessions and drops stale rate-limit buckets.
func (a *App) sweep(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.agent.ExpireIdle(ctx, a.cfg.SessionExpiry); err != nil {
				a.logger.Warn("session sweep failed", zap.Error(err))
			}
			a.limiter.Prune(limiterIdle)
		}
	}
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
