package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erp/mall-admin/internal/application/auth"
	apppms "github.com/erp/mall-admin/internal/application/pms"
	"github.com/erp/mall-admin/internal/domain/session"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/cache"
	"github.com/erp/mall-admin/internal/infrastructure/config"
	"github.com/erp/mall-admin/internal/infrastructure/httpclient"
	"github.com/erp/mall-admin/internal/infrastructure/logger"
	"github.com/erp/mall-admin/internal/infrastructure/sessionstore"
	"github.com/erp/mall-admin/internal/infrastructure/telemetry"
	"github.com/erp/mall-admin/internal/interfaces/console"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Streams are the terminal streams of a console process
type Streams struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	UseColors bool
	AssumeYes bool
}

// Runtime owns everything Bootstrap started
type Runtime struct {
	App     *App
	Logger  *zap.Logger
	Metrics *telemetry.Metrics

	cache    *cache.QueryCache
	store    *auth.Store
	bus      *cache.RedisInvalidationBus
	redis    *redis.Client
	tracer   *telemetry.TracerProvider
	cancelFn context.CancelFunc
}

// Bootstrap wires the console from cfg: logging, telemetry, the session
// backend, the query cache and its invalidation bus, the HTTP pipeline with
// the session-expired flow, and the catalog screens.
func Bootstrap(ctx context.Context, cfg *config.Config, streams Streams) (*Runtime, error) {
	if streams.Out == nil {
		streams.Out = os.Stdout
	}
	if streams.Err == nil {
		streams.Err = os.Stderr
	}

	log, err := logger.New(logConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	rt := &Runtime{Logger: log, Metrics: telemetry.NewMetrics()}
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancelFn = cancel

	rt.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Telemetry.MetricsAddr != "" {
		addr, err := rt.Metrics.Serve(cfg.Telemetry.MetricsAddr)
		if err != nil {
			rt.Close()
			return nil, err
		}
		log.Info("Serving metrics", zap.String("addr", addr))
	}

	if cfg.NeedsRedis() {
		rt.redis, err = sessionstore.NewRedisClient(ctx, sessionstore.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	persister, err := rt.persister(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = auth.NewStore(persister, auth.WithStoreLogger(log))
	if err := rt.store.Restore(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	cacheOpts := []cache.Option{
		cache.WithKeepPreviousData(cfg.Cache.KeepPreviousData),
		cache.WithStaleTime(cfg.Cache.StaleTime),
		cache.WithLogger(log),
		cache.WithMetrics(rt.Metrics),
	}
	if cfg.Cache.BroadcastInvalidations {
		rt.bus = cache.NewRedisInvalidationBusWithClient(rt.redis,
			cache.WithBusChannel(cfg.Cache.Channel),
			cache.WithBusLogger(log))
		cacheOpts = append(cacheOpts, cache.WithBroadcaster(rt.bus))
	}
	rt.cache = cache.New(cacheOpts...)
	if rt.bus != nil {
		go func() {
			if err := rt.bus.Subscribe(bgCtx, rt.cache.ApplyRemote, nil); err != nil && bgCtx.Err() == nil {
				log.Warn("Cache invalidation subscription ended", zap.Error(err))
			}
		}()
	}

	notifier := newNotifier(streams)
	confirmer := newConfirmer(streams)
	navigator := newNavigator(log)

	expiry := httpclient.NewAuthExpiryHandler(rt.store, confirmer, navigator,
		httpclient.WithExpiryLogger(log),
		httpclient.WithExpiryMetrics(rt.Metrics))
	expiry.OnDiscard(rt.cache.Clear)

	retry := httpclient.DefaultRetryConfig()
	retry.MaxRetries = cfg.API.MaxRetries
	client, err := httpclient.NewClient(httpclient.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.App.Name,
	},
		httpclient.WithTokenSource(rt.store),
		httpclient.WithNotifier(notifier),
		httpclient.WithAuthFailureHandler(expiry),
		httpclient.WithRetryConfig(retry),
		httpclient.WithRateLimit(cfg.API.RateLimit),
		httpclient.WithMetrics(rt.Metrics),
		httpclient.WithLogger(log))
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.App = New(Deps{
		Store: rt.store,
		Guard: auth.NewGuard(rt.store, auth.WithGuardLogger(log)),
		Login: auth.NewLoginService(client, rt.store,
			auth.WithLoginPaths(cfg.API.LoginPath, cfg.API.ProfilePath),
			auth.WithCache(rt.cache),
			auth.WithLoginLogger(log)),
		Catalog:   apppms.NewCatalog(apppms.NewAPI(client), rt.cache),
		Cache:     rt.cache,
		Notifier:  notifier,
		Confirmer: confirmer,
		Navigator: navigator,
		In:        streams.In,
		Out:       streams.Out,
		Logger:    log,
	})
	return rt, nil
}

func (rt *Runtime) persister(cfg *config.Config) (session.Persister, error) {
	switch cfg.Session.Backend {
	case "memory":
		return sessionstore.NewMemoryPersister(), nil
	case "file":
		return sessionstore.NewFilePersister(cfg.Session.Path, cfg.Session.Key), nil
	case "redis":
		return sessionstore.NewRedisPersisterWithClient(rt.redis, cfg.Session.Key, 0), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
}

// Close stops background work and releases connections
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if rt.cancelFn != nil {
		rt.cancelFn()
	}
	if rt.bus != nil {
		_ = rt.bus.Close()
	}
	if rt.cache != nil {
		_ = rt.cache.Close()
	}
	if rt.store != nil {
		rt.store.Dispose()
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.Logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(ctx); err != nil {
			rt.Logger.Warn("Failed to shut down tracer", zap.Error(err))
		}
	}
	if rt.Metrics != nil {
		_ = rt.Metrics.Stop(ctx)
	}
	_ = rt.Logger.Sync()
}

func newNotifier(s Streams) shared.Notifier {
	return console.NewNotifier(s.Err, s.UseColors)
}

func newConfirmer(s Streams) shared.Confirmer {
	return console.NewConfirmer(s.In, s.Err, s.AssumeYes)
}

func newNavigator(log *zap.Logger) shared.Navigator {
	return console.NewNavigator(shared.HomeRoute, func(location string) {
		log.Debug("Navigated", zap.String("location", location))
	})
}

// logConfig starts from the interactive defaults, or the JSON script
// defaults in production, and applies whatever the config file sets.
func logConfig(cfg *config.Config) *logger.Config {
	lc := logger.DefaultConfig()
	if cfg.App.Env == "production" {
		lc = logger.ScriptConfig()
	}
	if cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		lc.Format = cfg.Log.Format
	}
	if cfg.Log.Output != "" {
		lc.Output = cfg.Log.Output
	}
	return lc
}
