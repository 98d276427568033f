package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/askaround/internal/api"
	"github.com/onnwee/askaround/internal/auth"
	"github.com/onnwee/askaround/internal/cache"
	"github.com/onnwee/askaround/internal/config"
	"github.com/onnwee/askaround/internal/feed"
	"github.com/onnwee/askaround/internal/geo"
	"github.com/onnwee/askaround/internal/geocode"
	"github.com/onnwee/askaround/internal/health"
	"github.com/onnwee/askaround/internal/jobs"
	"github.com/onnwee/askaround/internal/middleware"
	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/mutation"
	"github.com/onnwee/askaround/internal/query"
	"github.com/onnwee/askaround/internal/session"
	"github.com/onnwee/askaround/internal/tracing"
)

const serviceName = "askaround-cli"

// app holds every component of one client process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	tracer   *tracing.Provider

	transport http.RoundTripper
	tokens    *auth.CachingSource
	client    *api.Client
	redis     *redis.Client
	questions *query.Engine[model.Question]
	responses *query.Engine[model.Response]
	mutations *mutation.Coordinator
	geocoder  geocode.Geocoder
	session   *session.Session
	flush     *jobs.Job

	metricsServer *http.Server
}

// newApp wires the client from cfg. location feeds the location push job;
// nil reports the default map center.
func newApp(cfg *config.Config, logger *slog.Logger, location jobs.LocationSource) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	if location == nil {
		location = jobs.StaticLocation(geo.DefaultCenter)
	}

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.tracer = tp

	httpMetrics := middleware.NewMetrics()
	cacheMetrics := cache.NewMetrics()
	queryMetrics := query.NewMetrics()
	mutationMetrics := mutation.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, r := range []interface{ Register(prometheus.Registerer) error }{httpMetrics, cacheMetrics, queryMetrics, mutationMetrics, jobMetrics} {
		if err := r.Register(a.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	a.transport = middleware.Chain(http.DefaultTransport,
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.HTTPMetrics(httpMetrics),
		middleware.Tracing(),
	)

	staticToken := cfg.APIToken
	a.tokens = auth.NewCachingSource(func(context.Context) (string, error) {
		if staticToken == "" {
			return "", auth.ErrNoToken
		}
		return staticToken, nil
	}, auth.WithLogger(logger))

	a.client, err = api.NewClient(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout(),
		Transport: a.transport,
	}, a.tokens, logger)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	questionOpts := []cache.Option[model.Question]{
		cache.WithLoader[model.Question](feed.QuestionLoader(a.client)),
		cache.WithMetrics[model.Question](cacheMetrics),
		cache.WithLogger[model.Question](logger),
	}
	responseOpts := []cache.Option[model.Response]{
		cache.WithMetrics[model.Response](cacheMetrics),
		cache.WithLogger[model.Response](logger),
	}
	var flushers []jobs.Flusher
	if cfg.RedisAddr != "" {
		a.redis, err = newRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		qs := cache.NewRedisStore[model.Question](a.redis, "askaround:questions", cfg.CacheTTL())
		rs := cache.NewRedisStore[model.Response](a.redis, "askaround:responses", cfg.CacheTTL())
		questionOpts = append(questionOpts, cache.WithStore[model.Question](qs))
		responseOpts = append(responseOpts, cache.WithStore[model.Response](rs))
	}
	questionCache := cache.New("questions", questionOpts...)
	responseCache := cache.New("responses", responseOpts...)
	if a.redis != nil {
		flushers = append(flushers, questionCache, responseCache)
	}

	engineCfg := query.DefaultConfig()
	engineCfg.PageSize = cfg.PageSize
	engineCfg.GCTime = cfg.GCTime()
	engineCfg.Retries = cfg.QueryRetries
	engineCfg.Logger = logger
	engineCfg.Metrics = queryMetrics
	a.questions = query.NewEngine("questions", feed.QuestionsFetcher(a.client), questionCache, engineCfg)
	a.responses = query.NewEngine("responses", feed.ResponsesFetcher(a.client), responseCache, engineCfg)

	a.mutations = mutation.NewCoordinator(a.client, a.questions, a.responses, mutation.Options{
		Logger:  logger,
		Metrics: mutationMetrics,
	})

	if cfg.GeocodingEnabled() {
		a.geocoder, err = geocode.NewGoogleClient(geocode.GoogleConfig{
			APIKey:    cfg.MapsAPIKey,
			Transport: middleware.Chain(http.DefaultTransport, middleware.Tracing()),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("geocoder: %w", err)
		}
	}

	locationJob := jobs.NewLocationPushJob(location, a.client, jobs.Config{
		Interval:   cfg.LocationPushInterval(),
		RunOnStart: true,
		Logger:     logger,
		Metrics:    jobMetrics,
	})
	a.flush = jobs.NewCacheFlushJob(jobs.Config{
		Interval: cfg.CacheTTL() / 2,
		Logger:   logger,
		Metrics:  jobMetrics,
	}, flushers...)

	var push model.PushTokenRequest
	if cfg.PushToken != "" {
		push = model.PushTokenRequest{Token: cfg.PushToken, Platform: "cli"}
	}
	a.session = session.New(a.client, session.Options{
		PushToken: push,
		Jobs:      []session.Job{locationJob, a.flush},
		State:     []session.Clearer{a.questions, a.responses, questionCache, responseCache},
		Tokens:    a.tokens,
		Logger:    logger,
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		a.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a, nil
}

// checkers lists the dependencies reported by the status command.
func (a *app) checkers() map[string]health.Checker {
	checks := map[string]health.Checker{
		"api": health.NewHTTPChecker(a.cfg.APIBaseURL+"/health", a.transport),
	}
	if a.redis != nil {
		checks["redis"] = health.NewRedisChecker(a.redis)
	}
	return checks
}

// newRedisClient accepts either a redis:// URL or a bare host:port.
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// start checks redis, serves metrics and signs in.
func (a *app) start(ctx context.Context) (model.User, error) {
	if a.redis != nil {
		report := health.Run(ctx, map[string]health.Checker{"redis": health.NewRedisChecker(a.redis)}, 0)
		if err := report.Err(); err != nil {
			a.logger.Warn("redis unavailable, caching in memory only", slog.String("error", err.Error()))
		}
	}
	if a.metricsServer != nil {
		go func() {
			a.logger.Info("serving metrics", slog.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", slog.String("error", err.Error()))
			}
		}()
	}
	return a.session.SignIn(ctx, ctx)
}

// warmQuestions copies persisted snapshots of ids into the question cache
// so a restarted client can show them before the API answers.
func (a *app) warmQuestions(ctx context.Context, ids ...string) {
	n, err := a.questions.Cache().Warm(ctx, ids...)
	if err != nil {
		a.logger.Warn("cache warm failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		a.logger.Debug("cache warmed", slog.Int("entries", n))
	}
}

// newFeed opens the nearby feed with the configured quiet period.
func (a *app) newFeed(ctx context.Context, filterType, filterValue string, onUpdate func(query.State)) *feed.Feed {
	return feed.New(ctx, a.questions, feed.Options{
		QuietPeriod: a.cfg.Debounce(),
		FilterType:  filterType,
		FilterValue: filterValue,
		Logger:      a.logger,
		OnUpdate:    onUpdate,
	})
}

// shutdown signs out and releases every resource. It is safe to call after
// a failed start.
func (a *app) shutdown(ctx context.Context) {
	if _, ok := a.session.User(); ok {
		if err := a.session.SignOut(ctx); err != nil {
			a.logger.Warn("sign-out incomplete", slog.String("error", err.Error()))
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown", slog.String("error", err.Error()))
	}
}
