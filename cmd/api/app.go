package main

import (
	"context"
	"database/sql"
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

	"github.com/onnwee/campusconnect/internal/api"
	"github.com/onnwee/campusconnect/internal/audit"
	"github.com/onnwee/campusconnect/internal/auth"
	"github.com/onnwee/campusconnect/internal/config"
	"github.com/onnwee/campusconnect/internal/db"
	"github.com/onnwee/campusconnect/internal/event"
	"github.com/onnwee/campusconnect/internal/friendship"
	"github.com/onnwee/campusconnect/internal/health"
	"github.com/onnwee/campusconnect/internal/idempotency"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/jobs"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/media"
	"github.com/onnwee/campusconnect/internal/memory"
	"github.com/onnwee/campusconnect/internal/middleware"
	"github.com/onnwee/campusconnect/internal/presence"
	"github.com/onnwee/campusconnect/internal/review"
	"github.com/onnwee/campusconnect/internal/stats"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// Background job intervals.
const (
	rateLimitCleanupInterval   = 5 * time.Minute
	idempotencyCleanupInterval = time.Hour
)

type metricsRegisterer interface {
	Register(prometheus.Registerer) error
}

// app is the fully wired server.
type app struct {
	handler http.Handler
	jobs    *jobs.Runner
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("error releasing resource", "error", err)
		}
	}
}

// repositories groups the storage backends of every domain package.
type repositories struct {
	users      identity.Repository
	locations  location.Repository
	friends    friendship.Repository
	presence   presence.Repository
	reviews    review.Repository
	events     event.Repository
	memories   memory.Repository
	audit      audit.Repository
	dbChecker  health.Checker
	closeStore func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  tracing.ServiceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	})

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, repos.closeStore)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewMetrics()
	eventMetrics := event.NewMetrics()
	memoryMetrics := memory.NewMetrics()
	presenceMetrics := presence.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	upserts := stats.NewUpsertCounter()
	for _, r := range []metricsRegisterer{
		httpMetrics, eventMetrics, memoryMetrics, presenceMetrics, jobMetrics, upserts,
	} {
		if err := r.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	checkers := []health.Checker{}
	if repos.dbChecker != nil {
		checkers = append(checkers, repos.dbChecker)
	}

	var limitStore middleware.RateLimitStore
	var replays idempotency.Repository
	var jobList []jobs.Job
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		limitStore = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics)
		checkers = append(checkers, health.NewRedisChecker(client))
		replays = idempotency.NewRedisRepository(client, idempotency.DefaultExpiry)
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		limitStore = mem
		jobList = append(jobList, jobs.Job{
			Type:     jobs.JobTypeRateLimitCleanup,
			Interval: rateLimitCleanupInterval,
			Run: func(context.Context) error {
				mem.Cleanup()
				return nil
			},
		})
		replays = idempotency.NewInMemoryRepository()
		jobList = append(jobList, jobs.Job{
			Type:     jobs.JobTypeIdempotencyCleanup,
			Interval: idempotencyCleanupInterval,
			Run:      idempotency.Cleanup(replays, idempotency.DefaultExpiry),
		})
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return nil, err
	}

	locations := location.NewCachedRepository(repos.locations, location.DefaultCacheTTL)
	if err := location.Seed(ctx, locations, location.DefaultCampus()); err != nil {
		return nil, err
	}

	graph := friendship.NewGraph(repos.friends, repos.users)
	ledger := presence.NewLedger(presence.LedgerConfig{
		Repository: repos.presence,
		Locations:  locations,
		Friends:    graph,
		Users:      repos.users,
		Audit:      repos.audit,
		Metrics:    presenceMetrics,
		TTL:        time.Duration(cfg.ShareTTLHours) * time.Hour,
	})
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.JWTPreviousSecret)
	handlers := api.NewHandlers(api.HandlersConfig{
		Identity:  identity.NewService(repos.users),
		Tokens:    tokens,
		Locations: locations,
		Friends:   graph,
		Presence:  ledger,
		Reviews: review.NewAggregator(review.AggregatorConfig{
			Repository: repos.reviews,
			Locations:  locations,
			Friends:    graph,
			Audit:      repos.audit,
			Upserts:    upserts,
		}),
		Events: event.NewCoordinator(repos.events, locations, eventMetrics),
		Memories: memory.NewStore(memory.StoreConfig{
			Repository: repos.memories,
			Friends:    graph,
			Users:      repos.users,
			Locations:  locations,
			Media:      media.NewUploader(blobs, cfg.MaxUploadSizeMB),
			Audit:      repos.audit,
			Metrics:    memoryMetrics,
		}),
		MaxUploadBytes: int64(cfg.MaxUploadSizeMB) << 20,
	})

	mux := http.NewServeMux()
	limitWrites := writeLimit(limitStore, httpMetrics)
	replay := middleware.Idempotency(replays)
	requireAuth := func(next http.Handler) http.Handler {
		return middleware.RequireAuth(tokens)(limitWrites(replay(next)))
	}
	handlers.Register(mux, requireAuth, middleware.OptionalAuth(tokens))
	api.NewHealthHandlers(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if mem, ok := blobs.(*media.InMemoryStore); ok {
		mux.Handle("GET /media/{key...}", serveBlobs(mem))
	}

	// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> RateLimit -> mux
	var handler http.Handler = mux
	handler = rateLimit(limitStore, httpMetrics)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(tracing.ServiceName)(handler)
	handler = middleware.RequestID(handler)

	a.handler = handler
	a.jobs = jobs.NewRunner(logger, jobMetrics, jobList...)
	return a, nil
}

// openRepositories connects to Postgres when DATABASE_URL is set and falls
// back to in-memory storage otherwise. Config validation already rejects a
// missing URL in production.
func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory repositories; data is lost on restart")
		locations := location.NewInMemoryRepository()
		return &repositories{
			users:      identity.NewInMemoryRepository(),
			locations:  locations,
			friends:    friendship.NewInMemoryRepository(),
			presence:   presence.NewInMemoryRepository(locations),
			reviews:    review.NewInMemoryRepository(locations),
			events:     event.NewInMemoryRepository(),
			memories:   memory.NewInMemoryRepository(),
			audit:      audit.NewInMemoryRepository(),
			closeStore: func() error { return nil },
		}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return postgresRepositories(conn), nil
}

func postgresRepositories(conn *sql.DB) *repositories {
	return &repositories{
		users:      identity.NewPostgresRepository(conn),
		locations:  location.NewPostgresRepository(conn),
		friends:    friendship.NewPostgresRepository(conn),
		presence:   presence.NewPostgresRepository(conn),
		reviews:    review.NewPostgresRepository(conn),
		events:     event.NewPostgresRepository(conn),
		memories:   memory.NewPostgresRepository(conn),
		audit:      audit.NewPostgresRepository(conn),
		dbChecker:  health.NewDBChecker(conn),
		closeStore: conn.Close,
	}
}

func newBlobStore(cfg *config.Config) (media.BlobStore, error) {
	if !cfg.S3Enabled() {
		return media.NewInMemoryStore(fmt.Sprintf("http://localhost:%d/media", cfg.Port)), nil
	}
	store, err := media.NewS3Store(media.S3Config{
		BucketName:      cfg.S3BucketName,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return store, nil
}

// rateLimit applies the stricter auth limit to /auth/ and the global limit
// to everything else.
func rateLimit(store middleware.RateLimitStore, metrics *middleware.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		global := middleware.RateLimiter("global", store, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), metrics)(next)
		authLimited := middleware.RateLimiter("auth", store, middleware.DefaultAuthLimit(), middleware.IPKeyFunc(), metrics)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/auth/") {
				authLimited.ServeHTTP(w, r)
				return
			}
			global.ServeHTTP(w, r)
		})
	}
}

// writeLimit bounds state-changing requests per authenticated user. It must
// run after RequireAuth so the user ID is in the context.
func writeLimit(store middleware.RateLimitStore, metrics *middleware.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := middleware.RateLimiter("write", store, middleware.DefaultWriteLimit(), middleware.UserKeyFunc(), metrics)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// serveBlobs serves media from the in-memory store in development.
func serveBlobs(store *media.InMemoryStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blob, ok := store.Get(r.PathValue("key"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", blob.ContentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if _, err := w.Write(blob.Data); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
			slog.WarnContext(r.Context(), "failed to write media", "error", err)
		}
	})
}
