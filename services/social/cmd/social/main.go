package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/storycraft/social-interaction/internal/platform/auth"
	"github.com/storycraft/social-interaction/internal/platform/config"
	"github.com/storycraft/social-interaction/internal/platform/db"
	"github.com/storycraft/social-interaction/internal/platform/events"
	"github.com/storycraft/social-interaction/internal/platform/grpcserver"
	"github.com/storycraft/social-interaction/internal/platform/httpserver"
	"github.com/storycraft/social-interaction/internal/platform/logging"
	"github.com/storycraft/social-interaction/internal/platform/metrics"
	"github.com/storycraft/social-interaction/internal/platform/natsconn"
	"github.com/storycraft/social-interaction/internal/platform/run"
	"github.com/storycraft/social-interaction/services/social/internal/handlers"
	"github.com/storycraft/social-interaction/services/social/internal/store"
	"github.com/storycraft/social-interaction/services/social/internal/worker"
	"github.com/storycraft/social-interaction/services/social/migrations"
)

const (
	metricsNamespace = "social"
	startupTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	base, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	log := logging.ForService(base, cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()

	mc := metrics.New(metricsNamespace)

	comments, reactions, pool := initStores(cfg, log, mc)
	publisher, js, nc := initEvents(cfg, log)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, authenticated routes will reject every token")
	}
	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	ready := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}
		return pool.Ping(ctx)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName: cfg.ServiceName,
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
		ReadyFunc:   ready,
		Metrics:     mc.Handler(),
		Middlewares: []func(next http.Handler) http.Handler{mc.Middleware},
	})
	svc := &handlers.Service{
		Comments:  comments,
		Reactions: reactions,
		Events:    publisher,
		Metrics:   mc,
	}
	if cfg.HTTP.APIPrefix == "" {
		svc.Routes(r, verifier)
	} else {
		r.Route(cfg.HTTP.APIPrefix, func(r chi.Router) { svc.Routes(r, verifier) })
	}

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Logger: log, Router: r})

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Error("grpc listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
		shutdownPool(pool)
		_ = log.Sync()
		run.Exit(1)
	}
	grpcSrv := grpcserver.New(grpcserver.Options{
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Ready:       ready,
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
		if js != nil {
			consumer := &worker.ReactionConsumer{
				JS:        js,
				Reactions: reactions,
				Events:    publisher,
				Metrics:   mc,
				Log:       log.Named("reaction-consumer"),
			}
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.Error("reaction consumer stopped", zap.Error(err))
				}
			}()
		}
		return srv.Start()
	}, func(ctx context.Context) error {
		grpcSrv.Shutdown(ctx)
		return srv.Shutdown(ctx)
	})

	if nc != nil {
		if err := nc.Drain(); err != nil {
			log.Warn("nats drain", zap.Error(err))
		}
	}
	shutdownPool(pool)
	log.Info("exit", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}

// initStores selects the store backend. The postgres backend is mandatory
// once configured: a pool that cannot be initialized terminates the process.
func initStores(cfg config.AppConfig, log *zap.Logger, mc *metrics.Collector) (store.CommentStore, store.ReactionStore, *db.Pool) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("STORE_BACKEND=memory, data is lost on restart (development only)")
		return store.NewInMemoryCommentStore(), store.NewInMemoryReactionStore(), nil
	}

	dsn := cfg.DB.DSN()
	if cfg.DB.Migrate {
		if err := migrations.Up(dsn, log); err != nil {
			log.Error("database migrations failed", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
	}

	pool := db.New(dsn)
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := pool.Initialize(ctx); err != nil {
		log.Error("postgres is required but unavailable", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}
	mc.RegisterPoolStats(metricsNamespace, pool.Stat)
	log.Info("store backend: postgres",
		zap.Int32("min_conns", db.MinConns),
		zap.Int32("max_conns", db.MaxConns))
	return store.NewPostgresCommentStore(pool), store.NewPostgresReactionStore(pool), pool
}

// initEvents connects to NATS when configured. NATS is optional: on failure
// the service runs without events and without the command consumer.
func initEvents(cfg config.AppConfig, log *zap.Logger) (*events.Publisher, nats.JetStreamContext, *nats.Conn) {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set, domain events disabled")
		return events.New(nil, log), nil, nil
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		return events.New(nil, log), nil, nil
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Error("nats jetstream", zap.Error(err))
		nc.Close()
		return events.New(nil, log), nil, nil
	}
	if err := natsconn.EnsureStream(js, events.Stream, []string{events.StreamSubject}, events.StreamMaxAge); err != nil {
		log.Error("nats ensure stream", zap.String("stream", events.Stream), zap.Error(err))
		nc.Close()
		return events.New(nil, log), nil, nil
	}
	log.Info("nats connected", zap.String("stream", events.Stream))
	return events.New(js, log), js, nc
}

func shutdownPool(pool *db.Pool) {
	if pool != nil {
		pool.Shutdown()
	}
}
