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

	"github.com/commentum/commentum/moderation/configstore"
	"github.com/commentum/commentum/moderation/countstore"
	"github.com/commentum/commentum/moderation/engine"
	"github.com/commentum/commentum/moderation/reports"
	"github.com/commentum/commentum/moderation/roles"
	"github.com/commentum/commentum/moderation/store"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"
)

type Server struct {
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
	engine *engine.Engine
	audit  store.AuditStore
}

type Config struct {
	Logger          *slog.Logger
	Bind            string
	RedisURL        string
	SlackWebhookURL string
	CommandTimeout  time.Duration
}

// NewServer wires the stores and the command engine. A nil db runs
// everything in memory, which is only useful for local development.
func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var accounts store.AccountStore
	var contents store.ContentStore
	var audit store.AuditStore
	var cfgStore configstore.Store
	if db != nil {
		gs, err := store.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing database store: %w", err)
		}
		cs, err := configstore.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing config store: %w", err)
		}
		accounts, contents, audit, cfgStore = gs, gs, gs, cs
	} else {
		logger.Warn("no database configured, state will not survive restarts")
		ms := store.NewMemStore()
		accounts, contents, audit, cfgStore = ms, ms, ms, configstore.NewMemStore()
	}

	var counters countstore.CountStore
	var cache configstore.Cache
	if config.RedisURL != "" {
		// check redis connection before handing the URL around
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := configstore.NewRedisCache(config.RedisURL, 30*time.Second)
		if err != nil {
			return nil, fmt.Errorf("initializing redis config cache: %v", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = configstore.NewMemCache(5_000, 30*time.Second)
	}

	cfg := configstore.NewProvider(cfgStore, cache, logger)

	var notifier engine.Notifier
	if config.SlackWebhookURL != "" {
		logger.Info("configuring slack notifier")
		notifier = engine.NewSlackNotifier(config.SlackWebhookURL, logger)
	}

	eng := &engine.Engine{
		Logger:   logger,
		Accounts: accounts,
		Contents: contents,
		Audit:    audit,
		Registry: roles.NewRegistry(cfg, logger),
		Config:   cfg,
		Counters: counters,
		Ledger:   reports.NewLedger(contents, logger),
		Applier:  engine.NewCrossPlatformApplier(accounts, logger),
		Notifier: notifier,
		Timeout:  config.CommandTimeout,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("warden"))
	e.Use(middleware.BodyLimit("1M"))

	srv := &Server{
		echo:   e,
		logger: logger,
		engine: eng,
		audit:  audit,
	}

	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/api/command", srv.HandleCommand)
	e.GET("/api/queue", srv.HandleQueue)
	e.GET("/api/audit", srv.HandleAuditLog)

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI(ctx context.Context) error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-exitSignals:
			srv.logger.Info("received OS exit signal", "signal", sig)
		case <-ctx.Done():
		}
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
