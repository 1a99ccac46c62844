package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/library-loans-api/api/swagger"
	"github.com/noah-isme/library-loans-api/internal/handler"
	"github.com/noah-isme/library-loans-api/internal/middleware"
	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/internal/repository"
	"github.com/noah-isme/library-loans-api/internal/service"
	"github.com/noah-isme/library-loans-api/pkg/config"
	"github.com/noah-isme/library-loans-api/pkg/database"
	"github.com/noah-isme/library-loans-api/pkg/jobs"
	"github.com/noah-isme/library-loans-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/library-loans-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/library-loans-api/pkg/middleware/requestid"
)

// @title Library Loans API
// @version 1.0.0
// @description Gestión de préstamos de la biblioteca
// @BasePath /v1.0
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	checks := make(map[string]handler.ReadinessCheck)

	store, closeStore, err := openLoanStore(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	publisher, closePublisher, err := openPublisher(ctx, cfg, logr, checks)
	if err != nil {
		return err
	}
	defer closePublisher()

	notifier := service.NewQueueNotifier(publisher, jobs.QueueConfig{
		Workers:    cfg.Notifier.Workers,
		BufferSize: cfg.Notifier.BufferSize,
		MaxRetries: cfg.Notifier.MaxRetries,
		RetryDelay: cfg.Notifier.RetryDelay,
	}, metrics, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	opts := []service.LoanServiceOption{service.WithLoanMetrics(metrics)}
	if cfg.Loans.EnforceSingleActive {
		policy := service.NewSingleActiveLoanPolicy(store)
		opts = append(opts, service.WithActiveLoanPolicy(policy), service.WithBookAvailabilityPolicy(policy))
	}
	loans := service.NewLoanService(store, notifier, logr, opts...)

	sweeper := service.NewLoanSweeper(loans, notifier, logr, service.WithSweepMetrics(metrics))
	if cfg.Sweeper.Enabled {
		if err := sweeper.Start(ctx, cfg.Sweeper.Schedule); err != nil {
			return fmt.Errorf("schedule overdue sweeper: %w", err)
		}
		defer sweeper.Stop()
	}
	if cfg.Sweeper.RunOnStart {
		go func() {
			if _, err := sweeper.Run(ctx, time.Now()); err != nil {
				logr.Warn("startup overdue sweep failed", zap.Error(err))
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}
	ops := handler.NewMetricsHandler(metricsHandler, checks, logr)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)), middleware.Audit(logr))
	handler.NewLoanHandler(loans, service.NewExportService(loans, logr)).Register(api)
	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("/sweeps", handler.NewSweepHandler(sweeper).Run)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Loans.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openLoanStore(ctx context.Context, cfg *config.Config, checks map[string]handler.ReadinessCheck) (service.LoanStore, func(), error) {
	switch cfg.Loans.Store {
	case config.StoreBadger:
		db, err := database.NewBadger(cfg.Badger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewLoanBadgerRepository(db), func() { _ = db.Close() }, nil
	case config.StorePostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := repository.NewLoanRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db.PingContext
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown loan store %q", cfg.Loans.Store)
	}
}

type notificationPublisher interface {
	Publish(ctx context.Context, notification models.Notification) error
}

func openPublisher(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (notificationPublisher, func(), error) {
	if !cfg.Redis.Enabled {
		return service.NewLogNotificationPublisher(logr), func() {}, nil
	}
	client, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return repository.NewNotificationOutbox(client, cfg.Notifier.QueueKey, logr), func() { _ = client.Close() }, nil
}
