package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-service/internal/admission"
	"payment-service/internal/config"
	"payment-service/internal/controllers/http"
	"payment-service/internal/gateway"
	"payment-service/internal/gateway/checkout"
	"payment-service/internal/gateway/mpesa"
	"payment-service/internal/infra"
	mmysql "payment-service/internal/infra/mysql"
	"payment-service/internal/infra/rabbitmq"
	"payment-service/internal/logging"
	mysqlrepo "payment-service/internal/repository/mysql"
	"payment-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "payment-service",
		Short:         "Order payment initiation and reconciliation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the orders table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			db, err := mmysql.NewMySQL(cfg.MySQL)
			if err != nil {
				return fmt.Errorf("db: connect: %w", err)
			}
			return mmysql.Migrate(db)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("db: connect: %w", err)
	}
	if err := mmysql.Migrate(db); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	defer closeDB(db, logger)

	repo := mysqlrepo.NewOrderRepository(db)

	var catalog infra.ProductClientInterface = infra.NewProductClient(cfg.Catalog.URL, cfg.Catalog.Timeout)
	var initiateLimiter admission.Limiter
	window := admission.NewWindowLimiter(cfg.Admission.InitiateLimit, cfg.Admission.InitiateWindow)
	initiateLimiter = window

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer rdb.Close()

		catalog = infra.NewCachedProductClient(catalog, rdb, cfg.Catalog.CacheTTL, logger)
		initiateLimiter = admission.NewRedisLimiter(rdb, cfg.Admission.InitiateLimit, cfg.Admission.InitiateWindow)
		logger.Info("using redis for rate limits and catalog cache", "addr", cfg.Redis.Addr)
	}
	readLimiter := admission.NewTokenBucketLimiter(cfg.Admission.StatusRPS, cfg.Admission.StatusBurst, cfg.Admission.SweepInterval)

	var publisher rabbitmq.PublisherInterface
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			return fmt.Errorf("failed to init publisher: %w", err)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("rabbitmq url not set, order events will only be logged")
		publisher = rabbitmq.NewLogPublisher(logger)
	}

	adapters := []gateway.Adapter{
		mpesa.NewClient(cfg.Mpesa, logger),
		checkout.NewClient(cfg.Checkout, logger),
	}
	for _, a := range adapters {
		if err := a.Ready(); err != nil {
			logger.Warn("payment method disabled", "method", a.Method(), "error", err)
		}
	}

	svc := services.NewOrderService(repo, catalog, publisher, logger, adapters,
		services.WithAdminRole(cfg.Auth.AdminRole),
		services.WithManualVerifyRole(cfg.ManualVerify.RequiredRole),
	)

	turnstile := admission.NewTurnstileVerifier(cfg.Turnstile.BaseURL, cfg.Turnstile.SecretKey, cfg.Turnstile.Required, cfg.Turnstile.Timeout)
	if !turnstile.Enabled() {
		logger.Warn("turnstile secret not set, challenge tokens will not be checked")
	}

	handler := http.NewHandler(svc, adapters, http.Options{
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
		InitiateLimiter: initiateLimiter,
		ReadLimiter:     readLimiter,
		Turnstile:       turnstile,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), http.RequestLogger(logger))
	handler.RegisterRoutes(r)

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting payment service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server run: %w", err)
		}
		return nil
	})
	g.Go(func() error { return window.Run(gctx, cfg.Admission.SweepInterval) })
	g.Go(func() error { return readLimiter.Run(gctx, cfg.Admission.SweepInterval) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	svc.Wait()
	return err
}

func closeDB(db *gorm.DB, logger *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("db: close", "error", err)
	}
}
