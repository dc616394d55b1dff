package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curamed/curamed/internal/config"
	"github.com/curamed/curamed/internal/domain/account"
	"github.com/curamed/curamed/internal/domain/billing"
	"github.com/curamed/curamed/internal/domain/diagnosis"
	"github.com/curamed/curamed/internal/domain/hospital"
	"github.com/curamed/curamed/internal/domain/support"
	"github.com/curamed/curamed/internal/platform/analysis"
	"github.com/curamed/curamed/internal/platform/auth"
	"github.com/curamed/curamed/internal/platform/blobstore"
	"github.com/curamed/curamed/internal/platform/db"
	"github.com/curamed/curamed/internal/platform/middleware"
	"github.com/curamed/curamed/internal/platform/notification"
	"github.com/curamed/curamed/internal/platform/reporting"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "curamed-server",
		Short: "Hospital diagnosis management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Blob store: S3 when configured, in-memory otherwise.
	var blobs blobstore.BlobStore
	if cfg.S3Configured() {
		s3Store, err := blobstore.NewS3BlobStore(ctx, blobstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize s3 blob store")
		}
		blobs = s3Store
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("using s3 blob store")
	} else {
		blobs = blobstore.NewInMemoryBlobStore()
		logger.Warn().Msg("S3 not configured, blobs are stored in memory")
	}

	// Email: SMTP when configured, log fallback otherwise.
	var sender notification.EmailSender
	if cfg.SMTPConfigured() {
		smtpSender, err := notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Sender:   cfg.SMTPSender,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize smtp sender")
		}
		sender = smtpSender
	} else {
		sender = notification.NewLogSender(logger)
	}
	notifier := notification.NewNotificationManager(sender, notification.NewTemplateEngine())

	// Analysis client; an empty URL yields placeholder results.
	analyzer := analysis.NewClient(cfg.AnalyzerURL, time.Duration(cfg.AnalyzerTimeout)*time.Second, logger)

	// Price table
	prices := billing.DefaultPrices()
	if cfg.PricingFile != "" {
		prices, err = billing.LoadPriceTable(cfg.PricingFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.PricingFile).Msg("failed to load price table")
		}
	}

	// Domain services
	hospitalSvc := hospital.NewService(hospital.NewRepoPG(pool))
	accountSvc := account.NewService(account.NewRepoPG(pool), notifier, logger)
	diagnosisSvc := diagnosis.NewService(diagnosis.NewRepoPG(pool), analyzer, blobs, logger)
	billingSvc := billing.NewService(
		billing.NewInvoiceRepoPG(pool),
		billing.NewAggregator(billing.NewDiagnosisSourcePG(pool), prices),
		hospitalSvc,
		notifier,
		time.Duration(cfg.InvoiceOverdueDays)*24*time.Hour,
		logger,
	)
	supportSvc := support.NewService(support.NewRepoPG(pool), accountSvc, notifier, logger)
	reportingSvc := reporting.NewService(pool)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "32M"))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Secret:  []byte(cfg.JWTSecret),
			Skipper: auth.AuthSkipper,
		}))
	}

	// API groups
	apiV1 := e.Group("/api/v1")
	admin := apiV1.Group("/admin", auth.RequireAdmin())

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.Audit(logger))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Domain handlers
	account.NewHandler(accountSvc, []byte(cfg.JWTSecret)).RegisterRoutes(apiV1, admin)
	hospital.NewHandler(hospitalSvc).RegisterRoutes(admin)
	diagnosis.NewHandler(diagnosisSvc).RegisterRoutes(apiV1, admin)
	billing.NewHandler(billingSvc).RegisterRoutes(admin)
	support.NewHandler(supportSvc).RegisterRoutes(apiV1, admin)
	reporting.NewHandler(reportingSvc, logger).RegisterRoutes(admin)

	// Diagnosis image blobs
	blobstore.NewBlobHandler(blobs).RegisterRoutes(apiV1.Group("/blobs"))

	// Notification admin surface
	notification.NewNotificationHandler(notifier).RegisterRoutes(admin)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
