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

	"github.com/pharmd/pharmd/internal/config"
	"github.com/pharmd/pharmd/internal/domain/adherence"
	"github.com/pharmd/pharmd/internal/domain/dispensing"
	"github.com/pharmd/pharmd/internal/domain/interaction"
	"github.com/pharmd/pharmd/internal/domain/inventory"
	"github.com/pharmd/pharmd/internal/domain/profile"
	"github.com/pharmd/pharmd/internal/domain/reconciliation"
	"github.com/pharmd/pharmd/internal/domain/screening"
	"github.com/pharmd/pharmd/internal/platform/advisory"
	"github.com/pharmd/pharmd/internal/platform/auth"
	"github.com/pharmd/pharmd/internal/platform/db"
	"github.com/pharmd/pharmd/internal/platform/middleware"
	"github.com/pharmd/pharmd/internal/platform/reporting"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharmd-server",
		Short: "Pharmacy Fulfillment API Server",
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
		Short: "Start the pharmacy API server",
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

	// migrate up
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

	// migrate status
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
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	txRunner := db.NewTxRunner(pool)

	// Inventory ledger
	invRepo := inventory.NewRepoPG(pool)
	invSvc := inventory.NewService(invRepo)
	inventory.NewHandler(invSvc).RegisterRoutes(apiV1)

	// Interaction catalog
	intRepo := interaction.NewRepoPG(pool)
	intSvc := interaction.NewService(intRepo)
	interaction.NewHandler(intSvc).RegisterRoutes(apiV1)

	// Patient pharmacy profiles
	profRepo := profile.NewRepoPG(pool)
	profSvc := profile.NewService(profRepo)
	profile.NewHandler(profSvc).RegisterRoutes(apiV1)

	// Safety screening, optionally backed by the external advisory service
	var advisoryClient screening.AdvisoryClient
	if cfg.AdvisoryURL != "" {
		advisoryClient = advisory.NewClient(cfg.AdvisoryURL, cfg.AdvisoryTimeout())
		logger.Info().Str("url", cfg.AdvisoryURL).Msg("advisory service enabled")
	} else {
		logger.Warn().Msg("ADVISORY_URL not set; screenings run against the local catalog only")
	}
	screenSvc := screening.NewService(intSvc, profSvc, advisoryClient, cfg.AdvisoryTimeout(), logger)
	screening.NewHandler(screenSvc).RegisterRoutes(apiV1)

	// Medication reconciliation
	reconRepo := reconciliation.NewRepoPG(pool)
	reconSvc := reconciliation.NewService(reconRepo, profSvc, txRunner, logger)
	reconciliation.NewHandler(reconSvc).RegisterRoutes(apiV1)

	// Dispensing workflow
	dispRepo := dispensing.NewRepoPG(pool)
	dispSvc := dispensing.NewService(dispRepo, invSvc, profSvc, txRunner, logger, cfg.AdherenceRefillIntervalDays)
	dispensing.NewHandler(dispSvc).RegisterRoutes(apiV1)

	// Adherence scoring
	adhSvc := adherence.NewService(profSvc, cfg.AdherenceRefillIntervalDays, cfg.AdherenceLookbackDays, logger)
	adherence.NewHandler(adhSvc).RegisterRoutes(apiV1)

	// Reports and dashboard
	reporting.NewHandler(pool).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
