package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/neuroscan-api/internal/bootstrap"
	"github.com/jwalitptl/neuroscan-api/internal/chat"
	"github.com/jwalitptl/neuroscan-api/internal/config"
	"github.com/jwalitptl/neuroscan-api/internal/inference"
	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/router"
	adminsvc "github.com/jwalitptl/neuroscan-api/internal/service/admin"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/migrations"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
	"github.com/jwalitptl/neuroscan-api/pkg/security"
)

var configPaths []string

func main() {
	rootCmd := &cobra.Command{
		Use:   "neuroscan-api",
		Short: "NeuroScan API server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringSliceVar(&configPaths, "config-dir", nil, "directories searched for config.yml")

	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedAdminCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Run database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return fmt.Errorf("the memory driver has no schema to migrate")
			}

			res, err := bootstrap.OpenStore(cmd.Context(), cfg.Database, metrics.NewNop())
			if err != nil {
				return err
			}
			defer res.Close(log)

			return migrations.Run(cmd.Context(), res.DB.DB, args[0])
		},
	}
}

func seedAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the configured admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			res, err := bootstrap.OpenStore(cmd.Context(), cfg.Database, metrics.NewNop())
			if err != nil {
				return err
			}
			defer res.Close(log)

			admins := adminsvc.NewService(res.Store.Accounts, notification.NewService(res.Store.Outbox, log), security.NewBcryptHasher(cfg.Security.BcryptCost), log)
			return seedAdmin(cmd.Context(), admins, cfg.Admin, log)
		},
	}
}

func load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPaths...)
	if err != nil {
		return nil, nil, err
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, logger.FromGlobal(), nil
}

func seedAdmin(ctx context.Context, admins *adminsvc.Service, cfg config.AdminConfig, log *logger.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("admin.email and admin.password must be set")
	}
	created, err := admins.SeedAdmin(ctx, cfg.Email, cfg.Name, cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if created {
		log.Info("Admin account created", "email", cfg.Email)
	} else {
		log.Info("Admin account already exists", "email", cfg.Email)
	}
	return nil
}

func runServer(ctx context.Context) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, reg)

	tokens, err := auth.NewTokenService(auth.Config{
		Secret:     cfg.Secrets.JWTSecret,
		Issuer:     cfg.JWT.Issuer,
		SessionTTL: cfg.JWT.SessionTTL,
		ShareTTL:   cfg.JWT.ShareTTL,
	})
	if err != nil {
		return err
	}

	res, err := bootstrap.OpenStore(ctx, cfg.Database, m)
	if err != nil {
		return err
	}
	defer res.Close(log)

	files, err := bootstrap.OpenStorage(ctx, cfg.Storage, cfg.Secrets)
	if err != nil {
		return err
	}

	broker, err := res.OpenBroker(cfg, log.Named("redis"))
	if err != nil {
		return err
	}

	hub := chat.NewHub(m)
	var relay chat.Relay
	if broker != nil {
		redisRelay := chat.NewRedisRelay(broker, cfg.Redis.ChatChannel, hub, log.Named("chat-relay"))
		if err := redisRelay.Start(ctx); err != nil {
			return err
		}
		relay = redisRelay
	}

	r := router.NewRouter(router.Deps{
		Store:   res.Store,
		Storage: files,
		Inference: inference.NewHTTPClient(inference.Config{
			BaseURL:             cfg.Inference.BaseURL,
			Timeout:             cfg.Inference.Timeout,
			BreakerMaxFailures:  cfg.Inference.BreakerMaxFailures,
			BreakerOpenDuration: cfg.Inference.BreakerOpenDuration,
		}, m),
		Tokens:   tokens,
		Hasher:   security.NewBcryptHasher(cfg.Security.BcryptCost),
		Codes:    security.NewCodeGenerator(),
		Metrics:  m,
		Gatherer: reg,
		Logger:   log,
		Hub:      hub,
		Relay:    relay,
	}, router.Config{
		Mode:             cfg.Server.Mode,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		RateLimitEnabled: cfg.Security.RateLimit.Enabled,
		RateLimit: middleware.RateLimiterConfig{
			Rate:      rate.Limit(cfg.Security.RateLimit.RequestsPerSecond),
			Burst:     cfg.Security.RateLimit.Burst,
			ClientTTL: cfg.Security.RateLimit.ClientTTL,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ShareBaseURL:   cfg.Share.BaseURL,
		ScanThreshold:  cfg.Inference.DetectionThreshold,
		Chat: chat.Config{
			SendBuffer:      cfg.Chat.SendBuffer,
			WriteWait:       cfg.Chat.WriteWait,
			PongWait:        cfg.Chat.PongWait,
			MaxMessageBytes: cfg.Chat.MaxMessageBytes,
			HistoryLimit:    cfg.Chat.HistoryLimit,
		},
		ServeFiles: true,
	})
	r.Setup()

	if cfg.Admin.SeedOnStart {
		if err := seedAdmin(ctx, r.Admin, cfg.Admin, log); err != nil {
			return err
		}
	}

	if cfg.Outbox.Embedded {
		pub, err := res.OpenPublisher(cfg, broker, log.Named("nats"))
		if err != nil {
			return err
		}
		bootstrap.StartOutbox(ctx, cfg, res.Store.Outbox, bootstrap.EmailSender(cfg, log), pub, log, m)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr, "store", cfg.Database.Driver, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}
