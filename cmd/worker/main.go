package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/neuroscan-api/internal/bootstrap"
	"github.com/jwalitptl/neuroscan-api/internal/config"
	"github.com/jwalitptl/neuroscan-api/internal/handler/health"
	prometheush "github.com/jwalitptl/neuroscan-api/internal/handler/prometheus"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	l := logger.FromGlobal().Named("worker")

	if cfg.Database.Driver == "memory" {
		l.Fatal(errors.New("memory driver"), "The standalone worker needs a shared database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace+"_worker", reg)

	res, err := bootstrap.OpenStore(ctx, cfg.Database, m)
	if err != nil {
		l.Fatal(err, "Failed to connect to database")
	}
	defer res.Close(l)

	broker, err := res.OpenBroker(cfg, l.Named("redis"))
	if err != nil {
		l.Fatal(err, "Failed to connect to Redis")
	}
	pub, err := res.OpenPublisher(cfg, broker, l.Named("nats"))
	if err != nil {
		l.Fatal(err, "Failed to connect to NATS")
	}

	srv := healthServer(cfg.Worker.HealthPort, res, reg, cfg.Server.Mode)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "Health server failed")
			stop()
		}
	}()

	l.Info("Worker started", "health_port", cfg.Worker.HealthPort)
	bootstrap.StartOutbox(ctx, cfg, res.Store.Outbox, bootstrap.EmailSender(cfg, l), pub, l, m)
	<-ctx.Done()

	l.Info("Shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "Health server forced to shutdown")
	}
}

func healthServer(port int, res *bootstrap.Resources, reg *prometheus.Registry, mode string) *http.Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(res.Store.Health).RegisterRoutes(engine)
	prometheush.New(reg).RegisterRoutes(engine)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
