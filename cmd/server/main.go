package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"washly/internal/config"
	"washly/internal/infra"
	"washly/internal/repository"
	"washly/internal/router"
	"washly/internal/service"
	"washly/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Closing-report pipeline: queue → worker pool → SMTP, plus the sweep for
	// reports that never went out. Wired here (composition root) and only when
	// Redis, SMTP and a recipient are all configured.
	var dispatcher service.ReportDispatcher
	mailer := infra.NewMailer(cfg)
	if rdb != nil && mailer.Configured() && len(infra.ParseRecipients(cfg.ReportEmailTo)) > 0 {
		d := worker.NewDispatcher(rdb)
		dispatcher = d

		cajaRepo := repository.NewCajaRepository(db)
		paymentRepo := repository.NewPaymentRepository(db)
		cajaSvc := service.NewCajaService(cajaRepo, paymentRepo, infra.NewKeyedLocker())
		smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp"))

		reportWorker := worker.NewSessionReportWorker(cajaRepo, cajaSvc, mailer, smtpCB, cfg.ReportEmailTo, cfg.Currency)
		worker.NewPool(rdb, map[string]worker.JobHandler{
			worker.JobSessionReport: reportWorker,
		}).Start(ctx, cfg.WorkerPoolSize)

		worker.StartReportSweep(ctx, worker.ReportSweepConfig{
			Sessions:   cajaRepo,
			Dispatcher: d,
			CB:         smtpCB,
			Interval:   time.Duration(cfg.ReportSweepSeconds) * time.Second,
		})
	} else {
		log.Warn().Msg("closing-report emails disabled (needs REDIS_URL, SMTP_HOST and REPORT_EMAIL_TO)")
	}

	r := router.New(cfg, db, rdb, dispatcher)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("washly backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
