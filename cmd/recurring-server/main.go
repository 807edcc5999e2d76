package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"recurring/internal/amqp"
	"recurring/internal/cli"
	apphttp "recurring/internal/http"
	applog "recurring/internal/log"
	"recurring/internal/services"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		applog.FromContext(context.Background()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger, closeLog := cli.SetupLogger(cfg, applog.ComponentHTTP)
	defer closeLog()

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	var opts []services.Option
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, detection events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}
	svc := cli.NewService(res, opts...)

	var ready apphttp.ReadinessCheck
	if p, ok := res.Store.(pinger); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(svc, apphttp.Config{
		Addr:            ":" + cfg.Port,
		DefaultDaysBack: cfg.DefaultDaysBack,
		UpcomingDays:    cfg.UpcomingDays,
		SummaryCacheTTL: cfg.SummaryCacheTTL,
		Logger:          logger,
		Ready:           ready,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting recurring server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
