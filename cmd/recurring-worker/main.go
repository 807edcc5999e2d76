package main

import (
	"context"
	"os"
	"time"

	"recurring/internal/amqp"
	"recurring/internal/cli"
	applog "recurring/internal/log"
	"recurring/internal/services"
	"recurring/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		applog.FromContext(context.Background()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger, closeLog := cli.SetupLogger(cfg, applog.ComponentWorker)
	defer closeLog()
	logger.Info("Starting recurring-worker")

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	// The consumer stays a nil interface when AMQP is off; the scheduler still runs.
	var (
		opts     []services.Option
		consumer worker.RequestConsumer
	)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, running scheduler only", "error", err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithPublisher(amqpClient))
			consumer = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - only scheduled detection will run")
	}

	svc := cli.NewService(res, opts...)
	processor := services.NewDetectionProcessor(res.Accounts, svc, cfg.DetectWorkers)
	scheduler := services.NewDetectionScheduler(processor, services.SchedulerConfig{
		Interval: cfg.DetectInterval,
		DaysBack: cfg.DefaultDaysBack,
	})
	w := worker.NewDetectionWorker(svc, scheduler, consumer, cfg.DefaultDaysBack)

	logger.Info("Detection worker configured",
		"interval", cfg.DetectInterval,
		"workers", cfg.DetectWorkers,
		"days_back", cfg.DefaultDaysBack)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := w.Stop(ctx); err != nil {
			logger.Error("Worker shutdown error", "error", err)
		}
	})

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Recurring-worker shutdown complete")
}
