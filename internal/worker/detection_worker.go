package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recurring/internal/amqp"
	"recurring/internal/core"
	"recurring/internal/services"
)

// RequestConsumer delivers detect requests until ctx is done.
type RequestConsumer interface {
	ConsumeDetectRequests(ctx context.Context, handler func(context.Context, *amqp.DetectRequestMessage) error) error
}

// DetectionWorker runs detection for every account on a schedule and for every detect
// request received over AMQP.
type DetectionWorker struct {
	detector        services.AccountDetector
	scheduler       *services.DetectionScheduler
	consumer        RequestConsumer
	defaultDaysBack int
}

func NewDetectionWorker(detector services.AccountDetector, scheduler *services.DetectionScheduler, consumer RequestConsumer, defaultDaysBack int) *DetectionWorker {
	return &DetectionWorker{
		detector:        detector,
		scheduler:       scheduler,
		consumer:        consumer,
		defaultDaysBack: defaultDaysBack,
	}
}

// HandleDetectRequest processes a single detect request from AMQP. Requests that can
// never succeed are wrapped with amqp.ErrReject so they are not redelivered.
func (w *DetectionWorker) HandleDetectRequest(ctx context.Context, msg *amqp.DetectRequestMessage) error {
	daysBack := msg.DaysBack
	if daysBack == 0 {
		daysBack = w.defaultDaysBack
	}

	slog.InfoContext(ctx, "Processing detect request",
		"account_id", msg.AccountID,
		"days_back", daysBack)

	result, err := w.detector.Detect(ctx, msg.AccountID, daysBack)
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: %w", amqp.ErrReject, err)
		}
		return fmt.Errorf("detect account %s: %w", msg.AccountID, err)
	}

	slog.InfoContext(ctx, "Detect request completed",
		"account_id", result.AccountID,
		"created", result.PatternsCreated,
		"updated", result.PatternsUpdated,
		"deactivated", result.PatternsDeactivated)
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, core.ErrEmptyAccount) ||
		errors.Is(err, core.ErrInvalidDaysBack) ||
		errors.Is(err, core.ErrNotFound)
}

// Run starts the scheduler and, when a consumer is configured, blocks consuming detect
// requests. It returns when ctx is done.
func (w *DetectionWorker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	var err error
	if w.consumer != nil {
		err = w.consumer.ConsumeDetectRequests(ctx, w.HandleDetectRequest)
	} else {
		<-ctx.Done()
		err = ctx.Err()
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Stop waits for the scheduler's current pass to finish.
func (w *DetectionWorker) Stop(ctx context.Context) error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Stop(ctx)
}
