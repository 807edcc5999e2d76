package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"recurring/internal/core"
	"recurring/internal/sheets"
)

// AccountDetector runs detection for one account.
type AccountDetector interface {
	Detect(ctx context.Context, accountID string, daysBack int) (core.DetectionResult, error)
}

// BatchResult aggregates one pass over every account.
type BatchResult struct {
	Accounts    int
	Succeeded   int
	Failed      int
	Created     int
	Updated     int
	Deactivated int
}

// DetectionProcessor runs detection across every known account.
type DetectionProcessor struct {
	accounts sheets.AccountLister
	detector AccountDetector
	workers  int
}

// NewDetectionProcessor creates a processor that detects at most workers accounts at a time.
func NewDetectionProcessor(accounts sheets.AccountLister, detector AccountDetector, workers int) *DetectionProcessor {
	if workers < 1 {
		workers = 1
	}
	return &DetectionProcessor{
		accounts: accounts,
		detector: detector,
		workers:  workers,
	}
}

// ProcessAll detects every account in parallel. A failing account is logged and
// counted and never stops the others.
func (p *DetectionProcessor) ProcessAll(ctx context.Context, daysBack int) (BatchResult, error) {
	if p.accounts == nil || p.detector == nil {
		return BatchResult{}, fmt.Errorf("processor not properly initialized")
	}

	ids, err := p.accounts.ListAccounts(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	slog.InfoContext(ctx, "Processing detection batch",
		"accounts", len(ids),
		"workers", p.workers,
		"days_back", daysBack)

	var (
		mu    sync.Mutex
		batch = BatchResult{Accounts: len(ids)}
		g     errgroup.Group
	)
	g.SetLimit(p.workers)

	for _, id := range ids {
		g.Go(func() error {
			res, err := p.detector.Detect(ctx, id, daysBack)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Failed++
				slog.ErrorContext(ctx, "Detection failed for account",
					"account_id", id,
					"error", err)
				return nil
			}
			batch.Succeeded++
			batch.Created += res.PatternsCreated
			batch.Updated += res.PatternsUpdated
			batch.Deactivated += res.PatternsDeactivated
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Detection batch complete",
		"accounts", batch.Accounts,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"created", batch.Created,
		"updated", batch.Updated,
		"deactivated", batch.Deactivated)

	return batch, nil
}
