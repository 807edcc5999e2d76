package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"recurring/internal/core"
	"recurring/internal/detection"
	applog "recurring/internal/log"
	"recurring/internal/sheets"
)

var (
	detectTracer       = otel.Tracer("recurring/detection")
	detectMeter        = otel.Meter("recurring/detection")
	detectRunsTotal, _ = detectMeter.Int64Counter("detection.runs.total", metric.WithDescription("Detection runs by status"))
	detectDuration, _  = detectMeter.Int64Histogram("detection.run.duration", metric.WithDescription("Detection run duration"), metric.WithUnit("ms"))
	patternsChanged, _ = detectMeter.Int64Counter("detection.patterns.changed", metric.WithDescription("Patterns created, updated or deactivated"))
)

// EventPublisher announces finished detection runs.
type EventPublisher interface {
	PublishDetectionCompleted(ctx context.Context, result core.DetectionResult) error
}

// RecurringService orchestrates detection runs and exposes the pattern query and
// mutation surface.
type RecurringService struct {
	source    sheets.TransactionSource
	store     sheets.PatternStore
	engine    *detection.Engine
	locks     *AccountLocks
	publisher EventPublisher
	exporter  sheets.PatternExporter
	now       func() time.Time
	newID     func() string
}

type Option func(*RecurringService)

// WithPublisher announces every successful run through p.
func WithPublisher(p EventPublisher) Option {
	return func(s *RecurringService) { s.publisher = p }
}

// WithExporter writes the account's patterns through e after every successful run.
func WithExporter(e sheets.PatternExporter) Option {
	return func(s *RecurringService) { s.exporter = e }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *RecurringService) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used for new patterns.
func WithIDGenerator(newID func() string) Option {
	return func(s *RecurringService) { s.newID = newID }
}

// WithSimilarity replaces the merchant key similarity used for grouping.
func WithSimilarity(sim detection.Similarity) Option {
	return func(s *RecurringService) { s.engine = detection.NewEngine(sim) }
}

func NewRecurringService(source sheets.TransactionSource, store sheets.PatternStore, opts ...Option) *RecurringService {
	s := &RecurringService{
		source: source,
		store:  store,
		engine: detection.NewEngine(nil),
		locks:  NewAccountLocks(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the service's current calendar day.
func (s *RecurringService) Today() core.Date {
	return core.DateOf(s.now())
}

// Detect runs the detection pipeline for one account over the last daysBack days and
// reconciles the result with the stored patterns. Zero daysBack means
// core.DefaultDaysBack. Runs for the same account are mutually exclusive.
func (s *RecurringService) Detect(ctx context.Context, accountID string, daysBack int) (core.DetectionResult, error) {
	if accountID == "" {
		return core.DetectionResult{}, core.ErrEmptyAccount
	}
	if daysBack < 0 {
		return core.DetectionResult{}, fmt.Errorf("%w: %d", core.ErrInvalidDaysBack, daysBack)
	}
	if daysBack == 0 {
		daysBack = core.DefaultDaysBack
	}

	ctx, span := detectTracer.Start(ctx, "detection.run",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.Int("detection.days_back", daysBack),
		),
	)
	defer span.End()
	start := time.Now()

	result, err := s.detect(ctx, accountID, daysBack)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		detectRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		detectDuration.Record(ctx, elapsed)
		return core.DetectionResult{}, err
	}

	span.SetAttributes(
		attribute.Int("patterns.created", result.PatternsCreated),
		attribute.Int("patterns.updated", result.PatternsUpdated),
		attribute.Int("patterns.deactivated", result.PatternsDeactivated),
	)
	detectRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	detectDuration.Record(ctx, elapsed)
	patternsChanged.Add(ctx, int64(result.PatternsCreated), metric.WithAttributes(attribute.String("change", "created")))
	patternsChanged.Add(ctx, int64(result.PatternsUpdated), metric.WithAttributes(attribute.String("change", "updated")))
	patternsChanged.Add(ctx, int64(result.PatternsDeactivated), metric.WithAttributes(attribute.String("change", "deactivated")))

	applog.NewStructuredLogger(applog.FromContext(ctx)).LogDetection(ctx, result, daysBack)

	s.announce(ctx, result)
	return result, nil
}

func (s *RecurringService) detect(ctx context.Context, accountID string, daysBack int) (core.DetectionResult, error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return core.DetectionResult{}, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	defer release()

	userID, err := s.source.AccountOwner(ctx, accountID)
	if err != nil {
		return core.DetectionResult{}, fmt.Errorf("resolve account owner: %w", err)
	}

	now := s.now()
	since := core.DateOf(now).AddDays(-daysBack)
	txs, err := s.source.ListTransactions(ctx, accountID, since)
	if err != nil {
		return core.DetectionResult{}, fmt.Errorf("list transactions: %w", err)
	}

	proposals := s.engine.Propose(ctx, txs, daysBack)

	existing, err := s.store.AccountPatterns(ctx, accountID)
	if err != nil {
		return core.DetectionResult{}, fmt.Errorf("load stored patterns: %w", err)
	}

	rec := PlanReconciliation(accountID, userID, existing, proposals, now.UTC(), s.newID)
	if err := s.store.ApplyReconciliation(ctx, rec); err != nil {
		return core.DetectionResult{}, fmt.Errorf("apply reconciliation: %w", err)
	}

	slog.DebugContext(ctx, "Detection pipeline finished",
		"account_id", accountID,
		"transactions", len(txs),
		"proposals", len(proposals),
		"stored", len(existing))
	return rec.Result, nil
}

// announce publishes and exports a finished run. Failures are logged and never fail the run.
func (s *RecurringService) announce(ctx context.Context, result core.DetectionResult) {
	sl := applog.NewStructuredLogger(applog.FromContext(ctx))
	fields := applog.NewFields().WithDetection(result)
	if s.publisher != nil {
		if err := s.publisher.PublishDetectionCompleted(ctx, result); err != nil {
			sl.LogError(ctx, "Failed to publish detection result", err, applog.ComponentAMQP, applog.OpPublish, fields)
		}
	}
	if s.exporter != nil {
		patterns, err := s.store.AccountPatterns(ctx, result.AccountID)
		if err != nil {
			sl.LogError(ctx, "Failed to load patterns for export", err, applog.ComponentStorage, applog.OpExport, fields)
			return
		}
		if err := s.exporter.ExportPatterns(ctx, result.AccountID, patterns); err != nil {
			sl.LogError(ctx, "Failed to export patterns", err, applog.ComponentSheets, applog.OpExport, fields)
		}
	}
}

// List returns the patterns matching filter.
func (s *RecurringService) List(ctx context.Context, filter core.PatternFilter) ([]core.RecurringPattern, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	patterns, err := s.store.ListPatterns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return patterns, nil
}

// Get returns a single pattern or core.ErrNotFound.
func (s *RecurringService) Get(ctx context.Context, id string) (core.RecurringPattern, error) {
	return s.store.GetPattern(ctx, id)
}

// Summary aggregates the patterns of accountID, or of every account when it is empty.
func (s *RecurringService) Summary(ctx context.Context, accountID string) (core.Summary, error) {
	patterns, err := s.store.ListPatterns(ctx, core.PatternFilter{AccountID: accountID})
	if err != nil {
		return core.Summary{}, fmt.Errorf("list patterns: %w", err)
	}
	summary, err := core.Summarize(patterns, s.Today())
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}

// Overdue returns active, non-ignored patterns past their next expected date, most
// overdue first.
func (s *RecurringService) Overdue(ctx context.Context, accountID string) ([]core.RecurringPattern, error) {
	today := s.Today()
	return s.selectCounted(ctx, accountID, func(p core.RecurringPattern) bool {
		return p.IsOverdue(today)
	})
}

// Upcoming returns active, non-ignored patterns expected within the next days days,
// soonest first.
func (s *RecurringService) Upcoming(ctx context.Context, accountID string, days int) ([]core.RecurringPattern, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidHorizon, days)
	}
	today := s.Today()
	return s.selectCounted(ctx, accountID, func(p core.RecurringPattern) bool {
		return p.IsUpcoming(today, days)
	})
}

func (s *RecurringService) selectCounted(ctx context.Context, accountID string, keep func(core.RecurringPattern) bool) ([]core.RecurringPattern, error) {
	active := true
	patterns, err := s.store.ListPatterns(ctx, core.PatternFilter{
		AccountID: accountID,
		IsActive:  &active,
		OrderBy:   core.OrderByNextExpected,
	})
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	out := []core.RecurringPattern{}
	for _, p := range patterns {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Ignore hides a pattern from active aggregates. It is idempotent.
func (s *RecurringService) Ignore(ctx context.Context, id string) (core.RecurringPattern, error) {
	return s.mutate(ctx, applog.OpIgnore, id, func() (core.RecurringPattern, error) {
		return s.store.SetIgnored(ctx, id, true)
	})
}

// Unignore reverses Ignore. It is idempotent.
func (s *RecurringService) Unignore(ctx context.Context, id string) (core.RecurringPattern, error) {
	return s.mutate(ctx, applog.OpUnignore, id, func() (core.RecurringPattern, error) {
		return s.store.SetIgnored(ctx, id, false)
	})
}

// AddNote replaces the pattern's user notes.
func (s *RecurringService) AddNote(ctx context.Context, id, text string) (core.RecurringPattern, error) {
	return s.mutate(ctx, applog.OpNote, id, func() (core.RecurringPattern, error) {
		return s.store.SetNotes(ctx, id, text)
	})
}

// SetActive overrides the pattern's active flag. The next detection run for the
// account evaluates the pattern again.
func (s *RecurringService) SetActive(ctx context.Context, id string, active bool) (core.RecurringPattern, error) {
	return s.mutate(ctx, applog.OpSetActive, id, func() (core.RecurringPattern, error) {
		return s.store.SetActive(ctx, id, active)
	})
}

func (s *RecurringService) mutate(ctx context.Context, op, id string, fn func() (core.RecurringPattern, error)) (core.RecurringPattern, error) {
	p, err := fn()
	if err != nil {
		return core.RecurringPattern{}, fmt.Errorf("%s pattern %s: %w", op, id, err)
	}
	fields := applog.NewFields().WithPattern(p).WithOperation(op)
	applog.FromContext(ctx).InfoContext(ctx, "Pattern updated", fields.ToSlice()...)
	return p, nil
}
