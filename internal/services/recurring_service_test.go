package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring/internal/core"
	"recurring/internal/sheets/memory"
)

type fixture struct {
	store     *memory.Store
	svc       *RecurringService
	now       time.Time
	published []core.DetectionResult
	exported  map[string]int
}

func (f *fixture) PublishDetectionCompleted(_ context.Context, r core.DetectionResult) error {
	f.published = append(f.published, r)
	return nil
}

func (f *fixture) ExportPatterns(_ context.Context, accountID string, ps []core.RecurringPattern) error {
	f.exported[accountID] = len(ps)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		now:      time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		exported: map[string]int{},
	}
	ids := 0
	f.svc = NewRecurringService(f.store, f.store,
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("pat-%d", ids) }),
		WithPublisher(f),
		WithExporter(f),
	)
	f.store.AddAccount("acc-1", "user-1")
	f.store.AddTransactions(
		txn("n1", "2025-01-15", "-12.99", "NETFLIX.COM"),
		txn("n2", "2025-02-14", "-12.99", "NETFLIX.COM"),
		txn("n3", "2025-03-15", "-12.99", "NETFLIX INC"),
		txn("n4", "2025-04-15", "-12.99", "Netflix.com"),
		txn("o1", "2025-03-02", "-40.00", "HARDWARE STORE"),
	)
	return f
}

func txn(id, date, amount, desc string) core.Transaction {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID:          id,
		AccountID:   "acc-1",
		Date:        core.DateOf(d),
		Amount:      decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		Description: desc,
	}
}

func TestDetectCreatesPattern(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Detect(ctx, "acc-1", 0)
	require.NoError(t, err)
	assert.Equal(t, core.DetectionResult{AccountID: "acc-1", PatternsCreated: 1}, res)

	p, err := f.svc.Get(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, "netflix", p.NormalizedKey)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, core.Monthly, p.Frequency)
	assert.Equal(t, 4, p.OccurrenceCount)
	assert.Len(t, p.TransactionIDs, p.OccurrenceCount)
	assert.True(t, p.IsActive)
	assert.True(t, p.ConfidenceScore.GreaterThanOrEqual(decimal.RequireFromString("0.8")))
	assert.Equal(t, core.NewDate(2025, 5, 15), p.NextExpectedDate)

	require.Len(t, f.published, 1)
	assert.Equal(t, 1, f.exported["acc-1"])
}

func TestDetectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)
	first, err := f.svc.List(ctx, core.PatternFilter{AccountID: "acc-1"})
	require.NoError(t, err)

	res, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PatternsCreated)
	assert.Equal(t, 1, res.PatternsUpdated)
	assert.Equal(t, 0, res.PatternsDeactivated)

	second, err := f.svc.List(ctx, core.PatternFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].OccurrenceCount, second[i].OccurrenceCount)
		assert.True(t, first[i].ConfidenceScore.Equal(second[i].ConfidenceScore))
	}
}

func TestDetectPreservesOverlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)
	_, err = f.svc.AddNote(ctx, "pat-1", "foo")
	require.NoError(t, err)
	_, err = f.svc.Ignore(ctx, "pat-1")
	require.NoError(t, err)

	f.store.AddTransactions(txn("n5", "2025-05-15", "-12.99", "NETFLIX.COM"))
	f.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err = f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)

	p, err := f.svc.Get(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.OccurrenceCount)
	assert.Equal(t, "foo", p.UserNotes)
	assert.True(t, p.IsIgnored)
}

func TestDetectDeactivatesAndReactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)

	// A short window no longer supports the pattern.
	res, err := f.svc.Detect(ctx, "acc-1", 20)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PatternsDeactivated)

	p, err := f.svc.Get(ctx, "pat-1")
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	// Already inactive patterns are not counted again.
	res, err = f.svc.Detect(ctx, "acc-1", 20)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PatternsDeactivated)

	res, err = f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PatternsUpdated)
	p, err = f.svc.Get(ctx, "pat-1")
	require.NoError(t, err)
	assert.True(t, p.IsActive)
}

func TestDetectErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "", 365)
	assert.ErrorIs(t, err, core.ErrEmptyAccount)

	_, err = f.svc.Detect(ctx, "acc-1", -1)
	assert.ErrorIs(t, err, core.ErrInvalidDaysBack)

	_, err = f.svc.Detect(ctx, "unknown", 365)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, f.published, "failed runs are not announced")
}

func TestDetectEmptyAccount(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("acc-empty", "user-2")

	res, err := f.svc.Detect(context.Background(), "acc-empty", 365)
	require.NoError(t, err)
	assert.Equal(t, core.DetectionResult{AccountID: "acc-empty"}, res)
}

func TestOverdueAndUpcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)

	up, err := f.svc.Upcoming(ctx, "acc-1", core.DefaultUpcomingDays)
	require.NoError(t, err)
	assert.Len(t, up, 1)

	up, err = f.svc.Upcoming(ctx, "acc-1", 10)
	require.NoError(t, err)
	assert.Empty(t, up)

	_, err = f.svc.Upcoming(ctx, "acc-1", -1)
	assert.ErrorIs(t, err, core.ErrInvalidHorizon)

	f.now = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	over, err := f.svc.Overdue(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, "pat-1", over[0].ID)

	_, err = f.svc.Ignore(ctx, "pat-1")
	require.NoError(t, err)
	over, err = f.svc.Overdue(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, over)
}

func TestSummaryUsesAbsoluteCosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)

	s, err := f.svc.Summary(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveCount)
	assert.Equal(t, "12.99", s.MonthlyRecurringCost.String())
	assert.Equal(t, "155.88", s.YearlyRecurringCost.String())
	require.Len(t, s.TopRecurring, 1)

	_, err = f.svc.Ignore(ctx, "pat-1")
	require.NoError(t, err)
	s, err = f.svc.Summary(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalCount)
	assert.Equal(t, 0, s.ActiveCount)
	assert.True(t, s.MonthlyRecurringCost.IsZero())
}

func TestMutationsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		p, err := f.svc.Ignore(ctx, "pat-1")
		require.NoError(t, err)
		assert.True(t, p.IsIgnored)
	}
	p, err := f.svc.Unignore(ctx, "pat-1")
	require.NoError(t, err)
	assert.False(t, p.IsIgnored)

	p, err = f.svc.SetActive(ctx, "pat-1", false)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	_, err = f.svc.Ignore(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.svc.AddNote(ctx, "missing", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListRejectsInvalidFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), core.PatternFilter{OrderBy: "nope"})
	assert.ErrorIs(t, err, core.ErrInvalidOrder)
}

type conflictStore struct {
	*memory.Store
}

func (conflictStore) ApplyReconciliation(context.Context, core.Reconciliation) error {
	return fmt.Errorf("insert: %w", core.ErrConflict)
}

func TestDetectSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	svc := NewRecurringService(f.store, conflictStore{f.store})

	_, err := svc.Detect(context.Background(), "acc-1", 365)
	assert.True(t, errors.Is(err, core.ErrConflict))
}

func TestConcurrentDetectIsSerialised(t *testing.T) {
	f := newFixture(t)
	svc := NewRecurringService(f.store, f.store, WithClock(func() time.Time { return f.now }))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Detect(context.Background(), "acc-1", 365)
			if err != nil {
				t.Errorf("detect: %v", err)
				return
			}
			mu.Lock()
			created += res.PatternsCreated
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	ps, err := svc.List(context.Background(), core.PatternFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestDetectKeepsOverlayWhenMajorityVariantShifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddAccount("acc-2", "user-2")

	disney := func(id, date, desc string) core.Transaction {
		tx := txn(id, date, "-7.99", desc)
		tx.AccountID = "acc-2"
		return tx
	}
	f.store.AddTransactions(
		disney("d1", "2025-01-10", "DISNEY PLUS"),
		disney("d2", "2025-02-10", "DISNEYPLUS"),
		disney("d3", "2025-03-10", "DISNEY PLUS"),
		disney("d4", "2025-04-10", "DISNEY PLUS"),
	)

	res, err := f.svc.Detect(ctx, "acc-2", 365)
	require.NoError(t, err)
	require.Equal(t, 1, res.PatternsCreated)
	ps, err := f.svc.List(ctx, core.PatternFilter{AccountID: "acc-2"})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	id := ps[0].ID
	assert.Equal(t, "disney plus", ps[0].NormalizedKey)

	_, err = f.svc.Ignore(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.AddNote(ctx, id, "foo")
	require.NoError(t, err)

	// "disneyplus" now outnumbers "disney plus" in the same group.
	f.store.AddTransactions(
		disney("d5", "2025-05-10", "DISNEYPLUS"),
		disney("d6", "2025-06-10", "DISNEYPLUS"),
		disney("d7", "2025-07-10", "DISNEYPLUS"),
	)
	f.now = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

	res, err = f.svc.Detect(ctx, "acc-2", 365)
	require.NoError(t, err)
	assert.Equal(t, core.DetectionResult{AccountID: "acc-2", PatternsUpdated: 1}, res)

	ps, err = f.svc.List(ctx, core.PatternFilter{AccountID: "acc-2"})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	p := ps[0]
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "disney plus", p.NormalizedKey)
	assert.Equal(t, 7, p.OccurrenceCount)
	assert.True(t, p.IsActive)
	assert.True(t, p.IsIgnored)
	assert.Equal(t, "foo", p.UserNotes)

	s, err := f.svc.Summary(ctx, "acc-2")
	require.NoError(t, err)
	assert.Equal(t, 0, s.ActiveCount)
}

func TestDetectSkipsMalformedTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noAmount := txn("bad-amount", "2025-03-01", "-12.99", "NETFLIX.COM")
	noAmount.Amount = decimal.NullDecimal{}
	noDate := txn("bad-date", "2025-03-01", "-12.99", "NETFLIX.COM")
	noDate.Date = core.Date{}
	f.store.AddTransactions(noAmount, noDate)

	res, err := f.svc.Detect(ctx, "acc-1", 365)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PatternsCreated)

	p, err := f.svc.Get(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.OccurrenceCount)
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, p.TransactionIDs)
}
