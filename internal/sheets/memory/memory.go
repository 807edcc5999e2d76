package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"recurring/internal/core"
)

// Store keeps accounts, transactions and patterns in memory. It serves tests and the
// memory backend.
type Store struct {
	mu       sync.Mutex
	owners   map[string]string
	txs      []core.Transaction
	patterns map[string]core.RecurringPattern
	now      func() time.Time
}

func New() *Store {
	return &Store{
		owners:   make(map[string]string),
		patterns: make(map[string]core.RecurringPattern),
		now:      time.Now,
	}
}

// NewFromFile seeds a store from a CSV file with the header
// id,account_id,user_id,date,amount,description. A missing file yields an empty store.
// Blank date or amount cells load as malformed transactions.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	if err := s.load(f); err != nil {
		return nil, fmt.Errorf("load seed file %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) load(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "id") {
			continue
		}
		if len(rec) != 6 {
			return fmt.Errorf("line %d: want 6 fields, got %d", i+1, len(rec))
		}
		tx := core.Transaction{ID: rec[0], AccountID: rec[1], Description: rec[5]}
		if rec[3] != "" {
			t, err := time.Parse(time.DateOnly, rec[3])
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			tx.Date = core.DateOf(t)
		}
		if rec[4] != "" {
			amount, err := core.ParseAmount(rec[4])
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			tx.Amount = decimal.NewNullDecimal(amount)
		}
		s.owners[rec[1]] = rec[2]
		s.txs = append(s.txs, tx)
	}
	return nil
}

// AddAccount registers an account owner.
func (s *Store) AddAccount(accountID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[accountID] = userID
}

// AddTransactions appends transactions.
func (s *Store) AddTransactions(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, txs...)
}

// ListTransactions implements sheets.TransactionSource
func (s *Store) ListTransactions(_ context.Context, accountID string, since core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.AccountID != accountID {
			continue
		}
		if !tx.Date.IsZero() && tx.Date.Before(since.Time) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// AccountOwner implements sheets.TransactionSource
func (s *Store) AccountOwner(_ context.Context, accountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[accountID]
	if !ok {
		return "", fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	return owner, nil
}

// ListAccounts implements sheets.AccountLister
func (s *Store) ListAccounts(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.owners))
	for id := range s.owners {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// AccountPatterns implements sheets.PatternStore
func (s *Store) AccountPatterns(_ context.Context, accountID string) ([]core.RecurringPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(core.PatternFilter{AccountID: accountID}), nil
}

// ListPatterns implements sheets.PatternStore
func (s *Store) ListPatterns(_ context.Context, filter core.PatternFilter) ([]core.RecurringPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(filter)
	core.SortPatterns(out, filter.OrderBy)
	return out, nil
}

func (s *Store) filter(f core.PatternFilter) []core.RecurringPattern {
	out := []core.RecurringPattern{}
	for _, p := range s.patterns {
		if f.Matches(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedKey < out[j].NormalizedKey })
	return out
}

// GetPattern implements sheets.PatternStore
func (s *Store) GetPattern(_ context.Context, id string) (core.RecurringPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return core.RecurringPattern{}, fmt.Errorf("pattern %s: %w", id, core.ErrNotFound)
	}
	return clone(p), nil
}

// ApplyReconciliation implements sheets.PatternStore
func (s *Store) ApplyReconciliation(_ context.Context, r core.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before the first write so a failure changes nothing.
	keys := make(map[string]string, len(s.patterns))
	for id, p := range s.patterns {
		keys[p.AccountID+"\x00"+p.NormalizedKey] = id
	}
	for _, p := range r.Create {
		k := p.AccountID + "\x00" + p.NormalizedKey
		if _, dup := keys[k]; dup {
			return fmt.Errorf("create pattern %s: %w", p.NormalizedKey, core.ErrConflict)
		}
		if _, dup := s.patterns[p.ID]; dup {
			return fmt.Errorf("create pattern %s: %w", p.ID, core.ErrConflict)
		}
		keys[k] = p.ID
	}
	for _, p := range r.Update {
		if _, ok := s.patterns[p.ID]; !ok {
			return fmt.Errorf("update pattern %s: %w", p.ID, core.ErrConflict)
		}
	}

	for _, p := range r.Create {
		p.Overlay = core.Overlay{}
		s.patterns[p.ID] = clone(p)
	}
	for _, p := range r.Update {
		stored := s.patterns[p.ID]
		stored.PatternStats = p.PatternStats
		stored.UserID = p.UserID
		stored.IsActive = p.IsActive
		stored.UpdatedAt = p.UpdatedAt
		s.patterns[p.ID] = clone(stored)
	}
	now := s.now().UTC()
	for _, id := range r.Deactivate {
		if p, ok := s.patterns[id]; ok {
			p.IsActive = false
			p.UpdatedAt = now
			s.patterns[id] = p
		}
	}
	return nil
}

// SetIgnored implements sheets.PatternStore
func (s *Store) SetIgnored(_ context.Context, id string, ignored bool) (core.RecurringPattern, error) {
	return s.update(id, func(p *core.RecurringPattern) { p.IsIgnored = ignored })
}

// SetNotes implements sheets.PatternStore
func (s *Store) SetNotes(_ context.Context, id string, notes string) (core.RecurringPattern, error) {
	return s.update(id, func(p *core.RecurringPattern) { p.UserNotes = notes })
}

// SetActive implements sheets.PatternStore
func (s *Store) SetActive(_ context.Context, id string, active bool) (core.RecurringPattern, error) {
	return s.update(id, func(p *core.RecurringPattern) {
		p.IsActive = active
		p.UpdatedAt = s.now().UTC()
	})
}

func (s *Store) update(id string, fn func(*core.RecurringPattern)) (core.RecurringPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return core.RecurringPattern{}, fmt.Errorf("pattern %s: %w", id, core.ErrNotFound)
	}
	fn(&p)
	s.patterns[id] = p
	return clone(p), nil
}

func clone(p core.RecurringPattern) core.RecurringPattern {
	p.SimilarDescriptions = append([]string(nil), p.SimilarDescriptions...)
	p.TransactionIDs = append([]string(nil), p.TransactionIDs...)
	return p
}
