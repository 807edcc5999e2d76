package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"recurring/internal/core"
	ports "recurring/internal/sheets"
)

const defaultCacheTTL = 2 * time.Minute

// Options configures a Sheets client. Credentials are an OAuth client and a stored user
// token, each given inline or as a file path.
type Options struct {
	SpreadsheetID     string
	TransactionsSheet string
	RecurringSheet    string
	OAuthClientJSON   string
	OAuthClientFile   string
	OAuthTokenJSON    string
	OAuthTokenFile    string
}

// Client reads transactions from the Transactions sheet and writes detected patterns
// to the Recurring sheet.
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	recurringSheet    string

	// fetch reads a range of cell values. It is replaced in tests.
	fetch func(ctx context.Context, rng string) ([][]any, error)

	// Transaction sheet cache
	mu                 sync.Mutex
	cachedRows         [][]any
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var (
	_ ports.TransactionSource = (*Client)(nil)
	_ ports.AccountLister     = (*Client)(nil)
	_ ports.PatternExporter   = (*Client)(nil)
)

// New creates a Sheets client.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.TransactionsSheet == "" {
		opts.TransactionsSheet = "Transactions"
	}
	if opts.RecurringSheet == "" {
		opts.RecurringSheet = "Recurring"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	c := &Client{
		svc:                svc,
		spreadsheetID:      opts.SpreadsheetID,
		transactionsSheet:  opts.TransactionsSheet,
		recurringSheet:     opts.RecurringSheet,
		cacheValidDuration: defaultCacheTTL,
	}
	c.fetch = c.getValues
	return c
}

// newSheetsService initializes a Sheets Service from an OAuth client and a stored token.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readInlineOrFile(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := readInlineOrFile(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// The OAuth transport wraps the pooled client
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := cfg.Client(ctx, &token)

	slog.InfoContext(ctx, "Creating Google Sheets service", "scope", gsheet.SpreadsheetsScope)
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(path) != "":
		return os.ReadFile(path)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API with
// connection pooling and bounded timeouts
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) getValues(ctx context.Context, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// transactionRows returns the raw Transactions sheet, served from cache while fresh.
func (c *Client) transactionRows(ctx context.Context) ([][]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedRows != nil && time.Now().Before(c.cacheExpiresAt) {
		return c.cachedRows, nil
	}

	rows, err := c.fetch(ctx, fmt.Sprintf("%s!A:F", c.transactionsSheet))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]any{}
	}
	c.cachedRows = rows
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return rows, nil
}

// InvalidateCache forces the next read to hit the Sheets API.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedRows = nil
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) sheet(ctx context.Context) (transactionSheet, error) {
	rows, err := c.transactionRows(ctx)
	if err != nil {
		return transactionSheet{}, err
	}
	return parseTransactions(rows), nil
}

// ListTransactions implements ports.TransactionSource
func (c *Client) ListTransactions(ctx context.Context, accountID string, since core.Date) ([]core.Transaction, error) {
	s, err := c.sheet(ctx)
	if err != nil {
		return nil, err
	}
	if s.skipped > 0 {
		slog.WarnContext(ctx, "Skipped unreadable transaction rows",
			"sheet", c.transactionsSheet,
			"rows", s.skipped)
	}
	var out []core.Transaction
	for _, tx := range s.transactions {
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

// AccountOwner implements ports.TransactionSource
func (c *Client) AccountOwner(ctx context.Context, accountID string) (string, error) {
	s, err := c.sheet(ctx)
	if err != nil {
		return "", err
	}
	owner, ok := s.owners[accountID]
	if !ok {
		return "", fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	return owner, nil
}

// ListAccounts implements ports.AccountLister
func (c *Client) ListAccounts(ctx context.Context) ([]string, error) {
	s, err := c.sheet(ctx)
	if err != nil {
		return nil, err
	}
	return s.accounts(), nil
}

// ExportPatterns implements ports.PatternExporter. It rewrites the account's rows of
// the Recurring sheet and keeps the rows of every other account.
func (c *Client) ExportPatterns(ctx context.Context, accountID string, patterns []core.RecurringPattern) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:L", c.recurringSheet)
	existing, err := c.fetch(ctx, rng)
	if err != nil {
		return fmt.Errorf("read recurring sheet: %w", err)
	}

	values := mergeExport(existing, accountID, patternRows(patterns))

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1", c.recurringSheet), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", c.recurringSheet, err)
	}

	slog.InfoContext(ctx, "Exported patterns to Google Sheets",
		"account_id", accountID,
		"patterns", len(patterns),
		"sheet", c.recurringSheet)
	return nil
}
