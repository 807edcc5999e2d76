// Package http serves the recurring-pattern JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"recurring/internal/cache"
	"recurring/internal/core"
	applog "recurring/internal/log"
	"recurring/internal/middleware/ratelimit"
	"recurring/internal/middleware/security"
	"recurring/internal/middleware/trace"
)

// allAccountsKey caches the summary over every account.
const allAccountsKey = "*"

// RecurringAPI is the service surface the handlers call.
type RecurringAPI interface {
	Detect(ctx context.Context, accountID string, daysBack int) (core.DetectionResult, error)
	List(ctx context.Context, filter core.PatternFilter) ([]core.RecurringPattern, error)
	Get(ctx context.Context, id string) (core.RecurringPattern, error)
	Summary(ctx context.Context, accountID string) (core.Summary, error)
	Overdue(ctx context.Context, accountID string) ([]core.RecurringPattern, error)
	Upcoming(ctx context.Context, accountID string, days int) ([]core.RecurringPattern, error)
	Ignore(ctx context.Context, id string) (core.RecurringPattern, error)
	Unignore(ctx context.Context, id string) (core.RecurringPattern, error)
	AddNote(ctx context.Context, id, text string) (core.RecurringPattern, error)
	SetActive(ctx context.Context, id string, active bool) (core.RecurringPattern, error)
}

// DefaultSummaryCacheTTL is used when Config.SummaryCacheTTL is not set.
const DefaultSummaryCacheTTL = 30 * time.Second

// ReadinessCheck reports whether the backing stores are reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds server settings. Zero values fall back to defaults.
type Config struct {
	Addr            string
	DefaultDaysBack int
	UpcomingDays    int
	RateLimit       int
	// SummaryCacheTTL bounds how long /summary can lag behind writes made outside
	// this server, such as detection runs in the worker. Writes through this
	// server drop the cached entries at once.
	SummaryCacheTTL time.Duration
	Logger          *applog.Logger
	Ready           ReadinessCheck
}

type Server struct {
	http.Server
	svc    RecurringAPI
	config Config

	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(svc RecurringAPI, config Config) *Server {
	if config.DefaultDaysBack <= 0 {
		config.DefaultDaysBack = core.DefaultDaysBack
	}
	if config.UpcomingDays <= 0 {
		config.UpcomingDays = core.DefaultUpcomingDays
	}
	if config.SummaryCacheTTL <= 0 {
		config.SummaryCacheTTL = DefaultSummaryCacheTTL
	}

	s := &Server{
		svc:          svc,
		config:       config,
		summaryCache: cache.NewLRUCache[core.Summary](256, config.SummaryCacheTTL),
		cacheManager: cache.NewManager(),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: config.RateLimit}),
		tracer:       trace.NewMiddleware(config.Logger, ratelimit.ExtractClientIP),
	}
	s.cacheManager.Register("summary", s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/recurring", s.handleList)
	mux.HandleFunc("GET /api/recurring/summary", s.handleSummary)
	mux.HandleFunc("GET /api/recurring/overdue", s.handleOverdue)
	mux.HandleFunc("GET /api/recurring/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /api/recurring/{id}", s.handleGet)
	mux.HandleFunc("POST /api/recurring/detect", s.handleDetect)
	mux.HandleFunc("POST /api/recurring/{id}/ignore", s.handleIgnore)
	mux.HandleFunc("POST /api/recurring/{id}/unignore", s.handleUnignore)
	mux.HandleFunc("POST /api/recurring/{id}/note", s.handleNote)
	mux.HandleFunc("POST /api/recurring/{id}/active", s.handleActive)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ratelimit.ExtractClientIP, http.MethodPost)(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = security.NewDetector().Middleware(handler)
	if config.Logger != nil {
		handler = applog.Middleware(config.Logger)(handler)
	}

	s.Server = http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)

		m := s.tracer.GetMetrics()
		slog.InfoContext(ctx, "HTTP server stopped",
			"requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"avg_response", m.AverageResponseTime().String(),
			"summary_cache_hits", s.summaryCache.Stats().Hits)
	})
	return err
}

func summaryKey(accountID string) string {
	if accountID == "" {
		return allAccountsKey
	}
	return accountID
}

// invalidate drops cached aggregates that include accountID.
func (s *Server) invalidate(accountID string) {
	s.summaryCache.Delete(summaryKey(accountID), allAccountsKey)
}

func (s *Server) summary(ctx context.Context, accountID string) (core.Summary, error) {
	key := summaryKey(accountID)
	if sum, ok := s.summaryCache.Get(key); ok {
		slog.DebugContext(ctx, "Summary cache hit", "account_id", accountID)
		return sum, nil
	}
	sum, err := s.svc.Summary(ctx, accountID)
	if err != nil {
		return core.Summary{}, err
	}
	s.summaryCache.Set(key, sum)
	return sum, nil
}
