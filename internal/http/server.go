package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetwatch/internal/auth"
	"budgetwatch/internal/cache"
	"budgetwatch/internal/log"
	"budgetwatch/internal/middleware/trace"
	"budgetwatch/internal/services"
	"budgetwatch/internal/storage"

	"log/slog"
)

type Server struct {
	http.Server
	repo      *storage.SQLiteRepository
	budgetSvc *services.BudgetService
	jwtSecret string

	rateLimiter *rateLimiter
	tracer      *trace.Middleware

	// LRU cache for computed budget statuses
	statusCache  *cache.LRUCache[services.BudgetStatus]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr, jwtSecret string, repo *storage.SQLiteRepository) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		repo:         repo,
		budgetSvc:    services.NewBudgetService(repo),
		jwtSecret:    jwtSecret,
		rateLimiter:  newRateLimiter(),
		tracer:       trace.NewMiddleware(extractClientIP),
		statusCache:  cache.NewLRUCache[services.BudgetStatus](200, time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.statusCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Transactions
	mux.Handle("POST /api/transactions", s.api(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions", s.api(s.handleListTransactions))
	mux.Handle("GET /api/transactions/{id}", s.api(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", s.api(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.api(s.handleDeleteTransaction))

	// Categories
	mux.Handle("POST /api/categories", s.api(s.handleCreateCategory))
	mux.Handle("GET /api/categories", s.api(s.handleListCategories))
	mux.Handle("PUT /api/categories/{id}", s.api(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", s.api(s.handleDeleteCategory))

	// Budgets
	mux.Handle("POST /api/budgets", s.api(s.handleCreateBudget))
	mux.Handle("GET /api/budgets", s.api(s.handleListBudgets))
	mux.Handle("GET /api/budgets/{id}", s.api(s.handleGetBudget))
	mux.Handle("PUT /api/budgets/{id}", s.api(s.handleUpdateBudget))
	mux.Handle("DELETE /api/budgets/{id}", s.api(s.handleDeleteBudget))
	mux.Handle("GET /api/budgets/{id}/status", s.api(s.handleBudgetStatus))

	return s
}

// api wires the shared middleware chain for authenticated API routes:
// tracing, security headers, rate limiting, then bearer auth.
func (s *Server) api(handler http.HandlerFunc) http.Handler {
	authed := auth.Middleware(s.jwtSecret)(handler)
	secured := s.withSecurity(authed)
	return s.tracer.Middleware(secured)
}

// withSecurity adds security headers and rate limiting for mutating methods.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		mutating := r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete
		if mutating && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"component", log.ComponentRateLimit,
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// extractClientIP resolves the caller address, honoring proxy headers.
func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
