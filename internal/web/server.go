// Package web provides the HTTP server and handlers for the bulk mail UI and API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
	mw "github.com/JonMunkholm/bulkmail/internal/web/middleware"
)

// HistoryLister lists recorded campaigns, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]core.CampaignRecord, error)
}

// Server is the HTTP server for the bulk mail application.
type Server struct {
	cfg       *config.Config
	submitter *core.Submitter
	history   HistoryLister
	sessions  *sessionManager

	router      *chi.Mux
	server      *http.Server
	limiter     *rateLimiter
	sendLimiter *rateLimiter
	startedAt   time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables GET /api/campaigns.
func WithHistory(h HistoryLister) Option {
	return func(s *Server) { s.history = h }
}

// NewServer creates a Server that sends campaigns through submitter.
func NewServer(cfg *config.Config, submitter *core.Submitter, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		submitter: submitter,
		sessions:  newSessionManager(cfg.Session),
		router:    chi.NewRouter(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.sendLimiter = newRateLimiter(cfg.Rate.SendLimit, time.Minute)
	}
	go s.sessions.janitor()

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "HX-Request", "HX-Target", "HX-Trigger", "HX-Current-URL"},
		MaxAge:         300,
	}))

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}

	s.router.Use(s.sessions.middleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s.router.Get("/healthz", s.handleHealth)

	s.router.With(middleware.Timeout(timeout)).Get("/", s.handlePage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Long-lived; no request timeout.
		r.Get("/recipients/events", s.handleRecipientEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			// Recipients
			r.Get("/recipients", s.handleListRecipients)
			r.Post("/recipients", s.handleAddRecipient)
			r.Post("/recipients/upload", s.handleUploadRecipients)
			r.Post("/recipients/check-email", s.handleCheckEmail)
			r.Get("/recipients/invalid.csv", s.handleExportInvalid)
			r.Delete("/recipients/{index}", s.handleRemoveRecipient)

			// Templates
			r.Get("/templates", s.handleListTemplates)
			r.Get("/templates/select", s.handleSelectTemplate)
			r.Get("/templates/{key}", s.handleGetTemplate)

			// History
			r.Get("/campaigns", s.handleListCampaigns)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Send.Timeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Send.Timeout))
			}
			if s.sendLimiter != nil {
				r.Use(s.sendLimiter.middleware)
			}
			r.Post("/campaign/send", s.handleSendCampaign)
			r.Post("/send", s.handleStatelessSend)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.close()
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.sendLimiter != nil {
		s.sendLimiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const cspPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", cspPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute until stop is called.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return rl.rate > 0
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP. RemoteAddr is already the real client
// address when TrustedRealIP ran first.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response for failures that happen outside
// a handler, such as rate limiting.
func writeError(w http.ResponseWriter, status int, message string) {
	msg := core.MapError(errors.New(message))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
