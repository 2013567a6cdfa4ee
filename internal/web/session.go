package web

// session.go gives every browser its own recipient list.
//
// A session is created on first contact and identified by a random cookie.
// Each session owns one core.RecipientStore and serializes access to it with
// its mutex. Idle sessions are dropped by a janitor goroutine; nothing is
// persisted.

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
)

type sessionKey struct{}

// session is one browser's recipient list and send state.
type session struct {
	id     string
	events *broadcaster

	mu       sync.Mutex
	store    *core.RecipientStore
	source   string // file name of the last successful upload
	sending  bool
	summary  *core.DeliverySummary
	lastSeen time.Time
}

// beginSend marks the session busy. It fails when a send is already running.
func (s *session) beginSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending {
		return core.ErrSendInProgress
	}
	s.sending = true
	return nil
}

func (s *session) endSend(summary *core.DeliverySummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if summary != nil {
		s.summary = summary
	}
}

// sessionManager owns all live sessions.
type sessionManager struct {
	cookieName string
	secure     bool
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	stopOnce sync.Once
	stop     chan struct{}
}

func newSessionManager(cfg config.SessionConfig) *sessionManager {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &sessionManager{
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]*session),
		stop:       make(chan struct{}),
	}
}

// get returns the session for id, creating it when id is unknown.
func (m *sessionManager) get(id string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && id != "" {
		s.mu.Lock()
		s.lastSeen = m.now()
		s.mu.Unlock()
		return s
	}

	id = uuid.New().String()
	events := newBroadcaster()
	s := &session{
		id:       id,
		events:   events,
		store:    core.NewRecipientStore(events),
		lastSeen: m.now(),
	}
	m.sessions[id] = s
	return s
}

// count returns the number of live sessions.
func (m *sessionManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evictIdle drops sessions unused for longer than the TTL. A session with a
// send in flight is kept.
func (m *sessionManager) evictIdle() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff) && !s.sending
		s.mu.Unlock()
		if idle {
			s.events.close()
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// janitor evicts idle sessions until close is called.
func (m *sessionManager) janitor() {
	interval := m.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// close stops the janitor and ends every open event stream.
func (m *sessionManager) close() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.events.close()
	}
}

// middleware attaches the caller's session, setting the cookie when new.
func (m *sessionManager) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(m.cookieName); err == nil {
			id = c.Value
		}

		s := m.get(id)
		if s.id != id {
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    s.id,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, s)
		ctx = core.ContextWithSessionID(ctx, s.id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session attached by the middleware.
func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}
