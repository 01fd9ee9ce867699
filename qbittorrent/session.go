package qbittorrent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// session is an authenticated context with the Web API. A zero expiresAt
// means the cookie is treated as valid until a request proves otherwise.
type session struct {
	cookie    string
	expiresAt time.Time
}

// sessionManager owns authentication state toward the Web API. It starts
// logged out, logs in on first use, proactively refreshes once a
// configured TTL passes, and is invalidated whenever a request comes back
// 401/403. At most one login is ever in flight; concurrent callers share
// its result.
type sessionManager struct {
	login  func(ctx context.Context) (string, error)
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *session
	group   singleflight.Group
}

func newSessionManager(login func(ctx context.Context) (string, error), ttl time.Duration, logger zerolog.Logger) *sessionManager {
	return &sessionManager{
		login:  login,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// cookie returns a valid session cookie, logging in if needed.
func (m *sessionManager) cookie(ctx context.Context) (string, error) {
	if cookie, ok := m.active(); ok {
		return cookie, nil
	}

	v, err, _ := m.group.Do("login", func() (any, error) {
		// A concurrent caller may have logged in while we waited.
		if cookie, ok := m.active(); ok {
			return cookie, nil
		}

		m.logger.Debug().Msg("Logging in to qBittorrent")
		cookie, err := m.login(ctx)
		if err != nil {
			return nil, err
		}

		s := &session{cookie: cookie}
		if m.ttl > 0 {
			s.expiresAt = m.now().Add(m.ttl)
		}

		m.mu.Lock()
		m.current = s
		m.mu.Unlock()

		return cookie, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// active returns the current cookie if the session exists and has not
// passed its expiry.
func (m *sessionManager) active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return "", false
	}
	if !s.expiresAt.IsZero() && !m.now().Before(s.expiresAt) {
		m.logger.Debug().Msg("Session cookie expired, will refresh")
		m.current = nil
		return "", false
	}
	return s.cookie, true
}

// invalidate discards the current session so the next caller logs in
// fresh.
func (m *sessionManager) invalidate() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}
