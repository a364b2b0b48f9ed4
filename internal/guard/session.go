package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"kanisa.org/internal/session"
)

// ErrSessionEnded is returned once the local session has been torn down.
var ErrSessionEnded = errors.New("guard: session ended")

// refreshSkew is how close to expiry the access token may get before a
// request proactively refreshes instead of risking a 401.
const refreshSkew = 30 * time.Second

// RefreshFunc exchanges a refresh token for a new pair at the server.
type RefreshFunc func(ctx context.Context, refreshToken string) (session.TokenPair, error)

// Session holds the client's credentials explicitly. It is the single choke
// point for the clear-on-401 invariant: every path out of the authenticated
// state converges on Teardown, which is safe to invoke more than once.
type Session struct {
	mu         sync.Mutex
	pair       session.TokenPair
	refresh    RefreshFunc
	onTeardown func()
	torn       bool

	ctx    context.Context
	cancel context.CancelFunc

	sf  singleflight.Group
	now func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSession starts an authenticated client session. onTeardown fires exactly
// once, after local state is cleared, and is where the caller redirects to
// the unauthenticated entry point.
func NewSession(pair session.TokenPair, refresh RefreshFunc, onTeardown func(), opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		pair:       pair,
		refresh:    refresh,
		onTeardown: onTeardown,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context is canceled at teardown. Response handling for in-flight requests
// must select on it so a dead session never resurrects client-visible state.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Active reports whether the session still holds credentials.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.torn
}

// AccessToken returns a token valid for at least refreshSkew, refreshing
// proactively when the current one is near expiry. Concurrent callers share
// a single refresh; deduplication is an optimization, not a correctness
// requirement, since Refresh is safe to race.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return "", ErrSessionEnded
	}
	pair := s.pair
	s.mu.Unlock()

	if s.now().Add(refreshSkew).Before(pair.AccessExpiresAt) {
		return pair.AccessToken, nil
	}

	fresh, err, _ := s.sf.Do("refresh", func() (any, error) {
		next, err := s.refresh(ctx, pair.RefreshToken)
		if err != nil {
			return session.TokenPair{}, err
		}
		s.mu.Lock()
		if !s.torn {
			s.pair = next
		}
		s.mu.Unlock()
		return next, nil
	})
	if err != nil {
		// A failed silent refresh ends the session.
		s.Teardown()
		return "", ErrSessionEnded
	}
	return fresh.(session.TokenPair).AccessToken, nil
}

// RefreshToken returns the current refresh token, for explicit logout calls.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair.RefreshToken
}

// Observe401 is the standing signal from any server response: an expired or
// invalidated session clears all local state regardless of expiry math.
func (s *Session) Observe401() {
	s.Teardown()
}

// Teardown clears cached session material and cancels the session context
// atomically with the redirect signal. Idempotent.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	s.pair = session.TokenPair{}
	s.mu.Unlock()

	s.cancel()
	if s.onTeardown != nil {
		s.onTeardown()
	}
}
