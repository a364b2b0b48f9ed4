package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kanisa.org/internal/authz"
)

type memUserStore struct {
	byEmail map[string]authz.User
	byID    map[string]authz.User
}

func (s *memUserStore) FindUserByEmail(ctx context.Context, email string) (authz.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return authz.User{}, authz.ErrNotFound
	}
	return user, nil
}

func (s *memUserStore) GetUser(ctx context.Context, id string) (authz.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return authz.User{}, authz.ErrNotFound
	}
	return user, nil
}

type memRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{tokens: make(map[string]RefreshToken)}
}

func (s *memRefreshStore) CreateRefreshToken(ctx context.Context, tok RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tok.ID] = tok
	return nil
}

func (s *memRefreshStore) GetRefreshToken(ctx context.Context, id string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok {
		return RefreshToken{}, authz.ErrNotFound
	}
	return tok, nil
}

func (s *memRefreshStore) RevokeRefreshToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[id]; ok {
		tok.Revoked = true
		s.tokens[id] = tok
	}
	return nil
}

func (s *memRefreshStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tok := range s.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
			s.tokens[id] = tok
		}
	}
	return nil
}

func (s *memRefreshStore) live(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tok := range s.tokens {
		if tok.UserID == userID && !tok.Revoked {
			n++
		}
	}
	return n
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *memUserStore, *memRefreshStore, *clock) {
	t.Helper()
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	orgID, roleID := "org-1", "role-1"
	active := authz.User{
		ID: "u-active", Email: "pastor@example.org", PasswordHash: hash,
		Status: "active", OrganizationID: &orgID, RoleID: &roleID,
	}
	suspended := authz.User{
		ID: "u-susp", Email: "former@example.org", PasswordHash: hash, Status: "suspended",
	}
	users := &memUserStore{
		byEmail: map[string]authz.User{active.Email: active, suspended.Email: suspended},
		byID:    map[string]authz.User{active.ID: active, suspended.ID: suspended},
	}
	refresh := newMemRefreshStore()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(users, refresh, "test-secret", WithClock(clk.now))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, users, refresh, clk
}

func TestLoginIssuesValidTokens(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	pair, user, err := svc.Login(ctx, "  Pastor@Example.org ", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u-active" {
		t.Fatalf("wrong user: %q", user.ID)
	}
	claims, err := svc.Validate(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	actor := claims.Actor()
	if actor.UserID != "u-active" || actor.OrganizationID != "org-1" || actor.RoleID != "role-1" {
		t.Fatalf("actor mismatch: %+v", actor)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct{ email, password string }{
		{"nobody@example.org", "correct horse"},
		{"pastor@example.org", "wrong"},
		{"former@example.org", "correct horse"},
		{"", ""},
	}
	for i, tc := range cases {
		_, _, err := svc.Login(ctx, tc.email, tc.password)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("case %d: want ErrInvalidCredentials, got %v", i, err)
		}
	}
}

func TestValidateExpiredVersusMalformed(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	pair, _, err := svc.Login(context.Background(), "pastor@example.org", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	clk.advance(16 * time.Minute)
	if _, err := svc.Validate(pair.AccessToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}

	if _, err := svc.Validate("not.a.jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("want ErrTokenMalformed, got %v", err)
	}
	if _, err := svc.Validate(""); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("want ErrTokenMalformed for empty, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, refresh, clk := newTestService(t)
	ctx := context.Background()
	pair, _, err := svc.Login(ctx, "pastor@example.org", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	clk.advance(20 * time.Minute)
	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := svc.Validate(next.AccessToken); err != nil {
		t.Fatalf("new access token invalid: %v", err)
	}

	// The consumed token is dead.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("reused token: want ErrRefreshInvalid, got %v", err)
	}
	if got := refresh.live("u-active"); got != 1 {
		t.Fatalf("want exactly one live refresh token, got %d", got)
	}
}

func TestRefreshRejectsExpiredAndTampered(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	ctx := context.Background()
	pair, _, err := svc.Login(ctx, "pastor@example.org", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("malformed: want ErrRefreshInvalid, got %v", err)
	}

	// Correct id with a wrong secret burns the token.
	tampered := strings.SplitN(pair.RefreshToken, ".", 2)[0] + ".forged-secret"
	if _, err := svc.Refresh(ctx, tampered); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("tampered: want ErrRefreshInvalid, got %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("token should be revoked after tamper attempt, got %v", err)
	}

	// Expiry is enforced even for untouched tokens.
	pair2, _, err := svc.Login(ctx, "pastor@example.org", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	clk.advance(15 * 24 * time.Hour)
	if _, err := svc.Refresh(ctx, pair2.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expired: want ErrRefreshInvalid, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, refresh, _ := newTestService(t)
	ctx := context.Background()
	if _, _, err := svc.Login(ctx, "pastor@example.org", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "pastor@example.org", "correct horse"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if got := refresh.live("u-active"); got != 2 {
		t.Fatalf("want two live tokens, got %d", got)
	}

	if err := svc.Logout(ctx, "u-active"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := refresh.live("u-active"); got != 0 {
		t.Fatalf("want zero live tokens after logout, got %d", got)
	}
	if err := svc.Logout(ctx, "u-active"); err != nil {
		t.Fatalf("repeated logout must not fail: %v", err)
	}
	if err := svc.Logout(ctx, "  "); err != nil {
		t.Fatalf("blank subject logout must not fail: %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-enough")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret-enough"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "nope"); err == nil {
		t.Fatal("wrong password must not verify")
	}
}
