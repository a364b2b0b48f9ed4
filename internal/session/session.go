package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/ids"
)

const (
	defaultIssuer     = "kanisa"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrSessionExpired     = errors.New("session: token expired")
	ErrTokenMalformed     = errors.New("session: token malformed")
	ErrRefreshInvalid     = errors.New("session: refresh token invalid")
)

// Claims are the validated access-token claims. The organization scope used
// by the gate comes from here and only from here.
type Claims struct {
	RoleID         string `json:"role,omitempty"`
	OrganizationID string `json:"org,omitempty"`
	HeadquartersID string `json:"hq,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts validated claims into the gate's subject representation.
func (c *Claims) Actor() authz.Actor {
	return authz.Actor{
		UserID:         c.Subject,
		RoleID:         c.RoleID,
		OrganizationID: c.OrganizationID,
		HeadquartersID: c.HeadquartersID,
	}
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RefreshToken is the persisted half of a refresh credential. Only the
// SHA-256 hash of the client secret is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// UserStore resolves authentication subjects.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (authz.User, error)
	GetUser(ctx context.Context, id string) (authz.User, error)
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, tok RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// Service issues, validates and rotates session credentials.
type Service struct {
	users      UserStore
	refresh    RefreshTokenStore
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		if trimmed := strings.TrimSpace(issuer); trimmed != "" {
			s.issuer = trimmed
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service signing tokens with the given HS256 secret.
func NewService(users UserStore, refresh RefreshTokenStore, secret string, opts ...Option) (*Service, error) {
	if users == nil || refresh == nil {
		return nil, errors.New("session: user and refresh stores are required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session: signing secret is required")
	}
	svc := &Service{
		users:      users,
		refresh:    refresh,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown account,
// wrong password and non-active status are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, authz.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, authz.User{}, ErrInvalidCredentials
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			return TokenPair{}, authz.User{}, ErrInvalidCredentials
		}
		return TokenPair{}, authz.User{}, err
	}
	if user.Status != "active" {
		return TokenPair{}, authz.User{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, authz.User{}, ErrInvalidCredentials
	}
	pair, err := s.mintTokens(ctx, user)
	if err != nil {
		return TokenPair{}, authz.User{}, err
	}
	return pair, user, nil
}

// Validate verifies an access token. Expired tokens are reported distinctly
// from malformed ones because the correct client action differs.
func (s *Service) Validate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenMalformed
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// Refresh rotates the refresh token and issues new access credentials. It is
// safe to call concurrently with the same token: one caller wins the
// rotation, the rest fail cleanly with ErrRefreshInvalid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrRefreshInvalid
	}
	record, err := s.refresh.GetRefreshToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			return TokenPair{}, ErrRefreshInvalid
		}
		return TokenPair{}, err
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, ErrRefreshInvalid
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = s.refresh.RevokeRefreshToken(ctx, record.ID)
		return TokenPair{}, ErrRefreshInvalid
	}
	user, err := s.users.GetUser(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			return TokenPair{}, ErrRefreshInvalid
		}
		return TokenPair{}, err
	}
	if user.Status != "active" {
		return TokenPair{}, ErrRefreshInvalid
	}
	if err := s.refresh.RevokeRefreshToken(ctx, record.ID); err != nil {
		return TokenPair{}, err
	}
	return s.mintTokens(ctx, user)
}

// Logout revokes every refresh token held by the subject. Calling it twice
// leaves the same state as calling it once.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	return s.refresh.RevokeUserRefreshTokens(ctx, userID)
}

func (s *Service) mintTokens(ctx context.Context, user authz.User) (TokenPair, error) {
	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			ID:        uuid.NewString(),
		},
	}
	if user.RoleID != nil {
		claims.RoleID = *user.RoleID
	}
	if user.OrganizationID != nil {
		claims.OrganizationID = *user.OrganizationID
	}
	if user.HeadquartersID != nil {
		claims.HeadquartersID = *user.HeadquartersID
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshString, record, err := s.generateRefreshToken(user.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.CreateRefreshToken(ctx, record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) generateRefreshToken(userID string, now time.Time) (string, RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", RefreshToken{}, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := ids.New()
	sum := sha256.Sum256([]byte(secret))
	record := RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return tokenID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
