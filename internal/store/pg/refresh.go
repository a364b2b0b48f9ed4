package pg

import (
	"context"
	"database/sql"
	"errors"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/session"
)

func (s *Store) CreateRefreshToken(ctx context.Context, tok session.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at)
		values ($1, $2, $3, $4)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return authz.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, id string) (session.RefreshToken, error) {
	var tok session.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens
		where id = $1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return session.RefreshToken{}, authz.ErrNotFound
	}
	if err != nil {
		return session.RefreshToken{}, err
	}
	return tok, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens set revoked = true where id = $1
	`, id)
	return err
}

// RevokeUserRefreshTokens revokes every live token for the subject. Running
// it against an already-logged-out user affects zero rows and is not an
// error, which keeps logout idempotent.
func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens set revoked = true where user_id = $1 and not revoked
	`, userID)
	return err
}
